// Package seeds provides the initial strategy catalog
package seeds

import (
	"context"

	"autopilot/internal/domain/strategy"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

type seedStrategy struct {
	name        string
	riskLevel   string
	description string
	pools       []strategy.PoolAllocation
	apyMin      float64
	apyMax      float64
	threshold   float64
	chains      []string
}

var catalog = []seedStrategy{
	{
		name:        "Safe Harbor",
		riskLevel:   strategy.RiskConservative,
		description: "Your savings stay on Ethereum, the most established blockchain network, earning steady yield through Aave. Minimal movement, maximum predictability.",
		pools: []strategy.PoolAllocation{
			{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 100},
		},
		apyMin:    3,
		apyMax:    5,
		threshold: 2,
		chains:    []string{"ethereum"},
	},
	{
		name:        "Steady Growth",
		riskLevel:   strategy.RiskBalanced,
		description: "A balanced split between Ethereum and Base gives you stable earnings with a bit more upside. The agent rebalances when a meaningfully better rate appears.",
		pools: []strategy.PoolAllocation{
			{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 60},
			{Chain: "base", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 40},
		},
		apyMin:    5,
		apyMax:    8,
		threshold: 1.5,
		chains:    []string{"ethereum", "base"},
	},
	{
		name:        "Max Yield",
		riskLevel:   strategy.RiskGrowth,
		description: "Your savings chase the highest available rate across Base, Polygon, and Ethereum. The agent moves funds aggressively whenever a better opportunity arises.",
		pools: []strategy.PoolAllocation{
			{Chain: "base", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 40},
			{Chain: "polygon", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 40},
			{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 20},
		},
		apyMin:    7,
		apyMax:    12,
		threshold: 1,
		chains:    []string{"ethereum", "base", "polygon"},
	},
}

// SeedStrategies inserts the strategy catalog. Strategies that already
// exist (by name) are left untouched.
func SeedStrategies(ctx context.Context, repo strategy.Repository) error {
	log := logger.Get().With("component", "seeds")

	existing, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list existing strategies")
	}
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s.Name] = struct{}{}
	}

	created := 0
	for _, seed := range catalog {
		if _, ok := seen[seed.name]; ok {
			continue
		}

		s, err := seed.build()
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, s); err != nil {
			return errors.Wrapf(err, "seed strategy %q", seed.name)
		}
		created++
		log.Infow("Strategy seeded", "name", seed.name, "risk_level", seed.riskLevel)
	}

	log.Infow("Strategy seeding complete", "created", created, "existing", len(existing))
	return nil
}

func (seed seedStrategy) build() (*strategy.Strategy, error) {
	s := strategy.New(seed.name, seed.riskLevel, seed.description, seed.apyMin, seed.apyMax, seed.threshold)
	if err := s.SetPoolAllocations(seed.pools); err != nil {
		return nil, errors.Wrapf(err, "encode pools for %q", seed.name)
	}
	if err := s.SetAllowedChains(seed.chains); err != nil {
		return nil, errors.Wrapf(err, "encode chains for %q", seed.name)
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate %q", seed.name)
	}
	return s, nil
}
