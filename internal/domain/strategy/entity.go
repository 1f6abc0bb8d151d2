package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Risk level constants
const (
	RiskConservative = "conservative"
	RiskBalanced     = "balanced"
	RiskGrowth       = "growth"
)

// PoolAllocation is one yield venue inside a strategy: a (chain, protocol,
// asset) triple and the percentage of capital assigned to it.
type PoolAllocation struct {
	Chain                string  `json:"chain"`
	Protocol             string  `json:"protocol"`
	Asset                string  `json:"asset"`
	AllocationPercentage float64 `json:"allocationPercentage"`
}

// Key returns the stable pool identifier used for rate lookups and
// ledger grouping.
func (p PoolAllocation) Key() string {
	return fmt.Sprintf("%s:%s:%s", p.Chain, p.Protocol, p.Asset)
}

// Strategy is an immutable-once-seeded allocation template
type Strategy struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	RiskLevel   string    `db:"risk_level"`
	Description string    `db:"description"`

	// Pool allocations (JSONB array)
	PoolAllocations json.RawMessage `db:"pool_allocations"`

	ExpectedApyMin     float64 `db:"expected_apy_min"`
	ExpectedApyMax     float64 `db:"expected_apy_max"`
	RebalanceThreshold float64 `db:"rebalance_threshold"`

	// Allowed chains (JSONB array)
	AllowedChains json.RawMessage `db:"allowed_chains"`

	CreatedAt time.Time `db:"created_at"`
}

// New creates a strategy with empty allocation arrays. Pools and chains
// are set through their accessors so the JSONB encoding stays in one place.
func New(name, riskLevel, description string, apyMin, apyMax, rebalanceThreshold float64) *Strategy {
	return &Strategy{
		ID:                 uuid.New(),
		Name:               name,
		RiskLevel:          riskLevel,
		Description:        description,
		PoolAllocations:    json.RawMessage(`[]`),
		ExpectedApyMin:     apyMin,
		ExpectedApyMax:     apyMax,
		RebalanceThreshold: rebalanceThreshold,
		AllowedChains:      json.RawMessage(`[]`),
		CreatedAt:          time.Now().UTC(),
	}
}

// GetPoolAllocations parses the JSONB allocations array
func (s *Strategy) GetPoolAllocations() ([]PoolAllocation, error) {
	var pools []PoolAllocation
	if len(s.PoolAllocations) == 0 {
		return pools, nil
	}
	if err := json.Unmarshal(s.PoolAllocations, &pools); err != nil {
		return nil, err
	}
	return pools, nil
}

// SetPoolAllocations encodes the allocations array to JSONB
func (s *Strategy) SetPoolAllocations(pools []PoolAllocation) error {
	data, err := json.Marshal(pools)
	if err != nil {
		return err
	}
	s.PoolAllocations = data
	return nil
}

// GetAllowedChains parses the JSONB chains array
func (s *Strategy) GetAllowedChains() ([]string, error) {
	var chains []string
	if len(s.AllowedChains) == 0 {
		return chains, nil
	}
	if err := json.Unmarshal(s.AllowedChains, &chains); err != nil {
		return nil, err
	}
	return chains, nil
}

// SetAllowedChains encodes the chains array to JSONB
func (s *Strategy) SetAllowedChains(chains []string) error {
	data, err := json.Marshal(chains)
	if err != nil {
		return err
	}
	s.AllowedChains = data
	return nil
}

// DefaultChain returns the first allowed chain, or fallback when the
// strategy carries none.
func (s *Strategy) DefaultChain(fallback string) string {
	chains, err := s.GetAllowedChains()
	if err != nil || len(chains) == 0 {
		return fallback
	}
	return chains[0]
}

// Validate checks that pool allocation percentages sum to 100.
// Validation is advisory: it runs at seed time, not on every write.
func (s *Strategy) Validate() error {
	pools, err := s.GetPoolAllocations()
	if err != nil {
		return err
	}
	var total float64
	for _, p := range pools {
		total += p.AllocationPercentage
	}
	if math.Round(total) != 100 {
		return fmt.Errorf("pool allocations must sum to 100, got %g", total)
	}
	return nil
}
