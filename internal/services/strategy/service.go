// Package strategy exposes the read side of the strategy catalog
package strategy

import (
	"context"

	"github.com/google/uuid"

	"autopilot/internal/domain/allocation"
	"autopilot/internal/domain/strategy"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// View is the API representation of one strategy
type View struct {
	ID                 uuid.UUID                 `json:"id"`
	Name               string                    `json:"name"`
	RiskLevel          string                    `json:"riskLevel"`
	Description        string                    `json:"description"`
	PoolAllocations    []strategy.PoolAllocation `json:"poolAllocations"`
	ExpectedApyMin     float64                   `json:"expectedApyMin"`
	ExpectedApyMax     float64                   `json:"expectedApyMax"`
	RebalanceThreshold float64                   `json:"rebalanceThreshold"`
	AllowedChains      []string                  `json:"allowedChains"`
}

// Service serves the seeded strategy catalog
type Service struct {
	repo strategy.Repository
	log  *logger.Logger
}

// NewService creates the strategy service
func NewService(repo strategy.Repository) *Service {
	return &Service{
		repo: repo,
		log:  logger.Get().With("component", "strategy_service"),
	}
}

// List returns all strategies
func (s *Service) List(ctx context.Context) ([]View, error) {
	strategies, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list strategies")
	}

	views := make([]View, 0, len(strategies))
	for _, st := range strategies {
		view, err := toView(st)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns one strategy by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := toView(st)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// PlanParams carries the market observations for a dry-run allocation
// pass. Rates and gas come from the caller; the strategy contributes its
// pools and rebalance threshold.
type PlanParams struct {
	TotalAmountUSD float64
	CurrentRates   map[string]float64
	GasPriceUSD    float64
	CurrentAPY     *float64
}

// PlanDecision is one pool verdict of a dry-run allocation pass
type PlanDecision struct {
	Pool          strategy.PoolAllocation `json:"pool"`
	AmountUSD     float64                 `json:"amountUsd"`
	ExpectedAPY   float64                 `json:"expectedApy"`
	GasCostUSD    float64                 `json:"gasCostUsd"`
	ShouldExecute bool                    `json:"shouldExecute"`
	Rationale     string                  `json:"rationale"`
}

// Plan computes per-pool allocation verdicts for the strategy without
// dispatching anything. Pools with no rate in CurrentRates degrade to a
// zero APY and skip.
func (s *Service) Plan(ctx context.Context, id uuid.UUID, params PlanParams) ([]PlanDecision, error) {
	if params.TotalAmountUSD <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "totalAmountUsd must be positive")
	}

	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	pools, err := st.GetPoolAllocations()
	if err != nil {
		return nil, errors.Wrap(err, "read pool allocations")
	}

	decisions := allocation.Compute(allocation.ComputeParams{
		Pools:              pools,
		TotalAmountUSD:     params.TotalAmountUSD,
		CurrentRates:       params.CurrentRates,
		GasPriceUSD:        params.GasPriceUSD,
		RebalanceThreshold: st.RebalanceThreshold,
		CurrentAPY:         params.CurrentAPY,
	})

	out := make([]PlanDecision, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, PlanDecision{
			Pool:          d.Pool,
			AmountUSD:     d.AmountUSD,
			ExpectedAPY:   d.ExpectedAPY,
			GasCostUSD:    d.GasCostUSD,
			ShouldExecute: d.ShouldExecute,
			Rationale:     d.Rationale,
		})
	}
	return out, nil
}

func toView(st *strategy.Strategy) (View, error) {
	pools, err := st.GetPoolAllocations()
	if err != nil {
		return View{}, errors.Wrap(err, "read pool allocations")
	}
	chains, err := st.GetAllowedChains()
	if err != nil {
		return View{}, errors.Wrap(err, "read allowed chains")
	}
	return View{
		ID:                 st.ID,
		Name:               st.Name,
		RiskLevel:          st.RiskLevel,
		Description:        st.Description,
		PoolAllocations:    pools,
		ExpectedApyMin:     st.ExpectedApyMin,
		ExpectedApyMax:     st.ExpectedApyMax,
		RebalanceThreshold: st.RebalanceThreshold,
		AllowedChains:      chains,
	}, nil
}
