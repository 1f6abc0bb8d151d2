package strategy

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "autopilot/internal/domain/strategy"
	"autopilot/pkg/errors"
)

// MockStrategyRepository is a mock for strategy.Repository
type MockStrategyRepository struct {
	mock.Mock
}

func (m *MockStrategyRepository) Create(ctx context.Context, s *domain.Strategy) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStrategyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Strategy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Strategy), args.Error(1)
}

func (m *MockStrategyRepository) List(ctx context.Context) ([]*domain.Strategy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Strategy), args.Error(1)
}

func seededStrategy(t *testing.T) *domain.Strategy {
	t.Helper()
	s := domain.New("Steady Growth", domain.RiskBalanced, "Balanced yield", 5, 8, 1.5)
	require.NoError(t, s.SetPoolAllocations([]domain.PoolAllocation{
		{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 60},
		{Chain: "base", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 40},
	}))
	require.NoError(t, s.SetAllowedChains([]string{"ethereum", "base"}))
	return s
}

func TestList(t *testing.T) {
	repo := &MockStrategyRepository{}
	strat := seededStrategy(t)
	repo.On("List", mock.Anything).Return([]*domain.Strategy{strat}, nil)

	views, err := NewService(repo).List(context.Background())

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Steady Growth", views[0].Name)
	assert.Len(t, views[0].PoolAllocations, 2)
	assert.Equal(t, []string{"ethereum", "base"}, views[0].AllowedChains)
}

func TestGet_NotFound(t *testing.T) {
	repo := &MockStrategyRepository{}
	missing := uuid.New()
	repo.On("FindByID", mock.Anything, missing).Return(nil, errors.ErrNotFound)

	_, err := NewService(repo).Get(context.Background(), missing)

	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPlan(t *testing.T) {
	repo := &MockStrategyRepository{}
	strat := seededStrategy(t)
	repo.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)

	decisions, err := NewService(repo).Plan(context.Background(), strat.ID, PlanParams{
		TotalAmountUSD: 1000,
		CurrentRates: map[string]float64{
			"ethereum:Aave v3:USDC": 5.2,
			"base:Aave v3:USDC":     4.8,
		},
		GasPriceUSD: 3,
	})

	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.True(t, decisions[0].ShouldExecute)
	assert.Equal(t, 600.0, decisions[0].AmountUSD)
	assert.Equal(t, 5.2, decisions[0].ExpectedAPY)
	assert.True(t, decisions[1].ShouldExecute)
	assert.Equal(t, 400.0, decisions[1].AmountUSD)
}

func TestPlan_UnknownRateSkips(t *testing.T) {
	repo := &MockStrategyRepository{}
	strat := seededStrategy(t)
	repo.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)

	decisions, err := NewService(repo).Plan(context.Background(), strat.ID, PlanParams{
		TotalAmountUSD: 1000,
		CurrentRates:   map[string]float64{"ethereum:Aave v3:USDC": 5.2},
		GasPriceUSD:    3,
	})

	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.True(t, decisions[0].ShouldExecute)
	assert.False(t, decisions[1].ShouldExecute, "pool without a known rate must skip")
	assert.Contains(t, decisions[1].Rationale, "gas cost")
}

func TestPlan_InvalidAmount(t *testing.T) {
	repo := &MockStrategyRepository{}

	_, err := NewService(repo).Plan(context.Background(), uuid.New(), PlanParams{
		TotalAmountUSD: 0,
	})

	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
