package investment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	agentadapter "autopilot/internal/adapters/agent"
	"autopilot/internal/adapters/config"
	"autopilot/internal/adapters/dedup"
	"autopilot/internal/domain/action"
	"autopilot/internal/domain/investment"
	"autopilot/internal/domain/strategy"
	"autopilot/internal/events"
	"autopilot/pkg/errors"
	"autopilot/pkg/logger"
)

// MockInvestmentRepository is a mock for investment.Repository
type MockInvestmentRepository struct {
	mock.Mock
}

func (m *MockInvestmentRepository) Create(ctx context.Context, inv *investment.Investment) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvestmentRepository) Update(ctx context.Context, inv *investment.Investment) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvestmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*investment.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) FindActiveByUserID(ctx context.Context, userID string) (*investment.Investment, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*investment.Investment), args.Error(1)
}

// MockStrategyRepository is a mock for strategy.Repository
type MockStrategyRepository struct {
	mock.Mock
}

func (m *MockStrategyRepository) Create(ctx context.Context, s *strategy.Strategy) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStrategyRepository) FindByID(ctx context.Context, id uuid.UUID) (*strategy.Strategy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*strategy.Strategy), args.Error(1)
}

func (m *MockStrategyRepository) List(ctx context.Context) ([]*strategy.Strategy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*strategy.Strategy), args.Error(1)
}

// MockActionRepository is a mock for action.Repository
type MockActionRepository struct {
	mock.Mock
}

func (m *MockActionRepository) Create(ctx context.Context, a *action.Action) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockActionRepository) Update(ctx context.Context, a *action.Action) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockActionRepository) FindByInvestmentID(ctx context.Context, investmentID uuid.UUID) ([]*action.Action, error) {
	args := m.Called(ctx, investmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*action.Action), args.Error(1)
}

func (m *MockActionRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*action.Action, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*action.Action), args.Error(1)
}

// MockAgentTrigger is a mock for AgentTrigger
type MockAgentTrigger struct {
	mock.Mock
}

func (m *MockAgentTrigger) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockAgentTrigger) CallbackURL(investmentID uuid.UUID) string {
	args := m.Called(investmentID)
	return args.String(0)
}

func (m *MockAgentTrigger) TriggerExecute(ctx context.Context, req agentadapter.ExecuteRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockAgentTrigger) TriggerRebalance(ctx context.Context, req agentadapter.RebalanceRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type testEnv struct {
	service     *Service
	investments *MockInvestmentRepository
	strategies  *MockStrategyRepository
	actions     *MockActionRepository
	trigger     *MockAgentTrigger
	broadcaster *events.Broadcaster
}

func newTestEnv() *testEnv {
	investments := &MockInvestmentRepository{}
	strategies := &MockStrategyRepository{}
	actions := &MockActionRepository{}
	trigger := &MockAgentTrigger{}
	broadcaster := events.NewBroadcaster(16)

	cfg := config.AgentConfig{
		DefaultChain:    "base",
		DefaultProtocol: "Aave v3",
		DefaultAsset:    "USDC",
	}

	service := NewService(
		investments, strategies, actions,
		trigger, dedup.NewMemoryStore(), broadcaster,
		events.NewPublisher(nil, "", logger.Get()),
		nil, cfg,
	)

	return &testEnv{
		service:     service,
		investments: investments,
		strategies:  strategies,
		actions:     actions,
		trigger:     trigger,
		broadcaster: broadcaster,
	}
}

func testStrategy(t *testing.T, name string) *strategy.Strategy {
	t.Helper()
	s := strategy.New(name, strategy.RiskBalanced, "", 5, 8, 1.5)
	require.NoError(t, s.SetPoolAllocations([]strategy.PoolAllocation{
		{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 60},
		{Chain: "base", Protocol: "Aave v3", Asset: "USDC", AllocationPercentage: 40},
	}))
	require.NoError(t, s.SetAllowedChains([]string{"ethereum", "base"}))
	return s
}

func TestStartInvesting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	strat := testStrategy(t, "Steady Growth")

	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(nil, errors.ErrNotFound)
	env.investments.On("Create", mock.Anything, mock.MatchedBy(func(inv *investment.Investment) bool {
		return inv.UserID == "user-1" && inv.StrategyID == strat.ID && inv.IsActive()
	})).Return(nil)

	result, err := env.service.StartInvesting(ctx, "user-1", strat.ID, 0)

	require.NoError(t, err)
	assert.Equal(t, "Steady Growth", result.StrategyName)
	assert.Equal(t, investment.StatusActive, result.Status)
	assert.Empty(t, result.AgentMessage, "no agent run without an amount")
	env.investments.AssertExpectations(t)
}

func TestStartInvesting_AlreadyActive(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	strat := testStrategy(t, "Steady Growth")
	existing := investment.New("user-1", uuid.New())

	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(existing, nil)

	_, err := env.service.StartInvesting(ctx, "user-1", strat.ID, 100)

	assert.ErrorIs(t, err, errors.ErrActiveInvestmentExists)
	env.investments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestStartInvesting_StrategyNotFound(t *testing.T) {
	env := newTestEnv()
	missing := uuid.New()

	env.strategies.On("FindByID", mock.Anything, missing).Return(nil, errors.ErrNotFound)

	_, err := env.service.StartInvesting(context.Background(), "user-1", missing, 100)

	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStartInvesting_OfflinePlaceholder(t *testing.T) {
	env := newTestEnv()
	strat := testStrategy(t, "Steady Growth")
	recorded := make(chan *action.Action, 1)

	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(nil, errors.ErrNotFound)
	env.investments.On("Create", mock.Anything, mock.Anything).Return(nil)
	env.trigger.On("Enabled").Return(false)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded <- args.Get(1).(*action.Action)
	}).Return(nil)

	result, err := env.service.StartInvesting(context.Background(), "user-1", strat.ID, 250)
	require.NoError(t, err)
	assert.NotEmpty(t, result.AgentMessage)

	select {
	case a := <-recorded:
		assert.Equal(t, action.TypeRateCheck, a.Type)
		assert.Equal(t, action.StatusPending, a.Status)
		assert.Equal(t, "ethereum", a.Chain, "first allowed chain of the strategy")
		assert.Equal(t, "250", a.Amount)
		assert.Contains(t, a.Rationale, "Agent queued")
		assert.Contains(t, a.Rationale, "Steady Growth")
	case <-time.After(2 * time.Second):
		t.Fatal("placeholder action was never recorded")
	}
}

func TestStartInvesting_DispatchFailureRecordsFailedAction(t *testing.T) {
	env := newTestEnv()
	strat := testStrategy(t, "Steady Growth")
	recorded := make(chan *action.Action, 1)

	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(nil, errors.ErrNotFound)
	env.investments.On("Create", mock.Anything, mock.Anything).Return(nil)
	env.trigger.On("Enabled").Return(true)
	env.trigger.On("CallbackURL", mock.Anything).Return("http://api/investments/x/actions/report")
	env.trigger.On("TriggerExecute", mock.Anything, mock.Anything).Return(errors.Wrap(errors.ErrAgentUnavailable, "agent service returned 500"))
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded <- args.Get(1).(*action.Action)
	}).Return(nil)

	_, err := env.service.StartInvesting(context.Background(), "user-1", strat.ID, 250)
	require.NoError(t, err, "dispatch failures never surface to the caller")

	select {
	case a := <-recorded:
		assert.Equal(t, action.TypeRateCheck, a.Type)
		assert.Equal(t, action.StatusFailed, a.Status)
		assert.Contains(t, a.Rationale, "Agent execution failed")
		assert.Contains(t, a.Rationale, "| FAILED:")
	case <-time.After(2 * time.Second):
		t.Fatal("failed dispatch was never recorded")
	}
}

func TestSwitchStrategy(t *testing.T) {
	env := newTestEnv()
	oldStrat := testStrategy(t, "Safe Harbor")
	newStrat := testStrategy(t, "Max Yield")
	current := investment.New("user-1", oldStrat.ID)
	placeholders := make(chan *action.Action, 2)

	env.strategies.On("FindByID", mock.Anything, newStrat.ID).Return(newStrat, nil)
	env.strategies.On("FindByID", mock.Anything, oldStrat.ID).Return(oldStrat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(current, nil)
	env.investments.On("Update", mock.Anything, mock.MatchedBy(func(inv *investment.Investment) bool {
		return inv.ID == current.ID && !inv.IsActive()
	})).Return(nil)
	env.investments.On("Create", mock.Anything, mock.MatchedBy(func(inv *investment.Investment) bool {
		return inv.StrategyID == newStrat.ID && inv.IsActive()
	})).Return(nil)
	env.trigger.On("Enabled").Return(false)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		placeholders <- args.Get(1).(*action.Action)
	}).Return(nil)

	result, err := env.service.SwitchStrategy(context.Background(), "user-1", newStrat.ID, 1000)

	require.NoError(t, err)
	assert.Equal(t, "Safe Harbor", result.PreviousStrategy.Name)
	assert.Equal(t, "Max Yield", result.NewStrategy.Name)
	assert.Equal(t, investment.StatusActive, result.Status)

	var withdraw, supply *action.Action
	for i := 0; i < 2; i++ {
		select {
		case a := <-placeholders:
			switch a.Type {
			case action.TypeWithdraw:
				withdraw = a
			case action.TypeSupply:
				supply = a
			}
		case <-time.After(2 * time.Second):
			t.Fatal("rebalance placeholders were never recorded")
		}
	}

	require.NotNil(t, withdraw)
	assert.Equal(t, oldStrat.ID, withdraw.StrategyID)
	assert.Contains(t, withdraw.Rationale, "withdraw from Safe Harbor")

	require.NotNil(t, supply)
	assert.Equal(t, newStrat.ID, supply.StrategyID)
	assert.Contains(t, supply.Rationale, "supply to Max Yield")
}

func TestSwitchStrategy_NoActiveInvestment(t *testing.T) {
	env := newTestEnv()
	newStrat := testStrategy(t, "Max Yield")

	env.strategies.On("FindByID", mock.Anything, newStrat.ID).Return(newStrat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(nil, errors.ErrNotFound)

	_, err := env.service.SwitchStrategy(context.Background(), "user-1", newStrat.ID, 0)

	assert.ErrorIs(t, err, errors.ErrNoActiveInvestment)
}

func TestSwitchStrategy_SameStrategy(t *testing.T) {
	env := newTestEnv()
	strat := testStrategy(t, "Steady Growth")
	current := investment.New("user-1", strat.ID)

	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(current, nil)

	_, err := env.service.SwitchStrategy(context.Background(), "user-1", strat.ID, 0)

	assert.ErrorIs(t, err, errors.ErrSameStrategy)
	env.investments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestActive(t *testing.T) {
	env := newTestEnv()
	strat := testStrategy(t, "Steady Growth")
	inv := investment.New("user-1", strat.ID)
	ledger := []*action.Action{
		action.New(action.CreateParams{InvestmentID: inv.ID, Type: action.TypeSupply, Amount: "100"}),
		action.New(action.CreateParams{InvestmentID: inv.ID, Type: action.TypeRateCheck, Amount: "0"}),
	}

	env.investments.On("FindActiveByUserID", mock.Anything, "user-1").Return(inv, nil)
	env.strategies.On("FindByID", mock.Anything, strat.ID).Return(strat, nil)
	env.actions.On("FindByInvestmentID", mock.Anything, inv.ID).Return(ledger, nil)

	view, err := env.service.Active(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, inv.ID, view.InvestmentID)
	assert.Equal(t, 2, view.TotalActions)
	require.NotNil(t, view.LastAction)
	assert.Equal(t, action.TypeRateCheck, view.LastAction.ActionType)
	assert.Len(t, view.Strategy.PoolAllocations, 2)
}
