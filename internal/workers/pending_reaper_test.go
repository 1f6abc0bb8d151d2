package workers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"autopilot/internal/domain/action"
)

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

func pendingAction() *action.Action {
	return action.New(action.CreateParams{
		InvestmentID: uuid.New(),
		Type:         action.TypeRateCheck,
		Chain:        "base",
		Protocol:     "Aave v3",
		Asset:        "USDC",
		Amount:       "0",
		Rationale:    "Agent queued",
	})
}

func TestPendingReaper_Run(t *testing.T) {
	actions := &MockActionRepository{}
	stale := pendingAction()

	actions.On("FindPendingOlderThan", mock.Anything, mock.Anything).Return([]*action.Action{stale}, nil)
	actions.On("Update", mock.Anything, stale).Return(nil)

	reaper := NewPendingReaper(actions, time.Minute, time.Hour)
	err := reaper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, action.StatusFailed, stale.Status)
	assert.Contains(t, stale.Rationale, "No agent callback within 1h0m0s")
	actions.AssertExpectations(t)
}

func TestPendingReaper_NothingStale(t *testing.T) {
	actions := &MockActionRepository{}
	actions.On("FindPendingOlderThan", mock.Anything, mock.Anything).Return([]*action.Action{}, nil)

	reaper := NewPendingReaper(actions, time.Minute, time.Hour)
	err := reaper.Run(context.Background())

	require.NoError(t, err)
	actions.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPendingReaper_SkipsTerminalRows(t *testing.T) {
	actions := &MockActionRepository{}
	executed := pendingAction()
	require.NoError(t, executed.MarkExecuted("0xabc"))

	actions.On("FindPendingOlderThan", mock.Anything, mock.Anything).Return([]*action.Action{executed}, nil)

	reaper := NewPendingReaper(actions, time.Minute, time.Hour)
	err := reaper.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, action.StatusExecuted, executed.Status, "terminal rows stay untouched")
	actions.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPendingReaper_Disabled(t *testing.T) {
	reaper := NewPendingReaper(&MockActionRepository{}, 0, time.Hour)
	assert.False(t, reaper.Enabled())
}
