package investment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"autopilot/internal/domain/action"
	"autopilot/internal/domain/investment"
	"autopilot/internal/events"
	"autopilot/pkg/errors"
)

func floatPtr(v float64) *float64 { return &v }

func reportFixture() ReportRequest {
	return ReportRequest{
		UserID:  "user-1",
		Summary: "Allocated $1000 across 2 pools",
		Actions: []ReportedAction{
			{
				ActionType:  "supply",
				Pool:        &ReportedPool{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC"},
				AmountUSD:   floatPtr(600),
				ExpectedApy: floatPtr(5.2),
				GasCostUSD:  floatPtr(4.1),
				Status:      action.StatusExecuted,
				TxHash:      "0xabc123",
				Rationale:   "Best risk-adjusted rate",
			},
			{
				ActionType: "supply",
				Pool:       &ReportedPool{Chain: "base", Protocol: "Aave v3", Asset: "USDC"},
				AmountUSD:  floatPtr(400),
				Status:     action.StatusExecuted,
				TxHash:     "0xdef456",
				Rationale:  "Second allocation leg",
			},
		},
	}
}

func TestReportAgentResults(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())
	var recorded []*action.Action

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = append(recorded, args.Get(1).(*action.Action))
	}).Return(nil)

	sub := env.broadcaster.Subscribe(inv.ID)
	defer env.broadcaster.Unsubscribe(inv.ID, sub)

	result, err := env.service.ReportAgentResults(context.Background(), inv.ID, reportFixture())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 2, result.Executed)
	assert.Zero(t, result.Duplicates)

	require.Len(t, recorded, 2)
	first := recorded[0]
	assert.Equal(t, action.StatusExecuted, first.Status)
	require.NotNil(t, first.TxHash)
	assert.Equal(t, "0xabc123", *first.TxHash)
	assert.Equal(t, "ethereum", first.Chain)
	assert.Equal(t, "600", first.Amount)
	assert.Equal(t, "Best risk-adjusted rate", first.Rationale)

	assert.Equal(t, events.TypeResult, recvEvent(t, sub).Type)
	assert.Equal(t, events.TypeDone, recvEvent(t, sub).Type)
}

func TestReportAgentResults_ReplayIgnored(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())
	created := 0

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		created++
	}).Return(nil)

	req := reportFixture()
	_, err := env.service.ReportAgentResults(context.Background(), inv.ID, req)
	require.NoError(t, err)

	sub := env.broadcaster.Subscribe(inv.ID)
	defer env.broadcaster.Unsubscribe(inv.ID, sub)

	replay, err := env.service.ReportAgentResults(context.Background(), inv.ID, req)

	require.NoError(t, err)
	assert.Zero(t, replay.Recorded)
	assert.Equal(t, 2, replay.Duplicates)
	assert.Equal(t, 2, created, "replay must not add ledger rows")

	select {
	case e := <-sub.Events():
		t.Fatalf("replay emitted %s event", e.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReportAgentResults_ExecutedWithoutTxHashStaysPending(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())
	var recorded *action.Action

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = args.Get(1).(*action.Action)
	}).Return(nil)

	result, err := env.service.ReportAgentResults(context.Background(), inv.ID, ReportRequest{
		Actions: []ReportedAction{{
			ActionType: "supply",
			AmountUSD:  floatPtr(100),
			Status:     action.StatusExecuted,
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Recorded)
	assert.Zero(t, result.Executed)
	require.NotNil(t, recorded)
	assert.Equal(t, action.StatusPending, recorded.Status)
	assert.Equal(t, "base", recorded.Chain, "pool defaults apply when the agent omits the pool")
}

func TestReportAgentResults_FailedAndSkipped(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())
	var recorded []*action.Action

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	env.actions.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recorded = append(recorded, args.Get(1).(*action.Action))
	}).Return(nil)

	sub := env.broadcaster.Subscribe(inv.ID)
	defer env.broadcaster.Unsubscribe(inv.ID, sub)

	result, err := env.service.ReportAgentResults(context.Background(), inv.ID, ReportRequest{
		Actions: []ReportedAction{
			{
				ActionType: "supply",
				Pool:       &ReportedPool{Chain: "ethereum", Protocol: "Aave v3", Asset: "USDC"},
				Status:     action.StatusFailed,
				Rationale:  "Transaction reverted",
			},
			{
				ActionType: "rate_check",
				Pool:       &ReportedPool{Chain: "base", Protocol: "Compound", Asset: "USDC"},
				Status:     action.StatusSkipped,
				Rationale:  "APY delta below rebalance threshold",
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, recorded, 2)
	assert.Equal(t, action.StatusFailed, recorded[0].Status)
	assert.Contains(t, recorded[0].Rationale, "Agent reported failure")
	assert.Equal(t, action.StatusSkipped, recorded[1].Status)
	assert.Contains(t, recorded[1].Rationale, "APY delta below rebalance threshold")

	// Mixed runs with a non-failed action still end in a result event
	assert.Equal(t, events.TypeResult, recvEvent(t, sub).Type)
	assert.Equal(t, events.TypeDone, recvEvent(t, sub).Type)
}

func TestReportAgentResults_AllFailedEmitsError(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	env.actions.On("Create", mock.Anything, mock.Anything).Return(nil)

	sub := env.broadcaster.Subscribe(inv.ID)
	defer env.broadcaster.Unsubscribe(inv.ID, sub)

	result, err := env.service.ReportAgentResults(context.Background(), inv.ID, ReportRequest{
		Actions: []ReportedAction{{
			ActionType: "rate_check",
			Status:     action.StatusFailed,
			Rationale:  "Agent failed: timeout",
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	assert.Equal(t, events.TypeError, recvEvent(t, sub).Type)
	assert.Equal(t, events.TypeDone, recvEvent(t, sub).Type)
}

func TestReportAgentResults_InvalidStrategyID(t *testing.T) {
	env := newTestEnv()
	inv := investment.New("user-1", uuid.New())

	env.investments.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)

	_, err := env.service.ReportAgentResults(context.Background(), inv.ID, ReportRequest{
		StrategyID: "not-a-uuid",
	})

	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	env.actions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReportAgentResults_InvestmentNotFound(t *testing.T) {
	env := newTestEnv()
	missing := uuid.New()

	env.investments.On("FindByID", mock.Anything, missing).Return(nil, errors.ErrNotFound)

	_, err := env.service.ReportAgentResults(context.Background(), missing, ReportRequest{})

	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func recvEvent(t *testing.T, sub *events.Subscriber) events.Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		require.True(t, ok, "subscriber channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}
