package action

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopilot/pkg/errors"
)

func newTestAction() *Action {
	return New(CreateParams{
		InvestmentID: uuid.New(),
		UserID:       "user-1",
		StrategyID:   uuid.New(),
		Type:         TypeSupply,
		Chain:        "base",
		Protocol:     "Aave v3",
		Asset:        "USDC",
		Amount:       "500",
		Rationale:    "Supply $500.00 to Aave v3 on base at 5.2% APY",
	})
}

func TestNew_StartsPending(t *testing.T) {
	a := newTestAction()

	assert.Equal(t, StatusPending, a.Status)
	assert.False(t, a.IsTerminal())
	assert.Nil(t, a.TxHash)
	assert.NotEqual(t, uuid.Nil, a.ID)
}

func TestMarkExecuted(t *testing.T) {
	a := newTestAction()

	require.NoError(t, a.MarkExecuted("0xabc"))

	assert.Equal(t, StatusExecuted, a.Status)
	require.NotNil(t, a.TxHash)
	assert.Equal(t, "0xabc", *a.TxHash)
	assert.True(t, a.IsTerminal())
}

func TestMarkFailed_AppendsReason(t *testing.T) {
	a := newTestAction()
	original := a.Rationale

	require.NoError(t, a.MarkFailed("insufficient balance"))

	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, original+" | FAILED: insufficient balance", a.Rationale)
}

func TestMarkSkipped_AppendsReason(t *testing.T) {
	a := newTestAction()
	original := a.Rationale

	require.NoError(t, a.MarkSkipped("below threshold"))

	assert.Equal(t, StatusSkipped, a.Status)
	assert.Equal(t, original+" | SKIPPED: below threshold", a.Rationale)
}

func TestTerminalStatesAreFinal(t *testing.T) {
	tests := []struct {
		name string
		mark func(a *Action) error
	}{
		{"executed", func(a *Action) error { return a.MarkExecuted("0x1") }},
		{"failed", func(a *Action) error { return a.MarkFailed("boom") }},
		{"skipped", func(a *Action) error { return a.MarkSkipped("nope") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAction()
			require.NoError(t, tt.mark(a))
			status := a.Status
			rationale := a.Rationale

			assert.ErrorIs(t, a.MarkExecuted("0x2"), errors.ErrActionTerminal)
			assert.ErrorIs(t, a.MarkFailed("again"), errors.ErrActionTerminal)
			assert.ErrorIs(t, a.MarkSkipped("again"), errors.ErrActionTerminal)

			assert.Equal(t, status, a.Status, "terminal status must never change")
			assert.Equal(t, rationale, a.Rationale, "rejected transitions must not touch the rationale")
		})
	}
}

func TestPoolKey(t *testing.T) {
	a := newTestAction()
	assert.Equal(t, "base:Aave v3:USDC", a.PoolKey())
}

func TestAmountDecimal(t *testing.T) {
	a := newTestAction()
	assert.Equal(t, "500", a.AmountDecimal().String())

	a.Amount = "not a number"
	assert.True(t, a.AmountDecimal().IsZero())
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, TypeWithdraw, NormalizeType("withdraw"))
	assert.Equal(t, TypeRateCheck, NormalizeType("rate_check"))
	assert.Equal(t, TypeSupply, NormalizeType(""))
	assert.Equal(t, TypeSupply, NormalizeType("launch_missiles"))
}
