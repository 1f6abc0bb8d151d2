package action

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"autopilot/pkg/errors"
)

// Action type constants
const (
	TypeSupply    = "supply"
	TypeWithdraw  = "withdraw"
	TypeRebalance = "rebalance"
	TypeRateCheck = "rate_check"
)

// Status constants
const (
	StatusPending  = "pending"
	StatusExecuted = "executed"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// Action is one durable ledger row: a single agent decision or attempt
// and its terminal outcome. Rows are written once and transition
// pending -> executed|failed|skipped exactly once; after that only the
// rationale grows (failure and skip reasons are appended, never
// overwritten).
type Action struct {
	ID           uuid.UUID `db:"id"`
	InvestmentID uuid.UUID `db:"investment_id"`
	UserID       string    `db:"user_id"`
	StrategyID   uuid.UUID `db:"strategy_id"`
	Type         string    `db:"action_type"`

	Chain    string `db:"chain"`
	Protocol string `db:"protocol"`
	Asset    string `db:"asset"`

	// Amount is a string-encoded USD decimal to avoid float drift
	Amount string `db:"amount"`

	GasCostUSD        *float64 `db:"gas_cost_usd"`
	ExpectedApyBefore *float64 `db:"expected_apy_before"`
	ExpectedApyAfter  *float64 `db:"expected_apy_after"`

	Rationale string  `db:"rationale"`
	Status    string  `db:"status"`
	TxHash    *string `db:"tx_hash"`

	ExecutedAt time.Time `db:"executed_at"`
}

// CreateParams holds the fields required to open a ledger row
type CreateParams struct {
	InvestmentID uuid.UUID
	UserID       string
	StrategyID   uuid.UUID
	Type         string
	Chain        string
	Protocol     string
	Asset        string
	Amount       string
	Rationale    string

	GasCostUSD        *float64
	ExpectedApyBefore *float64
	ExpectedApyAfter  *float64
}

// New creates a pending ledger row
func New(p CreateParams) *Action {
	return &Action{
		ID:                uuid.New(),
		InvestmentID:      p.InvestmentID,
		UserID:            p.UserID,
		StrategyID:        p.StrategyID,
		Type:              p.Type,
		Chain:             p.Chain,
		Protocol:          p.Protocol,
		Asset:             p.Asset,
		Amount:            p.Amount,
		Rationale:         p.Rationale,
		Status:            StatusPending,
		GasCostUSD:        p.GasCostUSD,
		ExpectedApyBefore: p.ExpectedApyBefore,
		ExpectedApyAfter:  p.ExpectedApyAfter,
		ExecutedAt:        time.Now().UTC(),
	}
}

// IsTerminal reports whether the action has reached a terminal status
func (a *Action) IsTerminal() bool {
	return a.Status != StatusPending
}

// MarkExecuted transitions pending -> executed and records the tx hash
func (a *Action) MarkExecuted(txHash string) error {
	if a.IsTerminal() {
		return errors.Wrapf(errors.ErrActionTerminal, "action %s is %s", a.ID, a.Status)
	}
	a.Status = StatusExecuted
	a.TxHash = &txHash
	return nil
}

// MarkFailed transitions pending -> failed and appends the reason
func (a *Action) MarkFailed(reason string) error {
	if a.IsTerminal() {
		return errors.Wrapf(errors.ErrActionTerminal, "action %s is %s", a.ID, a.Status)
	}
	a.Status = StatusFailed
	a.Rationale = fmt.Sprintf("%s | FAILED: %s", a.Rationale, reason)
	return nil
}

// MarkSkipped transitions pending -> skipped and appends the reason
func (a *Action) MarkSkipped(reason string) error {
	if a.IsTerminal() {
		return errors.Wrapf(errors.ErrActionTerminal, "action %s is %s", a.ID, a.Status)
	}
	a.Status = StatusSkipped
	a.Rationale = fmt.Sprintf("%s | SKIPPED: %s", a.Rationale, reason)
	return nil
}

// PoolKey returns the pool grouping key (chain:protocol:asset)
func (a *Action) PoolKey() string {
	return fmt.Sprintf("%s:%s:%s", a.Chain, a.Protocol, a.Asset)
}

// AmountDecimal parses the string-encoded amount. Unparseable amounts
// count as zero so one bad row cannot poison reconciliation.
func (a *Action) AmountDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NormalizeType maps a reported action type onto a known constant,
// defaulting to supply for anything unrecognized.
func NormalizeType(t string) string {
	switch t {
	case TypeSupply, TypeWithdraw, TypeRebalance, TypeRateCheck:
		return t
	default:
		return TypeSupply
	}
}
