package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"autopilot/internal/domain/action"
	"autopilot/pkg/errors"
)

// ActionRepository implements action.Repository
type ActionRepository struct {
	db DBTX
}

// NewActionRepository creates a new agent action repository
func NewActionRepository(db DBTX) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create inserts a new ledger row
func (r *ActionRepository) Create(ctx context.Context, a *action.Action) error {
	query := `
		INSERT INTO agent_actions (
			id, investment_id, user_id, strategy_id, action_type,
			chain, protocol, asset, amount,
			gas_cost_usd, expected_apy_before, expected_apy_after,
			rationale, status, tx_hash, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.InvestmentID, a.UserID, a.StrategyID, a.Type,
		a.Chain, a.Protocol, a.Asset, a.Amount,
		a.GasCostUSD, a.ExpectedApyBefore, a.ExpectedApyAfter,
		a.Rationale, a.Status, a.TxHash, a.ExecutedAt,
	)
	return errors.Wrap(err, "create agent action")
}

// Update persists a status transition
func (r *ActionRepository) Update(ctx context.Context, a *action.Action) error {
	query := `
		UPDATE agent_actions
		SET status = $2, rationale = $3, tx_hash = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.Status, a.Rationale, a.TxHash)
	return errors.Wrap(err, "update agent action")
}

// FindByInvestmentID retrieves the full ledger for an investment, oldest first
func (r *ActionRepository) FindByInvestmentID(ctx context.Context, investmentID uuid.UUID) ([]*action.Action, error) {
	query := `
		SELECT id, investment_id, user_id, strategy_id, action_type,
		       chain, protocol, asset, amount,
		       gas_cost_usd, expected_apy_before, expected_apy_after,
		       rationale, status, tx_hash, executed_at
		FROM agent_actions
		WHERE investment_id = $1
		ORDER BY executed_at ASC, id ASC
	`

	var actions []*action.Action
	if err := r.db.SelectContext(ctx, &actions, query, investmentID); err != nil {
		return nil, errors.Wrap(err, "find actions by investment")
	}
	return actions, nil
}

// FindPendingOlderThan retrieves pending rows created before the cutoff
func (r *ActionRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*action.Action, error) {
	query := `
		SELECT id, investment_id, user_id, strategy_id, action_type,
		       chain, protocol, asset, amount,
		       gas_cost_usd, expected_apy_before, expected_apy_after,
		       rationale, status, tx_hash, executed_at
		FROM agent_actions
		WHERE status = $1 AND executed_at < $2
		ORDER BY executed_at ASC
	`

	var actions []*action.Action
	if err := r.db.SelectContext(ctx, &actions, query, action.StatusPending, cutoff); err != nil {
		return nil, errors.Wrap(err, "find stale pending actions")
	}
	return actions, nil
}
