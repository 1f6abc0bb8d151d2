package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"autopilot/internal/domain/investment"
	"autopilot/pkg/errors"
)

// InvestmentRepository implements investment.Repository
type InvestmentRepository struct {
	db DBTX
}

// NewInvestmentRepository creates a new investment repository
func NewInvestmentRepository(db DBTX) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

// Create inserts a new investment
func (r *InvestmentRepository) Create(ctx context.Context, inv *investment.Investment) error {
	query := `
		INSERT INTO investments (
			id, user_id, strategy_id, status, activated_at, deactivated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.UserID, inv.StrategyID, inv.Status, inv.ActivatedAt, inv.DeactivatedAt,
	)
	return errors.Wrap(err, "create investment")
}

// Update persists status changes
func (r *InvestmentRepository) Update(ctx context.Context, inv *investment.Investment) error {
	query := `
		UPDATE investments
		SET status = $2, deactivated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, inv.ID, inv.Status, inv.DeactivatedAt)
	return errors.Wrap(err, "update investment")
}

// FindByID retrieves an investment by primary key
func (r *InvestmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*investment.Investment, error) {
	query := `
		SELECT id, user_id, strategy_id, status, activated_at, deactivated_at
		FROM investments
		WHERE id = $1
	`

	inv := &investment.Investment{}
	err := r.db.GetContext(ctx, inv, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find investment by id")
	}
	return inv, nil
}

// FindActiveByUserID retrieves the user's active investment
func (r *InvestmentRepository) FindActiveByUserID(ctx context.Context, userID string) (*investment.Investment, error) {
	query := `
		SELECT id, user_id, strategy_id, status, activated_at, deactivated_at
		FROM investments
		WHERE user_id = $1 AND status = $2
		ORDER BY activated_at DESC
		LIMIT 1
	`

	inv := &investment.Investment{}
	err := r.db.GetContext(ctx, inv, query, userID, investment.StatusActive)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find active investment")
	}
	return inv, nil
}
