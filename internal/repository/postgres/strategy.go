package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"autopilot/internal/domain/strategy"
	"autopilot/pkg/errors"
)

// StrategyRepository implements strategy.Repository
type StrategyRepository struct {
	db DBTX
}

// NewStrategyRepository creates a new strategy repository
func NewStrategyRepository(db DBTX) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Create inserts a new strategy
func (r *StrategyRepository) Create(ctx context.Context, s *strategy.Strategy) error {
	query := `
		INSERT INTO strategies (
			id, name, risk_level, description,
			pool_allocations, expected_apy_min, expected_apy_max,
			rebalance_threshold, allowed_chains
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING created_at
	`

	return r.db.QueryRowContext(ctx, query,
		s.ID, s.Name, s.RiskLevel, s.Description,
		s.PoolAllocations, s.ExpectedApyMin, s.ExpectedApyMax,
		s.RebalanceThreshold, s.AllowedChains,
	).Scan(&s.CreatedAt)
}

// FindByID retrieves a strategy by primary key
func (r *StrategyRepository) FindByID(ctx context.Context, id uuid.UUID) (*strategy.Strategy, error) {
	query := `
		SELECT id, name, risk_level, description,
		       pool_allocations, expected_apy_min, expected_apy_max,
		       rebalance_threshold, allowed_chains, created_at
		FROM strategies
		WHERE id = $1
	`

	s := &strategy.Strategy{}
	err := r.db.GetContext(ctx, s, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find strategy by id")
	}
	return s, nil
}

// List retrieves all strategies ordered by expected yield
func (r *StrategyRepository) List(ctx context.Context) ([]*strategy.Strategy, error) {
	query := `
		SELECT id, name, risk_level, description,
		       pool_allocations, expected_apy_min, expected_apy_max,
		       rebalance_threshold, allowed_chains, created_at
		FROM strategies
		ORDER BY expected_apy_min ASC
	`

	var strategies []*strategy.Strategy
	if err := r.db.SelectContext(ctx, &strategies, query); err != nil {
		return nil, errors.Wrap(err, "list strategies")
	}
	return strategies, nil
}
