package strategy

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for strategy data access
type Repository interface {
	// Create inserts a new strategy (used by the seeder)
	Create(ctx context.Context, s *Strategy) error

	// FindByID retrieves a strategy by primary key
	FindByID(ctx context.Context, id uuid.UUID) (*Strategy, error)

	// List retrieves all strategies ordered by expected yield
	List(ctx context.Context) ([]*Strategy, error)
}
