package investment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for investment data access
type Repository interface {
	// Create inserts a new investment
	Create(ctx context.Context, inv *Investment) error

	// Update persists status changes (deactivation)
	Update(ctx context.Context, inv *Investment) error

	// FindByID retrieves an investment by primary key
	FindByID(ctx context.Context, id uuid.UUID) (*Investment, error)

	// FindActiveByUserID retrieves the user's active investment, if any.
	// Returns errors.ErrNotFound when the user has none.
	FindActiveByUserID(ctx context.Context, userID string) (*Investment, error)
}
