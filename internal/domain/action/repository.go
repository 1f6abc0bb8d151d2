package action

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for agent action ledger access
type Repository interface {
	// Create inserts a new ledger row
	Create(ctx context.Context, a *Action) error

	// Update persists a status transition (used by the pending reaper)
	Update(ctx context.Context, a *Action) error

	// FindByInvestmentID retrieves the full ledger for an investment,
	// ordered oldest first
	FindByInvestmentID(ctx context.Context, investmentID uuid.UUID) ([]*Action, error)

	// FindPendingOlderThan retrieves pending rows created before the cutoff
	FindPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*Action, error)
}
