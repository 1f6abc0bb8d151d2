package investment

import (
	"time"

	"github.com/google/uuid"

	"autopilot/pkg/errors"
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Investment represents a user's allocation to one strategy.
// A user has at most one active investment; switching strategies
// deactivates the current row and creates a new one, it never mutates
// the old row in place.
type Investment struct {
	ID            uuid.UUID  `db:"id"`
	UserID        string     `db:"user_id"`
	StrategyID    uuid.UUID  `db:"strategy_id"`
	Status        string     `db:"status"`
	ActivatedAt   time.Time  `db:"activated_at"`
	DeactivatedAt *time.Time `db:"deactivated_at"`
}

// New creates an active investment for the given user and strategy
func New(userID string, strategyID uuid.UUID) *Investment {
	return &Investment{
		ID:          uuid.New(),
		UserID:      userID,
		StrategyID:  strategyID,
		Status:      StatusActive,
		ActivatedAt: time.Now().UTC(),
	}
}

// IsActive reports whether the investment is currently active
func (i *Investment) IsActive() bool {
	return i.Status == StatusActive
}

// Deactivate marks the investment inactive. Deactivating twice is a
// contract violation.
func (i *Investment) Deactivate() error {
	if i.Status == StatusInactive {
		return errors.Wrap(errors.ErrInvalidInput, "investment is already inactive")
	}
	now := time.Now().UTC()
	i.Status = StatusInactive
	i.DeactivatedAt = &now
	return nil
}
