package investment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autopilot/pkg/errors"
)

func TestNew_IsActive(t *testing.T) {
	inv := New("user-1", uuid.New())

	assert.Equal(t, StatusActive, inv.Status)
	assert.True(t, inv.IsActive())
	assert.Nil(t, inv.DeactivatedAt)
	assert.False(t, inv.ActivatedAt.IsZero())
}

func TestDeactivate(t *testing.T) {
	inv := New("user-1", uuid.New())

	require.NoError(t, inv.Deactivate())

	assert.Equal(t, StatusInactive, inv.Status)
	assert.False(t, inv.IsActive())
	require.NotNil(t, inv.DeactivatedAt)
}

func TestDeactivate_Twice(t *testing.T) {
	inv := New("user-1", uuid.New())
	require.NoError(t, inv.Deactivate())
	first := *inv.DeactivatedAt

	err := inv.Deactivate()

	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, first, *inv.DeactivatedAt, "timestamp must not move on a rejected deactivation")
}
