package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedVerifier(t *testing.T) {
	v := NewSimulatedVerifier()

	t.Run("bare uid", func(t *testing.T) {
		user, err := v.Verify(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.UID)
		assert.Equal(t, "alice@simulated.local", user.Email)
	})

	t.Run("uid with email", func(t *testing.T) {
		user, err := v.Verify(context.Background(), "alice:alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.UID)
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("empty token rejected", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing uid rejected", func(t *testing.T) {
		_, err := v.Verify(context.Background(), ":x@example.com")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestSimulatedServiceSignOut(t *testing.T) {
	s := NewSimulatedService()
	assert.NoError(t, s.SignOut(context.Background(), "alice"))
}
