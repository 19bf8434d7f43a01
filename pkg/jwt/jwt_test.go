package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m, err := NewManager("test-secret", time.Hour, "wes-io-social")
	require.NoError(t, err)
	m.now = func() time.Time { return clock }

	token, exp, err := m.GenerateToken("u1", "u1@example.com", "alice", []string{"user"})
	require.NoError(t, err)
	require.Equal(t, clock.Add(time.Hour).Unix(), exp)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, []string{"user"}, claims.Roles)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewManager("another-secret", time.Hour, "wes-io-social")
		require.NoError(t, err)
		other.now = m.now
		_, err = other.ValidateToken(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		m.now = func() time.Time { return clock.Add(2 * time.Hour) }
		defer func() { m.now = func() time.Time { return clock } }()
		_, err := m.ValidateToken(token)
		require.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("revoked", func(t *testing.T) {
		m.now = func() time.Time { return clock.Add(time.Minute) }
		m.RevokeUserTokens("u1")
		_, err := m.ValidateToken(token)
		require.ErrorIs(t, err, ErrRevokedToken)

		m.now = func() time.Time { return clock.Add(2 * time.Minute) }
		fresh, _, err := m.GenerateToken("u1", "u1@example.com", "alice", []string{"user"})
		require.NoError(t, err)
		_, err = m.ValidateToken(fresh)
		require.NoError(t, err)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewManager("", time.Hour, "x")
		require.ErrorIs(t, err, ErrEmptySecret)
	})
}
