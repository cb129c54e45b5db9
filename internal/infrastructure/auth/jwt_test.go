package auth

import (
	"testing"
	"time"

	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(expiration time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-jwt-signing-0123456789",
		AccessTokenExpiration: expiration,
		Issuer:                "coopaguas-backend",
	})
}

func TestJWTService(t *testing.T) {
	t.Run("round-trips operator claims", func(t *testing.T) {
		svc := newTestService(time.Hour)
		operatorID := uuid.New()

		token, expiresAt, err := svc.GenerateToken(operatorID, "M. Soto", RoleCashier)
		require.NoError(t, err)
		assert.True(t, expiresAt.After(time.Now()))

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, operatorID.String(), claims.OperatorID)
		assert.Equal(t, "M. Soto", claims.Name)
		assert.Equal(t, RoleCashier, claims.Role)
		assert.False(t, claims.IsAdmin())

		parsed, err := claims.GetOperatorUUID()
		require.NoError(t, err)
		assert.Equal(t, operatorID, parsed)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		svc := newTestService(-time.Minute)
		token, _, err := svc.GenerateToken(uuid.New(), "M. Soto", RoleAdmin)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		svc := newTestService(time.Hour)
		other := NewJWTService(config.JWTConfig{
			Secret:                "a-completely-different-secret-value-42",
			AccessTokenExpiration: time.Hour,
			Issuer:                "coopaguas-backend",
		})

		token, _, err := other.GenerateToken(uuid.New(), "M. Soto", RoleAdmin)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		svc := newTestService(time.Hour)
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
