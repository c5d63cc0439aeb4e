package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService([]byte("topsecret"))
	token, err := svc.Issue(Claims{
		Subject:   "user@acme.test",
		UserID:    "user-1",
		CompanyID: "company-1",
		Role:      "member",
	}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user@acme.test", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "company-1", claims.CompanyID)
	assert.Equal(t, "member", claims.Role)

	tenant := claims.TenantContext()
	assert.Equal(t, "company-1", tenant.CompanyID)
	assert.False(t, tenant.IsAdmin())
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := NewTokenService([]byte("topsecret"))
	token, err := svc.Issue(Claims{UserID: "user-1", CompanyID: "company-1"}, time.Hour)
	require.NoError(t, err)

	t.Run("modified payload", func(t *testing.T) {
		parts := strings.SplitN(token, ".", 2)
		_, err := svc.Verify("x" + parts[0] + "." + parts[1])
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("modified signature", func(t *testing.T) {
		_, err := svc.Verify(token + "00")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing separator", func(t *testing.T) {
		_, err := svc.Verify(strings.ReplaceAll(token, ".", ""))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		other := NewTokenService([]byte("othersecret"))
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewTokenService([]byte("topsecret"))
	token, err := svc.Issue(Claims{UserID: "user-1", CompanyID: "company-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}
