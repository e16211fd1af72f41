package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulaplan/aulaplan/config"
	"github.com/aulaplan/aulaplan/internal/types"
)

func newTestTokenService(ttl time.Duration) *TokenService {
	return NewTokenService(config.JWTConfig{
		SecretKey:  "test-secret",
		Expiration: ttl,
		Issuer:     "aulaplan-test",
	})
}

func TestTokenServiceIssueVerify(t *testing.T) {
	svc := newTestTokenService(time.Hour)
	principal := types.Principal{ID: "2f6c0cde-55b1-4bd5-b3f3-9d4e3ed1a111", Role: types.RoleAdmin}

	token, err := svc.Issue(principal)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestTokenServiceVerifyFailures(t *testing.T) {
	svc := newTestTokenService(time.Hour)
	principal := types.Principal{ID: "u1", Role: types.RoleInstructor}

	t.Run("malformed token", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService(config.JWTConfig{SecretKey: "another-secret", Expiration: time.Hour})
		token, err := other.Issue(principal)
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		issued := time.Now()
		svc := newTestTokenService(time.Minute)
		svc.now = func() time.Time { return issued }

		token, err := svc.Issue(principal)
		require.NoError(t, err)

		svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"user": map[string]string{"id": "u1", "role": "admin"},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Verify(unsigned)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})

	t.Run("missing user claim", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.Verify(token)
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})
}

func TestTokenServiceRefresh(t *testing.T) {
	issued := time.Now().Truncate(time.Second)
	svc := newTestTokenService(time.Hour)
	svc.now = func() time.Time { return issued }

	principal := types.Principal{ID: "u1", Role: types.RoleSuperadmin}
	token, err := svc.Issue(principal)
	require.NoError(t, err)

	// Refresh later: same principal, later expiry.
	svc.now = func() time.Time { return issued.Add(30 * time.Minute) }
	fresh, err := svc.Refresh(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)

	got, err := svc.Verify(fresh)
	require.NoError(t, err)
	assert.Equal(t, principal, got)

	claims := &tokenClaims{}
	_, err = jwt.ParseWithClaims(fresh, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, issued.Add(30*time.Minute).Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	t.Run("invalid token cannot refresh", func(t *testing.T) {
		_, err := svc.Refresh("garbage")
		assert.ErrorIs(t, err, types.ErrInvalidToken)
	})
}
