package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	s, err := NewService(cfg)
	require.NoError(t, err)
	s.log = zerolog.Nop()
	t.Cleanup(s.Close)
	return s
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(Config{AdminKey: "k"})
	assert.Error(t, err)
}

func TestCheckKey(t *testing.T) {
	s := newTestService(t, Config{AdminKey: "hunter2", JWTSecret: "secret", KeyRate: rate.Inf})

	assert.NoError(t, s.CheckKey("1.2.3.4", "hunter2"))
	assert.ErrorIs(t, s.CheckKey("1.2.3.4", "hunter3"), ErrInvalidKey)
	assert.ErrorIs(t, s.CheckKey("1.2.3.4", ""), ErrInvalidKey)
}

func TestCheckKey_Disabled(t *testing.T) {
	s := newTestService(t, Config{})
	assert.False(t, s.Enabled())
	assert.ErrorIs(t, s.CheckKey("c", ""), ErrDisabled)

	_, err := s.ValidateToken("anything")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCheckKey_RateLimitedPerClient(t *testing.T) {
	s := newTestService(t, Config{AdminKey: "k", JWTSecret: "secret", KeyRate: rate.Every(time.Hour), KeyBurst: 2})

	assert.ErrorIs(t, s.CheckKey("a", "x"), ErrInvalidKey)
	assert.ErrorIs(t, s.CheckKey("a", "y"), ErrInvalidKey)
	assert.ErrorIs(t, s.CheckKey("a", "k"), ErrRateLimitExceeded)

	// other clients are unaffected
	assert.NoError(t, s.CheckKey("b", "k"))
}

func TestLoginAndValidate(t *testing.T) {
	s := newTestService(t, Config{AdminKey: "k", JWTSecret: "secret", TokenExpiration: time.Hour})

	token, expires, err := s.Login("c", "k")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	sub, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, sub)

	_, _, err = s.Login("c", "wrong")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestValidateToken_Rejects(t *testing.T) {
	s := newTestService(t, Config{AdminKey: "k", JWTSecret: "secret"})

	_, err := s.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := newTestService(t, Config{AdminKey: "k", JWTSecret: "different"})
	token, _, err := other.GenerateToken(AdminSubject)
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   AdminSubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	signed, err = noSubject.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestRevokeToken(t *testing.T) {
	s := newTestService(t, Config{AdminKey: "k", JWTSecret: "secret"})

	token, _, err := s.GenerateToken(AdminSubject)
	require.NoError(t, err)
	_, err = s.ValidateToken(token)
	require.NoError(t, err)

	s.RevokeToken(token)
	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCheckKey_Hash(t *testing.T) {
	hash, err := HashKey("hunter2")
	require.NoError(t, err)

	s := newTestService(t, Config{AdminKeyHash: hash, JWTSecret: "secret", KeyRate: rate.Inf})
	assert.True(t, s.Enabled())
	assert.NoError(t, s.CheckKey("c", "hunter2"))
	assert.ErrorIs(t, s.CheckKey("c", "hunter3"), ErrInvalidKey)

	_, err = HashKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewService(Config{AdminKeyHash: "not-a-hash", JWTSecret: "secret"})
	assert.Error(t, err)
}
