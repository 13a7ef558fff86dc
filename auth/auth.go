package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/ttsudarshan/portfolio/logger"
)

// AdminSubject is the subject of every token issued by Login.
const AdminSubject = "admin"

var (
	// ErrInvalidKey is returned when the admin key does not match
	ErrInvalidKey = errors.New("invalid admin key")

	// ErrInvalidToken is returned when the token is invalid or revoked
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidClaims is returned when the token claims are invalid
	ErrInvalidClaims = errors.New("invalid claims")

	// ErrRateLimitExceeded is returned when a client guesses keys too quickly
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrDisabled is returned when no admin key is configured
	ErrDisabled = errors.New("admin access disabled")
)

// Config holds the authentication configuration
type Config struct {
	AdminKey string
	// AdminKeyHash is a bcrypt hash of the admin key. It takes precedence over AdminKey.
	AdminKeyHash    string
	JWTSecret       string
	TokenExpiration time.Duration

	// KeyRate and KeyBurst bound admin key attempts per client
	KeyRate  rate.Limit
	KeyBurst int
}

// Service checks the shared admin key and issues admin tokens
type Service struct {
	config   Config
	limiters *ttlcache.Cache[string, *rate.Limiter]
	revoked  *ttlcache.Cache[string, struct{}]
	mu       sync.Mutex
	log      zerolog.Logger
}

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
}

// NewService creates a new authentication service
func NewService(config Config) (*Service, error) {
	if (config.AdminKey != "" || config.AdminKeyHash != "") && config.JWTSecret == "" {
		return nil, errors.New("a JWT secret is required when an admin key is set")
	}
	if config.AdminKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(config.AdminKeyHash)); err != nil {
			return nil, fmt.Errorf("invalid admin key hash: %w", err)
		}
	}
	if config.TokenExpiration <= 0 {
		config.TokenExpiration = 12 * time.Hour
	}
	if config.KeyRate <= 0 {
		config.KeyRate = rate.Every(time.Second)
	}
	if config.KeyBurst <= 0 {
		config.KeyBurst = 5
	}

	limiters := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](10*time.Minute),
		ttlcache.WithDisableTouchOnHit[string, *rate.Limiter](),
	)
	go limiters.Start()

	// revoked tokens only need to be remembered until they would expire anyway
	revoked := ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](config.TokenExpiration),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go revoked.Start()

	return &Service{
		config:   config,
		limiters: limiters,
		revoked:  revoked,
		log:      logger.Component("auth"),
	}, nil
}

// Enabled reports whether an admin key is configured
func (s *Service) Enabled() bool {
	return s.config.AdminKey != "" || s.config.AdminKeyHash != ""
}

// CheckKey compares key with the admin key in constant time, or against the
// bcrypt hash when one is configured. Attempts are rate limited per client.
func (s *Service) CheckKey(client, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if !s.limiter(client).Allow() {
		s.log.Warn().Str("client", client).Msg("admin key rate limit exceeded")
		return ErrRateLimitExceeded
	}
	if !s.matches(key) {
		s.log.Warn().Str("client", client).Msg("invalid admin key")
		return ErrInvalidKey
	}
	return nil
}

func (s *Service) matches(key string) bool {
	if s.config.AdminKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.config.AdminKeyHash), []byte(key)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.AdminKey)) == 1
}

// HashKey hashes an admin key for use as Config.AdminKeyHash
func HashKey(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash admin key: %w", err)
	}
	return string(hashedBytes), nil
}

// Login checks key and returns a signed admin token with its expiry
func (s *Service) Login(client, key string) (string, time.Time, error) {
	if err := s.CheckKey(client, key); err != nil {
		return "", time.Time{}, err
	}
	return s.GenerateToken(AdminSubject)
}

// GenerateToken generates a new HS256 token for subject
func (s *Service) GenerateToken(subject string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrDisabled
	}

	now := time.Now()
	expirationTime := now.Add(s.config.TokenExpiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token with HS256: %w", err)
	}
	return tokenString, expirationTime, nil
}

// ValidateToken validates a token and returns its subject
func (s *Service) ValidateToken(tokenString string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if s.revoked.Get(tokenString) != nil {
		return "", ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidClaims
	}
	return claims.Subject, nil
}

// RevokeToken makes a token invalid until it expires
func (s *Service) RevokeToken(tokenString string) {
	ttl := s.config.TokenExpiration

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}

	s.revoked.Set(tokenString, struct{}{}, ttl)
}

// Close stops the background expiry loops
func (s *Service) Close() {
	s.limiters.Stop()
	s.revoked.Stop()
}

func (s *Service) limiter(client string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.limiters.Get(client); item != nil {
		return item.Value()
	}
	l := rate.NewLimiter(s.config.KeyRate, s.config.KeyBurst)
	s.limiters.Set(client, l, ttlcache.DefaultTTL)
	return l
}
