package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aulaplan/aulaplan/config"
	"github.com/aulaplan/aulaplan/internal/types"
)

// tokenClaims is the payload carried by every access token. The principal
// travels under the "user" key.
type tokenClaims struct {
	User types.Principal `json:"user"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens. All configuration is
// injected at construction; the service never reads the environment.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.SecretKey),
		ttl:    cfg.Expiration,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Issue signs a token for the principal with a fresh expiry.
func (s *TokenService) Issue(p types.Principal) (string, error) {
	now := s.now()
	claims := tokenClaims{
		User: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// Verify parses the token and returns its principal. Every verification
// failure, from a malformed token to a bad signature or an expired claim,
// comes back as types.ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (types.Principal, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return types.Principal{}, fmt.Errorf("%w: %v", types.ErrInvalidToken, err)
	}
	if claims.User.ID == "" {
		return types.Principal{}, fmt.Errorf("%w: missing user claim", types.ErrInvalidToken)
	}
	return claims.User, nil
}

// Refresh verifies the token and issues a new one for the same principal
// with a fresh expiry. Nothing else about the claims changes.
func (s *TokenService) Refresh(tokenStr string) (string, error) {
	p, err := s.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return s.Issue(p)
}
