package access

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "auctiondesk"

// SessionClaims are carried by session tokens; the subject is the account email.
type SessionClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions validates the secret and ttl.
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("access: session secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("access: session ttl must be greater than zero")
	}
	return &Sessions{secret: []byte(secret), issuer: defaultIssuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for email with the given role.
func (s *Sessions) Issue(email string, role Role) (string, time.Time, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", time.Time{}, errors.New("access: session subject is required")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("access: sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
