package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrExpired marks a token whose validity window has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed marks a token that failed parsing or signature checks.
	ErrMalformed = errors.New("token malformed")
)

// Claims carries the authenticated subject inside a signed token.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer creates, validates and refreshes signed time-bound credentials.
// It holds no mutable state beyond the signing secret, so it is safe for
// concurrent use.
type Issuer struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

// NewIssuer builds an Issuer. An empty secret is a configuration fault
// and is rejected up front rather than discovered mid-conversation.
func NewIssuer(secret string, defaultTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret cannot be empty")
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), defaultTTL: defaultTTL, now: time.Now}, nil
}

// DefaultTTL reports the policy TTL used when callers do not supply one.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.defaultTTL
}

// Issue signs a fresh token for subject acting as role, valid for ttl.
// Each issued token gets a new jti so successive tokens for the same
// subject never collide.
func (i *Issuer) Issue(subject, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	now := i.now()
	claims := Claims{
		Subject: subject,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: signing failed: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry of tok. Expired and
// malformed tokens are distinguished for observability only; callers
// treat both as a session reset.
func (i *Issuer) Validate(tok string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Refresh validates tok and, if still valid, issues a replacement with
// the same subject and role and a fresh validity window. The refresh is
// sliding: the caller must persist the returned token to extend the
// session's effective lifetime.
func (i *Issuer) Refresh(tok string, extend time.Duration) (string, error) {
	claims, err := i.Validate(tok)
	if err != nil {
		logrus.WithError(err).Debug("cannot refresh invalid token")
		return "", err
	}
	return i.Issue(claims.Subject, claims.Role, extend)
}

// IsExpired reports true for any token that fails validation, whether it
// expired or never verified in the first place.
func (i *Issuer) IsExpired(tok string) bool {
	_, err := i.Validate(tok)
	return err != nil
}
