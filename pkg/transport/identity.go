package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	devTokenIssuer   = "srquick-dev"
	devTokenLifetime = time.Hour
)

// DevIdentity signs short-lived bearer tokens that stand in for the openid
// the container platform injects. Only the local backend uses it.
type DevIdentity struct {
	openID string
	secret []byte
	nowFn  func() time.Time
}

// DevClaims is the token payload; Subject holds the openid.
type DevClaims struct {
	jwt.RegisteredClaims
}

// NewDevIdentity validates the openid and signing secret.
func NewDevIdentity(openID string, secret string) (*DevIdentity, error) {
	trimmedOpenID := strings.TrimSpace(openID)
	if trimmedOpenID == "" {
		return nil, fmt.Errorf("%w: dev openid is empty", ErrInvalidConfig)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: dev token secret is required with a dev openid", ErrInvalidConfig)
	}
	return &DevIdentity{openID: trimmedOpenID, secret: []byte(secret), nowFn: time.Now}, nil
}

// Token returns a freshly signed HS256 token.
func (identity *DevIdentity) Token() (string, error) {
	now := identity.nowFn().UTC()
	claims := DevClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    devTokenIssuer,
			Subject:   identity.openID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(devTokenLifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(identity.secret)
	if err != nil {
		return "", fmt.Errorf("sign dev token: %w", err)
	}
	return signed, nil
}

// ParseDevToken verifies a token produced by DevIdentity and returns its openid.
func ParseDevToken(token string, secret string) (string, error) {
	claims := &DevClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(devTokenIssuer))
	if err != nil {
		return "", fmt.Errorf("parse dev token: %w", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("parse dev token: missing subject")
	}
	return claims.Subject, nil
}
