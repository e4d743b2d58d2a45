// Package token mints and verifies the bearer tokens that carry caller
// identity between the HTTP edge and the services.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
)

const defaultExpiration = 24 * time.Hour

// Claims is the JWT payload: subject is the user id, email and role ride
// alongside so the edge can build a principal without a store lookup.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Config controls token signing and lifetime.
type Config struct {
	Secret     string
	Expiration time.Duration
	Clock      func() time.Time
}

// Issuer mints and verifies HMAC-SHA256 signed tokens.
type Issuer struct {
	secret     []byte
	expiration time.Duration
	clock      func() time.Time
}

// NewIssuer builds a token issuer. The signing secret is required.
func NewIssuer(cfg Config) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	expiration := cfg.Expiration
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Issuer{
		secret:     []byte(secret),
		expiration: expiration,
		clock:      clock,
	}, nil
}

// Mint signs a token for the principal with the configured lifetime.
func (i *Issuer) Mint(principal requestctx.Principal) (string, error) {
	if i == nil {
		return "", fmt.Errorf("token issuer is not configured")
	}
	if strings.TrimSpace(principal.ID) == "" {
		return "", fmt.Errorf("principal id is required")
	}

	now := i.clock().UTC()
	claims := Claims{
		Email: principal.Email,
		Role:  string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a signed token and rebuilds the principal.
// Expired, malformed, and foreign-signature tokens all map to the same
// invalid-token failure.
func (i *Issuer) Verify(tokenString string) (requestctx.Principal, error) {
	if i == nil {
		return requestctx.Principal{}, fmt.Errorf("token issuer is not configured")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return requestctx.Principal{}, apperrors.New(apperrors.CodeTokenInvalid, "token is required")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return requestctx.Principal{}, apperrors.Wrap(apperrors.CodeTokenInvalid, "parse token", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return requestctx.Principal{}, apperrors.New(apperrors.CodeTokenInvalid, "token subject missing")
	}

	return requestctx.Principal{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  requestctx.Role(claims.Role),
	}, nil
}
