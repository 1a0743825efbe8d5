// Package token encodes and decodes the signed, expiring JWTs issued to
// users. Every token carries a claim type and, for stateful flows, the key of
// a single-use CSRF entry.
package token

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

var ErrRegistry = errx.NewRegistry("TOKEN")

var CodeEncodeFailed = ErrRegistry.Register("ENCODE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token could not be signed")

// Claims is the JWT payload. Issuer is the service id and Subject the user id.
type Claims struct {
	Type    sso.ClaimType `json:"x_type"`
	CsrfKey string        `json:"x_csrf,omitempty"`
	jwt.RegisteredClaims
}

// Decoded is the verified content of a token.
type Decoded struct {
	ExpiresAt time.Time
	CsrfKey   string
}

// Unverified is what Peek can read from a token before its signing key is
// known. Nothing in it may be trusted.
type Unverified struct {
	ServiceID kernel.ServiceID
	UserID    kernel.UserID
	Type      sso.ClaimType
}

// Codec signs tokens with HS256.
type Codec struct {
	now func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs a token without a CSRF reference.
func (c *Codec) Encode(serviceID kernel.ServiceID, userID kernel.UserID, claimType sso.ClaimType, secret string, expiresIn time.Duration) (string, time.Time, error) {
	return c.encode(serviceID, userID, claimType, "", secret, expiresIn)
}

// EncodeWithCsrf signs a token embedding csrfKey.
func (c *Codec) EncodeWithCsrf(serviceID kernel.ServiceID, userID kernel.UserID, claimType sso.ClaimType, csrfKey, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if csrfKey == "" {
		return "", time.Time{}, ErrRegistry.New(CodeEncodeFailed).WithDetail("reason", "empty csrf key")
	}
	return c.encode(serviceID, userID, claimType, csrfKey, secret, expiresIn)
}

func (c *Codec) encode(serviceID kernel.ServiceID, userID kernel.UserID, claimType sso.ClaimType, csrfKey, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrRegistry.New(CodeEncodeFailed).WithDetail("reason", "empty secret")
	}
	if !claimType.Valid() {
		return "", time.Time{}, ErrRegistry.New(CodeEncodeFailed).WithDetail("claim_type", string(claimType))
	}

	now := c.now().Truncate(time.Second)
	expiresAt := now.Add(expiresIn)
	claims := Claims{
		Type:    claimType,
		CsrfKey: csrfKey,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    serviceID.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, ErrRegistry.NewWithCause(CodeEncodeFailed, err)
	}
	return signed, expiresAt, nil
}

// Decode verifies a token for the given service, user and claim type. All
// failures are reported as JwtInvalidOrExpired.
func (c *Codec) Decode(serviceID kernel.ServiceID, userID kernel.UserID, claimType sso.ClaimType, secret, tokenString string) (*Decoded, error) {
	if secret == "" || tokenString == "" {
		return nil, sso.ErrJwtInvalidOrExpired()
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(serviceID.String()),
		jwt.WithSubject(userID.String()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)

	var claims Claims
	tok, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, invalid(err)
	}
	if !tok.Valid {
		return nil, sso.ErrJwtInvalidOrExpired()
	}
	if claims.Type != claimType {
		return nil, invalid(errors.New("claim type mismatch"))
	}

	return &Decoded{
		ExpiresAt: claims.ExpiresAt.Time,
		CsrfKey:   claims.CsrfKey,
	}, nil
}

// Peek reads the identifying claims of a token without verifying it.
func (c *Codec) Peek(tokenString string) (*Unverified, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return nil, invalid(err)
	}
	if claims.Issuer == "" || claims.Subject == "" || !claims.Type.Valid() {
		return nil, sso.ErrJwtInvalidOrExpired()
	}
	return &Unverified{
		ServiceID: kernel.ServiceID(claims.Issuer),
		UserID:    kernel.UserID(claims.Subject),
		Type:      claims.Type,
	}, nil
}

func invalid(cause error) error {
	return sso.ErrRegistry.NewWithCause(sso.CodeJwtInvalidOrExpired, cause)
}
