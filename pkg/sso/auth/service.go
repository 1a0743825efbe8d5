// Package auth runs the local provider, token and key flows on top of the
// key authenticator, token codec and CSRF register.
package auth

import (
	"context"
	"time"

	"github.com/mojzu/mz/pkg/errx"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/csrf"
	"github.com/mojzu/mz/pkg/sso/key"
	"github.com/mojzu/mz/pkg/sso/password"
	"github.com/mojzu/mz/pkg/sso/token"
	"github.com/mojzu/mz/pkg/sso/totp"
)

// Config holds token lifetimes.
type Config struct {
	// TokenExpires applies to reset and revoke tokens and raw CSRF entries.
	TokenExpires        time.Duration
	AccessTokenExpires  time.Duration
	RefreshTokenExpires time.Duration
}

func DefaultConfig() Config {
	return Config{
		TokenExpires:        time.Hour,
		AccessTokenExpires:  time.Hour,
		RefreshTokenExpires: 24 * time.Hour,
	}
}

type Service struct {
	driver    sso.Driver
	keys      *key.Authenticator
	register  *csrf.Register
	evaluator *password.Evaluator
	notifier  Notifier
	codec     *token.Codec
	hasher    *password.Hasher
	totp      *totp.Verifier
	observer  Observer
	cfg       Config
	now       func() time.Time
}

type Option func(*Service)

func WithCodec(c *token.Codec) Option {
	return func(s *Service) { s.codec = c }
}

func WithHasher(h *password.Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

func WithTotpVerifier(v *totp.Verifier) Option {
	return func(s *Service) { s.totp = v }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	driver sso.Driver,
	register *csrf.Register,
	evaluator *password.Evaluator,
	notifier Notifier,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		driver:    driver,
		keys:      key.NewAuthenticator(driver),
		register:  register,
		evaluator: evaluator,
		notifier:  notifier,
		codec:     token.NewCodec(),
		hasher:    password.NewHasher(0),
		totp:      totp.NewVerifier(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys exposes the authenticator used to resolve callers.
func (s *Service) Keys() *key.Authenticator {
	return s.keys
}

func (s *Service) observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if e, ok := errx.CodeOf(err); ok && e.Code != "" {
			result = e.Code
		}
		logx.WithFields(logx.Fields{
			"operation": operation,
			"result":    result,
		}).WithError(err).Debug("auth: operation failed")
	}
	if s.observer != nil {
		s.observer.AuthOperation(operation, result)
	}
}

// resolveToken reads the user and signing key named by an unverified token.
// The token must still be decoded against the returned key.
func (s *Service) resolveToken(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (*sso.User, *sso.Key, *token.Unverified, error) {
	claims, err := s.codec.Peek(tokenString)
	if err != nil {
		return nil, nil, nil, err
	}
	if claims.ServiceID != service.ID {
		return nil, nil, nil, sso.ErrJwtInvalidOrExpired()
	}
	user, err := s.keys.ReadUserByID(ctx, audit, claims.UserID)
	if err != nil {
		return nil, nil, nil, err
	}
	k, err := s.keys.ReadByUser(ctx, audit, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, k, claims, nil
}

// decodeToken resolves and verifies tokenString as claimType.
func (s *Service) decodeToken(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, claimType sso.ClaimType, tokenString string) (*sso.User, *sso.Key, *token.Decoded, error) {
	user, k, _, err := s.resolveToken(ctx, audit, service, tokenString)
	if err != nil {
		return nil, nil, nil, err
	}
	decoded, err := s.codec.Decode(service.ID, user.ID, claimType, k.Value, tokenString)
	if err != nil {
		return nil, nil, nil, err
	}
	return user, k, decoded, nil
}

// csrfToken mints a CSRF bound token of claimType signed by k.
func (s *Service) csrfToken(ctx context.Context, service *sso.Service, user *sso.User, k *sso.Key, claimType sso.ClaimType, expiresIn time.Duration) (string, time.Time, error) {
	entry, err := s.register.Create(ctx, service.ID, expiresIn)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.codec.EncodeWithCsrf(service.ID, user.ID, claimType, entry.Key, k.Value, expiresIn)
}

func (s *Service) userToken(ctx context.Context, service *sso.Service, user *sso.User, k *sso.Key) (*sso.UserToken, error) {
	access, accessExpires, err := s.codec.Encode(service.ID, user.ID, sso.ClaimAccessToken, k.Value, s.cfg.AccessTokenExpires)
	if err != nil {
		return nil, err
	}
	refresh, refreshExpires, err := s.csrfToken(ctx, service, user, k, sso.ClaimRefreshToken, s.cfg.RefreshTokenExpires)
	if err != nil {
		return nil, err
	}
	return &sso.UserToken{
		User:                user,
		AccessToken:         access,
		AccessTokenExpires:  accessExpires,
		RefreshToken:        refresh,
		RefreshTokenExpires: refreshExpires,
	}, nil
}
