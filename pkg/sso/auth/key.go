package auth

import (
	"context"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

// KeyVerify checks a user's Key type key.
func (s *Service) KeyVerify(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, value string) (_ *sso.UserKey, err error) {
	defer func() { s.observe("key_verify", err) }()

	k, err := s.keys.ReadByUserValue(ctx, audit, service, value, sso.KeyTypeKey)
	if err != nil {
		return nil, err
	}
	scope, ok := k.Scope.(sso.UserScope)
	if !ok {
		return nil, sso.ErrKeyNotFound()
	}
	user, err := s.keys.ReadUserByID(ctx, audit, scope.UserID)
	if err != nil {
		return nil, err
	}
	return &sso.UserKey{User: user, Key: k}, nil
}

// KeyRevoke revokes a user's Key type key. Revoking a revoked key succeeds.
func (s *Service) KeyRevoke(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, value string) (err error) {
	defer func() { s.observe("key_revoke", err) }()

	k, err := s.keys.ReadByUserValueUnchecked(ctx, audit, service, value, sso.KeyTypeKey)
	if err != nil {
		return err
	}
	return s.revokeKey(ctx, k)
}

// TotpVerify checks a code against the user's TOTP key.
func (s *Service) TotpVerify(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, userID kernel.UserID, code string) (err error) {
	defer func() { s.observe("totp_verify", err) }()

	user, err := s.keys.ReadUserByID(ctx, audit, userID)
	if err != nil {
		return err
	}
	k, err := s.keys.ReadByUser(ctx, audit, service, user, sso.KeyTypeTotp)
	if err != nil {
		return err
	}
	return s.totp.Verify(k.Value, code)
}

// CsrfCreate issues a raw CSRF entry for service. A non positive expiresIn
// uses the configured token lifetime.
func (s *Service) CsrfCreate(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, expiresIn time.Duration) (_ *sso.Csrf, err error) {
	defer func() { s.observe("csrf_create", err) }()

	if expiresIn <= 0 {
		expiresIn = s.cfg.TokenExpires
	}
	return s.register.Create(ctx, service.ID, expiresIn)
}

// CsrfVerify consumes a raw CSRF entry created for service.
func (s *Service) CsrfVerify(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, csrfKey string) (err error) {
	defer func() { s.observe("csrf_verify", err) }()

	_, err = s.register.Take(ctx, service.ID, csrfKey)
	return err
}
