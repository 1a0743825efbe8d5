package auth

import (
	"context"

	"github.com/mojzu/mz/pkg/sso"
)

// TokenVerify checks an access token.
func (s *Service) TokenVerify(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (_ *sso.UserTokenPartial, err error) {
	defer func() { s.observe("token_verify", err) }()

	user, _, decoded, err := s.decodeToken(ctx, audit, service, sso.ClaimAccessToken, tokenString)
	if err != nil {
		return nil, err
	}
	return &sso.UserTokenPartial{
		User:               user,
		AccessToken:        tokenString,
		AccessTokenExpires: decoded.ExpiresAt,
	}, nil
}

// TokenRefresh consumes a refresh token and issues a new user token. Each
// refresh token can be used once.
func (s *Service) TokenRefresh(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (_ *sso.UserToken, err error) {
	defer func() { s.observe("token_refresh", err) }()

	user, k, decoded, err := s.decodeToken(ctx, audit, service, sso.ClaimRefreshToken, tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := s.register.Take(ctx, service.ID, decoded.CsrfKey); err != nil {
		return nil, err
	}
	return s.userToken(ctx, service, user, k)
}

// TokenRevoke verifies a token of any type and revokes the user's token
// signing key, invalidating every token issued with it.
func (s *Service) TokenRevoke(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (err error) {
	defer func() { s.observe("token_revoke", err) }()

	claims, err := s.codec.Peek(tokenString)
	if err != nil {
		return err
	}
	if claims.ServiceID != service.ID {
		return sso.ErrJwtInvalidOrExpired()
	}
	user, err := s.keys.ReadUserByIDUnchecked(ctx, audit, claims.UserID)
	if err != nil {
		return err
	}
	k, err := s.keys.ReadByUserUnchecked(ctx, audit, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	decoded, err := s.codec.Decode(service.ID, user.ID, claims.Type, k.Value, tokenString)
	if err != nil {
		return err
	}
	if decoded.CsrfKey != "" {
		if _, err := s.register.Consume(ctx, service.ID, decoded.CsrfKey); err != nil {
			return err
		}
	}
	return s.revokeKey(ctx, k)
}

func (s *Service) revokeKey(ctx context.Context, k *sso.Key) error {
	if k.Revoked {
		return nil
	}
	k.Revoked = true
	if err := s.driver.KeyUpdate(ctx, k); err != nil {
		return sso.DriverError(err)
	}
	return nil
}
