package auth

import (
	"context"

	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
)

// Login checks an email and password and issues a user token.
func (s *Service) Login(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, email, password string) (_ *sso.UserToken, _ sso.UserPasswordMeta, err error) {
	defer func() { s.observe("login", err) }()

	user, err := s.keys.ReadUserByEmail(ctx, audit, email)
	if err != nil {
		return nil, sso.UserPasswordMeta{}, err
	}
	k, err := s.keys.ReadByUser(ctx, audit, service, user, sso.KeyTypeToken)
	if err != nil {
		return nil, sso.UserPasswordMeta{}, err
	}
	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, sso.UserPasswordMeta{}, err
	}

	meta := s.evaluator.Meta(ctx, &password)
	userToken, err := s.userToken(ctx, service, user, k)
	if err != nil {
		return nil, sso.UserPasswordMeta{}, err
	}
	return userToken, meta, nil
}

// ResetPassword sends a single use reset token to the user.
func (s *Service) ResetPassword(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, email string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	user, err := s.keys.ReadUserByEmail(ctx, audit, email)
	if err != nil {
		return err
	}
	k, err := s.keys.ReadByUser(ctx, audit, service, user, sso.KeyTypeToken)
	if err != nil {
		return err
	}
	tok, _, err := s.csrfToken(ctx, service, user, k, sso.ClaimResetPasswordToken, s.cfg.TokenExpires)
	if err != nil {
		return err
	}

	msg := ResetPasswordMessage{Service: *service, User: *user, Token: tok, Audit: audit.Meta()}
	if err := s.notifier.ResetPassword(ctx, msg); err != nil {
		return sso.ErrNotifySend(err)
	}
	return nil
}

// ResetPasswordConfirm consumes a reset token and stores the new password.
// The password is hashed before the token is consumed, so a rejected
// password leaves the token usable.
func (s *Service) ResetPasswordConfirm(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString, newPassword string) (_ sso.UserPasswordMeta, err error) {
	defer func() { s.observe("reset_password_confirm", err) }()

	user, _, decoded, err := s.decodeToken(ctx, audit, service, sso.ClaimResetPasswordToken, tokenString)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}
	if _, err := s.register.Take(ctx, service.ID, decoded.CsrfKey); err != nil {
		return sso.UserPasswordMeta{}, err
	}
	return s.storePassword(ctx, user, hash, newPassword)
}

// UpdateEmail changes the user's email and sends a revoke token to the old
// address.
func (s *Service) UpdateEmail(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, req UpdateEmailRequest) (err error) {
	defer func() { s.observe("update_email", err) }()

	user, k, err := s.resolveCredential(ctx, audit, service, req.Credential)
	if err != nil {
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, req.Password); err != nil {
		return err
	}
	newEmail := sso.NormalizeEmail(req.NewEmail)
	if newEmail == "" {
		return sso.ErrInvalidRequest("new_email is required")
	}

	oldEmail := user.Email
	user.Email = newEmail
	if err := s.driver.UserUpdate(ctx, user); err != nil {
		return sso.DriverError(err)
	}

	// Minted after the update so a conflict leaves no entry behind.
	revoke, _, err := s.csrfToken(ctx, service, user, k, sso.ClaimUpdateEmailRevokeToken, s.cfg.TokenExpires)
	if err != nil {
		return err
	}

	msg := UpdateEmailMessage{
		Service:     *service,
		User:        *user,
		OldEmail:    oldEmail,
		RevokeToken: revoke,
		Audit:       audit.Meta(),
	}
	if err := s.notifier.UpdateEmail(ctx, msg); err != nil {
		return sso.ErrNotifySend(err)
	}
	return nil
}

// UpdateEmailRevoke consumes an update email revoke token, then disables the
// user and revokes all of their keys.
func (s *Service) UpdateEmailRevoke(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (err error) {
	defer func() { s.observe("update_email_revoke", err) }()
	return s.revokeUser(ctx, audit, service, sso.ClaimUpdateEmailRevokeToken, tokenString)
}

// UpdatePassword changes the user's password and sends a revoke token.
func (s *Service) UpdatePassword(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, req UpdatePasswordRequest) (_ sso.UserPasswordMeta, err error) {
	defer func() { s.observe("update_password", err) }()

	user, k, err := s.resolveCredential(ctx, audit, service, req.Credential)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}
	if err := s.hasher.Verify(user.PasswordHash, req.Password); err != nil {
		return sso.UserPasswordMeta{}, err
	}
	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}

	revoke, _, err := s.csrfToken(ctx, service, user, k, sso.ClaimUpdatePasswordRevokeToken, s.cfg.TokenExpires)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}
	meta, err := s.storePassword(ctx, user, hash, req.NewPassword)
	if err != nil {
		return sso.UserPasswordMeta{}, err
	}

	msg := UpdatePasswordMessage{Service: *service, User: *user, RevokeToken: revoke, Audit: audit.Meta()}
	if err := s.notifier.UpdatePassword(ctx, msg); err != nil {
		return sso.UserPasswordMeta{}, sso.ErrNotifySend(err)
	}
	return meta, nil
}

// UpdatePasswordRevoke consumes an update password revoke token, then
// disables the user and revokes all of their keys.
func (s *Service) UpdatePasswordRevoke(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, tokenString string) (err error) {
	defer func() { s.observe("update_password_revoke", err) }()
	return s.revokeUser(ctx, audit, service, sso.ClaimUpdatePasswordRevokeToken, tokenString)
}

// revokeUser accepts a disabled user and a revoked signing key, so the link
// still works after an administrator locked the account first. The CSRF
// entry keeps it single use.
func (s *Service) revokeUser(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, claimType sso.ClaimType, tokenString string) error {
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
	decoded, err := s.codec.Decode(service.ID, user.ID, claimType, k.Value, tokenString)
	if err != nil {
		return err
	}
	if _, err := s.register.Take(ctx, service.ID, decoded.CsrfKey); err != nil {
		return err
	}

	user.Enabled = false
	if err := s.driver.UserUpdate(ctx, user); err != nil {
		return sso.DriverError(err)
	}
	n, err := s.driver.KeyRevokeUser(ctx, user.ID)
	if err != nil {
		return sso.DriverError(err)
	}
	logx.WithFields(logx.Fields{
		"user_id":      user.ID,
		"revoked_keys": n,
		"claim_type":   claimType,
	}).Info("auth: user disabled by revoke token")
	return nil
}

// resolveCredential finds the user behind a Key type key or an access token
// and returns the user's token signing key.
func (s *Service) resolveCredential(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, cred Credential) (*sso.User, *sso.Key, error) {
	switch {
	case cred.Key != nil && cred.Token != nil:
		return nil, nil, sso.ErrInvalidRequest("only one of key or token may be set")
	case cred.Key != nil:
		userKey, err := s.keys.ReadByUserValue(ctx, audit, service, *cred.Key, sso.KeyTypeKey)
		if err != nil {
			return nil, nil, err
		}
		scope, ok := userKey.Scope.(sso.UserScope)
		if !ok {
			return nil, nil, sso.ErrKeyNotFound()
		}
		user, err := s.keys.ReadUserByID(ctx, audit, scope.UserID)
		if err != nil {
			return nil, nil, err
		}
		k, err := s.keys.ReadByUser(ctx, audit, service, user, sso.KeyTypeToken)
		if err != nil {
			return nil, nil, err
		}
		return user, k, nil
	case cred.Token != nil:
		user, k, _, err := s.decodeToken(ctx, audit, service, sso.ClaimAccessToken, *cred.Token)
		if err != nil {
			return nil, nil, err
		}
		return user, k, nil
	default:
		return nil, nil, sso.ErrInvalidRequest("key or token is required")
	}
}

// hashPassword validates and hashes a new password without touching state.
func (s *Service) hashPassword(newPassword string) (string, error) {
	if newPassword == "" {
		return "", sso.ErrInvalidRequest("password is required")
	}
	return s.hasher.Hash(newPassword)
}

// storePassword stores a hash and reports advisory metadata about it.
func (s *Service) storePassword(ctx context.Context, user *sso.User, hash, newPassword string) (sso.UserPasswordMeta, error) {
	revision, err := s.driver.UserUpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return sso.UserPasswordMeta{}, sso.DriverError(err)
	}
	user.PasswordHash = &hash
	user.PasswordRevision = revision
	return s.evaluator.Meta(ctx, &newPassword), nil
}
