package key

import (
	"context"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

// ReadUserByID reads an enabled user.
func (a *Authenticator) ReadUserByID(ctx context.Context, audit *sso.AuditBuilder, id kernel.UserID) (*sso.User, error) {
	user, err := a.ReadUserByIDUnchecked(ctx, audit, id)
	if err != nil {
		return nil, err
	}
	return user.Check()
}

// ReadUserByIDUnchecked reads a user regardless of its enabled state.
func (a *Authenticator) ReadUserByIDUnchecked(ctx context.Context, audit *sso.AuditBuilder, id kernel.UserID) (*sso.User, error) {
	return a.readUser(ctx, audit, sso.UserRead{ID: id})
}

// ReadUserByEmail reads an enabled user by email address.
func (a *Authenticator) ReadUserByEmail(ctx context.Context, audit *sso.AuditBuilder, email string) (*sso.User, error) {
	user, err := a.readUser(ctx, audit, sso.UserRead{Email: sso.NormalizeEmail(email)})
	if err != nil {
		return nil, err
	}
	return user.Check()
}

func (a *Authenticator) readUser(ctx context.Context, audit *sso.AuditBuilder, read sso.UserRead) (*sso.User, error) {
	if read.ID == "" && read.Email == "" {
		return nil, sso.ErrUserNotFound()
	}
	user, err := a.driver.UserRead(ctx, read)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if user == nil {
		return nil, sso.ErrUserNotFound()
	}
	audit.User(user)
	return user, nil
}

// ReadByUser reads the usable key of the given type held by user for service.
func (a *Authenticator) ReadByUser(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, user *sso.User, keyType sso.KeyType) (*sso.Key, error) {
	k, err := a.ReadByUserUnchecked(ctx, audit, service, user, keyType)
	if err != nil {
		return nil, err
	}
	return k.Check()
}

// ReadByUserUnchecked is ReadByUser without the enabled and revoked checks.
func (a *Authenticator) ReadByUserUnchecked(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, user *sso.User, keyType sso.KeyType) (*sso.Key, error) {
	return a.readUserKey(ctx, audit, sso.KeyReadUserID{
		ServiceID: service.ID,
		UserID:    user.ID,
		Type:      keyType,
	})
}

// ReadByUserValue reads a usable user key of the given type by its value.
func (a *Authenticator) ReadByUserValue(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, value string, keyType sso.KeyType) (*sso.Key, error) {
	k, err := a.ReadByUserValueUnchecked(ctx, audit, service, value, keyType)
	if err != nil {
		return nil, err
	}
	return k.Check()
}

// ReadByUserValueUnchecked is ReadByUserValue without the enabled and
// revoked checks.
func (a *Authenticator) ReadByUserValueUnchecked(ctx context.Context, audit *sso.AuditBuilder, service *sso.Service, value string, keyType sso.KeyType) (*sso.Key, error) {
	if value == "" {
		return nil, sso.ErrKeyUndefined()
	}
	return a.readUserKey(ctx, audit, sso.KeyReadUserValue{
		ServiceID: service.ID,
		Value:     value,
		Type:      keyType,
	})
}

func (a *Authenticator) readUserKey(ctx context.Context, audit *sso.AuditBuilder, read sso.KeyRead) (*sso.Key, error) {
	k, err := a.driver.KeyRead(ctx, read)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if k == nil {
		return nil, sso.ErrKeyNotFound()
	}
	audit.UserKey(k)
	return k, nil
}
