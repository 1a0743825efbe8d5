// Package key resolves presented key values to keys, services and users.
package key

import (
	"context"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

// Authenticator resolves credentials through the driver and records every
// resolved participant into the caller's audit builder.
type Authenticator struct {
	driver sso.Driver
}

func NewAuthenticator(driver sso.Driver) *Authenticator {
	return &Authenticator{driver: driver}
}

// AuthenticateRoot succeeds for an enabled, unrevoked root key.
func (a *Authenticator) AuthenticateRoot(ctx context.Context, audit *sso.AuditBuilder, value *string) error {
	_, err := a.root(ctx, audit, value)
	return err
}

func (a *Authenticator) root(ctx context.Context, audit *sso.AuditBuilder, value *string) (*sso.Key, error) {
	if value == nil || *value == "" {
		return nil, sso.ErrKeyUndefined()
	}
	k, err := a.driver.KeyRead(ctx, sso.KeyReadRootValue{Value: *value})
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if k == nil {
		return nil, sso.ErrKeyNotFound()
	}
	audit.Key(k)
	return k, nil
}

// AuthenticateService resolves a service key and its enabled service.
func (a *Authenticator) AuthenticateService(ctx context.Context, audit *sso.AuditBuilder, value *string) (*sso.Service, error) {
	service, _, err := a.service(ctx, audit, value)
	return service, err
}

func (a *Authenticator) service(ctx context.Context, audit *sso.AuditBuilder, value *string) (*sso.Service, *sso.Key, error) {
	if value == nil || *value == "" {
		return nil, nil, sso.ErrKeyUndefined()
	}
	k, err := a.driver.KeyRead(ctx, sso.KeyReadServiceValue{Value: *value})
	if err != nil {
		return nil, nil, sso.DriverError(err)
	}
	if k == nil {
		return nil, nil, sso.ErrKeyNotFound()
	}
	serviceID, ok := k.ServiceID()
	if !ok {
		return nil, nil, sso.ErrKeyServiceUndefined()
	}
	audit.Key(k)

	service, err := a.ReadService(ctx, audit, serviceID)
	if err != nil {
		return nil, nil, err
	}
	return service, k, nil
}

// ReadService reads an enabled service by id.
func (a *Authenticator) ReadService(ctx context.Context, audit *sso.AuditBuilder, id kernel.ServiceID) (*sso.Service, error) {
	service, err := a.driver.ServiceRead(ctx, id)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if service == nil {
		return nil, sso.ErrServiceNotFound()
	}
	if _, err := service.Check(); err != nil {
		return nil, err
	}
	audit.Service(service)
	return service, nil
}

// Authenticate tries a service key first and falls back to a root key on any
// failure, storage faults included. A nil service with a nil error means the
// caller is root. When both fail the root failure is returned.
func (a *Authenticator) Authenticate(ctx context.Context, audit *sso.AuditBuilder, value *string) (*sso.Service, error) {
	service, err := a.AuthenticateService(ctx, audit, value)
	if err == nil {
		return service, nil
	}
	if err := a.AuthenticateRoot(ctx, audit, value); err != nil {
		return nil, err
	}
	return nil, nil
}

// AuthContext authenticates value like Authenticate and describes the caller.
func (a *Authenticator) AuthContext(ctx context.Context, audit *sso.AuditBuilder, value *string) (*kernel.AuthContext, *sso.Service, error) {
	service, k, err := a.service(ctx, audit, value)
	if err == nil {
		id := service.ID
		return &kernel.AuthContext{KeyID: k.ID, ServiceID: &id}, service, nil
	}
	k, err = a.root(ctx, audit, value)
	if err != nil {
		return nil, nil, err
	}
	return &kernel.AuthContext{KeyID: k.ID}, nil, nil
}
