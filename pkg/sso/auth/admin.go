package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/ptrx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/totp"
)

// ServiceCreate creates a service. Only root may create services.
func (s *Service) ServiceCreate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, req ServiceCreateRequest) (_ *sso.Service, err error) {
	defer func() { s.observe("service_create", err) }()

	if !caller.IsRoot() {
		return nil, sso.ErrForbidden()
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, sso.ErrInvalidRequest("name is required")
	}

	now := s.now().UTC()
	service := &sso.Service{
		ID:        kernel.NewServiceID(),
		Name:      name,
		URL:       strings.TrimSpace(req.URL),
		Enabled:   ptrx.ValueOr(req.Enabled, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.driver.ServiceCreate(ctx, service); err != nil {
		return nil, sso.DriverError(err)
	}
	audit.Service(service)
	return service, nil
}

// UserCreate creates a user with an optional password.
func (s *Service) UserCreate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, req UserCreateRequest) (_ *sso.User, _ sso.UserPasswordMeta, err error) {
	defer func() { s.observe("user_create", err) }()

	if caller == nil {
		return nil, sso.UserPasswordMeta{}, sso.ErrForbidden()
	}
	email := sso.NormalizeEmail(req.Email)
	if email == "" {
		return nil, sso.UserPasswordMeta{}, sso.ErrInvalidRequest("email is required")
	}

	now := s.now().UTC()
	user := &sso.User{
		ID:        kernel.NewUserID(),
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Enabled:   ptrx.ValueOr(req.Enabled, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, sso.UserPasswordMeta{}, err
		}
		user.PasswordHash = &hash
	}
	if err := s.driver.UserCreate(ctx, user); err != nil {
		return nil, sso.UserPasswordMeta{}, sso.DriverError(err)
	}
	audit.User(user)
	return user, s.evaluator.Meta(ctx, req.Password), nil
}

// KeyCreate creates a key. Root may create any key. A service may only
// create user keys inside its own scope.
func (s *Service) KeyCreate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, req KeyCreateRequest) (_ *sso.Key, err error) {
	defer func() { s.observe("key_create", err) }()

	if !req.Type.Valid() {
		return nil, sso.ErrInvalidRequest("type must be one of key, token or totp")
	}
	scope, err := sso.NewKeyScope(req.ServiceID, req.UserID)
	if err != nil {
		return nil, sso.ErrInvalidRequest(err.Error())
	}
	if !caller.IsRoot() {
		us, ok := scope.(sso.UserScope)
		if !ok || !caller.CanAccessService(us.ServiceID) {
			return nil, sso.ErrForbidden()
		}
	}

	var user *sso.User
	if us, ok := scope.(sso.UserScope); ok {
		service, err := s.keys.ReadService(ctx, audit, us.ServiceID)
		if err != nil {
			return nil, err
		}
		user, err = s.keys.ReadUserByIDUnchecked(ctx, audit, us.UserID)
		if err != nil {
			return nil, err
		}
		if req.Type != sso.KeyTypeKey {
			existing, err := s.driver.KeyRead(ctx, sso.KeyReadUserID{ServiceID: service.ID, UserID: user.ID, Type: req.Type})
			if err != nil {
				return nil, sso.DriverError(err)
			}
			if existing != nil && existing.Usable() {
				return nil, sso.ErrInvalidRequest("user already has a usable key of this type")
			}
		}
	} else if req.Type != sso.KeyTypeKey {
		return nil, sso.ErrInvalidRequest("root and service keys must have type key")
	}

	value, err := s.keyValue(req.Type, user)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	k := &sso.Key{
		ID:        kernel.NewKeyID(),
		Name:      strings.TrimSpace(req.Name),
		Value:     value,
		Enabled:   ptrx.ValueOr(req.Enabled, true),
		Type:      req.Type,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.driver.KeyCreate(ctx, k); err != nil {
		return nil, sso.DriverError(err)
	}
	if user != nil {
		audit.UserKey(k)
	} else {
		audit.Key(k)
	}
	return k, nil
}

func (s *Service) keyValue(keyType sso.KeyType, user *sso.User) (string, error) {
	if keyType == sso.KeyTypeTotp {
		secret, err := totp.NewSecret("mz", user.Email)
		if err != nil {
			return "", sso.DriverError(err)
		}
		return secret, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", sso.DriverError(err)
	}
	return hex.EncodeToString(buf), nil
}

// ============================================================================
// Service administration
// ============================================================================

// ServiceList lists every service. Only root may list services.
func (s *Service) ServiceList(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, opts kernel.PaginationOptions) (_ kernel.Paginated[sso.Service], err error) {
	defer func() { s.observe("service_list", err) }()

	if !caller.IsRoot() {
		return kernel.Paginated[sso.Service]{}, sso.ErrForbidden()
	}
	opts = opts.Normalize()
	services, total, err := s.driver.ServiceList(ctx, opts)
	if err != nil {
		return kernel.Paginated[sso.Service]{}, sso.DriverError(err)
	}
	return kernel.NewPaginated(services, opts.Page, opts.PageSize, total), nil
}

// ServiceRead reads a service the caller may access, enabled or not.
func (s *Service) ServiceRead(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.ServiceID) (_ *sso.Service, err error) {
	defer func() { s.observe("service_read", err) }()
	return s.adminService(ctx, audit, caller, id)
}

// ServiceUpdate changes the set fields of a service the caller may access.
func (s *Service) ServiceUpdate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.ServiceID, req ServiceUpdateRequest) (_ *sso.Service, err error) {
	defer func() { s.observe("service_update", err) }()

	service, err := s.adminService(ctx, audit, caller, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, sso.ErrInvalidRequest("name must not be empty")
		}
		service.Name = name
	}
	if req.URL != nil {
		service.URL = strings.TrimSpace(*req.URL)
	}
	service.Enabled = ptrx.ValueOr(req.Enabled, service.Enabled)
	if err := s.driver.ServiceUpdate(ctx, service); err != nil {
		return nil, sso.DriverError(err)
	}
	return service, nil
}

// ServiceDelete removes a service the caller may access together with its
// keys and CSRF entries.
func (s *Service) ServiceDelete(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.ServiceID) (err error) {
	defer func() { s.observe("service_delete", err) }()

	service, err := s.adminService(ctx, audit, caller, id)
	if err != nil {
		return err
	}
	if err := s.driver.ServiceDelete(ctx, service.ID); err != nil {
		return sso.DriverError(err)
	}
	logx.WithField("service_id", service.ID).Info("auth: service deleted")
	return nil
}

// adminService reads a service without the enabled check. Services the
// caller cannot access read as not found.
func (s *Service) adminService(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.ServiceID) (*sso.Service, error) {
	if !caller.CanAccessService(id) {
		return nil, sso.ErrServiceNotFound()
	}
	service, err := s.driver.ServiceRead(ctx, id)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if service == nil {
		return nil, sso.ErrServiceNotFound()
	}
	audit.Service(service)
	return service, nil
}

// ============================================================================
// User administration
// ============================================================================

// UserList lists users. Users are shared by all services, so any
// authenticated caller may list them.
func (s *Service) UserList(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, opts kernel.PaginationOptions) (_ kernel.Paginated[sso.User], err error) {
	defer func() { s.observe("user_list", err) }()

	if caller == nil {
		return kernel.Paginated[sso.User]{}, sso.ErrForbidden()
	}
	opts = opts.Normalize()
	users, total, err := s.driver.UserList(ctx, opts)
	if err != nil {
		return kernel.Paginated[sso.User]{}, sso.DriverError(err)
	}
	return kernel.NewPaginated(users, opts.Page, opts.PageSize, total), nil
}

func (s *Service) UserRead(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.UserID) (_ *sso.User, err error) {
	defer func() { s.observe("user_read", err) }()

	if caller == nil {
		return nil, sso.ErrForbidden()
	}
	return s.keys.ReadUserByIDUnchecked(ctx, audit, id)
}

// UserUpdate changes the set fields of a user. Passwords change through the
// provider flows only.
func (s *Service) UserUpdate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.UserID, req UserUpdateRequest) (_ *sso.User, err error) {
	defer func() { s.observe("user_update", err) }()

	if caller == nil {
		return nil, sso.ErrForbidden()
	}
	user, err := s.keys.ReadUserByIDUnchecked(ctx, audit, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := sso.NormalizeEmail(*req.Email)
		if email == "" {
			return nil, sso.ErrInvalidRequest("email must not be empty")
		}
		user.Email = email
	}
	user.Enabled = ptrx.ValueOr(req.Enabled, user.Enabled)
	if err := s.driver.UserUpdate(ctx, user); err != nil {
		return nil, sso.DriverError(err)
	}
	return user, nil
}

// UserDelete removes a user and every key scoped to them. Only root may
// delete users, since a user spans services.
func (s *Service) UserDelete(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.UserID) (err error) {
	defer func() { s.observe("user_delete", err) }()

	if !caller.IsRoot() {
		return sso.ErrForbidden()
	}
	user, err := s.keys.ReadUserByIDUnchecked(ctx, audit, id)
	if err != nil {
		return err
	}
	if err := s.driver.UserDelete(ctx, user.ID); err != nil {
		return sso.DriverError(err)
	}
	logx.WithField("user_id", user.ID).Info("auth: user deleted")
	return nil
}

// ============================================================================
// Key administration
// ============================================================================

// KeyList lists keys. A service caller is always restricted to keys of its
// own service.
func (s *Service) KeyList(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, req KeyListRequest) (_ kernel.Paginated[sso.Key], err error) {
	defer func() { s.observe("key_list", err) }()

	if caller == nil {
		return kernel.Paginated[sso.Key]{}, sso.ErrForbidden()
	}
	list := sso.KeyList{ServiceID: req.ServiceID, UserID: req.UserID, PaginationOptions: req.PaginationOptions.Normalize()}
	if !caller.IsRoot() {
		if req.ServiceID != nil && *req.ServiceID != *caller.ServiceID {
			return kernel.Paginated[sso.Key]{}, sso.ErrForbidden()
		}
		list.ServiceID = caller.ServiceID
	}
	keys, total, err := s.driver.KeyList(ctx, list)
	if err != nil {
		return kernel.Paginated[sso.Key]{}, sso.DriverError(err)
	}
	return kernel.NewPaginated(keys, list.Page, list.PageSize, total), nil
}

// KeyRead reads a key the caller may access, in any state.
func (s *Service) KeyRead(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.KeyID) (_ *sso.Key, err error) {
	defer func() { s.observe("key_read", err) }()
	return s.adminKey(ctx, audit, caller, id)
}

// KeyUpdate changes a key's name and enabled state.
func (s *Service) KeyUpdate(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.KeyID, req KeyUpdateRequest) (_ *sso.Key, err error) {
	defer func() { s.observe("key_update", err) }()

	k, err := s.adminKey(ctx, audit, caller, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		k.Name = strings.TrimSpace(*req.Name)
	}
	k.Enabled = ptrx.ValueOr(req.Enabled, k.Enabled)
	if err := s.driver.KeyUpdate(ctx, k); err != nil {
		return nil, sso.DriverError(err)
	}
	return k, nil
}

// KeyDelete revokes a key. Keys are never removed so audits keep resolving.
func (s *Service) KeyDelete(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.KeyID) (err error) {
	defer func() { s.observe("key_delete", err) }()

	k, err := s.adminKey(ctx, audit, caller, id)
	if err != nil {
		return err
	}
	return s.revokeKey(ctx, k)
}

// adminKey reads a key by id. Root keys are visible to root only, service
// and user keys to root and their own service.
func (s *Service) adminKey(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id kernel.KeyID) (*sso.Key, error) {
	if caller == nil {
		return nil, sso.ErrForbidden()
	}
	k, err := s.driver.KeyRead(ctx, sso.KeyReadID{ID: id})
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if k == nil {
		return nil, sso.ErrKeyNotFound()
	}
	if !caller.IsRoot() {
		serviceID, ok := k.ServiceID()
		if !ok || !caller.CanAccessService(serviceID) {
			return nil, sso.ErrKeyNotFound()
		}
	}
	if _, ok := k.Scope.(sso.UserScope); ok {
		audit.UserKey(k)
	}
	return k, nil
}

// ============================================================================
// Audit
// ============================================================================

// AuditList lists audit records, newest first. A service caller is always
// restricted to records of its own service.
func (s *Service) AuditList(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, req AuditListRequest) (_ kernel.Paginated[sso.Audit], err error) {
	defer func() { s.observe("audit_list", err) }()

	if caller == nil {
		return kernel.Paginated[sso.Audit]{}, sso.ErrForbidden()
	}
	list := sso.AuditList{
		ServiceID:         req.ServiceID,
		UserID:            req.UserID,
		Type:              strings.TrimSpace(req.Type),
		PaginationOptions: req.PaginationOptions.Normalize(),
	}
	if !caller.IsRoot() {
		if req.ServiceID != nil && *req.ServiceID != *caller.ServiceID {
			return kernel.Paginated[sso.Audit]{}, sso.ErrForbidden()
		}
		list.ServiceID = caller.ServiceID
	}
	audits, total, err := s.driver.AuditList(ctx, list)
	if err != nil {
		return kernel.Paginated[sso.Audit]{}, sso.DriverError(err)
	}
	return kernel.NewPaginated(audits, list.Page, list.PageSize, total), nil
}

// AuditRead reads one audit record. Records of other services read as not
// found for a service caller.
func (s *Service) AuditRead(ctx context.Context, audit *sso.AuditBuilder, caller *kernel.AuthContext, id string) (_ *sso.Audit, err error) {
	defer func() { s.observe("audit_read", err) }()

	if caller == nil {
		return nil, sso.ErrForbidden()
	}
	record, err := s.driver.AuditRead(ctx, id)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if record == nil {
		return nil, sso.ErrAuditNotFound()
	}
	if !caller.IsRoot() && (record.ServiceID == nil || *record.ServiceID != *caller.ServiceID) {
		return nil, sso.ErrAuditNotFound()
	}
	return record, nil
}
