package sso

import (
	"context"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
)

// Lookups return (nil, nil) when nothing matches. Only storage faults are
// returned as errors.

type ServiceStore interface {
	ServiceCreate(ctx context.Context, service *Service) error
	ServiceRead(ctx context.Context, id kernel.ServiceID) (*Service, error)
	ServiceUpdate(ctx context.Context, service *Service) error
	// ServiceList returns a page of services ordered by creation and the total.
	ServiceList(ctx context.Context, opts kernel.PaginationOptions) ([]Service, int, error)
	// ServiceDelete removes the service with its keys and CSRF entries.
	ServiceDelete(ctx context.Context, id kernel.ServiceID) error
}

// UserRead selects a user by exactly one of ID or Email.
type UserRead struct {
	ID    kernel.UserID
	Email string
}

type UserStore interface {
	UserCreate(ctx context.Context, user *User) error
	UserRead(ctx context.Context, read UserRead) (*User, error)
	// UserUpdate persists name, email and enabled state.
	UserUpdate(ctx context.Context, user *User) error
	// UserUpdatePassword stores a new hash and increments the revision.
	UserUpdatePassword(ctx context.Context, id kernel.UserID, hash string) (int64, error)
	UserList(ctx context.Context, opts kernel.PaginationOptions) ([]User, int, error)
	// UserDelete removes the user with its keys.
	UserDelete(ctx context.Context, id kernel.UserID) error
}

// KeyList filters a key listing. A nil ServiceID lists every scope, a set
// ServiceID lists the service key and the user keys of that service.
type KeyList struct {
	ServiceID *kernel.ServiceID
	UserID    *kernel.UserID
	kernel.PaginationOptions
}

type KeyStore interface {
	KeyCreate(ctx context.Context, key *Key) error
	KeyRead(ctx context.Context, read KeyRead) (*Key, error)
	// KeyUpdate persists name, enabled and revoked state.
	KeyUpdate(ctx context.Context, key *Key) error
	// KeyRevokeUser revokes every key held by the user and returns the count.
	KeyRevokeUser(ctx context.Context, id kernel.UserID) (int64, error)
	KeyList(ctx context.Context, list KeyList) ([]Key, int, error)
}

type CsrfStore interface {
	CsrfCreate(ctx context.Context, csrf *Csrf) error
	// CsrfConsume reads and deletes the entry for key in one atomic step when
	// it belongs to serviceID. Entries of other services are left untouched.
	// Concurrent callers for the same key observe it at most once.
	CsrfConsume(ctx context.Context, serviceID kernel.ServiceID, key string) (*Csrf, error)
	// CsrfDeleteExpired removes entries that expired before now.
	CsrfDeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditList filters an audit listing, newest first. Empty fields match all.
type AuditList struct {
	ServiceID *kernel.ServiceID
	UserID    *kernel.UserID
	Type      string
	kernel.PaginationOptions
}

type AuditStore interface {
	AuditCreate(ctx context.Context, audit *Audit) error
	AuditRead(ctx context.Context, id string) (*Audit, error)
	AuditList(ctx context.Context, list AuditList) ([]Audit, int, error)
}

// Driver is the persistence port of the core.
type Driver interface {
	ServiceStore
	UserStore
	KeyStore
	CsrfStore
	AuditStore
}
