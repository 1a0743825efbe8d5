package auth

import (
	"context"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

// ============================================================================
// Notifier
// ============================================================================

// Notifier hands user facing messages off for delivery. Implementations must
// not block on delivery itself.
type Notifier interface {
	ResetPassword(ctx context.Context, msg ResetPasswordMessage) error
	UpdateEmail(ctx context.Context, msg UpdateEmailMessage) error
	UpdatePassword(ctx context.Context, msg UpdatePasswordMessage) error
}

type ResetPasswordMessage struct {
	Service sso.Service   `json:"service"`
	User    sso.User      `json:"user"`
	Token   string        `json:"token"`
	Audit   sso.AuditMeta `json:"audit"`
}

type UpdateEmailMessage struct {
	Service     sso.Service   `json:"service"`
	User        sso.User      `json:"user"`
	OldEmail    string        `json:"old_email"`
	RevokeToken string        `json:"revoke_token"`
	Audit       sso.AuditMeta `json:"audit"`
}

type UpdatePasswordMessage struct {
	Service     sso.Service   `json:"service"`
	User        sso.User      `json:"user"`
	RevokeToken string        `json:"revoke_token"`
	Audit       sso.AuditMeta `json:"audit"`
}

// Observer is told the outcome of every operation. Result is "ok" or the
// error code.
type Observer interface {
	AuthOperation(operation, result string)
}

// ============================================================================
// Requests
// ============================================================================

// Credential identifies a user either by one of their Key type keys or by
// an access token. Exactly one must be set.
type Credential struct {
	Key   *string `json:"key,omitempty"`
	Token *string `json:"token,omitempty"`
}

type UpdateEmailRequest struct {
	Credential
	Password string `json:"password"`
	NewEmail string `json:"new_email"`
}

type UpdatePasswordRequest struct {
	Credential
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

type ServiceCreateRequest struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Enabled *bool  `json:"is_enabled,omitempty"`
}

type UserCreateRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Enabled  *bool   `json:"is_enabled,omitempty"`
	Password *string `json:"password,omitempty"`
}

// ServiceUpdateRequest changes the fields that are set.
type ServiceUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	URL     *string `json:"url,omitempty"`
	Enabled *bool   `json:"is_enabled,omitempty"`
}

type UserUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Enabled *bool   `json:"is_enabled,omitempty"`
}

// KeyUpdateRequest cannot change a key's value, type or scope, and cannot
// undo a revocation.
type KeyUpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	Enabled *bool   `json:"is_enabled,omitempty"`
}

// KeyListRequest filters keys. Service callers only ever see their own scope.
type KeyListRequest struct {
	ServiceID *kernel.ServiceID
	UserID    *kernel.UserID
	kernel.PaginationOptions
}

// AuditListRequest filters audits. Service callers only ever see their own
// service's records.
type AuditListRequest struct {
	ServiceID *kernel.ServiceID
	UserID    *kernel.UserID
	Type      string
	kernel.PaginationOptions
}

// KeyCreateRequest creates a root key when both ids are nil, a service key
// when only ServiceID is set and a user key when both are.
type KeyCreateRequest struct {
	Name      string            `json:"name"`
	Type      sso.KeyType       `json:"type"`
	Enabled   *bool             `json:"is_enabled,omitempty"`
	ServiceID *kernel.ServiceID `json:"service_id,omitempty"`
	UserID    *kernel.UserID    `json:"user_id,omitempty"`
}

// ============================================================================
// Audit
// ============================================================================

// AuditSink persists finalized audit records. outcome is the error the
// operation ended with, or nil.
type AuditSink interface {
	Record(ctx context.Context, audit *sso.Audit, outcome error)
}
