package sso

import (
	"strings"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
)

// ============================================================================
// Service
// ============================================================================

// Service is an API tenant. Disabled services fail every authentication
// scoped to them.
type Service struct {
	ID        kernel.ServiceID `json:"id"`
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	Enabled   bool             `json:"is_enabled"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Check returns ServiceDisabled for a disabled service.
func (s *Service) Check() (*Service, error) {
	if !s.Enabled {
		return nil, ErrServiceDisabled()
	}
	return s, nil
}

// ============================================================================
// User
// ============================================================================

// User is an end user. Users are not scoped to one service.
type User struct {
	ID               kernel.UserID `json:"id"`
	Name             string        `json:"name"`
	Email            string        `json:"email"`
	Enabled          bool          `json:"is_enabled"`
	PasswordHash     *string       `json:"-"`
	PasswordRevision int64         `json:"password_revision"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Check returns UserDisabled for a disabled user.
func (u *User) Check() (*User, error) {
	if !u.Enabled {
		return nil, ErrUserDisabled()
	}
	return u, nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserPasswordMeta is advisory information about a password. Either field is
// nil when it could not be determined.
type UserPasswordMeta struct {
	Strength *int  `json:"password_strength"`
	Pwned    *bool `json:"password_pwned"`
}

// UserToken is returned after a successful authentication.
type UserToken struct {
	User                *User     `json:"user"`
	AccessToken         string    `json:"access_token"`
	AccessTokenExpires  time.Time `json:"access_token_expires"`
	RefreshToken        string    `json:"refresh_token"`
	RefreshTokenExpires time.Time `json:"refresh_token_expires"`
}

// UserTokenPartial is returned by access token verification.
type UserTokenPartial struct {
	User               *User     `json:"user"`
	AccessToken        string    `json:"access_token"`
	AccessTokenExpires time.Time `json:"access_token_expires"`
}

// UserKey is returned by user key verification.
type UserKey struct {
	User *User `json:"user"`
	Key  *Key  `json:"key"`
}

// ============================================================================
// Csrf
// ============================================================================

// Csrf is a single-use nonce bound to a service.
type Csrf struct {
	Key       string           `json:"key"`
	Value     string           `json:"value"`
	ServiceID kernel.ServiceID `json:"service_id"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (c *Csrf) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
