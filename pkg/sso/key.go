package sso

import (
	"fmt"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
)

// KeyType tags what a key's value is used for.
type KeyType string

const (
	// KeyTypeKey is a generic API key.
	KeyTypeKey KeyType = "key"
	// KeyTypeToken is the secret used to sign a scope's JWTs.
	KeyTypeToken KeyType = "token"
	// KeyTypeTotp is a base32 TOTP shared secret.
	KeyTypeTotp KeyType = "totp"
)

func (t KeyType) Valid() bool {
	switch t {
	case KeyTypeKey, KeyTypeToken, KeyTypeTotp:
		return true
	}
	return false
}

// KeyScope is one of RootScope, ServiceScope or UserScope.
type KeyScope interface {
	isKeyScope()
}

// RootScope keys hold full administrative authority.
type RootScope struct{}

// ServiceScope keys identify a calling service.
type ServiceScope struct {
	ServiceID kernel.ServiceID
}

// UserScope keys are per-user credentials scoped to one service.
type UserScope struct {
	ServiceID kernel.ServiceID
	UserID    kernel.UserID
}

func (RootScope) isKeyScope()    {}
func (ServiceScope) isKeyScope() {}
func (UserScope) isKeyScope()    {}

// NewKeyScope builds a scope from nullable storage columns. A user without
// a service is not a valid combination.
func NewKeyScope(serviceID *kernel.ServiceID, userID *kernel.UserID) (KeyScope, error) {
	switch {
	case serviceID == nil && userID == nil:
		return RootScope{}, nil
	case serviceID != nil && userID == nil:
		return ServiceScope{ServiceID: *serviceID}, nil
	case serviceID != nil && userID != nil:
		return UserScope{ServiceID: *serviceID, UserID: *userID}, nil
	default:
		return nil, fmt.Errorf("key scope: user %s without service", *userID)
	}
}

// ScopeColumns flattens a scope back into nullable storage columns.
func ScopeColumns(scope KeyScope) (*kernel.ServiceID, *kernel.UserID) {
	switch s := scope.(type) {
	case ServiceScope:
		return &s.ServiceID, nil
	case UserScope:
		return &s.ServiceID, &s.UserID
	default:
		return nil, nil
	}
}

// Key is a credential. Its Value is compared exactly and, for token keys,
// is the HMAC secret of the scope's JWTs.
type Key struct {
	ID        kernel.KeyID `json:"id"`
	Name      string       `json:"name"`
	Value     string       `json:"-"`
	Enabled   bool         `json:"is_enabled"`
	Revoked   bool         `json:"is_revoked"`
	Type      KeyType      `json:"type"`
	Scope     KeyScope     `json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Usable reports whether the key may authenticate or sign.
func (k *Key) Usable() bool {
	return k.Enabled && !k.Revoked
}

// Check returns KeyDisabled or KeyRevoked for an unusable key.
func (k *Key) Check() (*Key, error) {
	if !k.Enabled {
		return nil, ErrKeyDisabled()
	}
	if k.Revoked {
		return nil, ErrKeyRevoked()
	}
	return k, nil
}

// ServiceID returns the owning service for service and user keys.
func (k *Key) ServiceID() (kernel.ServiceID, bool) {
	switch s := k.Scope.(type) {
	case ServiceScope:
		return s.ServiceID, true
	case UserScope:
		return s.ServiceID, true
	}
	return "", false
}

// ============================================================================
// Key lookups
// ============================================================================

// KeyRead selects a key. Root and service value lookups only match usable
// keys. User lookups return the raw record, preferring a usable key when
// several match.
type KeyRead interface {
	isKeyRead()
}

// KeyReadID reads any key by id regardless of state.
type KeyReadID struct {
	ID kernel.KeyID
}

type KeyReadRootValue struct {
	Value string
}

type KeyReadServiceValue struct {
	Value string
}

type KeyReadUserID struct {
	ServiceID kernel.ServiceID
	UserID    kernel.UserID
	Type      KeyType
}

type KeyReadUserValue struct {
	ServiceID kernel.ServiceID
	Value     string
	Type      KeyType
}

func (KeyReadID) isKeyRead()           {}
func (KeyReadRootValue) isKeyRead()    {}
func (KeyReadServiceValue) isKeyRead() {}
func (KeyReadUserID) isKeyRead()       {}
func (KeyReadUserValue) isKeyRead()    {}
