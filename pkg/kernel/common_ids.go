package kernel

import (
	"strings"

	"github.com/google/uuid"
)

type ServiceID string

func NewServiceID() ServiceID      { return ServiceID(newID()) }
func (s ServiceID) String() string { return string(s) }
func (s ServiceID) IsEmpty() bool  { return s == "" }

type UserID string

func NewUserID() UserID         { return UserID(newID()) }
func (u UserID) String() string { return string(u) }
func (u UserID) IsEmpty() bool  { return u == "" }

type KeyID string

func NewKeyID() KeyID          { return KeyID(newID()) }
func (k KeyID) String() string { return string(k) }
func (k KeyID) IsEmpty() bool  { return k == "" }

func newID() string {
	return uuid.NewString()
}

// NewNonce returns a random hyphen-less UUID, used for CSRF keys and values.
func NewNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
