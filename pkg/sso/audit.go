package sso

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
)

// AuditMeta describes the request an audit entry belongs to.
type AuditMeta struct {
	UserAgent string  `json:"user_agent"`
	Remote    string  `json:"remote"`
	Forwarded *string `json:"forwarded,omitempty"`
}

// AuditSubject is one participant recorded during an operation.
type AuditSubject struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

const (
	AuditKindService = "service"
	AuditKindUser    = "user"
	AuditKindKey     = "key"
	AuditKindUserKey = "user_key"
)

// Audit is a finalized, immutable audit record.
type Audit struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Meta      AuditMeta         `json:"meta"`
	Type      string            `json:"type"`
	Data      json.RawMessage   `json:"data,omitempty"`
	KeyID     *kernel.KeyID     `json:"key_id,omitempty"`
	ServiceID *kernel.ServiceID `json:"service_id,omitempty"`
	UserID    *kernel.UserID    `json:"user_id,omitempty"`
	UserKeyID *kernel.KeyID     `json:"user_key_id,omitempty"`
	Trail     []AuditSubject    `json:"trail"`
}

// AuditBuilder accumulates the participants of one operation. It is safe for
// use from the goroutines of a single request.
type AuditBuilder struct {
	mu        sync.Mutex
	meta      AuditMeta
	key       *kernel.KeyID
	service   *kernel.ServiceID
	user      *kernel.UserID
	userKey   *kernel.KeyID
	trail     []AuditSubject
	finalized bool
}

func NewAuditBuilder(meta AuditMeta) *AuditBuilder {
	return &AuditBuilder{meta: meta}
}

// Meta returns the request metadata the builder was created with.
func (b *AuditBuilder) Meta() AuditMeta {
	return b.meta
}

// Key records the key that authenticated the caller.
func (b *AuditBuilder) Key(key *Key) *AuditBuilder {
	if key == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := key.ID
	b.key = &id
	b.trail = append(b.trail, AuditSubject{Kind: AuditKindKey, ID: string(id)})
	return b
}

// Service records the service the operation ran for.
func (b *AuditBuilder) Service(service *Service) *AuditBuilder {
	if service == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := service.ID
	b.service = &id
	b.trail = append(b.trail, AuditSubject{Kind: AuditKindService, ID: string(id)})
	return b
}

// User records the user the operation acted on.
func (b *AuditBuilder) User(user *User) *AuditBuilder {
	if user == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := user.ID
	b.user = &id
	b.trail = append(b.trail, AuditSubject{Kind: AuditKindUser, ID: string(id)})
	return b
}

// UserKey records the user-scoped key the operation used.
func (b *AuditBuilder) UserKey(key *Key) *AuditBuilder {
	if key == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := key.ID
	b.userKey = &id
	b.trail = append(b.trail, AuditSubject{Kind: AuditKindUserKey, ID: string(id)})
	return b
}

// Trail returns a copy of the participants in resolution order.
func (b *AuditBuilder) Trail() []AuditSubject {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]AuditSubject(nil), b.trail...)
}

// Build finalizes the builder into an Audit. It succeeds once.
func (b *AuditBuilder) Build(auditType string, data any, now time.Time) (*Audit, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return nil, ErrAuditFinalized()
	}
	b.finalized = true

	return &Audit{
		ID:        kernel.NewNonce(),
		CreatedAt: now.UTC(),
		Meta:      b.meta,
		Type:      auditType,
		Data:      raw,
		KeyID:     b.key,
		ServiceID: b.service,
		UserID:    b.user,
		UserKeyID: b.userKey,
		Trail:     append([]AuditSubject(nil), b.trail...),
	}, nil
}
