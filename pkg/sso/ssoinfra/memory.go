// Package ssoinfra implements sso.Driver over Postgres and in memory.
package ssoinfra

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
)

// MemoryDriver keeps all state in process. It is used by tests and by
// single-process development setups; nothing survives a restart.
type MemoryDriver struct {
	mu       sync.RWMutex
	services map[kernel.ServiceID]sso.Service
	users    map[kernel.UserID]sso.User
	keys     map[kernel.KeyID]sso.Key
	csrf     map[string]sso.Csrf
	audits   []sso.Audit
	now      func() time.Time
}

var _ sso.Driver = (*MemoryDriver)(nil)

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		services: make(map[kernel.ServiceID]sso.Service),
		users:    make(map[kernel.UserID]sso.User),
		keys:     make(map[kernel.KeyID]sso.Key),
		csrf:     make(map[string]sso.Csrf),
		now:      time.Now,
	}
}

func (d *MemoryDriver) ServiceCreate(_ context.Context, service *sso.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[service.ID] = *service
	return nil
}

func (d *MemoryDriver) ServiceRead(_ context.Context, id kernel.ServiceID) (*sso.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (d *MemoryDriver) ServiceUpdate(_ context.Context, service *sso.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.services[service.ID]; !ok {
		return sso.ErrServiceNotFound()
	}
	service.UpdatedAt = d.now().UTC()
	d.services[service.ID] = *service
	return nil
}

func (d *MemoryDriver) ServiceList(_ context.Context, opts kernel.PaginationOptions) ([]sso.Service, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	all := make([]sso.Service, 0, len(d.services))
	for _, s := range d.services {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return createdBefore(all[i].CreatedAt, all[j].CreatedAt, string(all[i].ID), string(all[j].ID))
	})
	return page(all, opts), len(all), nil
}

func (d *MemoryDriver) ServiceDelete(_ context.Context, id kernel.ServiceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.services[id]; !ok {
		return sso.ErrServiceNotFound()
	}
	for kid, k := range d.keys {
		if sid, ok := k.ServiceID(); ok && sid == id {
			delete(d.keys, kid)
		}
	}
	for key, c := range d.csrf {
		if c.ServiceID == id {
			delete(d.csrf, key)
		}
	}
	delete(d.services, id)
	return nil
}

func (d *MemoryDriver) UserCreate(_ context.Context, user *sso.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == user.Email {
			return sso.ErrUserEmailConflict()
		}
	}
	d.users[user.ID] = *user
	return nil
}

func (d *MemoryDriver) UserRead(_ context.Context, read sso.UserRead) (*sso.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if read.ID != "" {
		u, ok := d.users[read.ID]
		if !ok {
			return nil, nil
		}
		return &u, nil
	}
	for _, u := range d.users {
		if u.Email == read.Email {
			return &u, nil
		}
	}
	return nil, nil
}

func (d *MemoryDriver) UserUpdate(_ context.Context, user *sso.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.users[user.ID]
	if !ok {
		return sso.ErrUserNotFound()
	}
	for id, u := range d.users {
		if id != user.ID && u.Email == user.Email {
			return sso.ErrUserEmailConflict()
		}
	}
	current.Name = user.Name
	current.Email = user.Email
	current.Enabled = user.Enabled
	current.UpdatedAt = d.now().UTC()
	d.users[user.ID] = current
	*user = current
	return nil
}

func (d *MemoryDriver) UserUpdatePassword(_ context.Context, id kernel.UserID, hash string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return 0, sso.ErrUserNotFound()
	}
	u.PasswordHash = &hash
	u.PasswordRevision++
	u.UpdatedAt = d.now().UTC()
	d.users[id] = u
	return u.PasswordRevision, nil
}

func (d *MemoryDriver) UserList(_ context.Context, opts kernel.PaginationOptions) ([]sso.User, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	all := make([]sso.User, 0, len(d.users))
	for _, u := range d.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool {
		return createdBefore(all[i].CreatedAt, all[j].CreatedAt, string(all[i].ID), string(all[j].ID))
	})
	return page(all, opts), len(all), nil
}

func (d *MemoryDriver) UserDelete(_ context.Context, id kernel.UserID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return sso.ErrUserNotFound()
	}
	for kid, k := range d.keys {
		if s, ok := k.Scope.(sso.UserScope); ok && s.UserID == id {
			delete(d.keys, kid)
		}
	}
	delete(d.users, id)
	return nil
}

func (d *MemoryDriver) KeyCreate(_ context.Context, key *sso.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key.ID] = *key
	return nil
}

func (d *MemoryDriver) KeyRead(_ context.Context, read sso.KeyRead) (*sso.Key, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matches []sso.Key
	for _, k := range d.keys {
		if keyMatches(k, read) {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Usable() != matches[j].Usable() {
			return matches[i].Usable()
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	k := matches[0]
	return &k, nil
}

func keyMatches(k sso.Key, read sso.KeyRead) bool {
	switch r := read.(type) {
	case sso.KeyReadID:
		return k.ID == r.ID
	case sso.KeyReadRootValue:
		_, root := k.Scope.(sso.RootScope)
		return root && k.Usable() && k.Value == r.Value
	case sso.KeyReadServiceValue:
		_, svc := k.Scope.(sso.ServiceScope)
		return svc && k.Usable() && k.Value == r.Value
	case sso.KeyReadUserID:
		s, ok := k.Scope.(sso.UserScope)
		return ok && s.ServiceID == r.ServiceID && s.UserID == r.UserID && k.Type == r.Type
	case sso.KeyReadUserValue:
		s, ok := k.Scope.(sso.UserScope)
		return ok && s.ServiceID == r.ServiceID && k.Value == r.Value && k.Type == r.Type
	}
	return false
}

func (d *MemoryDriver) KeyUpdate(_ context.Context, key *sso.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.keys[key.ID]
	if !ok {
		return sso.ErrKeyNotFound()
	}
	current.Name = key.Name
	current.Enabled = key.Enabled
	current.Revoked = current.Revoked || key.Revoked
	current.UpdatedAt = d.now().UTC()
	d.keys[key.ID] = current
	*key = current
	return nil
}

func (d *MemoryDriver) KeyRevokeUser(_ context.Context, id kernel.UserID) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for kid, k := range d.keys {
		if s, ok := k.Scope.(sso.UserScope); ok && s.UserID == id && !k.Revoked {
			k.Revoked = true
			k.UpdatedAt = d.now().UTC()
			d.keys[kid] = k
			n++
		}
	}
	return n, nil
}

func (d *MemoryDriver) KeyList(_ context.Context, list sso.KeyList) ([]sso.Key, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var all []sso.Key
	for _, k := range d.keys {
		serviceID, userID := sso.ScopeColumns(k.Scope)
		if list.ServiceID != nil && (serviceID == nil || *serviceID != *list.ServiceID) {
			continue
		}
		if list.UserID != nil && (userID == nil || *userID != *list.UserID) {
			continue
		}
		all = append(all, k)
	}
	sort.Slice(all, func(i, j int) bool {
		return createdBefore(all[i].CreatedAt, all[j].CreatedAt, string(all[i].ID), string(all[j].ID))
	})
	return page(all, list.PaginationOptions), len(all), nil
}

func (d *MemoryDriver) CsrfCreate(_ context.Context, csrf *sso.Csrf) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.csrf[csrf.Key] = *csrf
	return nil
}

func (d *MemoryDriver) CsrfConsume(_ context.Context, serviceID kernel.ServiceID, key string) (*sso.Csrf, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.csrf[key]
	if !ok || c.ServiceID != serviceID {
		return nil, nil
	}
	delete(d.csrf, key)
	return &c, nil
}

func (d *MemoryDriver) CsrfDeleteExpired(_ context.Context, now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for k, c := range d.csrf {
		if c.Expired(now) {
			delete(d.csrf, k)
			n++
		}
	}
	return n, nil
}

func (d *MemoryDriver) AuditCreate(_ context.Context, audit *sso.Audit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audits = append(d.audits, *audit)
	return nil
}

func (d *MemoryDriver) AuditRead(_ context.Context, id string) (*sso.Audit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.audits {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (d *MemoryDriver) AuditList(_ context.Context, list sso.AuditList) ([]sso.Audit, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var all []sso.Audit
	for i := len(d.audits) - 1; i >= 0; i-- {
		a := d.audits[i]
		if list.ServiceID != nil && (a.ServiceID == nil || *a.ServiceID != *list.ServiceID) {
			continue
		}
		if list.UserID != nil && (a.UserID == nil || *a.UserID != *list.UserID) {
			continue
		}
		if list.Type != "" && a.Type != list.Type {
			continue
		}
		all = append(all, a)
	}
	return page(all, list.PaginationOptions), len(all), nil
}

// Audits returns a copy of the recorded audit entries.
func (d *MemoryDriver) Audits() []sso.Audit {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]sso.Audit(nil), d.audits...)
}

func createdBefore(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aID < bID
}

// page cuts the selected page out of items, which must already be ordered.
func page[T any](items []T, opts kernel.PaginationOptions) []T {
	opts = opts.Normalize()
	start, end := opts.Window(len(items))
	return append([]T(nil), items[start:end]...)
}
