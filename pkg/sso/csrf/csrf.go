// Package csrf issues and consumes single-use references bound to a service.
package csrf

import (
	"context"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/sso"
)

// Observer receives consumption outcomes, for metrics.
type Observer interface {
	CsrfConsumed(found bool)
}

// Register issues and consumes CSRF entries through a store.
type Register struct {
	store    sso.CsrfStore
	now      func() time.Time
	observer Observer
}

type Option func(*Register)

func WithClock(now func() time.Time) Option {
	return func(r *Register) { r.now = now }
}

func WithObserver(o Observer) Option {
	return func(r *Register) { r.observer = o }
}

func NewRegister(store sso.CsrfStore, opts ...Option) *Register {
	r := &Register{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create persists a fresh entry for serviceID that expires after expiresIn.
func (r *Register) Create(ctx context.Context, serviceID kernel.ServiceID, expiresIn time.Duration) (*sso.Csrf, error) {
	now := r.now().UTC()
	entry := &sso.Csrf{
		Key:       kernel.NewNonce(),
		Value:     kernel.NewNonce(),
		ServiceID: serviceID,
		ExpiresAt: now.Add(expiresIn),
		CreatedAt: now,
	}
	if err := r.store.CsrfCreate(ctx, entry); err != nil {
		return nil, sso.DriverError(err)
	}
	return entry, nil
}

// Consume atomically removes the entry for key owned by serviceID and returns
// it. Absent, expired and foreign entries all yield (nil, nil), and a foreign
// entry stays available to its owner.
func (r *Register) Consume(ctx context.Context, serviceID kernel.ServiceID, key string) (*sso.Csrf, error) {
	if key == "" {
		r.observe(false)
		return nil, nil
	}
	entry, err := r.store.CsrfConsume(ctx, serviceID, key)
	if err != nil {
		return nil, sso.DriverError(err)
	}
	if entry == nil || entry.Expired(r.now()) {
		r.observe(false)
		return nil, nil
	}
	r.observe(true)
	return entry, nil
}

// Take consumes key and requires it to exist and belong to serviceID.
func (r *Register) Take(ctx context.Context, serviceID kernel.ServiceID, key string) (*sso.Csrf, error) {
	entry, err := r.Consume(ctx, serviceID, key)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.ServiceID != serviceID {
		return nil, sso.ErrCsrfNotFoundOrUsed()
	}
	return entry, nil
}

// Sweep deletes expired entries that were never consumed.
func (r *Register) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.CsrfDeleteExpired(ctx, r.now().UTC())
	if err != nil {
		return 0, sso.DriverError(err)
	}
	if n > 0 {
		logx.WithField("deleted", n).Debug("csrf: swept expired entries")
	}
	return n, nil
}

func (r *Register) observe(found bool) {
	if r.observer != nil {
		r.observer.CsrfConsumed(found)
	}
}
