// Package csrfinfra holds CSRF stores that live outside the main driver.
package csrfinfra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mojzu/mz/pkg/kernel"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps CSRF entries as JSON values with a TTL under a key that
// names the owning service. Consumption uses GETDEL on that key, so a lookup
// from another service cannot reach the entry and a key is handed out at
// most once.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "mz:csrf:", now: time.Now}
}

func (s *RedisStore) key(serviceID kernel.ServiceID, k string) string {
	return s.prefix + serviceID.String() + ":" + k
}

func (s *RedisStore) CsrfCreate(ctx context.Context, csrf *sso.Csrf) error {
	ttl := csrf.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Already expired, nothing could ever consume it.
		return nil
	}
	data, err := json.Marshal(csrf)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.key(csrf.ServiceID, csrf.Key), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("csrf: key collision")
	}
	return nil
}

func (s *RedisStore) CsrfConsume(ctx context.Context, serviceID kernel.ServiceID, key string) (*sso.Csrf, error) {
	data, err := s.rdb.GetDel(ctx, s.key(serviceID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var csrf sso.Csrf
	if err := json.Unmarshal(data, &csrf); err != nil {
		return nil, err
	}
	return &csrf, nil
}

// CsrfDeleteExpired is a no-op, Redis expires entries itself.
func (s *RedisStore) CsrfDeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
