package ssocontainer

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mojzu/mz/pkg/config"
	"github.com/mojzu/mz/pkg/jobx"
	"github.com/mojzu/mz/pkg/jobx/jobxredis"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/notifx"
	"github.com/mojzu/mz/pkg/obsx"
	"github.com/mojzu/mz/pkg/sso"
	"github.com/mojzu/mz/pkg/sso/auth"
	"github.com/mojzu/mz/pkg/sso/auth/authinfra"
	"github.com/mojzu/mz/pkg/sso/csrf"
	"github.com/mojzu/mz/pkg/sso/csrf/csrfinfra"
	"github.com/mojzu/mz/pkg/sso/password"
	"github.com/mojzu/mz/pkg/sso/password/passwordinfra"
	"github.com/mojzu/mz/pkg/sso/ssoapi"
	"github.com/mojzu/mz/pkg/sso/ssoinfra"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Deps: what the SSO module needs from the process.
// ---------------------------------------------------------------------------

type Deps struct {
	// DB selects the Postgres driver. Nil keeps everything in memory.
	DB *sqlx.DB
	// Redis backs the job queue and, with CSRF_STORE=redis, the CSRF register.
	// Nil keeps jobs in memory.
	Redis *redis.Client
	Cfg   *config.Config

	// Email delivers rendered notifications.
	Email notifx.EmailSender
	// Metrics is optional.
	Metrics *obsx.Metrics
}

// ---------------------------------------------------------------------------
// Container: the parts cmd/ needs.
// ---------------------------------------------------------------------------

type Container struct {
	Driver    sso.Driver
	Register  *csrf.Register
	Evaluator *password.Evaluator
	Jobs      *jobx.Client
	Email     *notifx.Client
	Service   *auth.Service
	AuditSink *authinfra.LogxAuditSink
	Handler   *ssoapi.Handler

	postgres *ssoinfra.PostgresDriver
}

// New builds the dependency graph: storage, then policies, then the auth
// service, then transport.
func New(deps Deps) (*Container, error) {
	logx.Info("Initializing SSO container...")
	cfg := deps.Cfg
	c := &Container{}

	// Storage

	if deps.DB != nil {
		c.postgres = ssoinfra.NewPostgresDriver(deps.DB)
		c.Driver = c.postgres
		logx.Info("  Using Postgres driver")
	} else {
		c.Driver = ssoinfra.NewMemoryDriver()
		logx.Warn("  Using in-memory driver, data is lost on restart")
	}

	csrfStore, err := newCsrfStore(cfg.Auth.CsrfStore, c.Driver, deps.Redis)
	if err != nil {
		return nil, err
	}

	var csrfOpts []csrf.Option
	var pwOpts []password.Option
	var authOpts []auth.Option
	jobOpts := []jobx.WorkerOption{
		jobx.WithQueues(cfg.Jobx.Queue),
		jobx.WithConcurrency(cfg.Jobx.Concurrency),
		jobx.WithMaxAttempts(cfg.Jobx.MaxAttempts),
		jobx.WithDequeueTimeout(cfg.Jobx.PollTimeout),
		jobx.WithRetryBackoff(cfg.Jobx.RetryBackoff),
	}
	if deps.Metrics != nil {
		csrfOpts = append(csrfOpts, csrf.WithObserver(deps.Metrics))
		pwOpts = append(pwOpts, password.WithObserver(deps.Metrics))
		authOpts = append(authOpts, auth.WithObserver(deps.Metrics))
		jobOpts = append(jobOpts, jobx.WithObserver(deps.Metrics))
	}

	c.Register = csrf.NewRegister(csrfStore, csrfOpts...)

	// Password policy

	if cfg.Auth.PasswordPwnedEnabled {
		pwOpts = append(pwOpts, password.WithPwned(passwordinfra.NewHTTPClient(passwordinfra.Config{
			URL:       cfg.Auth.PwnedURL,
			Timeout:   cfg.Auth.PwnedTimeout,
			CacheSize: cfg.Auth.PwnedCacheSize,
			CacheTTL:  cfg.Auth.PwnedCacheTTL,
		})))
		logx.Info("  Pwned passwords check enabled")
	}
	c.Evaluator = password.NewEvaluator(pwOpts...)

	// Notifications

	var queue jobx.Queue
	if deps.Redis != nil {
		queue = jobxredis.NewRedisQueue(deps.Redis)
		logx.Info("  Using Redis job queue")
	} else {
		queue = jobx.NewMemoryQueue()
		logx.Warn("  Using in-memory job queue")
	}
	c.Jobs = jobx.NewClient(queue, jobOpts...)

	c.Email = notifx.NewClient(deps.Email, notifx.WithFrom(cfg.Notifx.FromAddress, cfg.Notifx.FromName))
	if err := authinfra.RegisterTemplates(c.Email); err != nil {
		return nil, err
	}
	authinfra.NewNotifyWorker(c.Email).Register(c.Jobs)

	// Auth

	c.Service = auth.NewService(
		c.Driver,
		c.Register,
		c.Evaluator,
		authinfra.NewQueueNotifier(c.Jobs),
		auth.Config{
			TokenExpires:        cfg.Auth.TokenExpires,
			AccessTokenExpires:  cfg.Auth.AccessTokenExpires,
			RefreshTokenExpires: cfg.Auth.RefreshTokenExpires,
		},
		authOpts...,
	)
	c.AuditSink = authinfra.NewLogxAuditSink(c.Driver)

	// Transport

	var apiOpts []ssoapi.Option
	if deps.Metrics != nil {
		apiOpts = append(apiOpts, ssoapi.WithRecorder(deps.Metrics))
		if cfg.Server.MetricsEnabled {
			apiOpts = append(apiOpts, ssoapi.WithMetricsHandler(deps.Metrics.Handler()))
		}
	}
	c.Handler = ssoapi.NewHandler(c.Service, c.AuditSink, apiOpts...)

	logx.Info("SSO container initialized")
	return c, nil
}

// Migrate creates the Postgres schema. It does nothing for the memory driver.
func (c *Container) Migrate(ctx context.Context) error {
	if c.postgres == nil {
		return nil
	}
	return c.postgres.Migrate(ctx)
}

// SweepCsrf deletes expired CSRF entries.
func (c *Container) SweepCsrf(ctx context.Context) {
	n, err := c.Register.Sweep(ctx)
	if err != nil {
		logx.WithError(err).Error("csrf sweep failed")
		return
	}
	if n > 0 {
		logx.WithField("deleted", n).Info("csrf sweep")
	}
}

// newCsrfStore picks the CSRF store named by CSRF_STORE. A redis store
// without a Redis client is a startup error, never a silent fallback.
func newCsrfStore(kind string, driver sso.Driver, rdb *redis.Client) (sso.CsrfStore, error) {
	switch kind {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("CSRF_STORE=redis requires a Redis connection")
		}
		logx.Info("  Using Redis CSRF store")
		return csrfinfra.NewRedisStore(rdb), nil
	case "memory":
		logx.Warn("  Using in-memory CSRF store, entries are lost on restart")
		return ssoinfra.NewMemoryDriver(), nil
	case "postgres", "":
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown CSRF_STORE %q", kind)
	}
}
