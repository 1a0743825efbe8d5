// cmd/container.go
//
// Composition root. Owns the infrastructure (DB, Redis, email provider,
// metrics, scheduler) and composes the SSO module container.
package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mojzu/mz/pkg/config"
	"github.com/mojzu/mz/pkg/logx"
	"github.com/mojzu/mz/pkg/notifx"
	"github.com/mojzu/mz/pkg/notifx/notifxconsole"
	"github.com/mojzu/mz/pkg/notifx/notifxses"
	"github.com/mojzu/mz/pkg/obsx"
	"github.com/mojzu/mz/pkg/sso/ssocontainer"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Container holds shared infrastructure and the composed module containers.
type Container struct {
	Config *config.Config

	DB      *sqlx.DB
	Redis   *redis.Client
	Email   notifx.EmailSender
	Metrics *obsx.Metrics
	Cron    *cron.Cron

	SSO *ssocontainer.Container

	jobsDone chan struct{}
}

func NewContainer(ctx context.Context, cfg *config.Config) *Container {
	logx.Info("Initializing application container...")

	c := &Container{Config: cfg}
	c.initInfrastructure(ctx)
	c.initModules(ctx)
	c.initSchedules(ctx)

	logx.Info("Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) {
	// 1. Database
	if c.Config.Database.URL != "" {
		db, err := sqlx.Connect("postgres", c.Config.Database.URL)
		if err != nil {
			logx.Fatalf("Failed to connect to database: %v", err)
		}
		db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
		db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
		c.DB = db
		logx.Info("  Database connected")
	}

	// 2. Redis
	if c.Config.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.Redis.Addr,
			Password: c.Config.Redis.Password,
			DB:       c.Config.Redis.DB,
		})
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			if c.Config.Auth.CsrfStore == "redis" {
				logx.Fatalf("Failed to connect to Redis: %v (required by CSRF_STORE=redis)", err)
			}
			logx.Warnf("Redis unavailable, falling back to in-memory jobs: %v", err)
			_ = c.Redis.Close()
			c.Redis = nil
		} else {
			logx.Info("  Redis connected")
		}
	}

	// 3. Email
	switch c.Config.Notifx.Provider {
	case "ses":
		provider, err := notifxses.NewFromRegion(ctx, c.Config.Notifx.AWSRegion, c.Config.Notifx.FromAddress)
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.Email = provider
		logx.Infof("  SES email provider configured (region: %s)", c.Config.Notifx.AWSRegion)
	default:
		c.Email = notifxconsole.NewConsoleProvider(logx.GetDefaultLogger())
		logx.Info("  Console email provider configured")
	}

	// 4. Metrics
	c.Metrics = obsx.NewMetrics(nil)
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func (c *Container) initModules(ctx context.Context) {
	sso, err := ssocontainer.New(ssocontainer.Deps{
		DB:      c.DB,
		Redis:   c.Redis,
		Cfg:     c.Config,
		Email:   c.Email,
		Metrics: c.Metrics,
	})
	if err != nil {
		logx.Fatalf("Failed to initialize SSO module: %v", err)
	}
	if c.Config.Database.Migrate {
		if err := sso.Migrate(ctx); err != nil {
			logx.Fatalf("Failed to migrate database: %v", err)
		}
	}
	c.SSO = sso
}

func (c *Container) initSchedules(ctx context.Context) {
	c.Cron = cron.New()
	_, err := c.Cron.AddFunc(c.Config.Auth.CsrfSweepSchedule, func() {
		c.SSO.SweepCsrf(ctx)
	})
	if err != nil {
		logx.Fatalf("Invalid CSRF_SWEEP_SCHEDULE %q: %v", c.Config.Auth.CsrfSweepSchedule, err)
	}
}

// Start runs the scheduler and the job workers until ctx is cancelled.
func (c *Container) Start(ctx context.Context) {
	c.Cron.Start()
	c.jobsDone = make(chan struct{})
	go func() {
		defer close(c.jobsDone)
		if err := c.SSO.Jobs.Start(ctx); err != nil {
			logx.WithError(err).Error("job worker stopped")
		}
	}()
}

// Cleanup releases infrastructure. The context passed to Start must be
// cancelled first.
func (c *Container) Cleanup() {
	logx.Info("Cleaning up resources...")
	if c.jobsDone != nil {
		<-c.jobsDone
	}
	if c.Cron != nil {
		<-c.Cron.Stop().Done()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		}
	}
}
