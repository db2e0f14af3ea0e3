// Package core assembles the moderation services shared by the API server
// and the operator CLI.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/config"
	"github.com/ivankudzin/trustsafety/internal/jobs/lifecycle"
	"github.com/ivankudzin/trustsafety/internal/jobs/scheduler"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/repo/memory"
	pgrepo "github.com/ivankudzin/trustsafety/internal/repo/postgres"
	redrepo "github.com/ivankudzin/trustsafety/internal/repo/redis"
	"github.com/ivankudzin/trustsafety/internal/services/appeals"
	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
	"github.com/ivankudzin/trustsafety/internal/services/notify"
	"github.com/ivankudzin/trustsafety/internal/services/reports"
)

// Options selects the backing stores. A nil Store means postgres from the
// config DSN; a nil Redis means a client built from the config address.
type Options struct {
	Store repo.Store
	Redis *goredis.Client
	Now   func() time.Time
}

type Core struct {
	Store        repo.Store
	Postgres     *pgxpool.Pool
	Redis        *goredis.Client
	Notifier     *notify.Service
	Orchestrator *enforcement.Orchestrator
	Reports      *reports.Service
	Appeals      *appeals.Service
	Jobs         *lifecycle.Jobs
	Scheduler    *scheduler.Scheduler
	JWT          *authsvc.JWTManager
	Resolver     *authsvc.Resolver
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*Core, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Core{Store: opts.Store, Redis: opts.Redis}
	if c.Store == nil {
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		c.Postgres = pool
		c.Store = pgrepo.NewStore(pool, now)
	}
	if c.Redis == nil {
		c.Redis = redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	c.Notifier = notify.NewService(
		redrepo.NewEmailQueueRepo(c.Redis, cfg.Email.QueueKey),
		notify.LogSender{Logger: log.Named("email")},
		notify.Config{
			RetryMaxElapsed: cfg.Email.RetryMaxElapsed,
			BreakerFailures: cfg.Email.BreakerFailures,
			PopTimeout:      cfg.Email.PopTimeout,
		},
		log,
	)

	c.Orchestrator = enforcement.New(enforcement.Dependencies{
		Store:  c.Store,
		Mailer: c.Notifier,
		Windows: enforcement.Windows{
			PBNAppeal:     cfg.Windows.PBNAppeal,
			ContentAppeal: cfg.Windows.ContentAppeal,
		},
		Logger: log,
		Now:    now,
	})
	c.Reports = reports.NewService(c.Store, c.Orchestrator, log, now)
	c.Appeals = appeals.NewService(c.Store, c.Orchestrator, log, now)

	c.Jobs = lifecycle.New(lifecycle.Dependencies{
		Store:        c.Store,
		Orchestrator: c.Orchestrator,
		Markers:      redrepo.NewMarkerRepo(c.Redis, redrepo.DefaultMarkerPrefix),
		Windows: lifecycle.Windows{
			PBNAppeal:           cfg.Windows.PBNAppeal,
			ContentAppeal:       cfg.Windows.ContentAppeal,
			AppealDecision:      cfg.Windows.AppealDecision,
			Inactivity:          cfg.Windows.Inactivity,
			DeleteAfterInactive: cfg.Windows.DeleteAfterInactive,
			DeactivationGrace:   cfg.Windows.DeactivationGrace,
			Decay:               cfg.Windows.Decay,
		},
		BatchSize: cfg.Scheduler.BatchSize,
		Logger:    log,
		Now:       now,
	})
	c.Scheduler = scheduler.New(
		c.Jobs.Table(lifecycle.Intervals(cfg.Scheduler.Intervals)),
		cfg.Scheduler.TickDeadline,
		log,
	)

	c.JWT = authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	c.Resolver = authsvc.NewResolver(c.Store, cfg.Auth.EmployeeCache, cfg.Auth.EmployeeTTL)
	return c, nil
}

// MemoryStore returns an in-process store for local runs and tests.
func MemoryStore(now func() time.Time) repo.Store {
	return memory.NewStore(now)
}

func (c *Core) Close() error {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
