package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivankudzin/trustsafety/internal/app/core"
	"github.com/ivankudzin/trustsafety/internal/config"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	core       *core.Core
	httpRouter http.Handler

	ctx    context.Context
	cancel context.CancelFunc
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	c, err := core.New(ctx, cfg, log, core.Options{})
	if err != nil {
		return nil, err
	}
	return NewWithCore(ctx, cfg, log, c)
}

// NewWithCore builds the HTTP surface around already wired services.
func NewWithCore(ctx context.Context, cfg config.Config, log *zap.Logger, c *core.Core) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if c == nil {
		return nil, fmt.Errorf("core is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, cfg.HTTP, log)
	RegisterRoutes(r, Dependencies{
		ReportService: c.Reports,
		AppealService: c.Appeals,
		JWT:           c.JWT,
		Resolver:      c.Resolver,
		Logger:        log,
		Config:        cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, cancel := context.WithCancel(ctx)
	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		core:       c,
		httpRouter: r,
		ctx:        runCtx,
		cancel:     cancel,
	}, nil
}

// Run serves HTTP and, when enabled, the lifecycle scheduler and the email
// worker. It returns once all of them stopped.
func (a *App) Run() error {
	g, ctx := errgroup.WithContext(a.ctx)

	if a.cfg.Scheduler.Enabled {
		g.Go(func() error {
			return a.core.Scheduler.Run(ctx)
		})
	}
	if a.cfg.Email.WorkerEnabled {
		g.Go(func() error {
			return a.core.Notifier.Run(ctx)
		})
	}
	g.Go(func() error {
		a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.cancel()

	var shutdownErr error
	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if err := a.core.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
