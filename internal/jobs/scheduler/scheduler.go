// Package scheduler runs a declarative table of periodic jobs on cron
// timers. Each tick runs under its own deadline and a tick that is still
// running when the next one fires is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/metrics"
)

const defaultTickDeadline = 30 * time.Second

// Job is one row of the table. Run reports how many rows it changed.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

type Scheduler struct {
	jobs     []Job
	deadline time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(jobs []Job, tickDeadline time.Duration, logger *zap.Logger) *Scheduler {
	if tickDeadline <= 0 {
		tickDeadline = defaultTickDeadline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, deadline: tickDeadline, logger: logger}
}

func (s *Scheduler) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

// Run schedules every job and blocks until ctx is cancelled, then waits for
// running ticks to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	cronLog := cronLogger{logger: s.logger.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.Info("scheduler job disabled", zap.String("job", job.Name))
			continue
		}
		job := job
		spec := fmt.Sprintf("@every %s", job.Interval)
		if _, err := c.AddFunc(spec, func() { s.tick(ctx, job) }); err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunOnce runs the named job immediately, outside the timers.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, error) {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.tick(ctx, job)
		}
	}
	return 0, fmt.Errorf("unknown job %q", name)
}

func (s *Scheduler) tick(ctx context.Context, job Job) (int, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	tickCtx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	started := time.Now()
	changed, err := job.Run(tickCtx)
	elapsed := time.Since(started)

	metrics.JobDuration.WithLabelValues(job.Name).Observe(elapsed.Seconds())
	if changed > 0 {
		metrics.JobItems.WithLabelValues(job.Name).Add(float64(changed))
	}

	switch {
	case err != nil && tickCtx.Err() != nil:
		metrics.JobRuns.WithLabelValues(job.Name, "deadline").Inc()
		s.logger.Warn("scheduler job hit tick deadline", zap.String("job", job.Name), zap.Duration("deadline", s.deadline), zap.Int("changed", changed), zap.Error(err))
	case err != nil:
		metrics.JobRuns.WithLabelValues(job.Name, "error").Inc()
		s.logger.Error("scheduler job failed", zap.String("job", job.Name), zap.Int("changed", changed), zap.Error(err))
	default:
		metrics.JobRuns.WithLabelValues(job.Name, "ok").Inc()
		if changed > 0 {
			s.logger.Info("scheduler job completed", zap.String("job", job.Name), zap.Int("changed", changed), zap.Duration("elapsed", elapsed))
		}
	}
	return changed, err
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
