// Package lifecycle holds the periodic jobs that move time-dependent state
// forward. Every job is safe to repeat: it re-checks each row inside its own
// short transaction and skips rows another transaction is holding.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
)

const (
	defaultBatchSize = 500
	decayMarkerTTL   = 100 * 24 * time.Hour
)

type Windows struct {
	PBNAppeal           time.Duration
	ContentAppeal       time.Duration
	AppealDecision      time.Duration
	Inactivity          time.Duration
	DeleteAfterInactive time.Duration
	DeactivationGrace   time.Duration
	Decay               time.Duration
}

type MarkerStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Dependencies struct {
	Store        repo.Store
	Orchestrator *enforcement.Orchestrator
	Markers      MarkerStore
	Windows      Windows
	BatchSize    int
	Logger       *zap.Logger
	Now          func() time.Time
}

type Jobs struct {
	store   repo.Store
	orch    *enforcement.Orchestrator
	markers MarkerStore
	windows Windows
	batch   int
	logger  *zap.Logger
	now     func() time.Time
}

func New(deps Dependencies) *Jobs {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Jobs{
		store:   deps.Store,
		orch:    deps.Orchestrator,
		markers: deps.Markers,
		windows: deps.Windows,
		batch:   batch,
		logger:  logger,
		now:     now,
	}
}

// RemoveRestriction expires partial and full restrictions whose time is up.
func (j *Jobs) RemoveRestriction(ctx context.Context) (int, error) {
	return j.expire(ctx, JobRemoveRestriction, []enums.SanctionAction{enums.SanctionPartialRestrict, enums.SanctionFullRestrict})
}

// RemoveTempBan expires temporary bans whose time is up.
func (j *Jobs) RemoveTempBan(ctx context.Context) (int, error) {
	return j.expire(ctx, JobRemoveTempBan, []enums.SanctionAction{enums.SanctionTempBan})
}

func (j *Jobs) expire(ctx context.Context, job string, statuses []enums.SanctionAction) (int, error) {
	now := j.now().UTC()

	var ended []model.Sanction
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		ended, err = tx.Sanctions().ListActiveEndedBy(ctx, statuses, now, j.batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list ended sanctions: %w", err)
	}

	changed := 0
	var errs []error
	for _, s := range ended {
		done := false
		err := j.orch.Atomic(ctx, func(ctx context.Context, tx repo.Tx, fx *enforcement.Effects) error {
			done = false
			locked, err := tx.Users().TryLock(ctx, s.UserID)
			if err != nil || !locked {
				return err
			}
			active, ok, err := tx.Sanctions().GetActive(ctx, s.UserID)
			if err != nil {
				return err
			}
			if !ok || active.ID != s.ID || active.EndsAt().After(j.now().UTC()) {
				return nil
			}
			done = true
			return j.orch.Queue().Expire(ctx, tx, active, j.orch.Commit(fx))
		})
		if err != nil {
			errs = append(errs, j.itemFailed(job, "sanction_id", s.ID, err))
			continue
		}
		if done {
			changed++
		}
	}

	promoted, err := j.promoteDue(ctx, job)
	if err != nil {
		errs = append(errs, err)
	}
	return changed + promoted, errors.Join(errs...)
}

// promoteDue activates queued sanctions that are due for users with nothing
// active, which happens when an expiry ran before the queue caught up.
func (j *Jobs) promoteDue(ctx context.Context, job string) (int, error) {
	now := j.now().UTC()

	var users []uuid.UUID
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		users, err = tx.Sanctions().ListUsersWithDueQueue(ctx, now, j.batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list users with due sanctions: %w", err)
	}

	changed := 0
	var errs []error
	for _, userID := range users {
		promoted := false
		err := j.orch.Atomic(ctx, func(ctx context.Context, tx repo.Tx, fx *enforcement.Effects) error {
			locked, err := tx.Users().TryLock(ctx, userID)
			if err != nil || !locked {
				return err
			}
			promoted, err = j.orch.Queue().PromoteDue(ctx, tx, userID, j.orch.Commit(fx))
			return err
		})
		if err != nil {
			errs = append(errs, j.itemFailed(job, "user_id", userID, err))
			continue
		}
		if promoted {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// InactivateIdle marks active users with no recent activity as inactive.
func (j *Jobs) InactivateIdle(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.Inactivity)
	return j.moveUsers(ctx, JobInactivateIdle,
		func(ctx context.Context, tx repo.Tx) ([]uuid.UUID, error) {
			return tx.Users().ListIDsActiveBefore(ctx, []enums.UserStatus{enums.UserStatusActive}, cutoff, j.batch)
		},
		func(user model.User) bool {
			return user.Status == enums.UserStatusActive && user.LastActiveAt.Before(cutoff)
		},
		enums.UserStatusInactive,
	)
}

// ScheduleDeleteIdle schedules very long idle accounts for deletion.
func (j *Jobs) ScheduleDeleteIdle(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.DeleteAfterInactive)
	statuses := []enums.UserStatus{enums.UserStatusActive, enums.UserStatusInactive}
	return j.moveUsers(ctx, JobScheduleDeleteIdle,
		func(ctx context.Context, tx repo.Tx) ([]uuid.UUID, error) {
			return tx.Users().ListIDsActiveBefore(ctx, statuses, cutoff, j.batch)
		},
		func(user model.User) bool {
			return (user.Status == enums.UserStatusActive || user.Status == enums.UserStatusInactive) && user.LastActiveAt.Before(cutoff)
		},
		enums.UserStatusPendingDeleteInact,
	)
}

// DeleteAfterGrace deletes accounts that sat in a pending-delete status past
// the grace window.
func (j *Jobs) DeleteAfterGrace(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.DeactivationGrace)
	statuses := []enums.UserStatus{
		enums.UserStatusPendingDeleteKeep,
		enums.UserStatusPendingDeleteHide,
		enums.UserStatusPendingDeleteInact,
		enums.UserStatusPendingDeleteBan,
	}
	return j.moveUsers(ctx, JobDeleteAfterGrace,
		func(ctx context.Context, tx repo.Tx) ([]uuid.UUID, error) {
			return tx.Users().ListIDsStatusChangedBefore(ctx, statuses, cutoff, j.batch)
		},
		func(user model.User) bool {
			for _, s := range statuses {
				if user.Status == s {
					return user.StatusChangedAt.Before(cutoff)
				}
			}
			return false
		},
		enums.UserStatusDeleted,
	)
}

func (j *Jobs) moveUsers(
	ctx context.Context,
	job string,
	list func(ctx context.Context, tx repo.Tx) ([]uuid.UUID, error),
	eligible func(model.User) bool,
	target enums.UserStatus,
) (int, error) {
	var ids []uuid.UUID
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		ids, err = list(ctx, tx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	changed := 0
	var errs []error
	for _, id := range ids {
		moved := false
		err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			moved = false
			locked, err := tx.Users().TryLock(ctx, id)
			if err != nil || !locked {
				return err
			}
			user, err := tx.Users().Get(ctx, id)
			if err != nil {
				return err
			}
			if !eligible(user) {
				return nil
			}
			moved = true
			if target == enums.UserStatusDeleted {
				return tx.Users().MarkDeleted(ctx, id, j.now().UTC())
			}
			return tx.Users().UpdateStatus(ctx, id, target, j.now().UTC())
		})
		if err != nil {
			errs = append(errs, j.itemFailed(job, "user_id", id, err))
			continue
		}
		if moved {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

func (j *Jobs) itemFailed(job, key string, id uuid.UUID, err error) error {
	j.logger.Warn("job item failed", zap.String("job", job), zap.String(key, id.String()), zap.Error(err))
	return fmt.Errorf("%s %s: %w", key, id, err)
}
