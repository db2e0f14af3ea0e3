// Package sanctions sequences a user's restrictions and bans so that at most
// one is active while the rest wait in enforcement order.
package sanctions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

// CommitFunc runs when a queued sanction becomes active.
type CommitFunc func(ctx context.Context, tx repo.Tx, sanction model.Sanction) error

type Queue struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewQueue(logger *zap.Logger, now func() time.Time) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Queue{logger: logger, now: now}
}

// Place inserts a sanction behind whatever the user already has. With
// nothing active or queued it starts now and is active immediately.
// The caller must hold the user lock.
func (q *Queue) Place(ctx context.Context, tx repo.Tx, sanction model.Sanction) (model.Sanction, error) {
	now := q.now().UTC()

	active, hasActive, err := tx.Sanctions().GetActive(ctx, sanction.UserID)
	if err != nil {
		return model.Sanction{}, fmt.Errorf("get active sanction: %w", err)
	}
	queued, err := tx.Sanctions().ListQueued(ctx, sanction.UserID)
	if err != nil {
		return model.Sanction{}, fmt.Errorf("list queued sanctions: %w", err)
	}

	switch {
	case len(queued) > 0:
		sanction.EnforceActionAt = queued[len(queued)-1].EndsAt()
		sanction.IsActive = false
	case hasActive:
		sanction.EnforceActionAt = active.EndsAt()
		sanction.IsActive = false
	default:
		sanction.EnforceActionAt = now
		sanction.IsActive = true
	}
	sanction.IsEnforceActionEarly = false
	sanction.ConcludedAt = nil
	sanction.IsDeleted = false

	inserted, err := tx.Sanctions().Insert(ctx, sanction)
	if err != nil {
		return model.Sanction{}, fmt.Errorf("insert sanction: %w", err)
	}
	if inserted.IsActive {
		if err := q.Impose(ctx, tx, inserted.UserID, inserted.Status); err != nil {
			return model.Sanction{}, err
		}
	}

	q.logger.Info("sanction placed",
		zap.String("sanction_id", inserted.ID.String()),
		zap.String("user_id", inserted.UserID.String()),
		zap.String("status", string(inserted.Status)),
		zap.Bool("active", inserted.IsActive),
		zap.Time("enforce_action_at", inserted.EnforceActionAt),
	)
	return inserted, nil
}

// Expire ends an active sanction whose time is up and activates the earliest
// queued sanction that is already due.
func (q *Queue) Expire(ctx context.Context, tx repo.Tx, active model.Sanction, commit CommitFunc) error {
	now := q.now().UTC()
	if err := q.conclude(ctx, tx, active, now); err != nil {
		return err
	}

	promoted, err := q.activateDue(ctx, tx, active.UserID, now, commit)
	if err != nil {
		return err
	}
	if !promoted {
		return q.Lift(ctx, tx, active.UserID)
	}
	return nil
}

// RevokeActive ends an active sanction before its time and pulls the next
// queued sanction forward to start now. The rest of the queue follows it
// back to back.
func (q *Queue) RevokeActive(ctx context.Context, tx repo.Tx, active model.Sanction, commit CommitFunc) error {
	now := q.now().UTC()
	if err := q.conclude(ctx, tx, active, now); err != nil {
		return err
	}

	queued, err := tx.Sanctions().ListQueued(ctx, active.UserID)
	if err != nil {
		return fmt.Errorf("list queued sanctions: %w", err)
	}
	if len(queued) == 0 {
		return q.Lift(ctx, tx, active.UserID)
	}

	next := queued[0]
	next.IsEnforceActionEarly = next.EnforceActionAt.After(now)
	next.EnforceActionAt = now
	if err := q.activate(ctx, tx, next, commit); err != nil {
		return err
	}
	return q.rechain(ctx, tx, queued[1:], next.EndsAt())
}

// Cancel withdraws a sanction that has not started yet. Later sanctions move
// up into its slot.
func (q *Queue) Cancel(ctx context.Context, tx repo.Tx, sanction model.Sanction) error {
	queued, err := tx.Sanctions().ListQueued(ctx, sanction.UserID)
	if err != nil {
		return fmt.Errorf("list queued sanctions: %w", err)
	}

	idx := -1
	for i, s := range queued {
		if s.ID == sanction.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	cancelled := queued[idx]
	cancelled.IsDeleted = true
	if err := tx.Sanctions().Update(ctx, cancelled); err != nil {
		return fmt.Errorf("cancel sanction: %w", err)
	}
	return q.rechain(ctx, tx, queued[idx+1:], cancelled.EnforceActionAt)
}

// PromoteDue activates the earliest due queued sanction of a user that has
// nothing active. It reports whether a sanction was activated.
func (q *Queue) PromoteDue(ctx context.Context, tx repo.Tx, userID uuid.UUID, commit CommitFunc) (bool, error) {
	if _, hasActive, err := tx.Sanctions().GetActive(ctx, userID); err != nil {
		return false, fmt.Errorf("get active sanction: %w", err)
	} else if hasActive {
		return false, nil
	}
	return q.activateDue(ctx, tx, userID, q.now().UTC(), commit)
}

// Impose moves the user into the status a sanction imposes. Deactivated and
// inactive users keep their status, except that a permanent ban overrides
// everything but pending-delete-hide. Deleted users are never touched.
func (q *Queue) Impose(ctx context.Context, tx repo.Tx, userID uuid.UUID, action enums.SanctionAction) error {
	user, err := tx.Users().Get(ctx, userID)
	if err != nil {
		return err
	}

	target := action.UserStatus()
	switch {
	case user.Status.Terminal(), user.Status == target:
		return nil
	case action == enums.SanctionPermBan && user.Status == enums.UserStatusPendingDeleteHide:
		return nil
	case action != enums.SanctionPermBan && user.Status.Masking():
		return nil
	}
	return tx.Users().UpdateStatus(ctx, userID, target, q.now().UTC())
}

// Lift returns a sanctioned user to active.
func (q *Queue) Lift(ctx context.Context, tx repo.Tx, userID uuid.UUID) error {
	user, err := tx.Users().Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Status.Sanctioned() {
		return nil
	}
	return tx.Users().UpdateStatus(ctx, userID, enums.UserStatusActive, q.now().UTC())
}

func (q *Queue) conclude(ctx context.Context, tx repo.Tx, sanction model.Sanction, now time.Time) error {
	sanction.IsActive = false
	sanction.ConcludedAt = &now
	if err := tx.Sanctions().Update(ctx, sanction); err != nil {
		return fmt.Errorf("conclude sanction: %w", err)
	}
	return nil
}

func (q *Queue) activateDue(ctx context.Context, tx repo.Tx, userID uuid.UUID, now time.Time, commit CommitFunc) (bool, error) {
	queued, err := tx.Sanctions().ListQueued(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list queued sanctions: %w", err)
	}
	if len(queued) == 0 || queued[0].EnforceActionAt.After(now) {
		return false, nil
	}
	if err := q.activate(ctx, tx, queued[0], commit); err != nil {
		return false, err
	}
	return true, nil
}

func (q *Queue) activate(ctx context.Context, tx repo.Tx, sanction model.Sanction, commit CommitFunc) error {
	sanction.IsActive = true
	if err := tx.Sanctions().Update(ctx, sanction); err != nil {
		return fmt.Errorf("activate sanction: %w", err)
	}
	if err := q.Impose(ctx, tx, sanction.UserID, sanction.Status); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(ctx, tx, sanction); err != nil {
			return err
		}
	}

	q.logger.Info("queued sanction activated",
		zap.String("sanction_id", sanction.ID.String()),
		zap.String("user_id", sanction.UserID.String()),
		zap.Bool("early", sanction.IsEnforceActionEarly),
	)
	return nil
}

func (q *Queue) rechain(ctx context.Context, tx repo.Tx, queued []model.Sanction, start time.Time) error {
	cursor := start
	for _, s := range queued {
		if !s.EnforceActionAt.Equal(cursor) {
			s.EnforceActionAt = cursor
			if err := tx.Sanctions().Update(ctx, s); err != nil {
				return fmt.Errorf("rechain sanction: %w", err)
			}
		}
		cursor = s.EndsAt()
	}
	return nil
}
