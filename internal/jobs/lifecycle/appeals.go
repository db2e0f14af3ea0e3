package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
)

// CloseExpiredAppeals closes appeals left undecided past the decision window.
func (j *Jobs) CloseExpiredAppeals(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.AppealDecision)
	pending := []enums.AppealStatus{enums.AppealStatusOpen, enums.AppealStatusUnderReview}

	var stale []model.Appeal
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		stale, err = tx.Appeals().List(ctx, repo.AppealFilter{Statuses: pending, CreatedBefore: &cutoff, Limit: j.batch}, false)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list stale appeals: %w", err)
	}

	changed := 0
	var errs []error
	for _, a := range stale {
		closed := false
		err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			closed = false
			appeal, err := tx.Appeals().GetByCase(ctx, a.CaseNumber, true)
			if err != nil {
				return err
			}
			if appeal.Status.Final() || !appeal.CreatedAt.Before(cutoff) {
				return nil
			}
			now := j.now().UTC()
			appeal.Status = enums.AppealStatusClosed
			appeal.UpdatedAt = now
			if err := tx.Appeals().Update(ctx, appeal); err != nil {
				return err
			}
			closed = true
			return tx.Appeals().AppendEvent(ctx, model.TimelineEvent{
				SubjectID: appeal.ID,
				Event:     enums.TimelineExpired,
				Status:    string(appeal.Status),
				CreatedAt: now,
			})
		})
		if err != nil {
			errs = append(errs, j.itemFailed(JobCloseExpiredAppeals, "appeal_id", a.ID, err))
			continue
		}
		if closed {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// FinalizePermBans closes the appeal window of permanent bans. A ban with an
// accepted appeal is already revoked; one with an appeal still pending waits.
func (j *Jobs) FinalizePermBans(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.PBNAppeal)

	var due []model.Sanction
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		due, err = tx.Sanctions().ListActiveEnforcedBefore(ctx, []enums.SanctionAction{enums.SanctionPermBan}, cutoff, j.batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list perm bans: %w", err)
	}

	changed := 0
	var errs []error
	for _, s := range due {
		finalized := false
		err := j.orch.Atomic(ctx, func(ctx context.Context, tx repo.Tx, _ *enforcement.Effects) error {
			finalized = false
			locked, err := tx.Users().TryLock(ctx, s.UserID)
			if err != nil || !locked {
				return err
			}
			active, ok, err := tx.Sanctions().GetActive(ctx, s.UserID)
			if err != nil {
				return err
			}
			if !ok || active.ID != s.ID {
				return nil
			}
			appeals, err := tx.Appeals().List(ctx, repo.AppealFilter{
				ReportID: &s.ReportID,
				Statuses: []enums.AppealStatus{
					enums.AppealStatusOpen,
					enums.AppealStatusUnderReview,
					enums.AppealStatusAccepted,
					enums.AppealStatusAcceptedRelated,
				},
				Limit: 1,
			}, false)
			if err != nil {
				return err
			}
			if len(appeals) > 0 {
				j.logger.Debug("perm ban has an open or accepted appeal", zap.String("sanction_id", s.ID.String()))
				return nil
			}
			finalized = true
			return j.orch.FinalizePermBan(ctx, tx, active)
		})
		if err != nil {
			errs = append(errs, j.itemFailed(JobFinalizePermBans, "sanction_id", s.ID, err))
			continue
		}
		if finalized {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// FinalizeContentBans makes content bans final once the content appeal
// window has passed without a pending appeal. Content held by an active
// permanent ban is left to FinalizePermBans.
func (j *Jobs) FinalizeContentBans(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.windows.ContentAppeal)

	var banned []model.Content
	err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		banned, err = tx.Contents().ListBannedBefore(ctx, cutoff, j.batch)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list banned content: %w", err)
	}

	changed := 0
	var errs []error
	for _, c := range banned {
		finalized := false
		err := j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			finalized = false
			content, err := tx.Contents().Get(ctx, c.Type, c.ID)
			if err != nil {
				return err
			}
			if content.Status != enums.ContentStatusBanned || content.IsBanFinal {
				return nil
			}
			pending, err := j.orch.HasPendingAppeal(ctx, tx, c.Type, c.ID)
			if err != nil || pending {
				return err
			}
			held, err := j.orch.HeldByPermBan(ctx, tx, content)
			if err != nil || held {
				return err
			}
			finalized = true
			return tx.Contents().SetBanFinal(ctx, c.Type, c.ID, j.now().UTC())
		})
		if err != nil {
			errs = append(errs, j.itemFailed(JobFinalizeContentBans, "content_id", c.ID, err))
			continue
		}
		if finalized {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}
