package enforcement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

// FutureCommit lands the deferred half of a queued sanction once it becomes
// active: the report resolves, flagged content is banned and the held-back
// score delta is added.
func (o *Orchestrator) FutureCommit(ctx context.Context, tx repo.Tx, fx *Effects, sanction model.Sanction) error {
	now := o.Now()

	report, err := tx.Reports().Get(ctx, sanction.ReportID)
	if err != nil {
		return fmt.Errorf("get sanction report: %w", err)
	}
	if report.Status == enums.ReportStatusFutureResolved {
		report.Status = enums.ReportStatusResolved
		report.UpdatedAt = now
		if err := tx.Reports().Update(ctx, report); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		if err := o.reportEvent(ctx, tx, report, enums.TimelineActivated, nil); err != nil {
			return err
		}
	}

	related, err := tx.Reports().ListRelatedTo(ctx, report.ID, []enums.ReportStatus{enums.ReportStatusFutureResolvedRelated}, true)
	if err != nil {
		return fmt.Errorf("list related reports: %w", err)
	}
	for _, r := range related {
		r.Status = enums.ReportStatusResolvedRelated
		r.UpdatedAt = now
		if err := tx.Reports().Update(ctx, r); err != nil {
			return fmt.Errorf("update related report: %w", err)
		}
		if err := o.reportEvent(ctx, tx, r, enums.TimelineActivated, nil); err != nil {
			return err
		}
	}

	refs, err := o.sanctionContents(ctx, tx, sanction)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		content, err := tx.Contents().Get(ctx, ref.Type, ref.ID)
		if faults.Is(err, faults.KindNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if content.Status != enums.ContentStatusFlaggedToBan {
			continue
		}
		if err := tx.Contents().UpdateStatus(ctx, ref.Type, ref.ID, enums.ContentStatusBanned, now); err != nil {
			return fmt.Errorf("ban %s: %w", ref.Type, err)
		}
	}

	delta, ok, err := tx.Scores().GetDeltaByReport(ctx, report.ID)
	if err != nil {
		return fmt.Errorf("get score delta: %w", err)
	}
	if ok && !delta.IsAdded && !delta.IsRemoved {
		score, err := tx.Scores().GetForUpdate(ctx, delta.UserID)
		if err != nil {
			return fmt.Errorf("get violation score: %w", err)
		}
		score.Add(delta.ContentType, delta.LastAddedScore)
		score.UpdatedAt = now
		if err := tx.Scores().Update(ctx, score); err != nil {
			return fmt.Errorf("update violation score: %w", err)
		}
		delta.IsAdded = true
		if err := tx.Scores().UpdateDelta(ctx, delta); err != nil {
			return fmt.Errorf("update score delta: %w", err)
		}
	}

	if sanction.Status.Ban() {
		user, err := tx.Users().Get(ctx, sanction.UserID)
		if err != nil {
			return err
		}
		fx.Email(o.banEmail(user, sanction))
	}
	fx.actions = append(fx.actions, sanction.Status)

	o.logger.Info("future sanction committed",
		zap.String("sanction_id", sanction.ID.String()),
		zap.Int64("case_number", report.CaseNumber),
		zap.String("user_id", sanction.UserID.String()),
	)
	return nil
}

// FinalizePermBan ends the appeal window of an active permanent ban: the
// user moves to pending-delete-ban and the banned content becomes final.
func (o *Orchestrator) FinalizePermBan(ctx context.Context, tx repo.Tx, sanction model.Sanction) error {
	now := o.Now()

	user, err := tx.Users().Get(ctx, sanction.UserID)
	if err != nil {
		return err
	}
	if user.Status != enums.UserStatusDeleted && user.Status != enums.UserStatusPendingDeleteBan {
		if err := tx.Users().UpdateStatus(ctx, user.ID, enums.UserStatusPendingDeleteBan, now); err != nil {
			return fmt.Errorf("update user status: %w", err)
		}
	}

	sanction.IsActive = false
	sanction.ConcludedAt = &now
	if err := tx.Sanctions().Update(ctx, sanction); err != nil {
		return fmt.Errorf("conclude sanction: %w", err)
	}

	refs, err := o.sanctionContents(ctx, tx, sanction)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := o.finalizeContent(ctx, tx, ref); err != nil {
			return err
		}
	}

	o.logger.Info("perm ban finalized",
		zap.String("sanction_id", sanction.ID.String()),
		zap.String("user_id", sanction.UserID.String()),
	)
	return nil
}

// sanctionContents lists the content a sanction bans: the reported post or
// comment, or the unrestored flagged posts of an account report.
func (o *Orchestrator) sanctionContents(ctx context.Context, tx repo.Tx, sanction model.Sanction) ([]contentRef, error) {
	if sanction.ContentType.Stored() {
		return []contentRef{{Type: sanction.ContentType, ID: sanction.ContentID}}, nil
	}
	if sanction.ContentType != enums.ContentTypeAccount {
		return nil, nil
	}
	return o.flaggedRefs(ctx, tx, sanction.ReportID)
}

func (o *Orchestrator) flaggedRefs(ctx context.Context, tx repo.Tx, reportID uuid.UUID) ([]contentRef, error) {
	flagged, err := tx.Contents().ListFlagged(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("list flagged content: %w", err)
	}
	refs := make([]contentRef, 0, len(flagged))
	for _, f := range flagged {
		if f.IsRestored {
			continue
		}
		refs = append(refs, contentRef{Type: enums.ContentTypePost, ID: f.ContentID})
	}
	return refs, nil
}

func (o *Orchestrator) finalizeContent(ctx context.Context, tx repo.Tx, ref contentRef) error {
	content, err := tx.Contents().Get(ctx, ref.Type, ref.ID)
	if faults.Is(err, faults.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if content.Status != enums.ContentStatusBanned || content.IsBanFinal {
		return nil
	}
	if err := tx.Contents().SetBanFinal(ctx, ref.Type, ref.ID, o.Now()); err != nil {
		return fmt.Errorf("finalize %s ban: %w", ref.Type, err)
	}
	return nil
}
