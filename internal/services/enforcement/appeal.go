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
	"github.com/ivankudzin/trustsafety/internal/services/scoring"
)

// AcceptReversal undoes the enforcement behind an accepted appeal. Account
// reports are undone one flagged post at a time; the sanction is lifted and
// the delta closed only when the last banned post comes back.
func (o *Orchestrator) AcceptReversal(ctx context.Context, tx repo.Tx, fx *Effects, appeal model.Appeal) error {
	primary, err := o.primaryReport(ctx, tx, appeal.ReportID)
	if err != nil {
		return err
	}
	if err := tx.Users().Lock(ctx, primary.ReportedUserID); err != nil {
		return fmt.Errorf("lock user: %w", err)
	}

	sanction, hasSanction, err := tx.Sanctions().GetByReport(ctx, primary.ID)
	if err != nil {
		return fmt.Errorf("get sanction: %w", err)
	}
	delta, hasDelta, err := tx.Scores().GetDeltaByReport(ctx, primary.ID)
	if err != nil {
		return fmt.Errorf("get score delta: %w", err)
	}

	switch {
	case primary.ReportedItemType == enums.ContentTypeAccount && appeal.ContentType == enums.ContentTypeAccount:
		flagged, err := tx.Contents().ListFlagged(ctx, primary.ID)
		if err != nil {
			return fmt.Errorf("list flagged content: %w", err)
		}
		restoredBefore := 0
		for _, f := range flagged {
			if f.IsRestored {
				restoredBefore++
			}
		}
		for _, f := range flagged {
			if f.IsRestored {
				continue
			}
			if err := o.unban(ctx, tx, contentRef{Type: enums.ContentTypePost, ID: f.ContentID}); err != nil {
				return err
			}
			if err := tx.Contents().MarkFlaggedRestored(ctx, f.ID); err != nil {
				return fmt.Errorf("restore flagged content: %w", err)
			}
		}
		if hasDelta {
			remaining := delta.LastAddedScore
			if n := len(flagged); n > 1 {
				remaining -= (delta.LastAddedScore / n) * restoredBefore
			}
			if err := o.reverse(ctx, tx, delta, remaining, true); err != nil {
				return err
			}
		}
		if hasSanction {
			if err := o.lift(ctx, tx, fx, sanction); err != nil {
				return err
			}
		}

	case primary.ReportedItemType == enums.ContentTypeAccount:
		flagged, err := tx.Contents().ListFlagged(ctx, primary.ID)
		if err != nil {
			return fmt.Errorf("list flagged content: %w", err)
		}
		var row *model.FlaggedContent
		restoredBefore := 0
		for i := range flagged {
			if flagged[i].ContentID == appeal.ContentID {
				row = &flagged[i]
			}
			if flagged[i].IsRestored {
				restoredBefore++
			}
		}
		if row == nil {
			return faults.Conflict("post %s is not banned by report %d", appeal.ContentID, primary.CaseNumber)
		}
		if row.IsRestored {
			return nil
		}
		if err := o.unban(ctx, tx, contentRef{Type: enums.ContentTypePost, ID: row.ContentID}); err != nil {
			return err
		}
		if err := tx.Contents().MarkFlaggedRestored(ctx, row.ID); err != nil {
			return fmt.Errorf("restore flagged content: %w", err)
		}
		last := restoredBefore+1 == len(flagged)
		if hasDelta {
			amount := scoring.Share(delta.LastAddedScore, len(flagged), restoredBefore)
			if err := o.reverse(ctx, tx, delta, amount, last); err != nil {
				return err
			}
		}
		if last && hasSanction {
			if err := o.lift(ctx, tx, fx, sanction); err != nil {
				return err
			}
		}

	default:
		if primary.ReportedItemType.Stored() {
			if err := o.unban(ctx, tx, contentRef{Type: primary.ReportedItemType, ID: primary.ReportedItemID}); err != nil {
				return err
			}
		}
		if hasDelta {
			if err := o.reverse(ctx, tx, delta, delta.LastAddedScore, true); err != nil {
				return err
			}
		}
		if hasSanction {
			if err := o.lift(ctx, tx, fx, sanction); err != nil {
				return err
			}
		}
	}

	o.logger.Info("appeal reversal applied",
		zap.Int64("appeal_case_number", appeal.CaseNumber),
		zap.Int64("case_number", primary.CaseNumber),
		zap.String("user_id", primary.ReportedUserID.String()),
	)
	return nil
}

// RejectFinalize makes the bans behind a rejected appeal final and closes
// out a permanent ban whose appeal window has passed.
func (o *Orchestrator) RejectFinalize(ctx context.Context, tx repo.Tx, appeal model.Appeal) error {
	primary, err := o.primaryReport(ctx, tx, appeal.ReportID)
	if err != nil {
		return err
	}

	switch {
	case appeal.ContentType.Stored():
		if err := o.finalizeContent(ctx, tx, contentRef{Type: appeal.ContentType, ID: appeal.ContentID}); err != nil {
			return err
		}
	case appeal.ContentType == enums.ContentTypeAccount && primary.ReportedItemType == enums.ContentTypeAccount:
		refs, err := o.flaggedRefs(ctx, tx, primary.ID)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			pending, err := o.HasPendingAppeal(ctx, tx, ref.Type, ref.ID)
			if err != nil {
				return err
			}
			if pending {
				continue
			}
			if err := o.finalizeContent(ctx, tx, ref); err != nil {
				return err
			}
		}
	case appeal.ContentType == enums.ContentTypeAccount && primary.ReportedItemType.Stored():
		if err := o.finalizeContent(ctx, tx, contentRef{Type: primary.ReportedItemType, ID: primary.ReportedItemID}); err != nil {
			return err
		}
	}

	sanction, ok, err := tx.Sanctions().GetByReport(ctx, primary.ID)
	if err != nil {
		return fmt.Errorf("get sanction: %w", err)
	}
	if ok && sanction.IsActive && sanction.Status == enums.SanctionPermBan &&
		!o.Now().Before(sanction.EnforceActionAt.Add(o.windows.PBNAppeal)) {
		return o.FinalizePermBan(ctx, tx, sanction)
	}
	return nil
}

// HasPendingAppeal reports whether the content has an open or in-review appeal.
func (o *Orchestrator) HasPendingAppeal(ctx context.Context, tx repo.Tx, contentType enums.ContentType, contentID uuid.UUID) (bool, error) {
	appeals, err := tx.Appeals().List(ctx, repo.AppealFilter{
		Statuses:    []enums.AppealStatus{enums.AppealStatusOpen, enums.AppealStatusUnderReview},
		ContentType: &contentType,
		ContentIDs:  []uuid.UUID{contentID},
		Limit:       1,
	}, false)
	if err != nil {
		return false, fmt.Errorf("list pending appeals: %w", err)
	}
	return len(appeals) > 0, nil
}

// HeldByPermBan reports whether the content is banned by its owner's active
// permanent ban. FinalizePermBan settles that content at the end of the
// permanent-ban appeal window.
func (o *Orchestrator) HeldByPermBan(ctx context.Context, tx repo.Tx, content model.Content) (bool, error) {
	active, ok, err := tx.Sanctions().GetActive(ctx, content.OwnerUserID)
	if err != nil {
		return false, fmt.Errorf("get active sanction: %w", err)
	}
	if !ok || active.Status != enums.SanctionPermBan {
		return false, nil
	}
	refs, err := o.sanctionContents(ctx, tx, active)
	if err != nil {
		return false, err
	}
	for _, ref := range refs {
		if ref.Type == content.Type && ref.ID == content.ID {
			return true, nil
		}
	}
	return false, nil
}

// primaryReport follows a related report to the report that carries the
// sanction and score delta.
func (o *Orchestrator) primaryReport(ctx context.Context, tx repo.Tx, reportID uuid.UUID) (model.Report, error) {
	report, err := tx.Reports().Get(ctx, reportID)
	if err != nil {
		return model.Report{}, err
	}
	if report.RelatedReportID == nil {
		return report, nil
	}
	return tx.Reports().Get(ctx, *report.RelatedReportID)
}

func (o *Orchestrator) unban(ctx context.Context, tx repo.Tx, ref contentRef) error {
	content, err := tx.Contents().Get(ctx, ref.Type, ref.ID)
	if faults.Is(err, faults.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if content.IsBanFinal {
		return faults.Conflict("%s %s ban is final", ref.Type, ref.ID)
	}
	if content.Status != enums.ContentStatusBanned && content.Status != enums.ContentStatusFlaggedToBan {
		return nil
	}
	if err := tx.Contents().UpdateStatus(ctx, ref.Type, ref.ID, enums.ContentStatusPublished, o.Now()); err != nil {
		return fmt.Errorf("unban %s: %w", ref.Type, err)
	}
	return nil
}

// reverse takes amount back out of the score if the delta was ever added.
// closeDelta marks the delta as fully reversed.
func (o *Orchestrator) reverse(ctx context.Context, tx repo.Tx, delta model.ScoreDelta, amount int, closeDelta bool) error {
	if delta.IsRemoved {
		return nil
	}
	if delta.IsAdded && amount > 0 {
		score, err := tx.Scores().GetForUpdate(ctx, delta.UserID)
		if err != nil {
			return fmt.Errorf("get violation score: %w", err)
		}
		score.Add(delta.ContentType, -amount)
		score.UpdatedAt = o.Now()
		if err := tx.Scores().Update(ctx, score); err != nil {
			return fmt.Errorf("update violation score: %w", err)
		}
	}
	if !closeDelta {
		return nil
	}
	delta.IsRemoved = true
	if err := tx.Scores().UpdateDelta(ctx, delta); err != nil {
		return fmt.Errorf("update score delta: %w", err)
	}
	return nil
}

// lift removes a sanction from the queue: active ones are revoked so the next
// queued sanction starts early, queued ones are withdrawn and concluded ones
// are left as history.
func (o *Orchestrator) lift(ctx context.Context, tx repo.Tx, fx *Effects, sanction model.Sanction) error {
	switch {
	case sanction.IsActive:
		return o.queue.RevokeActive(ctx, tx, sanction, o.Commit(fx))
	case sanction.Queued():
		return o.queue.Cancel(ctx, tx, sanction)
	}
	return nil
}
