package enforcement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/services/scoring"
)

type ManualAction struct {
	CaseNumber       int64
	ReportedUsername string
	Action           enums.SanctionAction
	DurationHours    int
	ContentIDs       []uuid.UUID
}

type RelatedChange struct {
	CaseNumber int64
	Status     enums.ReportStatus
	Reason     enums.ReportReason
}

type Outcome struct {
	Report   model.Report
	Decision scoring.Decision
	Sanction *model.Sanction
	Related  []RelatedChange
}

type contentRef struct {
	Type enums.ContentType
	ID   uuid.UUID
}

type target struct {
	contentType enums.ContentType
	contentID   uuid.UUID
	ban         []contentRef
	flagged     bool
}

// ApplyAuto scores a post or comment report from its reason and enforces
// the outcome.
func (o *Orchestrator) ApplyAuto(ctx context.Context, actor uuid.UUID, caseNumber int64, reportedUsername string) (Outcome, error) {
	var out Outcome
	err := o.Atomic(ctx, func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		report, user, err := o.loadCase(ctx, tx, actor, caseNumber, reportedUsername)
		if err != nil {
			return err
		}
		if !report.ReportedItemType.Stored() {
			return faults.Validation("auto action supports post and comment reports only")
		}

		content, err := o.bannableContent(ctx, tx, report.ReportedItemType, report.ReportedItemID, user.ID)
		if err != nil {
			return err
		}

		score, err := tx.Scores().GetForUpdate(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("get violation score: %w", err)
		}
		decision, err := scoring.Score(report.Reason, report.ReportedItemType, score)
		if errors.Is(err, scoring.ErrRequiresManual) {
			return faults.Validation("report reason %s requires a manual action", report.Reason)
		}
		if err != nil {
			return err
		}

		out, err = o.enforce(ctx, tx, fx, actor, report, user, decision, target{
			contentType: content.Type,
			contentID:   content.ID,
			ban:         []contentRef{{Type: content.Type, ID: content.ID}},
		})
		return err
	})
	return out, err
}

// ApplyManual enforces a moderator-chosen action. The score is lifted to the
// action's minimum. Account reports ban the listed posts.
func (o *Orchestrator) ApplyManual(ctx context.Context, actor uuid.UUID, in ManualAction) (Outcome, error) {
	var out Outcome
	err := o.Atomic(ctx, func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		report, user, err := o.loadCase(ctx, tx, actor, in.CaseNumber, in.ReportedUsername)
		if err != nil {
			return err
		}

		tgt := target{contentType: report.ReportedItemType, contentID: report.ReportedItemID}
		switch {
		case report.ReportedItemType == enums.ContentTypeAccount:
			if in.Action != enums.SanctionNoAction && len(in.ContentIDs) == 0 {
				return faults.Validation("contents_to_be_banned is required for account reports")
			}
			for _, id := range dedupe(in.ContentIDs) {
				post, err := o.bannableContent(ctx, tx, enums.ContentTypePost, id, user.ID)
				if err != nil {
					return err
				}
				tgt.ban = append(tgt.ban, contentRef{Type: post.Type, ID: post.ID})
			}
			tgt.flagged = true
		case len(in.ContentIDs) > 0:
			return faults.Validation("contents_to_be_banned applies to account reports only")
		case report.ReportedItemType.Stored():
			content, err := o.bannableContent(ctx, tx, report.ReportedItemType, report.ReportedItemID, user.ID)
			if err != nil {
				return err
			}
			tgt.ban = []contentRef{{Type: content.Type, ID: content.ID}}
		}

		score, err := tx.Scores().GetForUpdate(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("get violation score: %w", err)
		}
		flaggedCount := 0
		if tgt.flagged && in.Action != enums.SanctionNoAction {
			flaggedCount = len(tgt.ban)
		}
		decision, err := scoring.ManualScore(in.Action, in.DurationHours, score, flaggedCount)
		if err != nil {
			return err
		}

		out, err = o.enforce(ctx, tx, fx, actor, report, user, decision, tgt)
		return err
	})
	return out, err
}

func (o *Orchestrator) loadCase(ctx context.Context, tx repo.Tx, actor uuid.UUID, caseNumber int64, reportedUsername string) (model.Report, model.User, error) {
	report, err := tx.Reports().GetByCase(ctx, caseNumber, true)
	if err != nil {
		return model.Report{}, model.User{}, err
	}
	switch {
	case report.Status.Final():
		return model.Report{}, model.User{}, faults.Conflict("report %d is already %s", caseNumber, report.Status)
	case report.Status != enums.ReportStatusUnderReview:
		return model.Report{}, model.User{}, faults.Conflict("report %d must be under review before action", caseNumber)
	case !report.AssignedTo(actor):
		return model.Report{}, model.User{}, faults.Forbidden("report %d is not assigned to you", caseNumber)
	}

	user, err := tx.Users().GetByUsername(ctx, reportedUsername)
	if err != nil {
		return model.Report{}, model.User{}, err
	}
	if user.ID != report.ReportedUserID {
		return model.Report{}, model.User{}, faults.Validation("user %s is not the reported user of report %d", reportedUsername, caseNumber)
	}
	if err := tx.Users().Lock(ctx, user.ID); err != nil {
		return model.Report{}, model.User{}, fmt.Errorf("lock user: %w", err)
	}
	return report, user, nil
}

func (o *Orchestrator) bannableContent(ctx context.Context, tx repo.Tx, contentType enums.ContentType, id, ownerID uuid.UUID) (model.Content, error) {
	content, err := tx.Contents().Get(ctx, contentType, id)
	if err != nil {
		return model.Content{}, err
	}
	if content.OwnerUserID != ownerID {
		return model.Content{}, faults.Validation("%s %s does not belong to the reported user", contentType, id)
	}
	switch content.Status {
	case enums.ContentStatusBanned, enums.ContentStatusFlaggedToBan:
		return model.Content{}, faults.Conflict("%s %s is already banned", contentType, id)
	case enums.ContentStatusFlagDeleted:
		return model.Content{}, faults.Conflict("%s %s was deleted while flagged", contentType, id)
	}
	return content, nil
}

// enforce lands a scoring decision. An active (or absent) sanction resolves
// the report now; a queued one defers the score and the content ban until
// the sanction starts.
func (o *Orchestrator) enforce(ctx context.Context, tx repo.Tx, fx *Effects, actor uuid.UUID, report model.Report, user model.User, decision scoring.Decision, tgt target) (Outcome, error) {
	now := o.Now()

	score, err := tx.Scores().GetForUpdate(ctx, user.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get violation score: %w", err)
	}

	var sanction *model.Sanction
	active := true
	if !decision.NoAction() {
		placed, err := o.queue.Place(ctx, tx, model.Sanction{
			UserID:        user.ID,
			ReportID:      report.ID,
			Status:        decision.Action,
			DurationHours: decision.DurationHours,
			ContentType:   tgt.contentType,
			ContentID:     tgt.contentID,
		})
		if err != nil {
			return Outcome{}, err
		}
		sanction = &placed
		active = placed.IsActive
	}

	status, contentStatus, event := enums.ReportStatusResolved, enums.ContentStatusBanned, enums.TimelineResolved
	if !active {
		status, contentStatus, event = enums.ReportStatusFutureResolved, enums.ContentStatusFlaggedToBan, enums.TimelineFutureQueued
	}

	if active && decision.Delta != 0 {
		score.Add(report.ReportedItemType, decision.Delta)
		score.UpdatedAt = now
		if err := tx.Scores().Update(ctx, score); err != nil {
			return Outcome{}, fmt.Errorf("update violation score: %w", err)
		}
	}
	if _, err := tx.Scores().InsertDelta(ctx, model.ScoreDelta{
		UserID:         user.ID,
		ScoreID:        score.ID,
		ReportID:       report.ID,
		ContentType:    report.ReportedItemType,
		LastAddedScore: decision.Delta,
		IsAdded:        active,
	}); err != nil {
		return Outcome{}, fmt.Errorf("insert score delta: %w", err)
	}

	if sanction != nil {
		for _, ref := range tgt.ban {
			if err := tx.Contents().UpdateStatus(ctx, ref.Type, ref.ID, contentStatus, now); err != nil {
				return Outcome{}, fmt.Errorf("update %s status: %w", ref.Type, err)
			}
		}
		if tgt.flagged && len(tgt.ban) > 0 {
			ids := make([]uuid.UUID, 0, len(tgt.ban))
			for _, ref := range tgt.ban {
				ids = append(ids, ref.ID)
			}
			if err := tx.Contents().InsertFlagged(ctx, report.ID, ids); err != nil {
				return Outcome{}, fmt.Errorf("insert flagged content: %w", err)
			}
		}
	}

	report.Status = status
	report.ModeratorNote = NoteResolved
	report.ResolvedAt = &now
	report.UpdatedAt = now
	if err := tx.Reports().Update(ctx, report); err != nil {
		return Outcome{}, fmt.Errorf("update report: %w", err)
	}
	if err := o.reportEvent(ctx, tx, report, event, &actor); err != nil {
		return Outcome{}, err
	}

	related, err := o.propagate(ctx, tx, actor, report)
	if err != nil {
		return Outcome{}, err
	}

	if sanction != nil && sanction.IsActive && sanction.Status.Ban() {
		fx.Email(o.banEmail(user, *sanction))
	}
	fx.actions = append(fx.actions, decision.Action)

	o.logger.Info("report enforced",
		zap.Int64("case_number", report.CaseNumber),
		zap.String("user_id", user.ID.String()),
		zap.String("action", string(decision.Action)),
		zap.Int("delta", decision.Delta),
		zap.String("status", string(report.Status)),
	)
	return Outcome{Report: report, Decision: decision, Sanction: sanction, Related: related}, nil
}

// propagate carries the primary's outcome to the other under-review reports
// the same moderator holds on the same item. Same-reason reports mirror the
// primary; the rest are closed as related follow.
func (o *Orchestrator) propagate(ctx context.Context, tx repo.Tx, actor uuid.UUID, primary model.Report) ([]RelatedChange, error) {
	related, err := tx.Reports().List(ctx, repo.ReportFilter{
		Statuses:      []enums.ReportStatus{enums.ReportStatusUnderReview},
		ModeratorID:   &actor,
		ReportedItem:  &primary.ReportedItemID,
		ExcludeReport: &primary.ID,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("list related reports: %w", err)
	}

	now := o.Now()
	changes := make([]RelatedChange, 0, len(related))
	for _, report := range related {
		primaryID := primary.ID
		report.RelatedReportID = &primaryID
		report.UpdatedAt = now
		event := enums.TimelineClosed
		if report.Reason == primary.Reason {
			report.Status = primary.Status.Mirror()
			report.ModeratorNote = primary.ModeratorNote
			report.ResolvedAt = &now
			event = enums.TimelineResolved
			if report.Status == enums.ReportStatusFutureResolvedRelated {
				event = enums.TimelineFutureQueued
			}
		} else {
			report.Status = enums.ReportStatusClosed
			report.ModeratorNote = NoteRelatedFollow
		}
		if err := tx.Reports().Update(ctx, report); err != nil {
			return nil, fmt.Errorf("update related report: %w", err)
		}
		if err := o.reportEvent(ctx, tx, report, event, &actor); err != nil {
			return nil, err
		}
		changes = append(changes, RelatedChange{CaseNumber: report.CaseNumber, Status: report.Status, Reason: report.Reason})
	}
	return changes, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
