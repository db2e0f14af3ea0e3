// Package appeals drives the appeal lifecycle and hands accepted and
// rejected appeals to enforcement.
package appeals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
)

const (
	DashboardNew      = "new"
	DashboardAssigned = "assigned"

	maxBatch = 100
)

type Service struct {
	store  repo.Store
	orch   *enforcement.Orchestrator
	logger *zap.Logger
	now    func() time.Time
}

type AdminQuery struct {
	Type       string
	Status     *enums.AppealStatus
	EmployeeID *uuid.UUID
	CreatedAt  *time.Time
}

type Detail struct {
	Appeal model.Appeal
	Report model.Report
	Events []model.TimelineEvent
}

type ReviewResult struct {
	Valid              []int64
	Invalid            []int64
	AlreadyUnderReview []int64
}

type AssignResult struct {
	Assigned []int64
	Invalid  []int64
}

type ActResult struct {
	Appeal  model.Appeal
	Related []RelatedChange
}

type RelatedChange struct {
	CaseNumber int64
	Status     enums.AppealStatus
}

func NewService(store repo.Store, orch *enforcement.Orchestrator, logger *zap.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, orch: orch, logger: logger, now: now}
}

func (s *Service) Dashboard(ctx context.Context, actor authsvc.Identity, status *enums.AppealStatus) ([]model.Appeal, error) {
	filter := repo.AppealFilter{ModeratorID: &actor.EmployeeID}
	if status != nil {
		filter.Statuses = []enums.AppealStatus{*status}
	}
	return s.list(ctx, filter)
}

func (s *Service) AdminDashboard(ctx context.Context, actor authsvc.Identity, q AdminQuery) ([]model.Appeal, error) {
	if !actor.IsAdmin() {
		return nil, faults.Forbidden("admin role required")
	}

	filter := repo.AppealFilter{CreatedOn: q.CreatedAt}
	switch strings.ToLower(strings.TrimSpace(q.Type)) {
	case DashboardNew:
		if q.EmployeeID != nil {
			return nil, faults.Validation("emp_id cannot be combined with type=new")
		}
		if q.Status != nil && *q.Status != enums.AppealStatusOpen {
			return nil, faults.Validation("type=new only lists open appeals")
		}
		filter.Unassigned = true
		filter.Statuses = []enums.AppealStatus{enums.AppealStatusOpen}
	case DashboardAssigned:
		filter.Assigned = true
		filter.ModeratorID = q.EmployeeID
		if q.Status != nil {
			filter.Statuses = []enums.AppealStatus{*q.Status}
		}
	default:
		return nil, faults.Validation("type must be new or assigned")
	}
	return s.list(ctx, filter)
}

func (s *Service) Detail(ctx context.Context, caseNumber int64) (Detail, error) {
	var out Detail
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		appeal, err := tx.Appeals().GetByCase(ctx, caseNumber, false)
		if err != nil {
			return err
		}
		report, err := tx.Reports().Get(ctx, appeal.ReportID)
		if err != nil {
			return err
		}
		events, err := tx.Appeals().ListEvents(ctx, appeal.ID)
		if err != nil {
			return fmt.Errorf("list appeal events: %w", err)
		}
		out = Detail{Appeal: appeal, Report: report, Events: events}
		return nil
	})
	return out, err
}

// Related lists the other open and under-review appeals against the same report.
func (s *Service) Related(ctx context.Context, actor authsvc.Identity, caseNumber int64, adminView bool) ([]model.Appeal, error) {
	if adminView && !actor.IsAdmin() {
		return nil, faults.Forbidden("admin role required")
	}

	var out []model.Appeal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		appeal, err := tx.Appeals().GetByCase(ctx, caseNumber, false)
		if err != nil {
			return err
		}
		related, err := tx.Appeals().List(ctx, repo.AppealFilter{
			Statuses:      []enums.AppealStatus{enums.AppealStatusOpen, enums.AppealStatusUnderReview},
			ReportID:      &appeal.ReportID,
			ExcludeAppeal: &appeal.ID,
		}, false)
		if err != nil {
			return fmt.Errorf("list related appeals: %w", err)
		}
		for _, a := range related {
			if adminView || a.ModeratorID == nil || a.AssignedTo(actor.EmployeeID) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (s *Service) MarkReview(ctx context.Context, actor authsvc.Identity, caseNumbers []int64) (ReviewResult, error) {
	cases, err := normalizeCases(caseNumbers)
	if err != nil {
		return ReviewResult{}, err
	}

	var out ReviewResult
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		out = ReviewResult{}
		now := s.now().UTC()
		for _, caseNumber := range cases {
			appeal, err := tx.Appeals().GetByCase(ctx, caseNumber, true)
			if faults.Is(err, faults.KindNotFound) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}
			if err != nil {
				return err
			}

			switch {
			case appeal.Status == enums.AppealStatusUnderReview && appeal.AssignedTo(actor.EmployeeID):
				out.AlreadyUnderReview = append(out.AlreadyUnderReview, caseNumber)
				continue
			case appeal.Status != enums.AppealStatusOpen:
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			case appeal.ModeratorID != nil && !appeal.AssignedTo(actor.EmployeeID):
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}

			appeal.Status = enums.AppealStatusUnderReview
			appeal.ModeratorID = &actor.EmployeeID
			appeal.UpdatedAt = now
			if err := tx.Appeals().Update(ctx, appeal); err != nil {
				return fmt.Errorf("update appeal: %w", err)
			}
			if err := s.event(ctx, tx, appeal, enums.TimelineReviewed, &actor.EmployeeID); err != nil {
				return err
			}
			out.Valid = append(out.Valid, caseNumber)
		}
		return nil
	})
	return out, err
}

func (s *Service) Assign(ctx context.Context, actor authsvc.Identity, caseNumbers []int64, moderatorID uuid.UUID) (AssignResult, error) {
	if !actor.IsAdmin() {
		return AssignResult{}, faults.Forbidden("admin role required")
	}
	cases, err := normalizeCases(caseNumbers)
	if err != nil {
		return AssignResult{}, err
	}

	var out AssignResult
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		out = AssignResult{}
		employee, err := tx.Employees().Get(ctx, moderatorID)
		if err != nil {
			return err
		}
		if !employee.IsActive || employee.Role == enums.RoleNone {
			return faults.Validation("employee %s cannot moderate appeals", moderatorID)
		}

		now := s.now().UTC()
		for _, caseNumber := range cases {
			appeal, err := tx.Appeals().GetByCase(ctx, caseNumber, true)
			if faults.Is(err, faults.KindNotFound) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}
			if err != nil {
				return err
			}
			if appeal.Status.Final() || appeal.AssignedTo(moderatorID) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}

			appeal.ModeratorID = &employee.ID
			appeal.UpdatedAt = now
			if err := tx.Appeals().Update(ctx, appeal); err != nil {
				return fmt.Errorf("update appeal: %w", err)
			}
			if err := s.event(ctx, tx, appeal, enums.TimelineAssigned, &actor.EmployeeID); err != nil {
				return err
			}
			out.Assigned = append(out.Assigned, caseNumber)
		}
		return nil
	})
	return out, err
}

// PolicyCheck decides whether the appeal may be judged on its merits. A
// rejected appeal on the linked account or content blocks it.
func (s *Service) PolicyCheck(ctx context.Context, actor authsvc.Identity, caseNumber int64) (model.Appeal, error) {
	var out model.Appeal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		appeal, err := s.lockOwned(ctx, tx, actor, caseNumber)
		if err != nil {
			return err
		}
		report, err := tx.Reports().Get(ctx, appeal.ReportID)
		if err != nil {
			return err
		}
		if report.Status != enums.ReportStatusResolved && report.Status != enums.ReportStatusResolvedRelated {
			return faults.Conflict("report %d behind appeal %d is %s, not resolved", report.CaseNumber, caseNumber, report.Status)
		}

		followed, err := s.policyFollowed(ctx, tx, appeal, report)
		if err != nil {
			return err
		}

		appeal.IsPolicyFollowed = &followed
		appeal.UpdatedAt = s.now().UTC()
		if err := tx.Appeals().Update(ctx, appeal); err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		if err := s.event(ctx, tx, appeal, enums.TimelinePolicyCheck, &actor.EmployeeID); err != nil {
			return err
		}
		out = appeal
		return nil
	})
	return out, err
}

func (s *Service) policyFollowed(ctx context.Context, tx repo.Tx, appeal model.Appeal, report model.Report) (bool, error) {
	rejected := []enums.AppealStatus{enums.AppealStatusRejected, enums.AppealStatusRejectedRelated}
	account := enums.ContentTypeAccount
	filter := repo.AppealFilter{Statuses: rejected, ExcludeAppeal: &appeal.ID, Limit: 1}

	switch {
	case appeal.ContentType == account && report.ReportedItemType == account:
		flagged, err := tx.Contents().ListFlagged(ctx, report.ID)
		if err != nil {
			return false, fmt.Errorf("list flagged content: %w", err)
		}
		if len(flagged) == 0 {
			return true, nil
		}
		post := enums.ContentTypePost
		filter.ContentType = &post
		for _, f := range flagged {
			filter.ContentIDs = append(filter.ContentIDs, f.ContentID)
		}
	case appeal.ContentType == account:
		filter.ContentType = &report.ReportedItemType
		filter.ContentIDs = []uuid.UUID{report.ReportedItemID}
	case report.ReportedItemType == account:
		filter.ContentType = &account
		filter.ReportID = &report.ID
	default:
		filter.ContentType = &account
		filter.UserID = &appeal.UserID
	}

	prior, err := tx.Appeals().List(ctx, filter, false)
	if err != nil {
		return false, fmt.Errorf("list prior appeals: %w", err)
	}
	return len(prior) == 0, nil
}

func (s *Service) Close(ctx context.Context, actor authsvc.Identity, caseNumber int64, note string) (model.Appeal, error) {
	var out model.Appeal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		appeal, err := s.lockOwned(ctx, tx, actor, caseNumber)
		if err != nil {
			return err
		}
		appeal.Status = enums.AppealStatusClosed
		appeal.ModeratorNote = strings.TrimSpace(note)
		appeal.UpdatedAt = s.now().UTC()
		if err := tx.Appeals().Update(ctx, appeal); err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		if err := s.event(ctx, tx, appeal, enums.TimelineClosed, &actor.EmployeeID); err != nil {
			return err
		}
		out = appeal
		return nil
	})
	return out, err
}

// Act accepts or rejects an appeal. Accepting reverses the enforcement
// behind it; rejecting makes the ban final. Other appeals on the same report
// held by the same moderator follow as accepted- or rejected-related.
func (s *Service) Act(ctx context.Context, actor authsvc.Identity, caseNumber int64, action enums.AppealAction, note string) (ActResult, error) {
	var out ActResult
	err := s.orch.Atomic(ctx, func(ctx context.Context, tx repo.Tx, fx *enforcement.Effects) error {
		appeal, err := s.lockOwned(ctx, tx, actor, caseNumber)
		if err != nil {
			return err
		}
		if appeal.IsPolicyFollowed == nil {
			return faults.Conflict("appeal %d needs a policy check first", caseNumber)
		}

		now := s.now().UTC()
		appeal.ModeratorNote = strings.TrimSpace(note)
		appeal.UpdatedAt = now

		var event enums.TimelineEvent
		var relatedStatus enums.AppealStatus
		switch action {
		case enums.AppealActionAccept:
			if !*appeal.IsPolicyFollowed {
				return faults.Conflict("appeal %d failed the policy check and cannot be accepted", caseNumber)
			}
			if err := s.orch.AcceptReversal(ctx, tx, fx, appeal); err != nil {
				return err
			}
			appeal.Status = enums.AppealStatusAccepted
			event, relatedStatus = enums.TimelineAccepted, enums.AppealStatusAcceptedRelated
		case enums.AppealActionReject:
			if err := s.orch.RejectFinalize(ctx, tx, appeal); err != nil {
				return err
			}
			appeal.Status = enums.AppealStatusRejected
			event, relatedStatus = enums.TimelineRejected, enums.AppealStatusRejectedRelated
		default:
			return faults.Validation("action must be accept or reject")
		}

		if err := tx.Appeals().Update(ctx, appeal); err != nil {
			return fmt.Errorf("update appeal: %w", err)
		}
		if err := s.event(ctx, tx, appeal, event, &actor.EmployeeID); err != nil {
			return err
		}

		related, err := tx.Appeals().List(ctx, repo.AppealFilter{
			Statuses:      []enums.AppealStatus{enums.AppealStatusUnderReview},
			ModeratorID:   &actor.EmployeeID,
			ReportID:      &appeal.ReportID,
			ExcludeAppeal: &appeal.ID,
		}, true)
		if err != nil {
			return fmt.Errorf("list related appeals: %w", err)
		}
		out = ActResult{Appeal: appeal}
		for _, r := range related {
			if r.IsPolicyFollowed == nil {
				continue
			}
			if relatedStatus == enums.AppealStatusAcceptedRelated && !*r.IsPolicyFollowed {
				continue
			}
			if relatedStatus == enums.AppealStatusAcceptedRelated {
				if err := s.orch.AcceptReversal(ctx, tx, fx, r); err != nil {
					return err
				}
			} else if err := s.orch.RejectFinalize(ctx, tx, r); err != nil {
				return err
			}
			r.Status = relatedStatus
			r.ModeratorNote = appeal.ModeratorNote
			r.UpdatedAt = now
			if err := tx.Appeals().Update(ctx, r); err != nil {
				return fmt.Errorf("update related appeal: %w", err)
			}
			if err := s.event(ctx, tx, r, event, &actor.EmployeeID); err != nil {
				return err
			}
			out.Related = append(out.Related, RelatedChange{CaseNumber: r.CaseNumber, Status: r.Status})
		}
		return nil
	})
	if err != nil {
		return ActResult{}, err
	}

	s.logger.Info("appeal decided",
		zap.Int64("case_number", caseNumber),
		zap.String("action", string(action)),
		zap.Int("related", len(out.Related)),
	)
	return out, nil
}

// lockOwned loads an appeal that the actor is reviewing.
func (s *Service) lockOwned(ctx context.Context, tx repo.Tx, actor authsvc.Identity, caseNumber int64) (model.Appeal, error) {
	appeal, err := tx.Appeals().GetByCase(ctx, caseNumber, true)
	if err != nil {
		return model.Appeal{}, err
	}
	switch {
	case appeal.Status.Final():
		return model.Appeal{}, faults.Conflict("appeal %d is already %s", caseNumber, appeal.Status)
	case appeal.Status != enums.AppealStatusUnderReview:
		return model.Appeal{}, faults.Conflict("appeal %d must be under review", caseNumber)
	case !appeal.AssignedTo(actor.EmployeeID):
		return model.Appeal{}, faults.Forbidden("appeal %d is not assigned to you", caseNumber)
	}
	return appeal, nil
}

func (s *Service) list(ctx context.Context, filter repo.AppealFilter) ([]model.Appeal, error) {
	var out []model.Appeal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Appeals().List(ctx, filter, false)
		return err
	})
	return out, err
}

func (s *Service) event(ctx context.Context, tx repo.Tx, appeal model.Appeal, event enums.TimelineEvent, actor *uuid.UUID) error {
	return tx.Appeals().AppendEvent(ctx, model.TimelineEvent{
		SubjectID: appeal.ID,
		Event:     event,
		Status:    string(appeal.Status),
		ActorID:   actor,
		Note:      appeal.ModeratorNote,
		CreatedAt: s.now().UTC(),
	})
}

func normalizeCases(caseNumbers []int64) ([]int64, error) {
	if len(caseNumbers) == 0 {
		return nil, faults.Validation("case_number_list is required")
	}
	if len(caseNumbers) > maxBatch {
		return nil, faults.Validation("case_number_list accepts at most %d cases", maxBatch)
	}
	seen := make(map[int64]struct{}, len(caseNumbers))
	out := make([]int64, 0, len(caseNumbers))
	for _, c := range caseNumbers {
		if c <= 0 {
			return nil, faults.Validation("case numbers must be positive")
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
