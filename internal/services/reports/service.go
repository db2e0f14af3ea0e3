// Package reports drives the report lifecycle: assignment, review, closing
// and the hand-off to enforcement.
package reports

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

type Enforcer interface {
	ApplyAuto(ctx context.Context, actor uuid.UUID, caseNumber int64, reportedUsername string) (enforcement.Outcome, error)
	ApplyManual(ctx context.Context, actor uuid.UUID, in enforcement.ManualAction) (enforcement.Outcome, error)
}

type Service struct {
	store    repo.Store
	enforcer Enforcer
	logger   *zap.Logger
	now      func() time.Time
}

type AdminQuery struct {
	Type       string
	Status     *enums.ReportStatus
	EmployeeID *uuid.UUID
	ReportedAt *time.Time
}

type Detail struct {
	Report        model.Report
	Events        []model.TimelineEvent
	FlaggedBanned []model.Content
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

type CloseResult struct {
	Report model.Report
	Swept  []int64
}

func NewService(store repo.Store, enforcer Enforcer, logger *zap.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, enforcer: enforcer, logger: logger, now: now}
}

// Dashboard lists the reports assigned to the acting moderator.
func (s *Service) Dashboard(ctx context.Context, actor authsvc.Identity, status *enums.ReportStatus) ([]model.Report, error) {
	filter := repo.ReportFilter{ModeratorID: &actor.EmployeeID}
	if status != nil {
		filter.Statuses = []enums.ReportStatus{*status}
	}
	return s.list(ctx, filter)
}

func (s *Service) AdminDashboard(ctx context.Context, actor authsvc.Identity, q AdminQuery) ([]model.Report, error) {
	if !actor.IsAdmin() {
		return nil, faults.Forbidden("admin role required")
	}

	filter := repo.ReportFilter{ReportedOn: q.ReportedAt}
	switch strings.ToLower(strings.TrimSpace(q.Type)) {
	case DashboardNew:
		if q.EmployeeID != nil {
			return nil, faults.Validation("emp_id cannot be combined with type=new")
		}
		if q.Status != nil && *q.Status != enums.ReportStatusOpen {
			return nil, faults.Validation("type=new only lists open reports")
		}
		filter.Unassigned = true
		filter.Statuses = []enums.ReportStatus{enums.ReportStatusOpen}
	case DashboardAssigned:
		filter.Assigned = true
		filter.ModeratorID = q.EmployeeID
		if q.Status != nil {
			filter.Statuses = []enums.ReportStatus{*q.Status}
		}
	default:
		return nil, faults.Validation("type must be new or assigned")
	}
	return s.list(ctx, filter)
}

func (s *Service) Detail(ctx context.Context, caseNumber int64) (Detail, error) {
	var out Detail
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		report, err := tx.Reports().GetByCase(ctx, caseNumber, false)
		if err != nil {
			return err
		}
		events, err := tx.Reports().ListEvents(ctx, report.ID)
		if err != nil {
			return fmt.Errorf("list report events: %w", err)
		}
		out = Detail{Report: report, Events: events}

		if report.ReportedItemType != enums.ContentTypeAccount || !report.Status.Resolved() {
			return nil
		}
		flagged, err := tx.Contents().ListFlagged(ctx, report.ID)
		if err != nil {
			return fmt.Errorf("list flagged content: %w", err)
		}
		for _, f := range flagged {
			content, err := tx.Contents().Get(ctx, enums.ContentTypePost, f.ContentID)
			if faults.Is(err, faults.KindNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if content.Status == enums.ContentStatusBanned || content.Status == enums.ContentStatusFlaggedToBan {
				out.FlaggedBanned = append(out.FlaggedBanned, content)
			}
		}
		return nil
	})
	return out, err
}

// Related lists the other open and under-review reports on the same item.
// Without the admin view, reports held by other moderators are left out.
func (s *Service) Related(ctx context.Context, actor authsvc.Identity, caseNumber int64, adminView bool) ([]model.Report, error) {
	if adminView && !actor.IsAdmin() {
		return nil, faults.Forbidden("admin role required")
	}

	var out []model.Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		report, err := tx.Reports().GetByCase(ctx, caseNumber, false)
		if err != nil {
			return err
		}
		related, err := tx.Reports().List(ctx, repo.ReportFilter{
			Statuses:      []enums.ReportStatus{enums.ReportStatusOpen, enums.ReportStatusUnderReview},
			ReportedItem:  &report.ReportedItemID,
			ExcludeReport: &report.ID,
		}, false)
		if err != nil {
			return fmt.Errorf("list related reports: %w", err)
		}
		for _, r := range related {
			if adminView || r.ModeratorID == nil || r.AssignedTo(actor.EmployeeID) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// MarkReview moves open reports into review for the acting moderator.
// Reports already in review with the actor are reported as such; anything
// else is invalid and left untouched.
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
			report, err := tx.Reports().GetByCase(ctx, caseNumber, true)
			if faults.Is(err, faults.KindNotFound) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}
			if err != nil {
				return err
			}

			switch {
			case report.Status == enums.ReportStatusUnderReview && report.AssignedTo(actor.EmployeeID):
				out.AlreadyUnderReview = append(out.AlreadyUnderReview, caseNumber)
				continue
			case report.Status != enums.ReportStatusOpen:
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			case report.ModeratorID != nil && !report.AssignedTo(actor.EmployeeID):
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}

			report.Status = enums.ReportStatusUnderReview
			report.ModeratorID = &actor.EmployeeID
			report.UpdatedAt = now
			if err := tx.Reports().Update(ctx, report); err != nil {
				return fmt.Errorf("update report: %w", err)
			}
			if err := s.event(ctx, tx, report, enums.TimelineReviewed, actor.EmployeeID); err != nil {
				return err
			}
			out.Valid = append(out.Valid, caseNumber)
		}
		return nil
	})
	return out, err
}

// Assign hands reports to a moderator. Admins may also reassign reports that
// are still open or under review.
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
			return faults.Validation("employee %s cannot moderate reports", moderatorID)
		}

		now := s.now().UTC()
		for _, caseNumber := range cases {
			report, err := tx.Reports().GetByCase(ctx, caseNumber, true)
			if faults.Is(err, faults.KindNotFound) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}
			if err != nil {
				return err
			}
			if report.Status.Final() || report.AssignedTo(moderatorID) {
				out.Invalid = append(out.Invalid, caseNumber)
				continue
			}

			report.ModeratorID = &employee.ID
			report.UpdatedAt = now
			if err := tx.Reports().Update(ctx, report); err != nil {
				return fmt.Errorf("update report: %w", err)
			}
			if err := s.event(ctx, tx, report, enums.TimelineAssigned, actor.EmployeeID); err != nil {
				return err
			}
			out.Assigned = append(out.Assigned, caseNumber)
		}
		return nil
	})
	return out, err
}

// Close dismisses a report without enforcement. Open reports on the same
// item with the same reason are swept through review into closed with it.
func (s *Service) Close(ctx context.Context, actor authsvc.Identity, caseNumber int64, note string) (CloseResult, error) {
	note = strings.TrimSpace(note)

	var out CloseResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		report, err := tx.Reports().GetByCase(ctx, caseNumber, true)
		if err != nil {
			return err
		}
		switch {
		case report.Status.Final():
			return faults.Conflict("report %d is already %s", caseNumber, report.Status)
		case report.Status != enums.ReportStatusUnderReview:
			return faults.Conflict("report %d must be under review before closing", caseNumber)
		case !report.AssignedTo(actor.EmployeeID):
			return faults.Forbidden("report %d is not assigned to you", caseNumber)
		}

		now := s.now().UTC()
		if err := s.close(ctx, tx, &report, note, actor.EmployeeID, now); err != nil {
			return err
		}
		out = CloseResult{Report: report}

		candidates, err := tx.Reports().List(ctx, repo.ReportFilter{
			Statuses:      []enums.ReportStatus{enums.ReportStatusOpen, enums.ReportStatusUnderReview},
			ReportedItem:  &report.ReportedItemID,
			ExcludeReport: &report.ID,
		}, true)
		if err != nil {
			return fmt.Errorf("list related reports: %w", err)
		}
		for _, related := range candidates {
			if related.Reason != report.Reason {
				continue
			}
			if related.ModeratorID != nil && !related.AssignedTo(actor.EmployeeID) {
				continue
			}
			if related.Status == enums.ReportStatusOpen {
				related.Status = enums.ReportStatusUnderReview
				related.ModeratorID = &actor.EmployeeID
				related.UpdatedAt = now
				if err := tx.Reports().Update(ctx, related); err != nil {
					return fmt.Errorf("update related report: %w", err)
				}
				if err := s.event(ctx, tx, related, enums.TimelineReviewed, actor.EmployeeID); err != nil {
					return err
				}
			}
			primaryID := report.ID
			related.RelatedReportID = &primaryID
			if err := s.close(ctx, tx, &related, note, actor.EmployeeID, now); err != nil {
				return err
			}
			out.Swept = append(out.Swept, related.CaseNumber)
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	s.logger.Info("report closed",
		zap.Int64("case_number", caseNumber),
		zap.String("moderator_id", actor.EmployeeID.String()),
		zap.Int("swept", len(out.Swept)),
	)
	return out, nil
}

func (s *Service) ApplyAuto(ctx context.Context, actor authsvc.Identity, caseNumber int64, reportedUsername string) (enforcement.Outcome, error) {
	if strings.TrimSpace(reportedUsername) == "" {
		return enforcement.Outcome{}, faults.Validation("reported_username is required")
	}
	return s.enforcer.ApplyAuto(ctx, actor.EmployeeID, caseNumber, strings.TrimSpace(reportedUsername))
}

func (s *Service) ApplyManual(ctx context.Context, actor authsvc.Identity, in enforcement.ManualAction) (enforcement.Outcome, error) {
	in.ReportedUsername = strings.TrimSpace(in.ReportedUsername)
	if in.ReportedUsername == "" {
		return enforcement.Outcome{}, faults.Validation("reported_username is required")
	}
	return s.enforcer.ApplyManual(ctx, actor.EmployeeID, in)
}

func (s *Service) close(ctx context.Context, tx repo.Tx, report *model.Report, note string, actor uuid.UUID, now time.Time) error {
	report.Status = enums.ReportStatusClosed
	report.ModeratorNote = note
	report.UpdatedAt = now
	if err := tx.Reports().Update(ctx, *report); err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return s.event(ctx, tx, *report, enums.TimelineClosed, actor)
}

func (s *Service) list(ctx context.Context, filter repo.ReportFilter) ([]model.Report, error) {
	var out []model.Report
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Reports().List(ctx, filter, false)
		return err
	})
	return out, err
}

func (s *Service) event(ctx context.Context, tx repo.Tx, report model.Report, event enums.TimelineEvent, actor uuid.UUID) error {
	return tx.Reports().AppendEvent(ctx, model.TimelineEvent{
		SubjectID: report.ID,
		Event:     event,
		Status:    string(report.Status),
		ActorID:   &actor,
		Note:      report.ModeratorNote,
		CreatedAt: s.now().UTC(),
	})
}

// normalizeCases dedupes and sorts case numbers so row locks are always
// taken in ascending order.
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
