package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type reportStore struct{ t *tx }

func (s reportStore) Create(_ context.Context, report model.Report) (model.Report, error) {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	s.t.st.reportSeq++
	report.CaseNumber = s.t.st.reportSeq
	now := s.t.now().UTC()
	if report.Status == "" {
		report.Status = enums.ReportStatusOpen
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = report.CreatedAt
	s.t.st.reports[report.ID] = report
	return report, nil
}

func (s reportStore) Get(_ context.Context, id uuid.UUID) (model.Report, error) {
	report, ok := s.t.st.reports[id]
	if !ok {
		return model.Report{}, faults.NotFound("report not found")
	}
	return report, nil
}

func (s reportStore) GetByCase(_ context.Context, caseNumber int64, _ bool) (model.Report, error) {
	for _, report := range s.t.st.reports {
		if report.CaseNumber == caseNumber {
			return report, nil
		}
	}
	return model.Report{}, faults.NotFound("report %d not found", caseNumber)
}

func (s reportStore) List(_ context.Context, filter repo.ReportFilter, _ bool) ([]model.Report, error) {
	var out []model.Report
	for _, report := range s.t.st.reports {
		if !statusIn(report.Status, filter.Statuses) {
			continue
		}
		if filter.ModeratorID != nil && !report.AssignedTo(*filter.ModeratorID) {
			continue
		}
		if filter.Unassigned && report.ModeratorID != nil {
			continue
		}
		if filter.Assigned && report.ModeratorID == nil {
			continue
		}
		if filter.ReportedItem != nil && report.ReportedItemID != *filter.ReportedItem {
			continue
		}
		if filter.ExcludeReport != nil && report.ID == *filter.ExcludeReport {
			continue
		}
		if filter.ReportedOn != nil && !sameDay(report.CreatedAt, *filter.ReportedOn) {
			continue
		}
		out = append(out, report)
	}
	sortReports(out)
	return out[:limitOf(len(out), filter.Limit)], nil
}

func (s reportStore) ListRelatedTo(_ context.Context, primaryID uuid.UUID, statuses []enums.ReportStatus, _ bool) ([]model.Report, error) {
	var out []model.Report
	for _, report := range s.t.st.reports {
		if report.RelatedReportID != nil && *report.RelatedReportID == primaryID && statusIn(report.Status, statuses) {
			out = append(out, report)
		}
	}
	sortReports(out)
	return out, nil
}

func (s reportStore) Update(_ context.Context, report model.Report) error {
	if _, ok := s.t.st.reports[report.ID]; !ok {
		return faults.NotFound("report not found")
	}
	s.t.st.reports[report.ID] = report
	return nil
}

func (s reportStore) HasResolvedSince(_ context.Context, reportedUserID uuid.UUID, since time.Time) (bool, error) {
	for _, report := range s.t.st.reports {
		if report.ReportedUserID != reportedUserID || !report.Status.Resolved() || report.ResolvedAt == nil {
			continue
		}
		if !report.ResolvedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s reportStore) AppendEvent(_ context.Context, event model.TimelineEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.t.st.reportEvents[event.SubjectID] = append(s.t.st.reportEvents[event.SubjectID], event)
	return nil
}

func (s reportStore) ListEvents(_ context.Context, reportID uuid.UUID) ([]model.TimelineEvent, error) {
	return append([]model.TimelineEvent(nil), s.t.st.reportEvents[reportID]...), nil
}

func sortReports(reports []model.Report) {
	sort.Slice(reports, func(i, j int) bool { return reports[i].CaseNumber < reports[j].CaseNumber })
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
