package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

const reportColumns = `id, case_number, reporter_user_id, reported_user_id, reported_item_id, reported_item_type,
	reason, reason_user_id, status, moderator_id, moderator_note, related_report_id, created_at, updated_at, resolved_at`

type reportStore struct{ t *pgTx }

func scanReport(row rowScanner) (model.Report, error) {
	var r model.Report
	err := row.Scan(
		&r.ID, &r.CaseNumber, &r.ReporterUserID, &r.ReportedUserID, &r.ReportedItemID, &r.ReportedItemType,
		&r.Reason, &r.ReasonUserID, &r.Status, &r.ModeratorID, &r.ModeratorNote, &r.RelatedReportID,
		&r.CreatedAt, &r.UpdatedAt, &r.ResolvedAt,
	)
	return r, err
}

func collectReports(rows pgx.Rows) ([]model.Report, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Report, error) {
		return scanReport(row)
	})
}

func forUpdateClause(forUpdate bool) string {
	if forUpdate {
		return "FOR UPDATE"
	}
	return ""
}

func (s reportStore) Create(ctx context.Context, report model.Report) (model.Report, error) {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.Status == "" {
		report.Status = enums.ReportStatusOpen
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.t.stamp()
	}
	report.UpdatedAt = report.CreatedAt

	if err := s.t.q.QueryRow(ctx, `
INSERT INTO reports (
	id,
	reporter_user_id,
	reported_user_id,
	reported_item_id,
	reported_item_type,
	reason,
	reason_user_id,
	status,
	moderator_id,
	moderator_note,
	related_report_id,
	created_at,
	updated_at,
	resolved_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12, $13)
RETURNING case_number
`, report.ID, report.ReporterUserID, report.ReportedUserID, report.ReportedItemID, report.ReportedItemType,
		report.Reason, report.ReasonUserID, report.Status, report.ModeratorID, report.ModeratorNote,
		report.RelatedReportID, report.CreatedAt, report.ResolvedAt,
	).Scan(&report.CaseNumber); err != nil {
		return model.Report{}, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}

func (s reportStore) Get(ctx context.Context, id uuid.UUID) (model.Report, error) {
	report, err := scanReport(s.t.q.QueryRow(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE id = $1
`, id))
	if err != nil {
		return model.Report{}, notFound(err, "report not found")
	}
	return report, nil
}

func (s reportStore) GetByCase(ctx context.Context, caseNumber int64, forUpdate bool) (model.Report, error) {
	report, err := scanReport(s.t.q.QueryRow(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE case_number = $1
`+forUpdateClause(forUpdate), caseNumber))
	if err != nil {
		return model.Report{}, notFound(err, fmt.Sprintf("report %d not found", caseNumber))
	}
	return report, nil
}

func (s reportStore) List(ctx context.Context, filter repo.ReportFilter, forUpdate bool) ([]model.Report, error) {
	w := &where{}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", textArray(filter.Statuses))
	}
	if filter.ModeratorID != nil {
		w.add("moderator_id = ?", *filter.ModeratorID)
	}
	if filter.Unassigned {
		w.add("moderator_id IS NULL")
	}
	if filter.Assigned {
		w.add("moderator_id IS NOT NULL")
	}
	if filter.ReportedItem != nil {
		w.add("reported_item_id = ?", *filter.ReportedItem)
	}
	if filter.ExcludeReport != nil {
		w.add("id <> ?", *filter.ExcludeReport)
	}
	if filter.ReportedOn != nil {
		start, end := dayBounds(*filter.ReportedOn)
		w.add("created_at >= ? AND created_at < ?", start, end)
	}

	query := `
SELECT ` + reportColumns + `
FROM reports
` + w.String() + `
ORDER BY case_number
LIMIT ` + w.arg(limitArg(filter.Limit)) + `
` + forUpdateClause(forUpdate)

	rows, err := s.t.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out, err := collectReports(rows)
	if err != nil {
		return nil, fmt.Errorf("collect reports: %w", err)
	}
	return out, nil
}

func (s reportStore) ListRelatedTo(ctx context.Context, primaryID uuid.UUID, statuses []enums.ReportStatus, forUpdate bool) ([]model.Report, error) {
	rows, err := s.t.q.Query(ctx, `
SELECT `+reportColumns+`
FROM reports
WHERE related_report_id = $1
	AND ($2::text[] IS NULL OR status = ANY($2))
ORDER BY case_number
`+forUpdateClause(forUpdate), primaryID, textArray(statuses))
	if err != nil {
		return nil, fmt.Errorf("list related reports: %w", err)
	}
	out, err := collectReports(rows)
	if err != nil {
		return nil, fmt.Errorf("collect related reports: %w", err)
	}
	return out, nil
}

func (s reportStore) Update(ctx context.Context, report model.Report) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE reports SET
	status = $2,
	moderator_id = $3,
	moderator_note = $4,
	related_report_id = $5,
	updated_at = $6,
	resolved_at = $7
WHERE id = $1
`, report.ID, report.Status, report.ModeratorID, report.ModeratorNote, report.RelatedReportID, report.UpdatedAt, report.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return checkAffected(tag, "report not found")
}

func (s reportStore) HasResolvedSince(ctx context.Context, reportedUserID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	if err := s.t.q.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM reports
	WHERE reported_user_id = $1
		AND status = ANY($2)
		AND resolved_at >= $3
)
`, reportedUserID, resolvedStatuses(), since).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recent resolved reports: %w", err)
	}
	return exists, nil
}

func (s reportStore) AppendEvent(ctx context.Context, event model.TimelineEvent) error {
	return appendEvent(ctx, s.t, "report_events", "report_id", event)
}

func (s reportStore) ListEvents(ctx context.Context, reportID uuid.UUID) ([]model.TimelineEvent, error) {
	return listEvents(ctx, s.t, "report_events", "report_id", reportID)
}

func resolvedStatuses() []string {
	return textArray([]enums.ReportStatus{
		enums.ReportStatusResolved,
		enums.ReportStatusResolvedRelated,
		enums.ReportStatusFutureResolved,
		enums.ReportStatusFutureResolvedRelated,
	})
}

func appendEvent(ctx context.Context, t *pgTx, table, subjectColumn string, event model.TimelineEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = t.stamp()
	}
	if _, err := t.q.Exec(ctx, `
INSERT INTO `+table+` (id, `+subjectColumn+`, event, status, actor_id, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, event.ID, event.SubjectID, event.Event, event.Status, event.ActorID, event.Note, event.CreatedAt); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

func listEvents(ctx context.Context, t *pgTx, table, subjectColumn string, subjectID uuid.UUID) ([]model.TimelineEvent, error) {
	rows, err := t.q.Query(ctx, `
SELECT id, `+subjectColumn+`, event, status, actor_id, note, created_at
FROM `+table+`
WHERE `+subjectColumn+` = $1
ORDER BY seq
`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TimelineEvent, error) {
		var e model.TimelineEvent
		err := row.Scan(&e.ID, &e.SubjectID, &e.Event, &e.Status, &e.ActorID, &e.Note, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", table, err)
	}
	return out, nil
}
