package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

const appealColumns = `id, case_number, user_id, report_id, content_id, content_type, detail,
	is_policy_followed, status, moderator_id, moderator_note, created_at, updated_at`

type appealStore struct{ t *pgTx }

func scanAppeal(row rowScanner) (model.Appeal, error) {
	var a model.Appeal
	err := row.Scan(
		&a.ID, &a.CaseNumber, &a.UserID, &a.ReportID, &a.ContentID, &a.ContentType, &a.Detail,
		&a.IsPolicyFollowed, &a.Status, &a.ModeratorID, &a.ModeratorNote, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (s appealStore) Create(ctx context.Context, appeal model.Appeal) (model.Appeal, error) {
	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	if appeal.Status == "" {
		appeal.Status = enums.AppealStatusOpen
	}
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = s.t.stamp()
	}
	appeal.UpdatedAt = appeal.CreatedAt

	if err := s.t.q.QueryRow(ctx, `
INSERT INTO appeals (
	id,
	user_id,
	report_id,
	content_id,
	content_type,
	detail,
	is_policy_followed,
	status,
	moderator_id,
	moderator_note,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
RETURNING case_number
`, appeal.ID, appeal.UserID, appeal.ReportID, appeal.ContentID, appeal.ContentType, appeal.Detail,
		appeal.IsPolicyFollowed, appeal.Status, appeal.ModeratorID, appeal.ModeratorNote, appeal.CreatedAt,
	).Scan(&appeal.CaseNumber); err != nil {
		return model.Appeal{}, fmt.Errorf("create appeal: %w", err)
	}
	return appeal, nil
}

func (s appealStore) GetByCase(ctx context.Context, caseNumber int64, forUpdate bool) (model.Appeal, error) {
	appeal, err := scanAppeal(s.t.q.QueryRow(ctx, `
SELECT `+appealColumns+`
FROM appeals
WHERE case_number = $1
`+forUpdateClause(forUpdate), caseNumber))
	if err != nil {
		return model.Appeal{}, notFound(err, fmt.Sprintf("appeal %d not found", caseNumber))
	}
	return appeal, nil
}

func (s appealStore) List(ctx context.Context, filter repo.AppealFilter, forUpdate bool) ([]model.Appeal, error) {
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
	if filter.ReportID != nil {
		w.add("report_id = ?", *filter.ReportID)
	}
	if filter.UserID != nil {
		w.add("user_id = ?", *filter.UserID)
	}
	if filter.ContentType != nil {
		w.add("content_type = ?", *filter.ContentType)
	}
	if len(filter.ContentIDs) > 0 {
		ids := make([]string, 0, len(filter.ContentIDs))
		for _, id := range filter.ContentIDs {
			ids = append(ids, id.String())
		}
		w.add("content_id = ANY(?::uuid[])", ids)
	}
	if filter.CreatedBefore != nil {
		w.add("created_at < ?", *filter.CreatedBefore)
	}
	if filter.CreatedOn != nil {
		start, end := dayBounds(*filter.CreatedOn)
		w.add("created_at >= ? AND created_at < ?", start, end)
	}
	if filter.ExcludeAppeal != nil {
		w.add("id <> ?", *filter.ExcludeAppeal)
	}

	query := `
SELECT ` + appealColumns + `
FROM appeals
` + w.String() + `
ORDER BY case_number
LIMIT ` + w.arg(limitArg(filter.Limit)) + `
` + forUpdateClause(forUpdate)

	rows, err := s.t.q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Appeal, error) {
		return scanAppeal(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect appeals: %w", err)
	}
	return out, nil
}

func (s appealStore) Update(ctx context.Context, appeal model.Appeal) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE appeals SET
	is_policy_followed = $2,
	status = $3,
	moderator_id = $4,
	moderator_note = $5,
	updated_at = $6
WHERE id = $1
`, appeal.ID, appeal.IsPolicyFollowed, appeal.Status, appeal.ModeratorID, appeal.ModeratorNote, appeal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	return checkAffected(tag, "appeal not found")
}

func (s appealStore) AppendEvent(ctx context.Context, event model.TimelineEvent) error {
	return appendEvent(ctx, s.t, "appeal_events", "appeal_id", event)
}

func (s appealStore) ListEvents(ctx context.Context, appealID uuid.UUID) ([]model.TimelineEvent, error) {
	return listEvents(ctx, s.t, "appeal_events", "appeal_id", appealID)
}
