package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

const contentColumns = `id, type, owner_user_id, status, is_ban_final, banned_at, updated_at`

type contentStore struct{ t *pgTx }

func scanContent(row rowScanner) (model.Content, error) {
	var c model.Content
	err := row.Scan(&c.ID, &c.Type, &c.OwnerUserID, &c.Status, &c.IsBanFinal, &c.BannedAt, &c.UpdatedAt)
	return c, err
}

func (s contentStore) Get(ctx context.Context, contentType enums.ContentType, id uuid.UUID) (model.Content, error) {
	content, err := scanContent(s.t.q.QueryRow(ctx, `
SELECT `+contentColumns+`
FROM contents
WHERE type = $1 AND id = $2 AND status <> $3
`, contentType, id, enums.ContentStatusRemoved))
	if err != nil {
		return model.Content{}, notFound(err, string(contentType)+" not found")
	}
	return content, nil
}

func (s contentStore) Create(ctx context.Context, content model.Content) (model.Content, error) {
	if !content.Type.Stored() {
		return model.Content{}, faults.Validation("unsupported content type %q", content.Type)
	}
	if content.ID == uuid.Nil {
		content.ID = uuid.New()
	}
	if content.Status == "" {
		content.Status = enums.ContentStatusPublished
	}
	if content.UpdatedAt.IsZero() {
		content.UpdatedAt = s.t.stamp()
	}

	if _, err := s.t.q.Exec(ctx, `
INSERT INTO contents (`+contentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, content.ID, content.Type, content.OwnerUserID, content.Status, content.IsBanFinal, content.BannedAt, content.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Content{}, faults.Conflict("%s already exists", content.Type)
		}
		return model.Content{}, fmt.Errorf("create content: %w", err)
	}
	return content, nil
}

func (s contentStore) UpdateStatus(ctx context.Context, contentType enums.ContentType, id uuid.UUID, status enums.ContentStatus, at time.Time) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE contents SET
	status = $3,
	updated_at = $4,
	banned_at = CASE WHEN $3 = $5 THEN $4 ELSE NULL END
WHERE type = $1 AND id = $2
`, contentType, id, status, at, enums.ContentStatusBanned)
	if err != nil {
		return fmt.Errorf("update content status: %w", err)
	}
	return checkAffected(tag, string(contentType)+" not found")
}

func (s contentStore) SetBanFinal(ctx context.Context, contentType enums.ContentType, id uuid.UUID, at time.Time) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE contents SET
	is_ban_final = TRUE,
	updated_at = $3
WHERE type = $1 AND id = $2
`, contentType, id, at)
	if err != nil {
		return fmt.Errorf("set content ban final: %w", err)
	}
	return checkAffected(tag, string(contentType)+" not found")
}

func (s contentStore) ListBannedBefore(ctx context.Context, bannedBefore time.Time, limit int) ([]model.Content, error) {
	rows, err := s.t.q.Query(ctx, `
SELECT `+contentColumns+`
FROM contents
WHERE status = $1
	AND NOT is_ban_final
	AND banned_at IS NOT NULL
	AND banned_at <= $2
ORDER BY banned_at
LIMIT $3
`, enums.ContentStatusBanned, bannedBefore, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list banned contents: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Content, error) {
		return scanContent(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect banned contents: %w", err)
	}
	return out, nil
}

func (s contentStore) InsertFlagged(ctx context.Context, reportID uuid.UUID, contentIDs []uuid.UUID) error {
	if len(contentIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, contentID := range contentIDs {
		batch.Queue(`
INSERT INTO account_report_flagged_contents (id, report_id, content_id, is_restored)
VALUES ($1, $2, $3, FALSE)
`, uuid.New(), reportID, contentID)
	}
	if err := s.t.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert flagged contents: %w", err)
	}
	return nil
}

func (s contentStore) ListFlagged(ctx context.Context, reportID uuid.UUID) ([]model.FlaggedContent, error) {
	rows, err := s.t.q.Query(ctx, `
SELECT id, report_id, content_id, is_restored
FROM account_report_flagged_contents
WHERE report_id = $1
ORDER BY content_id
`, reportID)
	if err != nil {
		return nil, fmt.Errorf("list flagged contents: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.FlaggedContent, error) {
		var f model.FlaggedContent
		err := row.Scan(&f.ID, &f.ReportID, &f.ContentID, &f.IsRestored)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect flagged contents: %w", err)
	}
	return out, nil
}

func (s contentStore) MarkFlaggedRestored(ctx context.Context, id uuid.UUID) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE account_report_flagged_contents SET is_restored = TRUE WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("mark flagged content restored: %w", err)
	}
	return checkAffected(tag, "flagged content not found")
}
