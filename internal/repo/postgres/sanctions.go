package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

const sanctionColumns = `id, user_id, report_id, status, duration_hours, enforce_action_at, is_active,
	is_enforce_action_early, content_type, content_id, concluded_at, is_deleted, created_at`

// queuedPredicate matches model.Sanction.Queued.
const queuedPredicate = `NOT is_active AND concluded_at IS NULL AND NOT is_deleted`

type sanctionStore struct{ t *pgTx }

func scanSanction(row rowScanner) (model.Sanction, error) {
	var s model.Sanction
	err := row.Scan(
		&s.ID, &s.UserID, &s.ReportID, &s.Status, &s.DurationHours, &s.EnforceActionAt, &s.IsActive,
		&s.IsEnforceActionEarly, &s.ContentType, &s.ContentID, &s.ConcludedAt, &s.IsDeleted, &s.CreatedAt,
	)
	return s, err
}

func collectSanctions(rows pgx.Rows) ([]model.Sanction, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Sanction, error) {
		return scanSanction(row)
	})
}

func (s sanctionStore) Insert(ctx context.Context, sanction model.Sanction) (model.Sanction, error) {
	if sanction.ID == uuid.Nil {
		sanction.ID = uuid.New()
	}
	if sanction.CreatedAt.IsZero() {
		sanction.CreatedAt = s.t.stamp()
	}

	if _, err := s.t.q.Exec(ctx, `
INSERT INTO sanctions (`+sanctionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`, sanction.ID, sanction.UserID, sanction.ReportID, sanction.Status, sanction.DurationHours, sanction.EnforceActionAt,
		sanction.IsActive, sanction.IsEnforceActionEarly, sanction.ContentType, sanction.ContentID, sanction.ConcludedAt,
		sanction.IsDeleted, sanction.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.Sanction{}, faults.Conflict("user already has an active sanction")
		}
		return model.Sanction{}, fmt.Errorf("insert sanction: %w", err)
	}
	return sanction, nil
}

func (s sanctionStore) Update(ctx context.Context, sanction model.Sanction) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE sanctions SET
	status = $2,
	duration_hours = $3,
	enforce_action_at = $4,
	is_active = $5,
	is_enforce_action_early = $6,
	concluded_at = $7,
	is_deleted = $8
WHERE id = $1
`, sanction.ID, sanction.Status, sanction.DurationHours, sanction.EnforceActionAt, sanction.IsActive,
		sanction.IsEnforceActionEarly, sanction.ConcludedAt, sanction.IsDeleted)
	if err != nil {
		if isUniqueViolation(err) {
			return faults.Conflict("user already has an active sanction")
		}
		return fmt.Errorf("update sanction: %w", err)
	}
	return checkAffected(tag, "sanction not found")
}

func (s sanctionStore) GetActive(ctx context.Context, userID uuid.UUID) (model.Sanction, bool, error) {
	return s.getOne(ctx, `
SELECT `+sanctionColumns+`
FROM sanctions
WHERE user_id = $1 AND is_active AND NOT is_deleted
`, userID)
}

func (s sanctionStore) GetByReport(ctx context.Context, reportID uuid.UUID) (model.Sanction, bool, error) {
	return s.getOne(ctx, `
SELECT `+sanctionColumns+`
FROM sanctions
WHERE report_id = $1 AND NOT is_deleted
ORDER BY created_at DESC
LIMIT 1
`, reportID)
}

func (s sanctionStore) getOne(ctx context.Context, query string, args ...any) (model.Sanction, bool, error) {
	sanction, err := scanSanction(s.t.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Sanction{}, false, nil
	}
	if err != nil {
		return model.Sanction{}, false, fmt.Errorf("get sanction: %w", err)
	}
	return sanction, true, nil
}

func (s sanctionStore) ListQueued(ctx context.Context, userID uuid.UUID) ([]model.Sanction, error) {
	return s.list(ctx, `
SELECT `+sanctionColumns+`
FROM sanctions
WHERE user_id = $1 AND `+queuedPredicate+`
ORDER BY enforce_action_at, id
`, userID)
}

func (s sanctionStore) ListActiveEndedBy(ctx context.Context, statuses []enums.SanctionAction, now time.Time, limit int) ([]model.Sanction, error) {
	return s.list(ctx, `
SELECT `+sanctionColumns+`
FROM sanctions
WHERE is_active AND NOT is_deleted
	AND ($1::text[] IS NULL OR status = ANY($1))
	AND enforce_action_at + make_interval(hours => duration_hours) <= $2
ORDER BY enforce_action_at, id
LIMIT $3
`, textArray(statuses), now, limitArg(limit))
}

func (s sanctionStore) ListActiveEnforcedBefore(ctx context.Context, statuses []enums.SanctionAction, before time.Time, limit int) ([]model.Sanction, error) {
	return s.list(ctx, `
SELECT `+sanctionColumns+`
FROM sanctions
WHERE is_active AND NOT is_deleted
	AND ($1::text[] IS NULL OR status = ANY($1))
	AND enforce_action_at <= $2
ORDER BY enforce_action_at, id
LIMIT $3
`, textArray(statuses), before, limitArg(limit))
}

func (s sanctionStore) ListUsersWithDueQueue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.t.q.Query(ctx, `
SELECT DISTINCT q.user_id
FROM sanctions q
WHERE NOT q.is_active AND q.concluded_at IS NULL AND NOT q.is_deleted
	AND q.enforce_action_at <= $1
	AND NOT EXISTS (
		SELECT 1 FROM sanctions a
		WHERE a.user_id = q.user_id AND a.is_active AND NOT a.is_deleted
	)
ORDER BY q.user_id
LIMIT $2
`, now, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list users with due queue: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect users with due queue: %w", err)
	}
	return ids, nil
}

func (s sanctionStore) list(ctx context.Context, query string, args ...any) ([]model.Sanction, error) {
	rows, err := s.t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	out, err := collectSanctions(rows)
	if err != nil {
		return nil, fmt.Errorf("collect sanctions: %w", err)
	}
	return out, nil
}
