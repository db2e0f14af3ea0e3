package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

const scoreColumns = `id, user_id, post_score, comment_score, message_score, final_violation_score, updated_at`

const deltaColumns = `id, user_id, score_id, report_id, content_type, last_added_score, is_added, is_removed, created_at`

type scoreStore struct{ t *pgTx }

func scanScore(row rowScanner) (model.ViolationScore, error) {
	var v model.ViolationScore
	err := row.Scan(&v.ID, &v.UserID, &v.PostScore, &v.CommentScore, &v.MessageScore, &v.FinalViolationScore, &v.UpdatedAt)
	return v, err
}

func scanDelta(row rowScanner) (model.ScoreDelta, error) {
	var d model.ScoreDelta
	err := row.Scan(&d.ID, &d.UserID, &d.ScoreID, &d.ReportID, &d.ContentType, &d.LastAddedScore, &d.IsAdded, &d.IsRemoved, &d.CreatedAt)
	return d, err
}

func (s scoreStore) GetForUpdate(ctx context.Context, userID uuid.UUID) (model.ViolationScore, error) {
	if _, err := s.t.q.Exec(ctx, `
INSERT INTO violation_scores (id, user_id, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO NOTHING
`, uuid.New(), userID, s.t.stamp()); err != nil {
		return model.ViolationScore{}, fmt.Errorf("ensure violation score: %w", err)
	}

	score, err := scanScore(s.t.q.QueryRow(ctx, `
SELECT `+scoreColumns+`
FROM violation_scores
WHERE user_id = $1
FOR UPDATE
`, userID))
	if err != nil {
		return model.ViolationScore{}, notFound(err, "violation score not found")
	}
	return score, nil
}

func (s scoreStore) Get(ctx context.Context, userID uuid.UUID) (model.ViolationScore, bool, error) {
	score, err := scanScore(s.t.q.QueryRow(ctx, `
SELECT `+scoreColumns+`
FROM violation_scores
WHERE user_id = $1
`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ViolationScore{}, false, nil
	}
	if err != nil {
		return model.ViolationScore{}, false, fmt.Errorf("get violation score: %w", err)
	}
	return score, true, nil
}

func (s scoreStore) Update(ctx context.Context, score model.ViolationScore) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE violation_scores SET
	post_score = $2,
	comment_score = $3,
	message_score = $4,
	final_violation_score = $5,
	updated_at = $6
WHERE user_id = $1
`, score.UserID, score.PostScore, score.CommentScore, score.MessageScore, score.FinalViolationScore, score.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update violation score: %w", err)
	}
	return checkAffected(tag, "violation score not found")
}

func (s scoreStore) InsertDelta(ctx context.Context, delta model.ScoreDelta) (model.ScoreDelta, error) {
	if delta.ID == uuid.Nil {
		delta.ID = uuid.New()
	}
	if delta.CreatedAt.IsZero() {
		delta.CreatedAt = s.t.stamp()
	}
	if _, err := s.t.q.Exec(ctx, `
INSERT INTO score_deltas (`+deltaColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, delta.ID, delta.UserID, delta.ScoreID, delta.ReportID, delta.ContentType, delta.LastAddedScore,
		delta.IsAdded, delta.IsRemoved, delta.CreatedAt); err != nil {
		return model.ScoreDelta{}, fmt.Errorf("insert score delta: %w", err)
	}
	return delta, nil
}

func (s scoreStore) UpdateDelta(ctx context.Context, delta model.ScoreDelta) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE score_deltas SET
	last_added_score = $2,
	is_added = $3,
	is_removed = $4
WHERE id = $1
`, delta.ID, delta.LastAddedScore, delta.IsAdded, delta.IsRemoved)
	if err != nil {
		return fmt.Errorf("update score delta: %w", err)
	}
	return checkAffected(tag, "score delta not found")
}

func (s scoreStore) GetDeltaByReport(ctx context.Context, reportID uuid.UUID) (model.ScoreDelta, bool, error) {
	delta, err := scanDelta(s.t.q.QueryRow(ctx, `
SELECT `+deltaColumns+`
FROM score_deltas
WHERE report_id = $1
`, reportID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ScoreDelta{}, false, nil
	}
	if err != nil {
		return model.ScoreDelta{}, false, fmt.Errorf("get score delta: %w", err)
	}
	return delta, true, nil
}

func (s scoreStore) ListDecayCandidates(ctx context.Context, quietSince time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.t.q.Query(ctx, `
SELECT v.user_id
FROM violation_scores v
WHERE v.final_violation_score > 0
	AND NOT EXISTS (
		SELECT 1 FROM reports r
		WHERE r.reported_user_id = v.user_id
			AND r.status = ANY($1)
			AND r.resolved_at >= $2
	)
ORDER BY v.user_id
LIMIT $3
`, resolvedStatuses(), quietSince, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("list decay candidates: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect decay candidates: %w", err)
	}
	return ids, nil
}
