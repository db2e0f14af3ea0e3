package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/repo"
)

// QuarterKey names the calendar quarter holding t, e.g. "decay:2026Q3".
func QuarterKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("decay:%dQ%d", t.Year(), (int(t.Month())-1)/3+1)
}

// QuarterlyDecay cuts every score component by a quarter for users with no
// resolved report inside the decay window. It acts once per calendar
// quarter; later ticks in the same quarter find the marker taken. Each user
// also gets a marker, so a run with failures frees the quarter for a retry
// without decaying anyone twice.
func (j *Jobs) QuarterlyDecay(ctx context.Context) (int, error) {
	if j.markers == nil {
		return 0, nil
	}

	now := j.now().UTC()
	key := QuarterKey(now)
	claimed, err := j.markers.Claim(ctx, key, decayMarkerTTL)
	if err != nil {
		return 0, err
	}
	if !claimed {
		return 0, nil
	}

	var users []uuid.UUID
	err = j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		var err error
		users, err = tx.Scores().ListDecayCandidates(ctx, now.Add(-j.windows.Decay), 0)
		return err
	})
	if err != nil {
		j.release(ctx, key)
		return 0, fmt.Errorf("list decay candidates: %w", err)
	}

	changed := 0
	var errs []error
	for _, userID := range users {
		userKey := key + ":" + userID.String()
		mine, err := j.markers.Claim(ctx, userKey, decayMarkerTTL)
		if err != nil {
			errs = append(errs, j.itemFailed(JobQuarterlyDecay, "user_id", userID, err))
			continue
		}
		if !mine {
			continue
		}
		err = j.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
			score, err := tx.Scores().GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			score.PostScore -= score.PostScore / 4
			score.CommentScore -= score.CommentScore / 4
			score.MessageScore -= score.MessageScore / 4
			score.FinalViolationScore = score.PostScore + score.CommentScore + score.MessageScore
			score.UpdatedAt = j.now().UTC()
			return tx.Scores().Update(ctx, score)
		})
		if err != nil {
			j.release(ctx, userKey)
			errs = append(errs, j.itemFailed(JobQuarterlyDecay, "user_id", userID, err))
			continue
		}
		changed++
	}

	if len(errs) > 0 {
		// users already decayed keep their own markers
		j.release(ctx, key)
	}
	j.logger.Info("quarterly decay applied", zap.String("quarter", key), zap.Int("users", changed), zap.Int("failed", len(errs)))
	return changed, errors.Join(errs...)
}

func (j *Jobs) release(ctx context.Context, key string) {
	if err := j.markers.Release(ctx, key); err != nil {
		j.logger.Warn("release decay marker failed", zap.String("key", key), zap.Error(err))
	}
}
