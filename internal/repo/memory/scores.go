package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

type scoreStore struct{ t *tx }

func (s scoreStore) GetForUpdate(_ context.Context, userID uuid.UUID) (model.ViolationScore, error) {
	if score, ok := s.t.st.scores[userID]; ok {
		return score, nil
	}
	score := model.ViolationScore{ID: uuid.New(), UserID: userID, UpdatedAt: s.t.now().UTC()}
	s.t.st.scores[userID] = score
	return score, nil
}

func (s scoreStore) Get(_ context.Context, userID uuid.UUID) (model.ViolationScore, bool, error) {
	score, ok := s.t.st.scores[userID]
	return score, ok, nil
}

func (s scoreStore) Update(_ context.Context, score model.ViolationScore) error {
	if _, ok := s.t.st.scores[score.UserID]; !ok {
		return faults.NotFound("violation score not found")
	}
	s.t.st.scores[score.UserID] = score
	return nil
}

func (s scoreStore) InsertDelta(_ context.Context, delta model.ScoreDelta) (model.ScoreDelta, error) {
	if delta.ID == uuid.Nil {
		delta.ID = uuid.New()
	}
	if delta.CreatedAt.IsZero() {
		delta.CreatedAt = s.t.now().UTC()
	}
	s.t.st.deltas[delta.ID] = delta
	return delta, nil
}

func (s scoreStore) UpdateDelta(_ context.Context, delta model.ScoreDelta) error {
	if _, ok := s.t.st.deltas[delta.ID]; !ok {
		return faults.NotFound("score delta not found")
	}
	s.t.st.deltas[delta.ID] = delta
	return nil
}

func (s scoreStore) GetDeltaByReport(_ context.Context, reportID uuid.UUID) (model.ScoreDelta, bool, error) {
	for _, delta := range s.t.st.deltas {
		if delta.ReportID == reportID {
			return delta, true, nil
		}
	}
	return model.ScoreDelta{}, false, nil
}

func (s scoreStore) ListDecayCandidates(ctx context.Context, quietSince time.Time, limit int) ([]uuid.UUID, error) {
	reports := reportStore{s.t}
	var out []uuid.UUID
	for userID, score := range s.t.st.scores {
		if score.FinalViolationScore <= 0 {
			continue
		}
		recent, err := reports.HasResolvedSince(ctx, userID, quietSince)
		if err != nil {
			return nil, err
		}
		if !recent {
			out = append(out, userID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out[:limitOf(len(out), limit)], nil
}
