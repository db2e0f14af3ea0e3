package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

type sanctionStore struct{ t *tx }

func (s sanctionStore) Insert(_ context.Context, sanction model.Sanction) (model.Sanction, error) {
	if sanction.ID == uuid.Nil {
		sanction.ID = uuid.New()
	}
	if sanction.IsActive {
		for _, existing := range s.t.st.sanctions {
			if existing.UserID == sanction.UserID && existing.IsActive && !existing.IsDeleted {
				return model.Sanction{}, faults.Conflict("user already has an active sanction")
			}
		}
	}
	if sanction.CreatedAt.IsZero() {
		sanction.CreatedAt = s.t.now().UTC()
	}
	s.t.st.sanctions[sanction.ID] = sanction
	return sanction, nil
}

func (s sanctionStore) Update(_ context.Context, sanction model.Sanction) error {
	if _, ok := s.t.st.sanctions[sanction.ID]; !ok {
		return faults.NotFound("sanction not found")
	}
	if sanction.IsActive && !sanction.IsDeleted {
		for _, existing := range s.t.st.sanctions {
			if existing.ID != sanction.ID && existing.UserID == sanction.UserID && existing.IsActive && !existing.IsDeleted {
				return faults.Conflict("user already has an active sanction")
			}
		}
	}
	s.t.st.sanctions[sanction.ID] = sanction
	return nil
}

func (s sanctionStore) GetActive(_ context.Context, userID uuid.UUID) (model.Sanction, bool, error) {
	for _, sanction := range s.t.st.sanctions {
		if sanction.UserID == userID && sanction.IsActive && !sanction.IsDeleted {
			return sanction, true, nil
		}
	}
	return model.Sanction{}, false, nil
}

func (s sanctionStore) GetByReport(_ context.Context, reportID uuid.UUID) (model.Sanction, bool, error) {
	for _, sanction := range s.t.st.sanctions {
		if sanction.ReportID == reportID && !sanction.IsDeleted {
			return sanction, true, nil
		}
	}
	return model.Sanction{}, false, nil
}

func (s sanctionStore) ListQueued(_ context.Context, userID uuid.UUID) ([]model.Sanction, error) {
	var out []model.Sanction
	for _, sanction := range s.t.st.sanctions {
		if sanction.UserID == userID && sanction.Queued() {
			out = append(out, sanction)
		}
	}
	sortSanctions(out)
	return out, nil
}

func (s sanctionStore) ListActiveEndedBy(_ context.Context, statuses []enums.SanctionAction, now time.Time, limit int) ([]model.Sanction, error) {
	var out []model.Sanction
	for _, sanction := range s.t.st.sanctions {
		if !sanction.IsActive || sanction.IsDeleted || !statusIn(sanction.Status, statuses) {
			continue
		}
		if !sanction.EndsAt().After(now) {
			out = append(out, sanction)
		}
	}
	sortSanctions(out)
	return out[:limitOf(len(out), limit)], nil
}

func (s sanctionStore) ListActiveEnforcedBefore(_ context.Context, statuses []enums.SanctionAction, before time.Time, limit int) ([]model.Sanction, error) {
	var out []model.Sanction
	for _, sanction := range s.t.st.sanctions {
		if !sanction.IsActive || sanction.IsDeleted || !statusIn(sanction.Status, statuses) {
			continue
		}
		if !sanction.EnforceActionAt.After(before) {
			out = append(out, sanction)
		}
	}
	sortSanctions(out)
	return out[:limitOf(len(out), limit)], nil
}

func (s sanctionStore) ListUsersWithDueQueue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	active := map[uuid.UUID]bool{}
	for _, sanction := range s.t.st.sanctions {
		if sanction.IsActive && !sanction.IsDeleted {
			active[sanction.UserID] = true
		}
	}
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, sanction := range s.t.st.sanctions {
		if !sanction.Queued() || active[sanction.UserID] || seen[sanction.UserID] {
			continue
		}
		if !sanction.EnforceActionAt.After(now) {
			seen[sanction.UserID] = true
			out = append(out, sanction.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out[:limitOf(len(out), limit)], nil
}

func sortSanctions(sanctions []model.Sanction) {
	sort.Slice(sanctions, func(i, j int) bool {
		if !sanctions[i].EnforceActionAt.Equal(sanctions[j].EnforceActionAt) {
			return sanctions[i].EnforceActionAt.Before(sanctions[j].EnforceActionAt)
		}
		return sanctions[i].ID.String() < sanctions[j].ID.String()
	})
}
