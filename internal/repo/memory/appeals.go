package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type appealStore struct{ t *tx }

func (s appealStore) Create(_ context.Context, appeal model.Appeal) (model.Appeal, error) {
	if appeal.ID == uuid.Nil {
		appeal.ID = uuid.New()
	}
	s.t.st.appealSeq++
	appeal.CaseNumber = s.t.st.appealSeq
	if appeal.Status == "" {
		appeal.Status = enums.AppealStatusOpen
	}
	if appeal.CreatedAt.IsZero() {
		appeal.CreatedAt = s.t.now().UTC()
	}
	appeal.UpdatedAt = appeal.CreatedAt
	s.t.st.appeals[appeal.ID] = appeal
	return appeal, nil
}

func (s appealStore) GetByCase(_ context.Context, caseNumber int64, _ bool) (model.Appeal, error) {
	for _, appeal := range s.t.st.appeals {
		if appeal.CaseNumber == caseNumber {
			return appeal, nil
		}
	}
	return model.Appeal{}, faults.NotFound("appeal %d not found", caseNumber)
}

func (s appealStore) List(_ context.Context, filter repo.AppealFilter, _ bool) ([]model.Appeal, error) {
	var out []model.Appeal
	for _, appeal := range s.t.st.appeals {
		if !statusIn(appeal.Status, filter.Statuses) {
			continue
		}
		if filter.ModeratorID != nil && !appeal.AssignedTo(*filter.ModeratorID) {
			continue
		}
		if filter.Unassigned && appeal.ModeratorID != nil {
			continue
		}
		if filter.Assigned && appeal.ModeratorID == nil {
			continue
		}
		if filter.ReportID != nil && appeal.ReportID != *filter.ReportID {
			continue
		}
		if filter.UserID != nil && appeal.UserID != *filter.UserID {
			continue
		}
		if filter.ContentType != nil && appeal.ContentType != *filter.ContentType {
			continue
		}
		if len(filter.ContentIDs) > 0 && !statusIn(appeal.ContentID, filter.ContentIDs) {
			continue
		}
		if filter.CreatedBefore != nil && !appeal.CreatedAt.Before(*filter.CreatedBefore) {
			continue
		}
		if filter.CreatedOn != nil && !sameDay(appeal.CreatedAt, *filter.CreatedOn) {
			continue
		}
		if filter.ExcludeAppeal != nil && appeal.ID == *filter.ExcludeAppeal {
			continue
		}
		out = append(out, appeal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CaseNumber < out[j].CaseNumber })
	return out[:limitOf(len(out), filter.Limit)], nil
}

func (s appealStore) Update(_ context.Context, appeal model.Appeal) error {
	if _, ok := s.t.st.appeals[appeal.ID]; !ok {
		return faults.NotFound("appeal not found")
	}
	s.t.st.appeals[appeal.ID] = appeal
	return nil
}

func (s appealStore) AppendEvent(_ context.Context, event model.TimelineEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.t.st.appealEvents[event.SubjectID] = append(s.t.st.appealEvents[event.SubjectID], event)
	return nil
}

func (s appealStore) ListEvents(_ context.Context, appealID uuid.UUID) ([]model.TimelineEvent, error) {
	return append([]model.TimelineEvent(nil), s.t.st.appealEvents[appealID]...), nil
}
