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

type contentStore struct{ t *tx }

func (s contentStore) Get(_ context.Context, contentType enums.ContentType, id uuid.UUID) (model.Content, error) {
	content, ok := s.t.st.contents[contentKey{kind: contentType, id: id}]
	if !ok || content.Status == enums.ContentStatusRemoved {
		return model.Content{}, faults.NotFound("%s not found", contentType)
	}
	return content, nil
}

func (s contentStore) Create(_ context.Context, content model.Content) (model.Content, error) {
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
		content.UpdatedAt = s.t.now().UTC()
	}
	s.t.st.contents[contentKey{kind: content.Type, id: content.ID}] = content
	return content, nil
}

func (s contentStore) UpdateStatus(_ context.Context, contentType enums.ContentType, id uuid.UUID, status enums.ContentStatus, at time.Time) error {
	key := contentKey{kind: contentType, id: id}
	content, ok := s.t.st.contents[key]
	if !ok {
		return faults.NotFound("%s not found", contentType)
	}
	content.Status = status
	content.UpdatedAt = at
	if status == enums.ContentStatusBanned {
		bannedAt := at
		content.BannedAt = &bannedAt
	} else {
		content.BannedAt = nil
	}
	s.t.st.contents[key] = content
	return nil
}

func (s contentStore) SetBanFinal(_ context.Context, contentType enums.ContentType, id uuid.UUID, at time.Time) error {
	key := contentKey{kind: contentType, id: id}
	content, ok := s.t.st.contents[key]
	if !ok {
		return faults.NotFound("%s not found", contentType)
	}
	content.IsBanFinal = true
	content.UpdatedAt = at
	s.t.st.contents[key] = content
	return nil
}

func (s contentStore) ListBannedBefore(_ context.Context, bannedBefore time.Time, limit int) ([]model.Content, error) {
	var out []model.Content
	for _, content := range s.t.st.contents {
		if content.Status != enums.ContentStatusBanned || content.IsBanFinal || content.BannedAt == nil {
			continue
		}
		if !content.BannedAt.After(bannedBefore) {
			out = append(out, content)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BannedAt.Before(*out[j].BannedAt) })
	return out[:limitOf(len(out), limit)], nil
}

func (s contentStore) InsertFlagged(_ context.Context, reportID uuid.UUID, contentIDs []uuid.UUID) error {
	for _, contentID := range contentIDs {
		row := model.FlaggedContent{ID: uuid.New(), ReportID: reportID, ContentID: contentID}
		s.t.st.flagged[row.ID] = row
	}
	return nil
}

func (s contentStore) ListFlagged(_ context.Context, reportID uuid.UUID) ([]model.FlaggedContent, error) {
	var out []model.FlaggedContent
	for _, row := range s.t.st.flagged {
		if row.ReportID == reportID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentID.String() < out[j].ContentID.String() })
	return out, nil
}

func (s contentStore) MarkFlaggedRestored(_ context.Context, id uuid.UUID) error {
	row, ok := s.t.st.flagged[id]
	if !ok {
		return faults.NotFound("flagged content not found")
	}
	row.IsRestored = true
	s.t.st.flagged[id] = row
	return nil
}
