package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

type CaseListRequest struct {
	CaseNumberList []int64 `json:"case_number_list"`
}

type AssignRequest struct {
	CaseNumberList []int64   `json:"case_number_list"`
	EmployeeID     uuid.UUID `json:"emp_id"`
}

type NoteRequest struct {
	ModeratorNote string `json:"moderator_note"`
}

type AutoActionRequest struct {
	CaseNumber       int64  `json:"case_number"`
	ReportedUsername string `json:"reported_username"`
}

type ManualActionRequest struct {
	CaseNumber         int64       `json:"case_number"`
	ReportedUsername   string      `json:"reported_username"`
	Action             string      `json:"action"`
	Duration           int         `json:"duration"`
	ContentsToBeBanned []uuid.UUID `json:"contents_to_be_banned,omitempty"`
}

type AppealActionRequest struct {
	CaseNumber    int64  `json:"case_number"`
	Action        string `json:"action"`
	ModeratorNote string `json:"moderator_note"`
}

// MessageResponse is the success envelope of mutating endpoints.
type MessageResponse struct {
	Message           string `json:"message"`
	Detail            string `json:"detail,omitempty"`
	AdditionalMessage string `json:"additional_message,omitempty"`
}

type ReviewResponse struct {
	Message            string  `json:"message"`
	Valid              []int64 `json:"valid"`
	Invalid            []int64 `json:"invalid"`
	AlreadyUnderReview []int64 `json:"already_under_review"`
}

type AssignResponse struct {
	Message  string  `json:"message"`
	Assigned []int64 `json:"assigned"`
	Invalid  []int64 `json:"invalid"`
}

type ReportResponse struct {
	CaseNumber       int64      `json:"case_number"`
	Status           string     `json:"status"`
	Reason           string     `json:"report_reason"`
	ReportedItemType string     `json:"reported_item_type"`
	ReportedItemID   uuid.UUID  `json:"reported_item_id"`
	ReportedUserID   uuid.UUID  `json:"reported_user_id"`
	ReporterUserID   uuid.UUID  `json:"reporter_user_id"`
	ModeratorID      *uuid.UUID `json:"moderator_id,omitempty"`
	ModeratorNote    string     `json:"moderator_note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

type ReportListResponse struct {
	Items []ReportResponse `json:"items"`
}

type TimelineEntry struct {
	Event     string     `json:"event"`
	Status    string     `json:"status"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	Note      string     `json:"note,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type FlaggedPost struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	IsBanFinal bool      `json:"is_ban_final"`
}

type ReportDetailResponse struct {
	Report        ReportResponse  `json:"report"`
	Timeline      []TimelineEntry `json:"timeline"`
	FlaggedBanned []FlaggedPost   `json:"flagged_banned_posts,omitempty"`
}

type AppealResponse struct {
	CaseNumber       int64      `json:"case_number"`
	Status           string     `json:"status"`
	ContentType      string     `json:"content_type"`
	ContentID        uuid.UUID  `json:"content_id"`
	UserID           uuid.UUID  `json:"user_id"`
	Detail           string     `json:"detail,omitempty"`
	IsPolicyFollowed *bool      `json:"is_policy_followed"`
	ModeratorID      *uuid.UUID `json:"moderator_id,omitempty"`
	ModeratorNote    string     `json:"moderator_note,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type AppealListResponse struct {
	Items []AppealResponse `json:"items"`
}

type AppealDetailResponse struct {
	Appeal   AppealResponse  `json:"appeal"`
	Report   ReportResponse  `json:"report"`
	Timeline []TimelineEntry `json:"timeline"`
}

func NewReportResponse(r model.Report) ReportResponse {
	return ReportResponse{
		CaseNumber:       r.CaseNumber,
		Status:           string(r.Status),
		Reason:           string(r.Reason),
		ReportedItemType: string(r.ReportedItemType),
		ReportedItemID:   r.ReportedItemID,
		ReportedUserID:   r.ReportedUserID,
		ReporterUserID:   r.ReporterUserID,
		ModeratorID:      r.ModeratorID,
		ModeratorNote:    r.ModeratorNote,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ResolvedAt:       r.ResolvedAt,
	}
}

func NewReportList(reports []model.Report) ReportListResponse {
	out := ReportListResponse{Items: make([]ReportResponse, 0, len(reports))}
	for _, r := range reports {
		out.Items = append(out.Items, NewReportResponse(r))
	}
	return out
}

func NewAppealResponse(a model.Appeal) AppealResponse {
	return AppealResponse{
		CaseNumber:       a.CaseNumber,
		Status:           string(a.Status),
		ContentType:      string(a.ContentType),
		ContentID:        a.ContentID,
		UserID:           a.UserID,
		Detail:           a.Detail,
		IsPolicyFollowed: a.IsPolicyFollowed,
		ModeratorID:      a.ModeratorID,
		ModeratorNote:    a.ModeratorNote,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func NewAppealList(appeals []model.Appeal) AppealListResponse {
	out := AppealListResponse{Items: make([]AppealResponse, 0, len(appeals))}
	for _, a := range appeals {
		out.Items = append(out.Items, NewAppealResponse(a))
	}
	return out
}

func NewTimeline(events []model.TimelineEvent) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEntry{
			Event:     string(e.Event),
			Status:    e.Status,
			ActorID:   e.ActorID,
			Note:      e.Note,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func NewFlaggedPosts(contents []model.Content) []FlaggedPost {
	if len(contents) == 0 {
		return nil
	}
	out := make([]FlaggedPost, 0, len(contents))
	for _, c := range contents {
		out = append(out, FlaggedPost{ID: c.ID, Status: string(c.Status), IsBanFinal: c.IsBanFinal})
	}
	return out
}
