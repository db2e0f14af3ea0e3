package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
)

type User struct {
	ID              uuid.UUID        `json:"id"`
	Username        string           `json:"username"`
	Email           string           `json:"email"`
	Status          enums.UserStatus `json:"status"`
	LastActiveAt    time.Time        `json:"last_active_at"`
	StatusChangedAt time.Time        `json:"status_changed_at"`
	IsDeleted       bool             `json:"is_deleted"`
	CreatedAt       time.Time        `json:"created_at"`
}

type Employee struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     enums.Role `json:"role"`
	IsActive bool       `json:"is_active"`
}

// Content is a post or comment as seen by enforcement.
type Content struct {
	ID          uuid.UUID           `json:"id"`
	Type        enums.ContentType   `json:"type"`
	OwnerUserID uuid.UUID           `json:"owner_user_id"`
	Status      enums.ContentStatus `json:"status"`
	IsBanFinal  bool                `json:"is_ban_final"`
	BannedAt    *time.Time          `json:"banned_at,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type Report struct {
	ID               uuid.UUID          `json:"id"`
	CaseNumber       int64              `json:"case_number"`
	ReporterUserID   uuid.UUID          `json:"reporter_user_id"`
	ReportedUserID   uuid.UUID          `json:"reported_user_id"`
	ReportedItemID   uuid.UUID          `json:"reported_item_id"`
	ReportedItemType enums.ContentType  `json:"reported_item_type"`
	Reason           enums.ReportReason `json:"report_reason"`
	ReasonUserID     *uuid.UUID         `json:"report_reason_user_id,omitempty"`
	Status           enums.ReportStatus `json:"status"`
	ModeratorID      *uuid.UUID         `json:"moderator_id,omitempty"`
	ModeratorNote    string             `json:"moderator_note,omitempty"`
	RelatedReportID  *uuid.UUID         `json:"related_report_id,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
}

func (r Report) AssignedTo(employeeID uuid.UUID) bool {
	return r.ModeratorID != nil && *r.ModeratorID == employeeID
}

type Appeal struct {
	ID               uuid.UUID          `json:"id"`
	CaseNumber       int64              `json:"case_number"`
	UserID           uuid.UUID          `json:"user_id"`
	ReportID         uuid.UUID          `json:"report_id"`
	ContentID        uuid.UUID          `json:"content_id"`
	ContentType      enums.ContentType  `json:"content_type"`
	Detail           string             `json:"detail,omitempty"`
	IsPolicyFollowed *bool              `json:"is_policy_followed,omitempty"`
	Status           enums.AppealStatus `json:"status"`
	ModeratorID      *uuid.UUID         `json:"moderator_id,omitempty"`
	ModeratorNote    string             `json:"moderator_note,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func (a Appeal) AssignedTo(employeeID uuid.UUID) bool {
	return a.ModeratorID != nil && *a.ModeratorID == employeeID
}

// Sanction is a restriction or ban, active or queued.
type Sanction struct {
	ID                   uuid.UUID            `json:"id"`
	UserID               uuid.UUID            `json:"user_id"`
	ReportID             uuid.UUID            `json:"report_id"`
	Status               enums.SanctionAction `json:"status"`
	DurationHours        int                  `json:"duration_hours"`
	EnforceActionAt      time.Time            `json:"enforce_action_at"`
	IsActive             bool                 `json:"is_active"`
	IsEnforceActionEarly bool                 `json:"is_enforce_action_early"`
	ContentType          enums.ContentType    `json:"content_type"`
	ContentID            uuid.UUID            `json:"content_id"`
	ConcludedAt          *time.Time           `json:"concluded_at,omitempty"`
	IsDeleted            bool                 `json:"is_deleted"`
	CreatedAt            time.Time            `json:"created_at"`
}

func (s Sanction) Duration() time.Duration {
	return time.Duration(s.DurationHours) * time.Hour
}

func (s Sanction) EndsAt() time.Time {
	return s.EnforceActionAt.Add(s.Duration())
}

// Queued reports whether the sanction is still waiting for enforcement.
func (s Sanction) Queued() bool {
	return !s.IsActive && s.ConcludedAt == nil && !s.IsDeleted
}

type ViolationScore struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	PostScore           int       `json:"post_score"`
	CommentScore        int       `json:"comment_score"`
	MessageScore        int       `json:"message_score"`
	FinalViolationScore int       `json:"final_violation_score"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Add shifts the score bucket of the content type by delta and clamps at zero.
// Account reports are scored against the post bucket.
func (v *ViolationScore) Add(contentType enums.ContentType, delta int) {
	switch contentType {
	case enums.ContentTypeComment:
		v.CommentScore = clampZero(v.CommentScore + delta)
	case enums.ContentTypeMessage:
		v.MessageScore = clampZero(v.MessageScore + delta)
	default:
		v.PostScore = clampZero(v.PostScore + delta)
	}
	v.FinalViolationScore = clampZero(v.FinalViolationScore + delta)
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// ScoreDelta is the reversal ledger entry of a report's score contribution.
type ScoreDelta struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	ScoreID        uuid.UUID         `json:"score_id"`
	ReportID       uuid.UUID         `json:"report_id"`
	ContentType    enums.ContentType `json:"content_type"`
	LastAddedScore int               `json:"last_added_score"`
	IsAdded        bool              `json:"is_added"`
	IsRemoved      bool              `json:"is_removed"`
	CreatedAt      time.Time         `json:"created_at"`
}

type FlaggedContent struct {
	ID         uuid.UUID `json:"id"`
	ReportID   uuid.UUID `json:"report_id"`
	ContentID  uuid.UUID `json:"content_id"`
	IsRestored bool      `json:"is_restored"`
}

type TimelineEvent struct {
	ID        uuid.UUID           `json:"id"`
	SubjectID uuid.UUID           `json:"subject_id"`
	Event     enums.TimelineEvent `json:"event"`
	Status    string              `json:"status"`
	ActorID   *uuid.UUID          `json:"actor_id,omitempty"`
	Note      string              `json:"note,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
