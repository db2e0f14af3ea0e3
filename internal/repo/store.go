// Package repo declares the transactional storage facade used by the
// moderation services. Implementations live in repo/postgres and repo/memory.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

// Store runs fn inside one transaction. Returning an error rolls it back.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

type Tx interface {
	Users() UserStore
	Employees() EmployeeStore
	Contents() ContentStore
	Reports() ReportStore
	Appeals() AppealStore
	Sanctions() SanctionStore
	Scores() ScoreStore
}

type UserStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, user model.User) (model.User, error)
	// Lock serializes sanction mutation for one user until the transaction ends.
	Lock(ctx context.Context, id uuid.UUID) error
	// TryLock is Lock without waiting; false means another transaction holds it.
	TryLock(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus, at time.Time) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
	ListIDsActiveBefore(ctx context.Context, statuses []enums.UserStatus, lastActiveBefore time.Time, limit int) ([]uuid.UUID, error)
	ListIDsStatusChangedBefore(ctx context.Context, statuses []enums.UserStatus, changedBefore time.Time, limit int) ([]uuid.UUID, error)
}

type EmployeeStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Employee, error)
	Create(ctx context.Context, employee model.Employee) (model.Employee, error)
}

type ContentStore interface {
	Get(ctx context.Context, contentType enums.ContentType, id uuid.UUID) (model.Content, error)
	Create(ctx context.Context, content model.Content) (model.Content, error)
	UpdateStatus(ctx context.Context, contentType enums.ContentType, id uuid.UUID, status enums.ContentStatus, at time.Time) error
	SetBanFinal(ctx context.Context, contentType enums.ContentType, id uuid.UUID, at time.Time) error
	ListBannedBefore(ctx context.Context, bannedBefore time.Time, limit int) ([]model.Content, error)
	InsertFlagged(ctx context.Context, reportID uuid.UUID, contentIDs []uuid.UUID) error
	ListFlagged(ctx context.Context, reportID uuid.UUID) ([]model.FlaggedContent, error)
	MarkFlaggedRestored(ctx context.Context, id uuid.UUID) error
}

type ReportFilter struct {
	Statuses      []enums.ReportStatus
	ModeratorID   *uuid.UUID
	Unassigned    bool
	Assigned      bool
	ReportedOn    *time.Time
	ReportedItem  *uuid.UUID
	ExcludeReport *uuid.UUID
	Limit         int
}

type ReportStore interface {
	Create(ctx context.Context, report model.Report) (model.Report, error)
	Get(ctx context.Context, id uuid.UUID) (model.Report, error)
	// GetByCase with forUpdate locks the row until the transaction ends.
	GetByCase(ctx context.Context, caseNumber int64, forUpdate bool) (model.Report, error)
	// List orders by case number ascending; forUpdate locks in that order.
	List(ctx context.Context, filter ReportFilter, forUpdate bool) ([]model.Report, error)
	ListRelatedTo(ctx context.Context, primaryID uuid.UUID, statuses []enums.ReportStatus, forUpdate bool) ([]model.Report, error)
	Update(ctx context.Context, report model.Report) error
	HasResolvedSince(ctx context.Context, reportedUserID uuid.UUID, since time.Time) (bool, error)
	AppendEvent(ctx context.Context, event model.TimelineEvent) error
	ListEvents(ctx context.Context, reportID uuid.UUID) ([]model.TimelineEvent, error)
}

type AppealFilter struct {
	Statuses      []enums.AppealStatus
	ModeratorID   *uuid.UUID
	Unassigned    bool
	Assigned      bool
	ReportID      *uuid.UUID
	UserID        *uuid.UUID
	ContentType   *enums.ContentType
	ContentIDs    []uuid.UUID
	CreatedBefore *time.Time
	CreatedOn     *time.Time
	ExcludeAppeal *uuid.UUID
	Limit         int
}

type AppealStore interface {
	Create(ctx context.Context, appeal model.Appeal) (model.Appeal, error)
	GetByCase(ctx context.Context, caseNumber int64, forUpdate bool) (model.Appeal, error)
	List(ctx context.Context, filter AppealFilter, forUpdate bool) ([]model.Appeal, error)
	Update(ctx context.Context, appeal model.Appeal) error
	AppendEvent(ctx context.Context, event model.TimelineEvent) error
	ListEvents(ctx context.Context, appealID uuid.UUID) ([]model.TimelineEvent, error)
}

type SanctionStore interface {
	Insert(ctx context.Context, sanction model.Sanction) (model.Sanction, error)
	Update(ctx context.Context, sanction model.Sanction) error
	GetActive(ctx context.Context, userID uuid.UUID) (model.Sanction, bool, error)
	GetByReport(ctx context.Context, reportID uuid.UUID) (model.Sanction, bool, error)
	// ListQueued orders by enforce_action_at then id.
	ListQueued(ctx context.Context, userID uuid.UUID) ([]model.Sanction, error)
	ListActiveEndedBy(ctx context.Context, statuses []enums.SanctionAction, now time.Time, limit int) ([]model.Sanction, error)
	ListActiveEnforcedBefore(ctx context.Context, statuses []enums.SanctionAction, before time.Time, limit int) ([]model.Sanction, error)
	ListUsersWithDueQueue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type ScoreStore interface {
	// GetForUpdate returns the user's score row, creating a zero row if needed.
	GetForUpdate(ctx context.Context, userID uuid.UUID) (model.ViolationScore, error)
	Get(ctx context.Context, userID uuid.UUID) (model.ViolationScore, bool, error)
	Update(ctx context.Context, score model.ViolationScore) error
	InsertDelta(ctx context.Context, delta model.ScoreDelta) (model.ScoreDelta, error)
	UpdateDelta(ctx context.Context, delta model.ScoreDelta) error
	GetDeltaByReport(ctx context.Context, reportID uuid.UUID) (model.ScoreDelta, bool, error)
	ListDecayCandidates(ctx context.Context, quietSince time.Time, limit int) ([]uuid.UUID, error)
}
