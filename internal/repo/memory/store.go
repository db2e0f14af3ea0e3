// Package memory is an in-process repo.Store. Transactions are serialized by a
// single mutex and roll back by restoring a snapshot taken at begin.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

type contentKey struct {
	kind enums.ContentType
	id   uuid.UUID
}

type state struct {
	users        map[uuid.UUID]model.User
	employees    map[uuid.UUID]model.Employee
	contents     map[contentKey]model.Content
	flagged      map[uuid.UUID]model.FlaggedContent
	reports      map[uuid.UUID]model.Report
	appeals      map[uuid.UUID]model.Appeal
	sanctions    map[uuid.UUID]model.Sanction
	scores       map[uuid.UUID]model.ViolationScore
	deltas       map[uuid.UUID]model.ScoreDelta
	reportEvents map[uuid.UUID][]model.TimelineEvent
	appealEvents map[uuid.UUID][]model.TimelineEvent
	reportSeq    int64
	appealSeq    int64
}

func newState() *state {
	return &state{
		users:        map[uuid.UUID]model.User{},
		employees:    map[uuid.UUID]model.Employee{},
		contents:     map[contentKey]model.Content{},
		flagged:      map[uuid.UUID]model.FlaggedContent{},
		reports:      map[uuid.UUID]model.Report{},
		appeals:      map[uuid.UUID]model.Appeal{},
		sanctions:    map[uuid.UUID]model.Sanction{},
		scores:       map[uuid.UUID]model.ViolationScore{},
		deltas:       map[uuid.UUID]model.ScoreDelta{},
		reportEvents: map[uuid.UUID][]model.TimelineEvent{},
		appealEvents: map[uuid.UUID][]model.TimelineEvent{},
	}
}

func (s *state) clone() *state {
	out := &state{
		users:        maps.Clone(s.users),
		employees:    maps.Clone(s.employees),
		contents:     maps.Clone(s.contents),
		flagged:      maps.Clone(s.flagged),
		reports:      maps.Clone(s.reports),
		appeals:      maps.Clone(s.appeals),
		sanctions:    maps.Clone(s.sanctions),
		scores:       maps.Clone(s.scores),
		deltas:       maps.Clone(s.deltas),
		reportEvents: make(map[uuid.UUID][]model.TimelineEvent, len(s.reportEvents)),
		appealEvents: make(map[uuid.UUID][]model.TimelineEvent, len(s.appealEvents)),
		reportSeq:    s.reportSeq,
		appealSeq:    s.appealSeq,
	}
	for k, v := range s.reportEvents {
		out.reportEvents[k] = append([]model.TimelineEvent(nil), v...)
	}
	for k, v := range s.appealEvents {
		out.appealEvents[k] = append([]model.TimelineEvent(nil), v...)
	}
	return out
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{st: newState(), now: now}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, repo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st, now: s.now}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Users() repo.UserStore         { return userStore{t} }
func (t *tx) Employees() repo.EmployeeStore { return employeeStore{t} }
func (t *tx) Contents() repo.ContentStore   { return contentStore{t} }
func (t *tx) Reports() repo.ReportStore     { return reportStore{t} }
func (t *tx) Appeals() repo.AppealStore     { return appealStore{t} }
func (t *tx) Sanctions() repo.SanctionStore { return sanctionStore{t} }
func (t *tx) Scores() repo.ScoreStore       { return scoreStore{t} }

func limitOf(n, limit int) int {
	if limit <= 0 || limit > n {
		return n
	}
	return limit
}

func statusIn[T comparable](v T, set []T) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
