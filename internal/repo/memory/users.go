package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

type userStore struct{ t *tx }

func (s userStore) Get(_ context.Context, id uuid.UUID) (model.User, error) {
	user, ok := s.t.st.users[id]
	if !ok || user.IsDeleted {
		return model.User{}, faults.NotFound("user not found")
	}
	return user, nil
}

func (s userStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	name := strings.TrimSpace(username)
	for _, user := range s.t.st.users {
		if !user.IsDeleted && strings.EqualFold(user.Username, name) {
			return user, nil
		}
	}
	return model.User{}, faults.NotFound("user not found")
}

func (s userStore) Create(_ context.Context, user model.User) (model.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	for _, existing := range s.t.st.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return model.User{}, faults.Conflict("username already taken")
		}
	}
	now := s.t.now().UTC()
	if user.Status == "" {
		user.Status = enums.UserStatusActive
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.LastActiveAt.IsZero() {
		user.LastActiveAt = now
	}
	if user.StatusChangedAt.IsZero() {
		user.StatusChangedAt = now
	}
	s.t.st.users[user.ID] = user
	return user, nil
}

// Lock and TryLock are satisfied by the store-wide transaction mutex.
func (s userStore) Lock(context.Context, uuid.UUID) error { return nil }

func (s userStore) TryLock(context.Context, uuid.UUID) (bool, error) { return true, nil }

func (s userStore) UpdateStatus(_ context.Context, id uuid.UUID, status enums.UserStatus, at time.Time) error {
	user, ok := s.t.st.users[id]
	if !ok {
		return faults.NotFound("user not found")
	}
	if user.Status != status {
		user.Status = status
		user.StatusChangedAt = at
	}
	s.t.st.users[id] = user
	return nil
}

func (s userStore) MarkDeleted(_ context.Context, id uuid.UUID, at time.Time) error {
	user, ok := s.t.st.users[id]
	if !ok {
		return faults.NotFound("user not found")
	}
	user.Status = enums.UserStatusDeleted
	user.StatusChangedAt = at
	user.IsDeleted = true
	s.t.st.users[id] = user
	return nil
}

func (s userStore) ListIDsActiveBefore(_ context.Context, statuses []enums.UserStatus, lastActiveBefore time.Time, limit int) ([]uuid.UUID, error) {
	var users []model.User
	for _, user := range s.t.st.users {
		if user.IsDeleted || !statusIn(user.Status, statuses) {
			continue
		}
		if user.LastActiveAt.Before(lastActiveBefore) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].LastActiveAt.Before(users[j].LastActiveAt) })
	return userIDs(users, limit), nil
}

func (s userStore) ListIDsStatusChangedBefore(_ context.Context, statuses []enums.UserStatus, changedBefore time.Time, limit int) ([]uuid.UUID, error) {
	var users []model.User
	for _, user := range s.t.st.users {
		if user.IsDeleted || !statusIn(user.Status, statuses) {
			continue
		}
		if !user.StatusChangedAt.After(changedBefore) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].StatusChangedAt.Before(users[j].StatusChangedAt) })
	return userIDs(users, limit), nil
}

func userIDs(users []model.User, limit int) []uuid.UUID {
	n := limitOf(len(users), limit)
	out := make([]uuid.UUID, 0, n)
	for _, user := range users[:n] {
		out = append(out, user.ID)
	}
	return out
}

type employeeStore struct{ t *tx }

func (s employeeStore) Get(_ context.Context, id uuid.UUID) (model.Employee, error) {
	employee, ok := s.t.st.employees[id]
	if !ok {
		return model.Employee{}, faults.NotFound("employee not found")
	}
	return employee, nil
}

func (s employeeStore) Create(_ context.Context, employee model.Employee) (model.Employee, error) {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	s.t.st.employees[employee.ID] = employee
	return employee, nil
}
