package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

const userColumns = `id, username, email, status, last_active_at, status_changed_at, is_deleted, created_at`

type userStore struct{ t *pgTx }

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Status, &u.LastActiveAt, &u.StatusChangedAt, &u.IsDeleted, &u.CreatedAt)
	return u, err
}

func (s userStore) Get(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := scanUser(s.t.q.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE id = $1 AND NOT is_deleted
`, id))
	if err != nil {
		return model.User{}, notFound(err, "user not found")
	}
	return user, nil
}

func (s userStore) GetByUsername(ctx context.Context, username string) (model.User, error) {
	user, err := scanUser(s.t.q.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE LOWER(username) = LOWER($1) AND NOT is_deleted
`, strings.TrimSpace(username)))
	if err != nil {
		return model.User{}, notFound(err, "user not found")
	}
	return user, nil
}

func (s userStore) Create(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := s.t.stamp()
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

	if _, err := s.t.q.Exec(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, user.ID, strings.TrimSpace(user.Username), user.Email, user.Status, user.LastActiveAt, user.StatusChangedAt, user.IsDeleted, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, faults.Conflict("username already taken")
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s userStore) Lock(ctx context.Context, id uuid.UUID) error {
	if _, err := s.t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, id.String()); err != nil {
		return fmt.Errorf("lock user %s: %w", id, err)
	}
	return nil
}

func (s userStore) TryLock(ctx context.Context, id uuid.UUID) (bool, error) {
	var locked bool
	if err := s.t.q.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtextextended($1::text, 0))`, id.String()).Scan(&locked); err != nil {
		return false, fmt.Errorf("try lock user %s: %w", id, err)
	}
	return locked, nil
}

func (s userStore) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus, at time.Time) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE users SET
	status_changed_at = CASE WHEN status <> $2 THEN $3 ELSE status_changed_at END,
	status = $2
WHERE id = $1
`, id, status, at)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return checkAffected(tag, "user not found")
}

func (s userStore) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.t.q.Exec(ctx, `
UPDATE users SET
	status = $2,
	status_changed_at = $3,
	is_deleted = TRUE
WHERE id = $1
`, id, enums.UserStatusDeleted, at)
	if err != nil {
		return fmt.Errorf("mark user deleted: %w", err)
	}
	return checkAffected(tag, "user not found")
}

func (s userStore) ListIDsActiveBefore(ctx context.Context, statuses []enums.UserStatus, lastActiveBefore time.Time, limit int) ([]uuid.UUID, error) {
	return s.listIDs(ctx, `
SELECT id
FROM users
WHERE NOT is_deleted
	AND ($1::text[] IS NULL OR status = ANY($1))
	AND last_active_at < $2
ORDER BY last_active_at
LIMIT $3
`, textArray(statuses), lastActiveBefore, limitArg(limit))
}

func (s userStore) ListIDsStatusChangedBefore(ctx context.Context, statuses []enums.UserStatus, changedBefore time.Time, limit int) ([]uuid.UUID, error) {
	return s.listIDs(ctx, `
SELECT id
FROM users
WHERE NOT is_deleted
	AND ($1::text[] IS NULL OR status = ANY($1))
	AND status_changed_at <= $2
ORDER BY status_changed_at
LIMIT $3
`, textArray(statuses), changedBefore, limitArg(limit))
}

func (s userStore) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := s.t.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect user ids: %w", err)
	}
	return ids, nil
}

type employeeStore struct{ t *pgTx }

func (s employeeStore) Get(ctx context.Context, id uuid.UUID) (model.Employee, error) {
	var (
		e    model.Employee
		role string
	)
	err := s.t.q.QueryRow(ctx, `
SELECT id, name, email, role, is_active
FROM employees
WHERE id = $1
`, id).Scan(&e.ID, &e.Name, &e.Email, &role, &e.IsActive)
	if err != nil {
		return model.Employee{}, notFound(err, "employee not found")
	}
	e.Role = enums.ParseRole(role)
	return e, nil
}

func (s employeeStore) Create(ctx context.Context, employee model.Employee) (model.Employee, error) {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	if _, err := s.t.q.Exec(ctx, `
INSERT INTO employees (id, name, email, role, is_active)
VALUES ($1, $2, $3, $4, $5)
`, employee.ID, employee.Name, employee.Email, employee.Role, employee.IsActive); err != nil {
		if isUniqueViolation(err) {
			return model.Employee{}, faults.Conflict("employee already exists")
		}
		return model.Employee{}, fmt.Errorf("create employee: %w", err)
	}
	return employee, nil
}
