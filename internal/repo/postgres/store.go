// Package postgres implements repo.Store over pgx. Every Tx is one database
// transaction; per-user serialization uses transaction-scoped advisory locks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{pool: pool, now: now}
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, repo.Tx) error) error {
	if s.pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{q: tx, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

type pgTx struct {
	q   pgx.Tx
	now func() time.Time
}

func (t *pgTx) Users() repo.UserStore         { return userStore{t} }
func (t *pgTx) Employees() repo.EmployeeStore { return employeeStore{t} }
func (t *pgTx) Contents() repo.ContentStore   { return contentStore{t} }
func (t *pgTx) Reports() repo.ReportStore     { return reportStore{t} }
func (t *pgTx) Appeals() repo.AppealStore     { return appealStore{t} }
func (t *pgTx) Sanctions() repo.SanctionStore { return sanctionStore{t} }
func (t *pgTx) Scores() repo.ScoreStore       { return scoreStore{t} }

func (t *pgTx) stamp() time.Time {
	return t.now().UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound turns pgx.ErrNoRows into a NotFound fault and wraps anything else.
func notFound(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return faults.NotFound("%s", message)
	}
	return fmt.Errorf("%s: %w", strings.TrimSuffix(message, " not found"), err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func checkAffected(tag pgconn.CommandTag, message string) error {
	if tag.RowsAffected() == 0 {
		return faults.NotFound("%s", message)
	}
	return nil
}

// limitArg maps a non-positive limit to NULL so LIMIT is unbounded.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// textArray converts a set of string-typed enums to a text[] argument; an
// empty set becomes NULL so the matching predicate is skipped.
func textArray[T ~string](values []T) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

// where accumulates positional predicates for the list queries.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
