package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
)

func TestWhereNumbersPlaceholders(t *testing.T) {
	w := &where{}
	w.add("status = ANY(?)", []string{"OPN"})
	w.add("moderator_id IS NULL")
	w.add("created_at >= ? AND created_at < ?", 1, 2)
	limit := w.arg(10)

	want := "WHERE status = ANY($1) AND moderator_id IS NULL AND created_at >= $2 AND created_at < $3"
	if got := w.String(); got != want {
		t.Fatalf("unexpected where clause:\n got %s\nwant %s", got, want)
	}
	if limit != "$4" {
		t.Fatalf("unexpected limit placeholder: %s", limit)
	}
	if len(w.args) != 4 {
		t.Fatalf("unexpected arg count: %d", len(w.args))
	}

	empty := &where{}
	if empty.String() != "" {
		t.Fatalf("empty where should render nothing")
	}
}

func TestArgHelpers(t *testing.T) {
	if limitArg(0) != nil || limitArg(-3) != nil {
		t.Fatalf("non-positive limits should be unbounded")
	}
	if limitArg(25) != 25 {
		t.Fatalf("positive limit should pass through")
	}

	if textArray[enums.ReportStatus](nil) != nil {
		t.Fatalf("empty status set should be NULL")
	}
	got := textArray([]enums.UserStatus{enums.UserStatusActive, enums.UserStatusTempBan})
	if len(got) != 2 || got[0] != "ACT" || got[1] != "TBN" {
		t.Fatalf("unexpected text array: %v", got)
	}

	start, end := dayBounds(time.Date(2026, 3, 9, 23, 59, 0, 0, time.FixedZone("x", -2*3600)))
	if !start.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) || end.Sub(start) != 24*time.Hour {
		t.Fatalf("unexpected day bounds: %s %s", start, end)
	}
}

func TestErrorMapping(t *testing.T) {
	if !faults.Is(notFound(pgx.ErrNoRows, "report 7 not found"), faults.KindNotFound) {
		t.Fatalf("no rows should map to not found")
	}
	wrapped := notFound(errors.New("boom"), "report not found")
	if faults.KindOf(wrapped) != faults.KindInternal {
		t.Fatalf("driver errors should stay internal")
	}
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("23505 is a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("23503 is not a unique violation")
	}
}

// TestStoreAgainstDatabase runs when TEST_POSTGRES_DSN points at a scratch database.
func TestStoreAgainstDatabase(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	store := NewStore(pool, func() time.Time { return now })

	var report model.Report
	err = store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		user, err := tx.Users().Create(ctx, model.User{Username: "pg-" + now.Format("150405.000000")})
		if err != nil {
			return err
		}
		post, err := tx.Contents().Create(ctx, model.Content{Type: enums.ContentTypePost, OwnerUserID: user.ID})
		if err != nil {
			return err
		}
		report, err = tx.Reports().Create(ctx, model.Report{
			ReporterUserID:   user.ID,
			ReportedUserID:   user.ID,
			ReportedItemID:   post.ID,
			ReportedItemType: enums.ContentTypePost,
			Reason:           enums.ReportReasonSpam,
		})
		if err != nil {
			return err
		}
		if err := tx.Users().Lock(ctx, user.ID); err != nil {
			return err
		}

		for _, role := range []enums.Role{enums.RoleAdmin, enums.RoleModerator} {
			employee, err := tx.Employees().Create(ctx, model.Employee{Name: string(role), Role: role, IsActive: true})
			if err != nil {
				return err
			}
			got, err := tx.Employees().Get(ctx, employee.ID)
			if err != nil {
				return err
			}
			if got.Role != role {
				t.Fatalf("unexpected role: got %q want %q", got.Role, role)
			}
		}

		active := model.Sanction{UserID: user.ID, ReportID: report.ID, Status: enums.SanctionPartialRestrict, DurationHours: 24,
			EnforceActionAt: now, IsActive: true, ContentType: enums.ContentTypePost, ContentID: post.ID}
		if _, err := tx.Sanctions().Insert(ctx, active); err != nil {
			return err
		}
		_, err = tx.Sanctions().Insert(ctx, active)
		if !faults.Is(err, faults.KindConflict) {
			t.Fatalf("second active sanction should conflict, got %v", err)
		}
		return errors.New("rollback")
	})
	if err == nil || err.Error() != "rollback" {
		t.Fatalf("unexpected tx result: %v", err)
	}
	if report.CaseNumber <= 0 {
		t.Fatalf("case number should come from the sequence: %d", report.CaseNumber)
	}
}
