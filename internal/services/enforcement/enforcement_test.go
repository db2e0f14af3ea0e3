package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/domain/rules"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/repo/memory"
	"github.com/ivankudzin/trustsafety/internal/services/notify"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type captureMailer struct{ msgs []notify.Message }

func (m *captureMailer) Enqueue(_ context.Context, msg notify.Message) error {
	m.msgs = append(m.msgs, msg)
	return nil
}

type fixture struct {
	t        *testing.T
	clk      *clock
	start    time.Time
	store    *memory.Store
	orch     *Orchestrator
	mailer   *captureMailer
	mod      uuid.UUID
	user     model.User
	reporter model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	store := memory.NewStore(clk.Now)
	mailer := &captureMailer{}
	f := &fixture{
		t:      t,
		clk:    clk,
		start:  start,
		store:  store,
		mailer: mailer,
		orch: New(Dependencies{
			Store:   store,
			Mailer:  mailer,
			Windows: Windows{PBNAppeal: 30 * 24 * time.Hour, ContentAppeal: 14 * 24 * time.Hour},
			Now:     clk.Now,
		}),
	}
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		if f.user, err = tx.Users().Create(ctx, model.User{Username: "alice", Email: "alice@example.com"}); err != nil {
			return err
		}
		if f.reporter, err = tx.Users().Create(ctx, model.User{Username: "bob", Email: "bob@example.com"}); err != nil {
			return err
		}
		mod, err := tx.Employees().Create(ctx, model.Employee{Name: "mod", Role: enums.RoleModerator, IsActive: true})
		f.mod = mod.ID
		return err
	})
	return f
}

func (f *fixture) do(fn func(ctx context.Context, tx repo.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.WithTx(context.Background(), fn))
}

func (f *fixture) post() model.Content {
	f.t.Helper()
	var out model.Content
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Contents().Create(ctx, model.Content{Type: enums.ContentTypePost, OwnerUserID: f.user.ID})
		return err
	})
	return out
}

// underReview files a report already picked up by moderator.
func (f *fixture) underReview(itemType enums.ContentType, itemID uuid.UUID, reason enums.ReportReason, moderator uuid.UUID) model.Report {
	f.t.Helper()
	var out model.Report
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Reports().Create(ctx, model.Report{
			ReporterUserID:   f.reporter.ID,
			ReportedUserID:   f.user.ID,
			ReportedItemID:   itemID,
			ReportedItemType: itemType,
			Reason:           reason,
			Status:           enums.ReportStatusUnderReview,
			ModeratorID:      &moderator,
		})
		return err
	})
	return out
}

func (f *fixture) auto(report model.Report) Outcome {
	f.t.Helper()
	out, err := f.orch.ApplyAuto(context.Background(), f.mod, report.CaseNumber, f.user.Username)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) report(id uuid.UUID) model.Report {
	f.t.Helper()
	var out model.Report
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Reports().Get(ctx, id)
		return err
	})
	return out
}

func (f *fixture) content(c model.Content) model.Content {
	f.t.Helper()
	var out model.Content
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Contents().Get(ctx, c.Type, c.ID)
		return err
	})
	return out
}

func (f *fixture) userStatus() enums.UserStatus {
	f.t.Helper()
	var out model.User
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Users().Get(ctx, f.user.ID)
		return err
	})
	return out.Status
}

func (f *fixture) score() model.ViolationScore {
	f.t.Helper()
	var out model.ViolationScore
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, _, err = tx.Scores().Get(ctx, f.user.ID)
		return err
	})
	return out
}

func (f *fixture) setScore(post, final int) {
	f.t.Helper()
	f.do(func(ctx context.Context, tx repo.Tx) error {
		score, err := tx.Scores().GetForUpdate(ctx, f.user.ID)
		if err != nil {
			return err
		}
		score.PostScore, score.FinalViolationScore = post, final
		return tx.Scores().Update(ctx, score)
	})
}

func (f *fixture) sanction(reportID uuid.UUID) (model.Sanction, bool) {
	f.t.Helper()
	var out model.Sanction
	var ok bool
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, ok, err = tx.Sanctions().GetByReport(ctx, reportID)
		return err
	})
	return out, ok
}

func (f *fixture) delta(reportID uuid.UUID) model.ScoreDelta {
	f.t.Helper()
	var out model.ScoreDelta
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var ok bool
		var err error
		out, ok, err = tx.Scores().GetDeltaByReport(ctx, reportID)
		require.True(f.t, ok)
		return err
	})
	return out
}

// restrictThenQueue runs the first two severe post reports: the first
// restricts at once, the second queues behind it.
func (f *fixture) restrictThenQueue() (first, second model.Report, p1, p2 model.Content) {
	f.t.Helper()
	p1 = f.post()
	first = f.underReview(enums.ContentTypePost, p1.ID, enums.ReportReasonHateSymbols, f.mod)
	f.auto(first)

	f.clk.Advance(time.Hour)
	p2 = f.post()
	second = f.underReview(enums.ContentTypePost, p2.ID, enums.ReportReasonHateSymbols, f.mod)
	f.auto(second)
	return first, second, p1, p2
}

func TestApplyAutoMinimalReasonTakesNoAction(t *testing.T) {
	f := newFixture(t)
	post := f.post()
	report := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonIDontLike, f.mod)

	out := f.auto(report)

	require.Equal(t, enums.SanctionNoAction, out.Decision.Action)
	require.Zero(t, out.Decision.Delta)
	require.Nil(t, out.Sanction)

	got := f.report(report.ID)
	require.Equal(t, enums.ReportStatusResolved, got.Status)
	require.Equal(t, NoteResolved, got.ModeratorNote)
	_, ok := f.sanction(report.ID)
	require.False(t, ok)
	require.Equal(t, enums.ContentStatusPublished, f.content(post).Status)
	require.Equal(t, enums.UserStatusActive, f.userStatus())
	require.Zero(t, f.score().FinalViolationScore)

	delta := f.delta(report.ID)
	require.Zero(t, delta.LastAddedScore)
	require.True(t, delta.IsAdded)
	require.Empty(t, f.mailer.msgs)
}

func TestApplyAutoSevereReasonRestricts(t *testing.T) {
	f := newFixture(t)
	post := f.post()
	report := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonHateSymbols, f.mod)

	out := f.auto(report)

	require.Equal(t, 187, out.Decision.Delta)
	require.Equal(t, enums.SanctionPartialRestrict, out.Decision.Action)
	require.Equal(t, 24, out.Decision.DurationHours)

	sanction, ok := f.sanction(report.ID)
	require.True(t, ok)
	require.True(t, sanction.IsActive)
	require.True(t, sanction.EnforceActionAt.Equal(f.start))
	require.Equal(t, 24, sanction.DurationHours)

	require.Equal(t, enums.ContentStatusBanned, f.content(post).Status)
	require.Equal(t, enums.UserStatusPartialRestrict, f.userStatus())
	score := f.score()
	require.Equal(t, 187, score.PostScore)
	require.Zero(t, score.CommentScore)
	require.Zero(t, score.MessageScore)
	require.Equal(t, 187, score.FinalViolationScore)
	require.Empty(t, f.mailer.msgs, "restrictions send no ban email")
}

func TestApplyAutoQueuesBehindActiveSanction(t *testing.T) {
	f := newFixture(t)
	_, second, _, p2 := f.restrictThenQueue()

	sanction, ok := f.sanction(second.ID)
	require.True(t, ok)
	require.False(t, sanction.IsActive)
	require.Equal(t, enums.SanctionFullRestrict, sanction.Status)
	require.True(t, sanction.EnforceActionAt.Equal(f.start.Add(24*time.Hour)))

	require.Equal(t, enums.ReportStatusFutureResolved, f.report(second.ID).Status)
	require.Equal(t, enums.ContentStatusFlaggedToBan, f.content(p2).Status)

	delta := f.delta(second.ID)
	require.Equal(t, 187, delta.LastAddedScore)
	require.False(t, delta.IsAdded)
	require.Equal(t, 187, f.score().FinalViolationScore)
	require.Equal(t, enums.UserStatusPartialRestrict, f.userStatus())
}

func TestExpiryCommitsQueuedSanction(t *testing.T) {
	f := newFixture(t)
	first, second, _, p2 := f.restrictThenQueue()

	f.clk.t = f.start.Add(24 * time.Hour)
	err := f.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		active, ok, err := tx.Sanctions().GetActive(ctx, f.user.ID)
		require.True(t, ok)
		if err != nil {
			return err
		}
		return f.orch.Queue().Expire(ctx, tx, active, f.orch.Commit(fx))
	})
	require.NoError(t, err)

	s1, _ := f.sanction(first.ID)
	require.False(t, s1.IsActive)
	require.NotNil(t, s1.ConcludedAt)
	s2, _ := f.sanction(second.ID)
	require.True(t, s2.IsActive)
	require.False(t, s2.IsEnforceActionEarly)

	require.Equal(t, enums.ReportStatusResolved, f.report(second.ID).Status)
	require.Equal(t, enums.ContentStatusBanned, f.content(p2).Status)
	score := f.score()
	require.Equal(t, 374, score.PostScore)
	require.Equal(t, 374, score.FinalViolationScore)
	require.True(t, f.delta(second.ID).IsAdded)
	require.Equal(t, enums.UserStatusFullRestrict, f.userStatus())
}

func TestAcceptReversalPromotesQueuedSanctionEarly(t *testing.T) {
	f := newFixture(t)
	first, second, p1, p2 := f.restrictThenQueue()
	f.clk.Advance(time.Hour)

	appeal := model.Appeal{ReportID: first.ID, ContentType: enums.ContentTypePost, ContentID: p1.ID, UserID: f.user.ID}
	err := f.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		return f.orch.AcceptReversal(ctx, tx, fx, appeal)
	})
	require.NoError(t, err)

	require.Equal(t, enums.ContentStatusPublished, f.content(p1).Status)
	s1, _ := f.sanction(first.ID)
	require.False(t, s1.IsActive)
	require.NotNil(t, s1.ConcludedAt)
	require.True(t, f.delta(first.ID).IsRemoved)

	s2, _ := f.sanction(second.ID)
	require.True(t, s2.IsActive)
	require.True(t, s2.IsEnforceActionEarly)
	require.True(t, s2.EnforceActionAt.Equal(f.clk.Now()))
	require.Equal(t, enums.ReportStatusResolved, f.report(second.ID).Status)
	require.Equal(t, enums.ContentStatusBanned, f.content(p2).Status)

	// first delta reversed, second delta committed
	require.Equal(t, 187, f.score().FinalViolationScore)
	require.Equal(t, enums.UserStatusFullRestrict, f.userStatus())
}

func TestAcceptReversalCancelsQueuedSanction(t *testing.T) {
	f := newFixture(t)
	first, second, _, p2 := f.restrictThenQueue()

	appeal := model.Appeal{ReportID: second.ID, ContentType: enums.ContentTypePost, ContentID: p2.ID, UserID: f.user.ID}
	require.NoError(t, f.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		return f.orch.AcceptReversal(ctx, tx, fx, appeal)
	}))

	_, ok := f.sanction(second.ID)
	require.False(t, ok, "queued sanction is soft-deleted")
	s1, _ := f.sanction(first.ID)
	require.True(t, s1.IsActive)
	require.Equal(t, enums.ContentStatusPublished, f.content(p2).Status)
	require.Equal(t, 187, f.score().FinalViolationScore, "deferred delta was never added")
	require.True(t, f.delta(second.ID).IsRemoved)
}

func manualAccountBan(t *testing.T, f *fixture) (model.Report, []model.Content, Outcome) {
	t.Helper()
	f.setScore(400, 400)
	posts := []model.Content{f.post(), f.post(), f.post()}
	report := f.underReview(enums.ContentTypeAccount, f.user.ID, enums.ReportReasonOther, f.mod)

	out, err := f.orch.ApplyManual(context.Background(), f.mod, ManualAction{
		CaseNumber:       report.CaseNumber,
		ReportedUsername: f.user.Username,
		Action:           enums.SanctionTempBan,
		DurationHours:    72,
		ContentIDs:       []uuid.UUID{posts[0].ID, posts[1].ID, posts[2].ID, posts[0].ID},
	})
	require.NoError(t, err)
	return report, posts, out
}

func TestApplyManualAccountBanRoundsAcrossFlaggedPosts(t *testing.T) {
	f := newFixture(t)
	report, posts, out := manualAccountBan(t, f)

	require.Equal(t, 203, out.Decision.Delta)
	require.Equal(t, 603, out.Decision.NewFinal)
	require.Equal(t, 603, f.score().FinalViolationScore)

	var flagged []model.FlaggedContent
	f.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		flagged, err = tx.Contents().ListFlagged(ctx, report.ID)
		return err
	})
	require.Len(t, flagged, 3)
	for _, p := range posts {
		require.Equal(t, enums.ContentStatusBanned, f.content(p).Status)
	}

	sanction, ok := f.sanction(report.ID)
	require.True(t, ok)
	require.True(t, sanction.IsActive)
	require.Equal(t, enums.ContentTypeAccount, sanction.ContentType)
	require.Equal(t, enums.UserStatusTempBan, f.userStatus())

	require.Len(t, f.mailer.msgs, 1)
	require.Equal(t, notify.TemplateAccountBanned, f.mailer.msgs[0].Template)
	require.Equal(t, []string{"alice@example.com"}, f.mailer.msgs[0].To)
	require.Equal(t, "72", f.mailer.msgs[0].Body["duration_hours"])
}

func TestAcceptReversalAccountReportSharesDelta(t *testing.T) {
	f := newFixture(t)
	report, posts, _ := manualAccountBan(t, f)

	accept := func(p model.Content) {
		appeal := model.Appeal{ReportID: report.ID, ContentType: enums.ContentTypePost, ContentID: p.ID, UserID: f.user.ID}
		require.NoError(t, f.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *Effects) error {
			return f.orch.AcceptReversal(ctx, tx, fx, appeal)
		}))
	}

	// delta is 203 over three posts: 67, 67, then the remaining 69
	accept(posts[1])
	require.Equal(t, 536, f.score().FinalViolationScore)
	require.Equal(t, enums.ContentStatusPublished, f.content(posts[1]).Status)
	require.Equal(t, enums.UserStatusTempBan, f.userStatus())

	accept(posts[1])
	require.Equal(t, 536, f.score().FinalViolationScore, "restoring twice is a no-op")

	accept(posts[0])
	require.Equal(t, 469, f.score().FinalViolationScore)

	accept(posts[2])
	require.Equal(t, 400, f.score().FinalViolationScore)
	require.True(t, f.delta(report.ID).IsRemoved)
	sanction, _ := f.sanction(report.ID)
	require.False(t, sanction.IsActive)
	require.Equal(t, enums.UserStatusActive, f.userStatus())
}

func TestRejectFinalizeBlocksLaterReversal(t *testing.T) {
	f := newFixture(t)
	post := f.post()
	report := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonHateSymbols, f.mod)
	f.auto(report)

	appeal := model.Appeal{ReportID: report.ID, ContentType: enums.ContentTypePost, ContentID: post.ID, UserID: f.user.ID}
	f.do(func(ctx context.Context, tx repo.Tx) error {
		return f.orch.RejectFinalize(ctx, tx, appeal)
	})
	require.True(t, f.content(post).IsBanFinal)

	err := f.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *Effects) error {
		return f.orch.AcceptReversal(ctx, tx, fx, appeal)
	})
	require.True(t, faults.Is(err, faults.KindConflict), "got %v", err)
}

func TestFinalizePermBan(t *testing.T) {
	f := newFixture(t)
	post := f.post()
	report := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonOther, f.mod)

	out, err := f.orch.ApplyManual(context.Background(), f.mod, ManualAction{
		CaseNumber:       report.CaseNumber,
		ReportedUsername: f.user.Username,
		Action:           enums.SanctionPermBan,
		DurationHours:    rules.PermBanDurationHours,
	})
	require.NoError(t, err)
	require.Equal(t, 850, out.Decision.NewFinal)
	require.Equal(t, enums.UserStatusPermBan, f.userStatus())
	require.Len(t, f.mailer.msgs, 1)
	_, hasEnd := f.mailer.msgs[0].Body["ends_at"]
	require.False(t, hasEnd)

	sanction, _ := f.sanction(report.ID)
	f.do(func(ctx context.Context, tx repo.Tx) error {
		return f.orch.FinalizePermBan(ctx, tx, sanction)
	})

	require.Equal(t, enums.UserStatusPendingDeleteBan, f.userStatus())
	require.True(t, f.content(post).IsBanFinal)
	sanction, _ = f.sanction(report.ID)
	require.False(t, sanction.IsActive)
	require.NotNil(t, sanction.ConcludedAt)
}

func TestApplyAutoPropagatesToRelatedReports(t *testing.T) {
	f := newFixture(t)
	post := f.post()
	primary := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonHateSymbols, f.mod)
	same := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonHateSymbols, f.mod)
	other := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonSpam, f.mod)
	foreign := f.underReview(enums.ContentTypePost, post.ID, enums.ReportReasonHateSymbols, uuid.New())

	out := f.auto(primary)
	require.Len(t, out.Related, 2)

	got := f.report(same.ID)
	require.Equal(t, enums.ReportStatusResolvedRelated, got.Status)
	require.Equal(t, primary.ID, *got.RelatedReportID)

	got = f.report(other.ID)
	require.Equal(t, enums.ReportStatusClosed, got.Status)
	require.Equal(t, NoteRelatedFollow, got.ModeratorNote)

	require.Equal(t, enums.ReportStatusUnderReview, f.report(foreign.ID).Status)
}

func TestApplyAutoRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture) (model.Report, string)
		kind  faults.Kind
	}{
		{
			name: "moderator decision reason",
			setup: func(f *fixture) (model.Report, string) {
				return f.underReview(enums.ContentTypePost, f.post().ID, enums.ReportReasonImpersonation, f.mod), f.user.Username
			},
			kind: faults.KindValidation,
		},
		{
			name: "account report",
			setup: func(f *fixture) (model.Report, string) {
				return f.underReview(enums.ContentTypeAccount, f.user.ID, enums.ReportReasonSpam, f.mod), f.user.Username
			},
			kind: faults.KindValidation,
		},
		{
			name: "held by another moderator",
			setup: func(f *fixture) (model.Report, string) {
				return f.underReview(enums.ContentTypePost, f.post().ID, enums.ReportReasonSpam, uuid.New()), f.user.Username
			},
			kind: faults.KindForbidden,
		},
		{
			name: "wrong reported user",
			setup: func(f *fixture) (model.Report, string) {
				return f.underReview(enums.ContentTypePost, f.post().ID, enums.ReportReasonSpam, f.mod), f.reporter.Username
			},
			kind: faults.KindValidation,
		},
		{
			name: "already resolved",
			setup: func(f *fixture) (model.Report, string) {
				r := f.underReview(enums.ContentTypePost, f.post().ID, enums.ReportReasonSpam, f.mod)
				f.auto(r)
				return r, f.user.Username
			},
			kind: faults.KindConflict,
		},
		{
			name: "content already banned",
			setup: func(f *fixture) (model.Report, string) {
				p := f.post()
				f.auto(f.underReview(enums.ContentTypePost, p.ID, enums.ReportReasonHateSymbols, f.mod))
				return f.underReview(enums.ContentTypePost, p.ID, enums.ReportReasonNudity, f.mod), f.user.Username
			},
			kind: faults.KindConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			report, username := tc.setup(f)
			before := f.score()

			_, err := f.orch.ApplyAuto(context.Background(), f.mod, report.CaseNumber, username)
			require.Error(t, err)
			require.Equal(t, tc.kind, faults.KindOf(err), "got %v", err)
			require.Equal(t, before.FinalViolationScore, f.score().FinalViolationScore)
		})
	}
}
