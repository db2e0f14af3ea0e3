package appeals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/repo/memory"
	authsvc "github.com/ivankudzin/trustsafety/internal/services/auth"
	"github.com/ivankudzin/trustsafety/internal/services/enforcement"
)

type env struct {
	t     *testing.T
	now   time.Time
	store *memory.Store
	orch  *enforcement.Orchestrator
	svc   *Service
	mod   authsvc.Identity
	admin authsvc.Identity
	user  model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{t: t, now: time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }
	e.store = memory.NewStore(clock)
	e.orch = enforcement.New(enforcement.Dependencies{
		Store:   e.store,
		Windows: enforcement.Windows{PBNAppeal: 30 * 24 * time.Hour, ContentAppeal: 14 * 24 * time.Hour},
		Now:     clock,
	})
	e.svc = NewService(e.store, e.orch, nil, clock)

	e.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		if e.user, err = tx.Users().Create(ctx, model.User{Username: "carol", Email: "carol@example.com"}); err != nil {
			return err
		}
		mod, err := tx.Employees().Create(ctx, model.Employee{Name: "mod", Role: enums.RoleModerator, IsActive: true})
		if err != nil {
			return err
		}
		admin, err := tx.Employees().Create(ctx, model.Employee{Name: "admin", Role: enums.RoleAdmin, IsActive: true})
		e.mod = authsvc.Identity{EmployeeID: mod.ID, Role: mod.Role}
		e.admin = authsvc.Identity{EmployeeID: admin.ID, Role: admin.Role}
		return err
	})
	return e
}

func (e *env) do(fn func(ctx context.Context, tx repo.Tx) error) {
	e.t.Helper()
	require.NoError(e.t, e.store.WithTx(context.Background(), fn))
}

// bannedPost creates a post and resolves a severe report against it.
func (e *env) bannedPost() (model.Report, model.Content) {
	e.t.Helper()
	var report model.Report
	var post model.Content
	e.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		if post, err = tx.Contents().Create(ctx, model.Content{Type: enums.ContentTypePost, OwnerUserID: e.user.ID}); err != nil {
			return err
		}
		report, err = tx.Reports().Create(ctx, model.Report{
			ReporterUserID:   uuid.New(),
			ReportedUserID:   e.user.ID,
			ReportedItemID:   post.ID,
			ReportedItemType: enums.ContentTypePost,
			Reason:           enums.ReportReasonHateSymbols,
			Status:           enums.ReportStatusUnderReview,
			ModeratorID:      &e.mod.EmployeeID,
		})
		return err
	})
	_, err := e.orch.ApplyAuto(context.Background(), e.mod.EmployeeID, report.CaseNumber, e.user.Username)
	require.NoError(e.t, err)
	return report, post
}

func (e *env) expireActive() {
	e.t.Helper()
	err := e.orch.Atomic(context.Background(), func(ctx context.Context, tx repo.Tx, fx *enforcement.Effects) error {
		active, ok, err := tx.Sanctions().GetActive(ctx, e.user.ID)
		if err != nil || !ok {
			return err
		}
		return e.orch.Queue().Expire(ctx, tx, active, e.orch.Commit(fx))
	})
	require.NoError(e.t, err)
}

func (e *env) file(report model.Report, contentType enums.ContentType, contentID uuid.UUID) model.Appeal {
	e.t.Helper()
	appeal, err := e.svc.File(context.Background(), FileRequest{
		Username:         e.user.Username,
		ReportCaseNumber: report.CaseNumber,
		ContentType:      contentType,
		ContentID:        contentID,
		Detail:           "please",
	})
	require.NoError(e.t, err)
	return appeal
}

func (e *env) review(appeals ...model.Appeal) {
	e.t.Helper()
	cases := make([]int64, 0, len(appeals))
	for _, a := range appeals {
		cases = append(cases, a.CaseNumber)
	}
	res, err := e.svc.MarkReview(context.Background(), e.mod, cases)
	require.NoError(e.t, err)
	require.Len(e.t, res.Valid, len(appeals))
}

func (e *env) appeal(caseNumber int64) model.Appeal {
	e.t.Helper()
	d, err := e.svc.Detail(context.Background(), caseNumber)
	require.NoError(e.t, err)
	return d.Appeal
}

func (e *env) content(c model.Content) model.Content {
	e.t.Helper()
	var out model.Content
	e.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, err = tx.Contents().Get(ctx, c.Type, c.ID)
		return err
	})
	return out
}

func (e *env) finalScore() int {
	e.t.Helper()
	var out model.ViolationScore
	e.do(func(ctx context.Context, tx repo.Tx) error {
		var err error
		out, _, err = tx.Scores().Get(ctx, e.user.ID)
		return err
	})
	return out.FinalViolationScore
}

func TestAcceptRestoresPostAndReversesScore(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()
	require.Equal(t, 187, e.finalScore())

	appeal := e.file(report, enums.ContentTypePost, post.ID)
	e.review(appeal)

	checked, err := e.svc.PolicyCheck(context.Background(), e.mod, appeal.CaseNumber)
	require.NoError(t, err)
	require.NotNil(t, checked.IsPolicyFollowed)
	require.True(t, *checked.IsPolicyFollowed)

	res, err := e.svc.Act(context.Background(), e.mod, appeal.CaseNumber, enums.AppealActionAccept, "overturned")
	require.NoError(t, err)
	require.Equal(t, enums.AppealStatusAccepted, res.Appeal.Status)

	require.Equal(t, enums.ContentStatusPublished, e.content(post).Status)
	require.Zero(t, e.finalScore())

	d, err := e.svc.Detail(context.Background(), appeal.CaseNumber)
	require.NoError(t, err)
	require.Equal(t, enums.AppealStatusAccepted, d.Appeal.Status)
	require.Len(t, d.Events, 3)
}

func TestActRequiresPolicyCheck(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()
	appeal := e.file(report, enums.ContentTypePost, post.ID)
	e.review(appeal)

	_, err := e.svc.Act(context.Background(), e.mod, appeal.CaseNumber, enums.AppealActionReject, "")
	require.True(t, faults.Is(err, faults.KindConflict), "got %v", err)
}

func TestRejectMakesBanFinalAndBlocksLaterPolicy(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()

	accountAppeal := e.file(report, enums.ContentTypeAccount, uuid.Nil)
	e.review(accountAppeal)
	_, err := e.svc.PolicyCheck(context.Background(), e.mod, accountAppeal.CaseNumber)
	require.NoError(t, err)
	res, err := e.svc.Act(context.Background(), e.mod, accountAppeal.CaseNumber, enums.AppealActionReject, "upheld")
	require.NoError(t, err)
	require.Equal(t, enums.AppealStatusRejected, res.Appeal.Status)
	require.True(t, e.content(post).IsBanFinal)

	_, err = e.svc.File(context.Background(), FileRequest{
		Username:         e.user.Username,
		ReportCaseNumber: report.CaseNumber,
		ContentType:      enums.ContentTypePost,
		ContentID:        post.ID,
	})
	require.True(t, faults.Is(err, faults.KindConflict), "got %v", err)

	// a post appeal on another report is blocked by the rejected account appeal
	e.now = e.now.Add(48 * time.Hour)
	e.expireActive()
	other, otherPost := e.bannedPost()
	appeal := e.file(other, enums.ContentTypePost, otherPost.ID)
	e.review(appeal)
	checked, err := e.svc.PolicyCheck(context.Background(), e.mod, appeal.CaseNumber)
	require.NoError(t, err)
	require.False(t, *checked.IsPolicyFollowed)

	_, err = e.svc.Act(context.Background(), e.mod, appeal.CaseNumber, enums.AppealActionAccept, "")
	require.True(t, faults.Is(err, faults.KindConflict), "got %v", err)
}

func TestAcceptCarriesRelatedAppeals(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()

	postAppeal := e.file(report, enums.ContentTypePost, post.ID)
	accountAppeal := e.file(report, enums.ContentTypeAccount, uuid.Nil)
	e.review(postAppeal, accountAppeal)
	for _, a := range []model.Appeal{postAppeal, accountAppeal} {
		_, err := e.svc.PolicyCheck(context.Background(), e.mod, a.CaseNumber)
		require.NoError(t, err)
	}

	res, err := e.svc.Act(context.Background(), e.mod, postAppeal.CaseNumber, enums.AppealActionAccept, "")
	require.NoError(t, err)
	require.Equal(t, []RelatedChange{{CaseNumber: accountAppeal.CaseNumber, Status: enums.AppealStatusAcceptedRelated}}, res.Related)
	require.Equal(t, enums.AppealStatusAcceptedRelated, e.appeal(accountAppeal.CaseNumber).Status)
	require.Zero(t, e.finalScore())
}

func TestMarkReviewPartitions(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()
	mine := e.file(report, enums.ContentTypePost, post.ID)
	e.review(mine)

	other, otherPost := e.bannedPost()
	fresh := e.file(other, enums.ContentTypePost, otherPost.ID)
	closed := e.file(other, enums.ContentTypeAccount, uuid.Nil)
	_, err := e.svc.MarkReview(context.Background(), e.admin, []int64{closed.CaseNumber})
	require.NoError(t, err)
	_, err = e.svc.Close(context.Background(), e.admin, closed.CaseNumber, "duplicate")
	require.NoError(t, err)

	res, err := e.svc.MarkReview(context.Background(), e.mod, []int64{fresh.CaseNumber, mine.CaseNumber, closed.CaseNumber, 999, fresh.CaseNumber})
	require.NoError(t, err)
	require.Equal(t, []int64{fresh.CaseNumber}, res.Valid)
	require.Equal(t, []int64{mine.CaseNumber}, res.AlreadyUnderReview)
	require.ElementsMatch(t, []int64{closed.CaseNumber, 999}, res.Invalid)
}

func TestAssignRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	report, post := e.bannedPost()
	appeal := e.file(report, enums.ContentTypePost, post.ID)

	_, err := e.svc.Assign(context.Background(), e.mod, []int64{appeal.CaseNumber}, e.mod.EmployeeID)
	require.True(t, faults.Is(err, faults.KindForbidden), "got %v", err)

	res, err := e.svc.Assign(context.Background(), e.admin, []int64{appeal.CaseNumber}, e.mod.EmployeeID)
	require.NoError(t, err)
	require.Equal(t, []int64{appeal.CaseNumber}, res.Assigned)

	res, err = e.svc.Assign(context.Background(), e.admin, []int64{appeal.CaseNumber}, e.mod.EmployeeID)
	require.NoError(t, err)
	require.Equal(t, []int64{appeal.CaseNumber}, res.Invalid)

	list, err := e.svc.AdminDashboard(context.Background(), e.admin, AdminQuery{Type: DashboardAssigned, EmployeeID: &e.mod.EmployeeID})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.svc.AdminDashboard(context.Background(), e.admin, AdminQuery{Type: DashboardNew, EmployeeID: &e.mod.EmployeeID})
	require.True(t, faults.Is(err, faults.KindValidation), "got %v", err)
}

func TestPolicyCheckLooksAtLinkedRejections(t *testing.T) {
	type fixture struct {
		report   model.Report
		flagged  model.Content
		stranger model.Content
	}
	rejected := func(contentType enums.ContentType, contentID, reportID uuid.UUID) model.Appeal {
		return model.Appeal{
			ReportID:    reportID,
			ContentType: contentType,
			ContentID:   contentID,
			Status:      enums.AppealStatusRejected,
		}
	}

	cases := []struct {
		name       string
		reportType enums.ContentType
		appealType enums.ContentType
		prior      func(f fixture) model.Appeal
		want       bool
	}{
		{
			name:       "account appeal on account ban with a rejected flagged post",
			reportType: enums.ContentTypeAccount,
			appealType: enums.ContentTypeAccount,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypePost, f.flagged.ID, uuid.New())
			},
			want: false,
		},
		{
			name:       "account appeal on account ban with an unrelated rejected post",
			reportType: enums.ContentTypeAccount,
			appealType: enums.ContentTypeAccount,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypePost, f.stranger.ID, uuid.New())
			},
			want: true,
		},
		{
			name:       "account appeal on post ban with the post appeal rejected",
			reportType: enums.ContentTypePost,
			appealType: enums.ContentTypeAccount,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypePost, f.flagged.ID, f.report.ID)
			},
			want: false,
		},
		{
			name:       "account appeal on post ban with another post rejected",
			reportType: enums.ContentTypePost,
			appealType: enums.ContentTypeAccount,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypePost, f.stranger.ID, uuid.New())
			},
			want: true,
		},
		{
			name:       "post appeal on account ban with the account appeal rejected",
			reportType: enums.ContentTypeAccount,
			appealType: enums.ContentTypePost,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypeAccount, f.report.ReportedUserID, f.report.ID)
			},
			want: false,
		},
		{
			name:       "post appeal on account ban with an account appeal rejected elsewhere",
			reportType: enums.ContentTypeAccount,
			appealType: enums.ContentTypePost,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypeAccount, f.report.ReportedUserID, uuid.New())
			},
			want: true,
		},
		{
			name:       "post appeal on post ban with an account appeal rejected",
			reportType: enums.ContentTypePost,
			appealType: enums.ContentTypePost,
			prior: func(f fixture) model.Appeal {
				return rejected(enums.ContentTypeAccount, f.report.ReportedUserID, uuid.New())
			},
			want: false,
		},
		{
			name:       "no prior rejection",
			reportType: enums.ContentTypeAccount,
			appealType: enums.ContentTypeAccount,
			want:       true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			var f fixture
			var appeal model.Appeal
			e.do(func(ctx context.Context, tx repo.Tx) error {
				var err error
				if f.flagged, err = tx.Contents().Create(ctx, model.Content{Type: enums.ContentTypePost, OwnerUserID: e.user.ID}); err != nil {
					return err
				}
				if f.stranger, err = tx.Contents().Create(ctx, model.Content{Type: enums.ContentTypePost, OwnerUserID: e.user.ID}); err != nil {
					return err
				}
				itemID := f.flagged.ID
				if tc.reportType == enums.ContentTypeAccount {
					itemID = e.user.ID
				}
				f.report, err = tx.Reports().Create(ctx, model.Report{
					ReporterUserID:   uuid.New(),
					ReportedUserID:   e.user.ID,
					ReportedItemID:   itemID,
					ReportedItemType: tc.reportType,
					Reason:           enums.ReportReasonHateSymbols,
					Status:           enums.ReportStatusResolved,
					ModeratorID:      &e.mod.EmployeeID,
				})
				if err != nil {
					return err
				}
				if tc.reportType == enums.ContentTypeAccount {
					if err := tx.Contents().InsertFlagged(ctx, f.report.ID, []uuid.UUID{f.flagged.ID}); err != nil {
						return err
					}
				}
				if tc.prior != nil {
					prior := tc.prior(f)
					prior.UserID = e.user.ID
					if _, err := tx.Appeals().Create(ctx, prior); err != nil {
						return err
					}
				}
				contentID := f.flagged.ID
				if tc.appealType == enums.ContentTypeAccount {
					contentID = e.user.ID
				}
				appeal, err = tx.Appeals().Create(ctx, model.Appeal{
					UserID:      e.user.ID,
					ReportID:    f.report.ID,
					ContentType: tc.appealType,
					ContentID:   contentID,
					Status:      enums.AppealStatusUnderReview,
					ModeratorID: &e.mod.EmployeeID,
				})
				return err
			})

			checked, err := e.svc.PolicyCheck(context.Background(), e.mod, appeal.CaseNumber)
			require.NoError(t, err)
			require.NotNil(t, checked.IsPolicyFollowed)
			require.Equal(t, tc.want, *checked.IsPolicyFollowed)
		})
	}
}
