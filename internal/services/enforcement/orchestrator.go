// Package enforcement owns every change that spans reports, scores,
// sanctions, content and user status. Each entry point runs in one
// transaction; email requests are queued only after commit.
package enforcement

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
	"github.com/ivankudzin/trustsafety/internal/metrics"
	"github.com/ivankudzin/trustsafety/internal/repo"
	"github.com/ivankudzin/trustsafety/internal/services/notify"
	"github.com/ivankudzin/trustsafety/internal/services/sanctions"
)

const (
	NoteResolved      = "RS"
	NoteRelatedFollow = "RF"
)

type Mailer interface {
	Enqueue(ctx context.Context, msg notify.Message) error
}

type Windows struct {
	PBNAppeal     time.Duration
	ContentAppeal time.Duration
}

type Dependencies struct {
	Store   repo.Store
	Queue   *sanctions.Queue
	Mailer  Mailer
	Windows Windows
	Logger  *zap.Logger
	Now     func() time.Time
}

type Orchestrator struct {
	store   repo.Store
	queue   *sanctions.Queue
	mailer  Mailer
	windows Windows
	logger  *zap.Logger
	now     func() time.Time
}

// Effects collects side effects that must wait for the transaction to commit.
type Effects struct {
	emails  []notify.Message
	actions []enums.SanctionAction
}

func (fx *Effects) Email(msg notify.Message) {
	fx.emails = append(fx.emails, msg)
}

func New(deps Dependencies) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	queue := deps.Queue
	if queue == nil {
		queue = sanctions.NewQueue(logger, now)
	}
	return &Orchestrator{
		store:   deps.Store,
		queue:   queue,
		mailer:  deps.Mailer,
		windows: deps.Windows,
		logger:  logger,
		now:     now,
	}
}

func (o *Orchestrator) Queue() *sanctions.Queue { return o.queue }

func (o *Orchestrator) Now() time.Time { return o.now().UTC() }

// Atomic runs fn in one transaction and flushes the collected effects once
// it commits. Email failures are logged and never undo the transaction.
func (o *Orchestrator) Atomic(ctx context.Context, fn func(ctx context.Context, tx repo.Tx, fx *Effects) error) error {
	var fx *Effects
	err := o.store.WithTx(ctx, func(ctx context.Context, tx repo.Tx) error {
		fx = &Effects{}
		return fn(ctx, tx, fx)
	})
	if err != nil {
		return err
	}
	o.flush(ctx, fx)
	return nil
}

// Commit returns the hook the sanction queue calls when it activates a
// queued sanction.
func (o *Orchestrator) Commit(fx *Effects) sanctions.CommitFunc {
	return func(ctx context.Context, tx repo.Tx, sanction model.Sanction) error {
		return o.FutureCommit(ctx, tx, fx, sanction)
	}
}

func (o *Orchestrator) flush(ctx context.Context, fx *Effects) {
	for _, action := range fx.actions {
		metrics.EnforcementActions.WithLabelValues(string(action)).Inc()
	}
	if len(fx.emails) == 0 {
		return
	}
	if o.mailer == nil {
		o.logger.Warn("email queue not configured, dropping emails", zap.Int("count", len(fx.emails)))
		return
	}
	for _, msg := range fx.emails {
		if err := o.mailer.Enqueue(context.WithoutCancel(ctx), msg); err != nil {
			o.logger.Error("enqueue email failed", zap.String("template", msg.Template), zap.Strings("to", msg.To), zap.Error(err))
		}
	}
}

func (o *Orchestrator) banEmail(user model.User, sanction model.Sanction) notify.Message {
	window := o.windows.ContentAppeal
	if sanction.Status == enums.SanctionPermBan {
		window = o.windows.PBNAppeal
	}
	body := map[string]string{
		"username":          user.Username,
		"status":            string(sanction.Status),
		"enforce_action_at": sanction.EnforceActionAt.UTC().Format(time.RFC3339),
		"appeal_deadline":   sanction.EnforceActionAt.Add(window).UTC().Format(time.RFC3339),
	}
	if sanction.Status != enums.SanctionPermBan {
		body["duration_hours"] = strconv.Itoa(sanction.DurationHours)
		body["ends_at"] = sanction.EndsAt().UTC().Format(time.RFC3339)
	}
	return notify.Message{
		Template: notify.TemplateAccountBanned,
		To:       []string{user.Email},
		Body:     body,
	}
}

func (o *Orchestrator) reportEvent(ctx context.Context, tx repo.Tx, report model.Report, event enums.TimelineEvent, actor *uuid.UUID) error {
	return tx.Reports().AppendEvent(ctx, model.TimelineEvent{
		SubjectID: report.ID,
		Event:     event,
		Status:    string(report.Status),
		ActorID:   actor,
		Note:      report.ModeratorNote,
		CreatedAt: o.Now(),
	})
}
