// Package notify queues outbound email requests and drains them to the
// delivery collaborator.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ivankudzin/trustsafety/internal/metrics"
	redrepo "github.com/ivankudzin/trustsafety/internal/repo/redis"
)

const (
	TemplateAccountBanned = "account_banned"

	defaultRetryMaxElapsed = 10 * time.Second
	defaultBreakerFailures = 5
	defaultPopTimeout      = 2 * time.Second
)

type Message struct {
	Template string            `json:"template"`
	To       []string          `json:"to"`
	Body     map[string]string `json:"body"`
	QueuedAt time.Time         `json:"queued_at"`
}

type Queue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Sender delivers one message. Delivery itself lives outside this service.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	RetryMaxElapsed time.Duration
	BreakerFailures uint32
	PopTimeout      time.Duration
}

type Service struct {
	queue   Queue
	sender  Sender
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(queue Queue, sender Sender, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = defaultRetryMaxElapsed
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "email-queue",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Service{
		queue:   queue,
		sender:  sender,
		breaker: breaker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue pushes msg onto the queue, retrying with exponential backoff while
// the breaker stays closed.
func (s *Service) Enqueue(ctx context.Context, msg Message) error {
	if s == nil || s.queue == nil {
		return fmt.Errorf("email queue is not configured")
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = s.now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	operation := func() error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.queue.Push(ctx, payload)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 100 * time.Millisecond
	expBackoff.MaxElapsedTime = s.cfg.RetryMaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		metrics.EmailEnqueue.WithLabelValues("error").Inc()
		return fmt.Errorf("enqueue email %s: %w", msg.Template, err)
	}
	metrics.EmailEnqueue.WithLabelValues("ok").Inc()
	return nil
}

// Run drains the queue until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := s.DeliverNext(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("email delivery failed", zap.Error(err))
		}
	}
}

// DeliverNext pops and sends one message. It reports false when the queue
// stayed empty for the pop timeout.
func (s *Service) DeliverNext(ctx context.Context) (bool, error) {
	payload, err := s.queue.Pop(ctx, s.cfg.PopTimeout)
	if errors.Is(err, redrepo.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return true, fmt.Errorf("decode email: %w", err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return true, fmt.Errorf("send email %s: %w", msg.Template, err)
	}
	return true, nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *zap.Logger
}

func (l LogSender) Send(_ context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email dispatched",
		zap.String("template", msg.Template),
		zap.Strings("to", msg.To),
		zap.Any("body", msg.Body),
	)
	return nil
}
