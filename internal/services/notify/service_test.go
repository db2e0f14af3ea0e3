package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ivankudzin/trustsafety/internal/repo/redis"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

type failingQueue struct{ calls int }

func (f *failingQueue) Push(context.Context, []byte) error {
	f.calls++
	return errors.New("redis down")
}

func (f *failingQueue) Pop(context.Context, time.Duration) ([]byte, error) {
	return nil, redrepo.ErrQueueEmpty
}

func TestEnqueueThenDeliver(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	sender := &recordingSender{}
	svc := NewService(redrepo.NewEmailQueueRepo(client, "test:email"), sender, Config{PopTimeout: 100 * time.Millisecond}, nil)

	ctx := context.Background()
	err = svc.Enqueue(ctx, Message{
		Template: TemplateAccountBanned,
		To:       []string{"user@example.com"},
		Body:     map[string]string{"status": "TBN"},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	delivered, err := svc.DeliverNext(ctx)
	if err != nil || !delivered {
		t.Fatalf("deliver: delivered=%v err=%v", delivered, err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Body["status"] != "TBN" {
		t.Fatalf("unexpected sent messages: %+v", sender.sent)
	}
	if sender.sent[0].QueuedAt.IsZero() {
		t.Fatalf("expected queued_at to be stamped")
	}

	delivered, err = svc.DeliverNext(ctx)
	if err != nil || delivered {
		t.Fatalf("expected empty queue: delivered=%v err=%v", delivered, err)
	}
}

func TestEnqueueGivesUpWhenBreakerOpens(t *testing.T) {
	queue := &failingQueue{}
	svc := NewService(queue, nil, Config{RetryMaxElapsed: 2 * time.Second, BreakerFailures: 2}, nil)

	err := svc.Enqueue(context.Background(), Message{Template: TemplateAccountBanned})
	if err == nil {
		t.Fatalf("expected enqueue failure")
	}
	if queue.calls != 2 {
		t.Fatalf("expected breaker to stop retries after 2 failures, got %d calls", queue.calls)
	}
}
