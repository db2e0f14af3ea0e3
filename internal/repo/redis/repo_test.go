package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newClient(t *testing.T) (*goredis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return client, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestEmailQueueIsFIFO(t *testing.T) {
	client, cleanup := newClient(t)
	defer cleanup()

	repo := NewEmailQueueRepo(client, "")
	ctx := context.Background()
	for _, payload := range []string{"one", "two"} {
		if err := repo.Push(ctx, []byte(payload)); err != nil {
			t.Fatalf("push %s: %v", payload, err)
		}
	}

	size, err := repo.Len(ctx)
	if err != nil || size != 2 {
		t.Fatalf("unexpected queue length: %d err=%v", size, err)
	}

	first, err := repo.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop first: %v", err)
	}
	if string(first) != "one" {
		t.Fatalf("expected oldest payload first, got %q", first)
	}
	second, err := repo.Pop(ctx, time.Second)
	if err != nil || string(second) != "two" {
		t.Fatalf("pop second: %q err=%v", second, err)
	}
}

func TestMarkerClaimIsOneShot(t *testing.T) {
	client, cleanup := newClient(t)
	defer cleanup()

	repo := NewMarkerRepo(client, "marker:")
	ctx := context.Background()

	ok, err := repo.Claim(ctx, "decay:2026Q1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected first claim to win: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Claim(ctx, "decay:2026Q1", time.Hour)
	if err != nil || ok {
		t.Fatalf("expected second claim to lose: ok=%v err=%v", ok, err)
	}

	if err := repo.Release(ctx, "decay:2026Q1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = repo.Claim(ctx, "decay:2026Q1", time.Hour)
	if err != nil || !ok {
		t.Fatalf("expected claim after release: ok=%v err=%v", ok, err)
	}
}

func TestNilClientErrors(t *testing.T) {
	repo := NewEmailQueueRepo(nil, "q")
	if err := repo.Push(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewMarkerRepo(nil, "").Claim(context.Background(), "k", time.Second); err == nil || errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected nil client error, got %v", err)
	}
}
