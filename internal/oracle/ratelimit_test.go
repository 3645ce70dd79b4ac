package oracle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBudget(t *testing.T) {
	rl := NewRateLimiter(60, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := rl.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}

	status := rl.Status()
	if status.TotalConsumed != 5 {
		t.Errorf("TotalConsumed = %d, want 5", status.TotalConsumed)
	}
}

func TestRateLimiterQuotaExceeded(t *testing.T) {
	// Budget of 1 per minute with a tiny max wait: the second acquire
	// would have to queue for ~60s and must fail fast instead.
	rl := NewRateLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := rl.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	err := rl.Acquire(ctx)
	if err == nil {
		t.Fatal("second acquire succeeded, want quota error")
	}
	if KindOf(err) != KindQuotaExceeded {
		t.Errorf("kind = %q, want %q", KindOf(err), KindQuotaExceeded)
	}
}

func TestRateLimiterContextCancel(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if err := rl.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rl.Acquire(ctx)
	if err == nil {
		t.Fatal("acquire with cancelled context succeeded")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
}

func TestThrottledDelegates(t *testing.T) {
	mock := NewMock("hello")
	client := NewThrottled(mock, NewRateLimiter(60, time.Second))

	got, err := client.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if client.Name() != MockName {
		t.Errorf("Name = %q, want %q", client.Name(), MockName)
	}
	if mock.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", mock.Calls())
	}
}

func TestMockScriptedResponses(t *testing.T) {
	mock := NewMock("first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		got, err := mock.Complete(ctx, "p")
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
	if prompts := mock.Prompts(); len(prompts) != 3 {
		t.Errorf("recorded %d prompts, want 3", len(prompts))
	}
}

func TestMockFailTimes(t *testing.T) {
	mock := NewMock("ok")
	mock.Err = NewError(KindTransport, MockName, errors.New("boom"))
	mock.FailTimes = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := mock.Complete(ctx, "p"); err == nil {
			t.Fatalf("call %d succeeded, want failure", i)
		}
	}
	got, err := mock.Complete(ctx, "p")
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}
