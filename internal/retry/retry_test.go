package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts uint) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	notified := 0

	v, err := Do(context.Background(), fastPolicy(5), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}, func(error, time.Duration) { notified++ })

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("v = %d, want 42", v)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if notified != 2 {
		t.Errorf("notified = %d, want 2", notified)
	}
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Run(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("down")
	}, nil)

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")

	err := Run(context.Background(), fastPolicy(5), func() error {
		calls++
		return Permanent(sentinel)
	}, nil)

	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
