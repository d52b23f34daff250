package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fd1az/swap-sentinel/business/notify/domain"
	swapDomain "github.com/fd1az/swap-sentinel/business/swap/domain"
	"github.com/fd1az/swap-sentinel/internal/apperror"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

type sent struct{ title, message string }

type mockSender struct {
	name  string
	err   error
	gate  chan struct{} // when set, Send waits for it
	mu    sync.Mutex
	sent  []sent
	calls chan struct{}
}

func newMockSender(name string) *mockSender {
	return &mockSender{name: name, calls: make(chan struct{}, 64)}
}

func (s *mockSender) Name() string { return s.name }

func (s *mockSender) Send(ctx context.Context, title, message string) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.sent = append(s.sent, sent{title, message})
	s.mu.Unlock()
	s.calls <- struct{}{}
	return s.err
}

func (s *mockSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func waitCalls(t *testing.T, s *mockSender, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: got %d sends, want %d", s.name, i, n)
		}
	}
}

var allEvents = []domain.Event{
	domain.EventSwapExecuted,
	domain.EventSwapFailed,
	domain.EventSwapDryRun,
	domain.EventEmergencyStop,
}

func TestNotifier_FiltersEvents(t *testing.T) {
	s := newMockSender("a")
	n := NewNotifier([]Sender{s}, []domain.Event{domain.EventSwapFailed}, &mockLogger{})

	if err := n.Notify(context.Background(), domain.Message{Event: domain.EventSwapExecuted, Title: "x"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.count() != 0 {
		t.Errorf("filtered event was sent")
	}

	if err := n.Notify(context.Background(), domain.Message{Event: domain.EventSwapFailed, Title: "y"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.count() != 1 {
		t.Errorf("sent = %d, want 1", s.count())
	}
}

func TestNotifier_NoSendersDisabled(t *testing.T) {
	n := NewNotifier(nil, allEvents, &mockLogger{})
	if n.Enabled(domain.EventSwapFailed) {
		t.Error("Enabled() with no senders")
	}
}

func TestNotifier_JoinsFailures(t *testing.T) {
	ok := newMockSender("ok")
	bad1 := newMockSender("telegram")
	bad1.err = errors.New("chat not found")
	bad2 := newMockSender("discord")
	bad2.err = errors.New("unknown webhook")

	n := NewNotifier([]Sender{bad1, ok, bad2}, allEvents, &mockLogger{})
	err := n.Notify(context.Background(), domain.Message{Event: domain.EventEmergencyStop, Title: "stop"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperror.HasCode(err, apperror.CodeNotificationFailed) {
		t.Errorf("code = %s", apperror.GetCode(err))
	}
	if !errors.Is(err, bad1.err) || !errors.Is(err, bad2.err) {
		t.Errorf("error does not wrap both failures: %v", err)
	}
	if ok.count() != 1 {
		t.Error("healthy sender skipped after a failure")
	}
}

func TestDispatcher_PublishDelivers(t *testing.T) {
	s := newMockSender("a")
	d, err := NewDispatcher(NewNotifier([]Sender{s}, allEvents, &mockLogger{}), 4, time.Second, &mockLogger{})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	defer d.Close(context.Background())

	d.Publish(context.Background(), swapDomain.ExecutionResult{Success: true, DryRun: true, RequestID: "r1"})
	waitCalls(t, s, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent[0].title != "Swap dry run passed" {
		t.Errorf("title = %q", s.sent[0].title)
	}
}

func TestDispatcher_PublishSkipsFilteredEvents(t *testing.T) {
	s := newMockSender("a")
	d, _ := NewDispatcher(NewNotifier([]Sender{s}, []domain.Event{domain.EventSwapFailed}, &mockLogger{}), 4, time.Second, &mockLogger{})

	d.Publish(context.Background(), swapDomain.ExecutionResult{Success: true})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.count() != 0 {
		t.Errorf("sent = %d, want 0", s.count())
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	s := newMockSender("slow")
	s.gate = make(chan struct{})
	d, _ := NewDispatcher(NewNotifier([]Sender{s}, allEvents, &mockLogger{}), 1, time.Second, &mockLogger{})

	msg := domain.Message{Event: domain.EventSwapFailed, Title: "f"}
	// First message is taken by the worker and parks on the gate.
	if !d.Enqueue(context.Background(), msg) {
		t.Fatal("first enqueue dropped")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(d.queue) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never picked up the first message")
		}
		time.Sleep(time.Millisecond)
	}
	if !d.Enqueue(context.Background(), msg) {
		t.Fatal("second enqueue dropped with room in the buffer")
	}
	if d.Enqueue(context.Background(), msg) {
		t.Error("third enqueue accepted on a full buffer")
	}

	close(s.gate)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.count() != 2 {
		t.Errorf("sent = %d, want 2", s.count())
	}
}

func TestDispatcher_CloseDrainsAndRejects(t *testing.T) {
	s := newMockSender("a")
	d, _ := NewDispatcher(NewNotifier([]Sender{s}, allEvents, &mockLogger{}), 8, time.Second, &mockLogger{})

	for i := 0; i < 5; i++ {
		d.Enqueue(context.Background(), domain.Message{Event: domain.EventSwapExecuted, Title: "ok"})
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.count() != 5 {
		t.Errorf("sent = %d, want 5", s.count())
	}

	if d.Enqueue(context.Background(), domain.Message{Event: domain.EventSwapExecuted}) {
		t.Error("enqueue accepted after Close")
	}
	if err := d.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	s := newMockSender("stuck")
	s.gate = make(chan struct{})
	defer close(s.gate)
	d, _ := NewDispatcher(NewNotifier([]Sender{s}, allEvents, &mockLogger{}), 2, time.Minute, &mockLogger{})
	d.Enqueue(context.Background(), domain.Message{Event: domain.EventSwapFailed})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() = %v, want deadline exceeded", err)
	}
}

func TestDispatcher_GovernorChanged(t *testing.T) {
	s := newMockSender("a")
	d, _ := NewDispatcher(NewNotifier([]Sender{s}, allEvents, &mockLogger{}), 4, time.Second, &mockLogger{})
	defer d.Close(context.Background())

	d.GovernorChanged(swapDomain.GovernorEmergencyStopped, "manual")
	waitCalls(t, s, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent[0].title != "Emergency stop" {
		t.Errorf("title = %q", s.sent[0].title)
	}
}
