package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/janisto/storytime-api/internal/domain"
	"github.com/janisto/storytime-api/internal/platform/timeutil"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Entry
	err  error
}

func (r *recordingSender) Send(_ context.Context, userID string, req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Entry{UserID: userID, Request: req})
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDispatcherRearmsRepeatingReminder(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	now := at(19, 51)
	_ = store.Add(ctx, "user-1", Request{
		Identifier: StoryTimeIdentifier,
		FireAt:     at(19, 50),
		Hour:       20,
		Lead:       10 * time.Minute,
		Repeats:    true,
		TimeZone:   "UTC",
	})
	sender := &recordingSender{}
	d := NewDispatcher(store, sender, timeutil.FixedClock(now))

	n, err := d.RunOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}
	req, ok := store.Get("user-1", StoryTimeIdentifier)
	if !ok {
		t.Fatal("expected repeating reminder to remain registered")
	}
	want := time.Date(2024, time.March, 11, 19, 50, 0, 0, time.UTC)
	if !req.FireAt.Equal(want) {
		t.Errorf("expected next fire time %v, got %v", want, req.FireAt)
	}
}

func TestDispatcherRemovesOneShotReminder(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	_ = store.Add(ctx, "user-1", Request{Identifier: DueDateIdentifier, FireAt: at(8, 50)})
	_ = store.Add(ctx, "user-2", Request{Identifier: DueDateIdentifier, FireAt: at(23, 0)})
	sender := &recordingSender{}
	d := NewDispatcher(store, sender, timeutil.FixedClock(at(9, 0)))

	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get("user-1", DueDateIdentifier); ok {
		t.Error("expected delivered one-shot reminder to be removed")
	}
	if _, ok := store.Get("user-2", DueDateIdentifier); !ok {
		t.Error("expected future reminder to be kept")
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 send, got %d", sender.count())
	}
}

func TestDispatcherDoesNotRetryFailedDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	_ = store.Add(ctx, "user-1", Request{Identifier: DueDateIdentifier, FireAt: at(8, 50)})
	sender := &recordingSender{err: errors.New("fcm unavailable")}
	d := NewDispatcher(store, sender, timeutil.FixedClock(at(9, 0)))

	n, err := d.RunOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 deliveries, got %d", n)
	}
	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.count() != 1 {
		t.Errorf("expected a single attempt, got %d", sender.count())
	}
}

type cancellingSender struct {
	recordingSender
	sched *Scheduler
}

func (c *cancellingSender) Send(ctx context.Context, userID string, req Request) error {
	if err := c.sched.Cancel(ctx, userID, req.Identifier); err != nil {
		return err
	}
	return c.recordingSender.Send(ctx, userID, req)
}

func storyTime(fireAt time.Time) Request {
	return Request{
		Identifier: StoryTimeIdentifier,
		FireAt:     fireAt,
		Hour:       20,
		Lead:       10 * time.Minute,
		Repeats:    true,
		TimeZone:   "UTC",
	}
}

func TestDispatcherKeepsCancellationDuringSend(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.FixedClock(at(19, 51))
	store := NewMockStore()
	_ = store.Add(ctx, "user-1", storyTime(at(19, 50)))
	sender := &cancellingSender{sched: NewScheduler(store, clock)}
	d := NewDispatcher(store, sender, clock)

	if _, err := d.RunOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, err := sender.sched.HasPending(ctx, "user-1", StoryTimeIdentifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending {
		t.Error("expected reminder cancelled during delivery to stay cancelled")
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 send, got %d", sender.count())
	}
}

func TestDispatcherSkipsReminderRescheduledAfterRead(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.FixedClock(at(19, 51))
	store := NewMockStore()
	_ = store.Add(ctx, "user-1", storyTime(at(19, 50)))
	sched := NewScheduler(store, clock)
	store.AfterDue = func() {
		_, _ = sched.Schedule(ctx, "user-1", Reminder{
			Identifier: StoryTimeIdentifier,
			Target:     domain.TimeOfDay{Hour: 21, Minute: 0},
			Repeats:    true,
		})
	}
	sender := &recordingSender{}
	d := NewDispatcher(store, sender, clock)

	n, err := d.RunOnce(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || sender.count() != 0 {
		t.Errorf("expected stale reminder not to be sent, got %d sends", sender.count())
	}
	req, ok := store.Get("user-1", StoryTimeIdentifier)
	if !ok {
		t.Fatal("expected rescheduled reminder to remain registered")
	}
	if req.Hour != 21 {
		t.Errorf("expected hour 21, got %d", req.Hour)
	}
	want := at(20, 50)
	if !req.FireAt.Equal(want) {
		t.Errorf("expected fire time %v, got %v", want, req.FireAt)
	}
}

func TestConcurrentDispatchersDeliverOnce(t *testing.T) {
	ctx := context.Background()
	clock := timeutil.FixedClock(at(9, 0))
	store := NewMockStore()
	_ = store.Add(ctx, "user-1", Request{Identifier: DueDateIdentifier, FireAt: at(8, 50)})
	sender := &recordingSender{}
	first := NewDispatcher(store, sender, clock)
	second := NewDispatcher(store, sender, clock)

	// The second pass reads the same snapshot before the first claims it.
	store.AfterDue = func() {
		store.AfterDue = nil
		if _, err := second.RunOnce(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if _, err := first.RunOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.count() != 1 {
		t.Errorf("expected 1 send across dispatchers, got %d", sender.count())
	}
	if _, ok := store.Get("user-1", DueDateIdentifier); ok {
		t.Error("expected delivered one-shot reminder to be removed")
	}
}

func TestDispatcherRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := NewMockStore()
	_ = store.Add(context.Background(), "user-1", Request{Identifier: DueDateIdentifier, FireAt: at(8, 50)})
	sender := &recordingSender{}
	d := NewDispatcher(store, sender, timeutil.FixedClock(at(9, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("dispatcher never delivered")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}
