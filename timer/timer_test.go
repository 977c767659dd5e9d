package timer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// testSub records Notify calls and optionally fails or delegates.
type testSub struct {
	mu     sync.Mutex
	fires  []time.Time
	err    error
	panics bool
	hook   func(param any)
}

func (s *testSub) Notify(param any) error {
	s.mu.Lock()
	s.fires = append(s.fires, time.Now())
	s.mu.Unlock()
	if s.hook != nil {
		s.hook(param)
	}
	if s.panics {
		panic("subscriber exploded")
	}
	return s.err
}

func (s *testSub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fires)
}

func (s *testSub) times() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Time, len(s.fires))
	copy(out, s.fires)
	return out
}

func newRunning(t *testing.T, opts ...Option) *Timer {
	t.Helper()
	tm := New(opts...)
	if err := tm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	t.Cleanup(tm.Shutdown)
	return tm
}

func TestAddSubscriberInvalidInterval(t *testing.T) {
	t.Parallel()
	tm := New()

	for _, interval := range []time.Duration{0, -time.Second} {
		err := tm.AddSubscriber(&testSub{}, interval, nil, false)
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("AddSubscriber(%v) error = %v, want ErrInvalidInterval", interval, err)
		}
	}
	if got := tm.Len(); got != 0 {
		t.Fatalf("Len = %d, want 0", got)
	}
}

func TestAddSubscriberDuplicate(t *testing.T) {
	t.Parallel()
	tm := New()
	sub := &testSub{}
	param := &struct{}{}

	if err := tm.AddSubscriber(sub, time.Hour, param, false); err != nil {
		t.Fatalf("first add: %v", err)
	}
	// Same pair again: caller bug, no silent overwrite.
	if err := tm.AddSubscriber(sub, time.Minute, param, true); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("duplicate add error = %v, want ErrAlreadyRegistered", err)
	}
	// Same subscriber, different parameter: a distinct subscription.
	if err := tm.AddSubscriber(sub, time.Hour, &struct{}{}, false); err != nil {
		t.Fatalf("add with distinct parameter: %v", err)
	}

	if err := tm.RemoveSubscriber(sub, param, false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := tm.AddSubscriber(sub, time.Hour, param, false); err != nil {
		t.Fatalf("re-add after remove: %v", err)
	}
}

func TestRemoveSubscriberMissing(t *testing.T) {
	t.Parallel()
	tm := New()
	sub := &testSub{}

	if err := tm.RemoveSubscriber(sub, nil, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("strict remove error = %v, want ErrNotFound", err)
	}
	if err := tm.RemoveSubscriber(sub, nil, true); err != nil {
		t.Fatalf("tolerant remove error = %v, want nil", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	tm := New()
	if err := tm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := tm.Run(); !errors.Is(err, ErrTimerRunning) {
		t.Fatalf("second Run error = %v, want ErrTimerRunning", err)
	}
	tm.Shutdown()
	tm.Shutdown() // idempotent
	if err := tm.Run(); !errors.Is(err, ErrTimerShutdown) {
		t.Fatalf("Run after Shutdown error = %v, want ErrTimerShutdown", err)
	}
}

func TestShutdownWhileIdle(t *testing.T) {
	t.Parallel()
	tm := New()
	if err := tm.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Empty registry, scheduler is idle-blocked; Shutdown must still join.
	done := make(chan struct{})
	go func() {
		tm.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return while scheduler was idle")
	}
}

func TestRepeatingCadence(t *testing.T) {
	tm := newRunning(t)
	sub := &testSub{}

	if err := tm.AddSubscriber(sub, 100*time.Millisecond, nil, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(350 * time.Millisecond)
	tm.Shutdown()

	got := sub.count()
	if got < 2 || got > 4 {
		t.Fatalf("fires in 350ms at 100ms interval = %d, want 2..4", got)
	}
	times := sub.times()
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < 90*time.Millisecond {
			t.Fatalf("gap between fire %d and %d = %v, want >= interval", i-1, i, gap)
		}
	}
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	tm := newRunning(t)
	sub := &testSub{}
	param := &struct{}{}

	if err := tm.AddSubscriber(sub, 50*time.Millisecond, param, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := sub.count(); got != 1 {
		t.Fatalf("once subscriber fired %d times, want exactly 1", got)
	}
	if got := tm.Len(); got != 0 {
		t.Fatalf("Len after once fire = %d, want 0", got)
	}
	if err := tm.RemoveSubscriber(sub, param, true); err != nil {
		t.Fatalf("tolerant remove after once fire: %v", err)
	}
	if err := tm.RemoveSubscriber(sub, param, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("strict remove after once fire = %v, want ErrNotFound", err)
	}
}

func TestAddWakesSleepingScheduler(t *testing.T) {
	tm := newRunning(t)

	// Park the scheduler on a far deadline first.
	if err := tm.AddSubscriber(&testSub{}, time.Hour, nil, false); err != nil {
		t.Fatalf("add long: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	short := &testSub{}
	if err := tm.AddSubscriber(short, 30*time.Millisecond, nil, false); err != nil {
		t.Fatalf("add short: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for short.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("short-interval subscriber not fired; add did not wake the scheduler")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifyParameterForwarded(t *testing.T) {
	tm := newRunning(t)

	type payload struct{ n int }
	param := &payload{n: 42}
	got := make(chan any, 1)
	sub := &testSub{hook: func(p any) {
		select {
		case got <- p:
		default:
		}
	}}

	if err := tm.AddSubscriber(sub, 20*time.Millisecond, param, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	select {
	case p := <-got:
		if p != param {
			t.Fatalf("Notify parameter = %v, want the registered value", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never notified")
	}
}

func TestReentrantAddFromCallback(t *testing.T) {
	tm := newRunning(t)

	second := &testSub{}
	first := &testSub{}
	first.hook = func(any) {
		if err := tm.AddSubscriber(second, 20*time.Millisecond, nil, true); err != nil {
			t.Errorf("re-entrant add: %v", err)
		}
	}

	if err := tm.AddSubscriber(first, 20*time.Millisecond, nil, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for second.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription added from a callback never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReentrantRemoveFromCallback(t *testing.T) {
	tm := newRunning(t)

	victim := &testSub{}
	remover := &testSub{}
	remover.hook = func(any) {
		if err := tm.RemoveSubscriber(victim, nil, true); err != nil {
			t.Errorf("re-entrant remove: %v", err)
		}
	}

	if err := tm.AddSubscriber(victim, time.Hour, nil, false); err != nil {
		t.Fatalf("add victim: %v", err)
	}
	if err := tm.AddSubscriber(remover, 20*time.Millisecond, nil, true); err != nil {
		t.Fatalf("add remover: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for tm.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Len = %d, want 0 after re-entrant remove", tm.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFailingSubscriberIsIsolated(t *testing.T) {
	tm := newRunning(t)

	bad := &testSub{panics: true}
	good := &testSub{}
	if err := tm.AddSubscriber(bad, 20*time.Millisecond, nil, false); err != nil {
		t.Fatalf("add bad: %v", err)
	}
	if err := tm.AddSubscriber(good, 30*time.Millisecond, nil, false); err != nil {
		t.Fatalf("add good: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	tm.Shutdown()

	if got := good.count(); got < 2 {
		t.Fatalf("good subscriber fired %d times next to a panicking one, want >= 2", got)
	}
	if got := bad.count(); got < 2 {
		t.Fatalf("panicking subscriber fired %d times, want >= 2 (it keeps its slot)", got)
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []FireRecord
}

func (r *memRecorder) RecordFire(rec FireRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *memRecorder) all() []FireRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FireRecord, len(r.recs))
	copy(out, r.recs)
	return out
}

func TestRecorderReceivesFireRecords(t *testing.T) {
	rec := &memRecorder{}
	tm := newRunning(t, WithRecorder(rec))

	failing := &testSub{err: errors.New("boom")}
	if err := tm.AddSubscriber(failing, 20*time.Millisecond, nil, true); err != nil {
		t.Fatalf("add: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recorder never saw a fire record")
		}
		time.Sleep(5 * time.Millisecond)
	}
	tm.Shutdown()

	got := rec.all()[0]
	if !got.Once {
		t.Fatalf("record Once = false, want true")
	}
	if got.Error != "boom" {
		t.Fatalf("record Error = %q, want %q", got.Error, "boom")
	}
	if got.Subscriber == "" {
		t.Fatal("record Subscriber label is empty")
	}
}

func TestShutdownStopsFiring(t *testing.T) {
	tm := newRunning(t)
	sub := &testSub{}
	if err := tm.AddSubscriber(sub, 20*time.Millisecond, nil, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	tm.Shutdown()

	n := sub.count()
	time.Sleep(100 * time.Millisecond)
	if got := sub.count(); got != n {
		t.Fatalf("fires after Shutdown: %d -> %d, want no change", n, got)
	}
}
