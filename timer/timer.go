package timer

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"metronome/pkg/logx"
)

// Timer runs one background scheduler goroutine over a registry of
// subscriptions. See the package documentation for the full contract.
type Timer struct {
	log logx.Logger
	rec Recorder

	// warnLimit caps notify-failure warnings; a subscriber failing every
	// 50ms must not flood the log.
	warnLimit *rate.Limiter

	mu          sync.Mutex
	subscribers []*element
	started     bool
	down        bool

	wake chan struct{} // cap 1; registry-change signal for the scheduler
	stop chan struct{} // closed once by Shutdown
	done chan struct{} // closed when the scheduler goroutine has exited
}

type Option func(*Timer)

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(log logx.Logger) Option {
	return func(t *Timer) { t.log = log }
}

// WithRecorder installs a Recorder that receives a FireRecord after every
// notification.
func WithRecorder(rec Recorder) Option {
	return func(t *Timer) { t.rec = rec }
}

func New(opts ...Option) *Timer {
	t := &Timer{
		log:       logx.Nop(),
		warnLimit: rate.NewLimiter(rate.Every(time.Second), 5),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Run starts the scheduler goroutine.
func (t *Timer) Run() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.down {
		return ErrTimerShutdown
	}
	if t.started {
		return ErrTimerRunning
	}
	t.started = true
	go t.loop()
	return nil
}

// AddSubscriber registers sub to be notified with parameter every interval.
// With once set, the subscription fires a single time and removes itself
// before the callback runs.
//
// The first fire is due one interval from now. The scheduler is woken so a
// short interval takes effect immediately even if the scheduler was mid-sleep
// on a much later deadline.
func (t *Timer) AddSubscriber(sub Subscriber, interval time.Duration, parameter any, once bool) error {
	if interval <= 0 {
		return fmt.Errorf("%w (got %v)", ErrInvalidInterval, interval)
	}

	t.mu.Lock()
	for _, e := range t.subscribers {
		if e.matches(sub, parameter) {
			t.mu.Unlock()
			return ErrAlreadyRegistered
		}
	}
	t.subscribers = append(t.subscribers, newElement(sub, interval, parameter, once, time.Now()))
	n := len(t.subscribers)
	t.mu.Unlock()

	t.log.Debug("subscriber added",
		logx.String("subscriber", label(sub)),
		logx.Duration("interval", interval),
		logx.Bool("once", once),
		logx.Int("subscribers", n))
	t.wakeScheduler()
	return nil
}

// RemoveSubscriber removes the subscription identified by (sub, parameter).
// With tolerateMissing set, removing an unknown subscription is a no-op;
// callers tearing down defensively need not track whether registration ever
// happened.
func (t *Timer) RemoveSubscriber(sub Subscriber, parameter any, tolerateMissing bool) error {
	t.mu.Lock()
	for i, e := range t.subscribers {
		if !e.matches(sub, parameter) {
			continue
		}
		t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
		n := len(t.subscribers)
		t.mu.Unlock()

		t.log.Debug("subscriber removed",
			logx.String("subscriber", label(sub)),
			logx.Int("subscribers", n))
		t.wakeScheduler()
		return nil
	}
	t.mu.Unlock()

	if tolerateMissing {
		return nil
	}
	return ErrNotFound
}

// Len reports the current number of registered subscriptions.
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Shutdown stops the scheduler and blocks until its goroutine has exited.
// Notifications already in flight complete; no further fires happen. Safe to
// call more than once.
func (t *Timer) Shutdown() {
	t.mu.Lock()
	if t.down {
		started := t.started
		t.mu.Unlock()
		if started {
			<-t.done
		}
		return
	}
	t.down = true
	started := t.started
	t.mu.Unlock()

	close(t.stop)
	if started {
		<-t.done
	} else {
		close(t.done)
	}
	t.log.Debug("timer shut down")
}

// wakeScheduler nudges the loop to recompute its sleep deadline. The cap-1
// channel coalesces bursts; one pending token is enough, the loop always
// recomputes from current state.
func (t *Timer) wakeScheduler() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Timer) loop() {
	defer close(t.done)
	t.log.Debug("timer started")

	for {
		t.mu.Lock()
		if t.down {
			t.mu.Unlock()
			return
		}
		next, ok := t.earliestLocked()
		n := len(t.subscribers)
		t.mu.Unlock()

		if !ok {
			// Idle: nothing registered, sleep until a registry change.
			select {
			case <-t.wake:
				continue
			case <-t.stop:
				return
			}
		}

		if wait := time.Until(next); wait > 0 {
			t.log.Trace("scheduler waiting",
				logx.Duration("wait", wait),
				logx.Int("subscribers", n))
			tm := time.NewTimer(wait)
			select {
			case <-t.wake:
				// Registry changed under us; recompute the deadline.
				// Never fire on a non-timeout wake.
				tm.Stop()
				continue
			case <-t.stop:
				tm.Stop()
				return
			case <-tm.C:
			}
		}
		t.fire()
	}
}

// earliestLocked returns the minimum deadline across the registry.
func (t *Timer) earliestLocked() (time.Time, bool) {
	var next time.Time
	for _, e := range t.subscribers {
		if next.IsZero() || e.next.Before(next) {
			next = e.next
		}
	}
	return next, !next.IsZero()
}

// fire runs one pass over the registry: collect everything due, drop one-shot
// entries, advance the rest, then notify the batch with no lock held so a
// callback may re-enter AddSubscriber/RemoveSubscriber.
func (t *Timer) fire() {
	t.mu.Lock()
	now := time.Now()
	var due []*element
	kept := t.subscribers[:0]
	for _, e := range t.subscribers {
		if !e.due(now) {
			kept = append(kept, e)
			continue
		}
		due = append(due, e)
		if e.once {
			// One-shot: out of the registry before its callback runs.
			continue
		}
		e.advance(now)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(t.subscribers); i++ {
		t.subscribers[i] = nil
	}
	t.subscribers = kept
	t.mu.Unlock()

	for _, e := range due {
		t.notifyOne(e)
	}
}

func (t *Timer) notifyOne(e *element) {
	start := time.Now()
	err := safeNotify(e.sub, e.param)
	took := time.Since(start)

	if err != nil && t.warnLimit.Allow() {
		t.log.Warn("subscriber notify failed",
			logx.String("subscriber", label(e.sub)),
			logx.Err(err),
			logx.Duration("took", took))
	}
	if t.rec != nil {
		r := FireRecord{Subscriber: label(e.sub), At: start, Took: took, Once: e.once}
		if err != nil {
			r.Error = err.Error()
		}
		t.rec.RecordFire(r)
	}
}

// safeNotify isolates a misbehaving subscriber: a panic in Notify must not
// take down the scheduler goroutine.
func safeNotify(sub Subscriber, param any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify panicked: %v", r)
		}
	}()
	return sub.Notify(param)
}
