package schedule

import (
	"fmt"
	"sync/atomic"
	"time"

	"metronome/timer"
)

// Binding is a live schedule attached to a Timer. Detach tears it down.
type Binding struct {
	t         *timer.Timer
	sub       timer.Subscriber // registered identity (user subscriber or cron relay)
	param     any
	cancelled atomic.Bool
}

// Detach removes the binding. It is a no-op if the subscription already fired
// itself out of the registry (once schedules). For cron bindings, a fire that
// is in flight at this very moment may still deliver one final notification.
func (b *Binding) Detach() {
	b.cancelled.Store(true)
	_ = b.t.RemoveSubscriber(b.sub, b.param, true)
}

// Bind attaches sched to t, notifying sub with param. With once set, the
// schedule fires a single time (for cron schedules: at the next occurrence).
func Bind(t *timer.Timer, sched Schedule, sub timer.Subscriber, param any, once bool) (*Binding, error) {
	switch sched.Kind {
	case KindInterval:
		b := &Binding{t: t, sub: sub, param: param}
		if err := t.AddSubscriber(sub, sched.Every, param, once); err != nil {
			return nil, err
		}
		return b, nil

	case KindCron:
		b := &Binding{t: t, param: param}
		relay := &cronRelay{t: t, next: sched.Cron.Next, sub: sub, once: once, cancelled: &b.cancelled}
		b.sub = relay
		if err := relay.arm(param); err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported schedule kind %d", sched.Kind)
	}
}

// cronRelay drives a cron schedule on an interval-only timer by chaining
// one-shot registrations: each Notify first arms the next occurrence, then
// forwards to the wrapped subscriber.
type cronRelay struct {
	t         *timer.Timer
	next      func(time.Time) time.Time
	sub       timer.Subscriber
	once      bool
	cancelled *atomic.Bool
}

func (r *cronRelay) Name() string {
	return timerLabel(r.sub) + "@cron"
}

func (r *cronRelay) Notify(param any) error {
	if !r.once && !r.cancelled.Load() {
		// Re-arm before the user callback so its runtime does not skew the
		// next occurrence.
		_ = r.arm(param)
	}
	return r.sub.Notify(param)
}

func (r *cronRelay) arm(param any) error {
	if r.cancelled.Load() {
		return nil
	}
	d := time.Until(r.next(time.Now()))
	if d <= 0 {
		d = time.Millisecond
	}
	return r.t.AddSubscriber(r, d, param, true)
}

func timerLabel(sub timer.Subscriber) string {
	if n, ok := sub.(timer.Named); ok {
		if s := n.Name(); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%T", sub)
}
