package timer

import "time"

// Subscriber is anything that wants to be woken at an interval.
//
// Notify receives the parameter the subscription was registered with. It runs
// on the scheduler goroutine with no lock held; long work should be handed off.
type Subscriber interface {
	Notify(parameter any) error
}

// Named lets a subscriber label itself in logs and fire records.
// Subscribers without it are labeled by their dynamic type.
type Named interface {
	Name() string
}

// element is one live subscription.
type element struct {
	sub      Subscriber
	param    any
	interval time.Duration
	once     bool
	next     time.Time
}

func newElement(sub Subscriber, interval time.Duration, param any, once bool, now time.Time) *element {
	return &element{
		sub:      sub,
		param:    param,
		interval: interval,
		once:     once,
		next:     now.Add(interval),
	}
}

// matches reports subscription identity: same subscriber and same parameter.
// Interval and the once flag are irrelevant to identity.
func (e *element) matches(sub Subscriber, param any) bool {
	return e.sub == sub && e.param == param
}

func (e *element) due(now time.Time) bool {
	return !e.next.After(now)
}

// advance schedules the next fire relative to now, not the previous deadline.
// Chronic scheduler delay therefore shifts cadence forward instead of piling
// up catch-up fires; intervals between fires never shrink below interval.
func (e *element) advance(now time.Time) {
	e.next = now.Add(e.interval)
}
