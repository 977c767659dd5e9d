// Package timer provides a single background scheduler that notifies registered
// subscribers at fixed intervals.
//
// # Overview
//
// A Timer owns one scheduler goroutine and a registry of subscriptions. Each
// subscription pairs a Subscriber with an opaque parameter, an interval, and a
// one-shot flag. The scheduler sleeps until the earliest deadline across the
// registry, wakes, and notifies every due subscriber in one pass. Registry
// changes wake the scheduler immediately so a freshly added short-interval
// subscription is never stuck behind a long sleep.
//
// # Identity
//
// A subscription is identified by its (subscriber, parameter) pair, compared
// with Go equality. Interval and the once flag play no part in identity.
// Registering the same pair twice is a caller bug and fails with
// ErrAlreadyRegistered; parameters must therefore be comparable values — use a
// pointer when identity rather than value semantics is wanted. The Timer never
// owns the subscriber: the caller keeps it valid until it is removed or the
// Timer shuts down.
//
// # Callbacks
//
// Notify callbacks run on the scheduler goroutine with no lock held, so a
// callback may itself add or remove subscriptions without deadlock. A failing
// or panicking subscriber is logged and isolated; it does not stop the
// scheduler or the rest of the batch, and a repeating subscriber simply gets
// another chance at its next interval.
//
// # Lifecycle
//
// Construct with New, start with Run, stop with Shutdown. Shutdown blocks until
// the scheduler goroutine has exited and is safe to call more than once.
package timer
