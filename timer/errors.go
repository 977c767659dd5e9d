package timer

import "errors"

var (
	// ErrInvalidInterval is returned by AddSubscriber for intervals <= 0.
	ErrInvalidInterval = errors.New("timer: interval must be positive")

	// ErrAlreadyRegistered is returned by AddSubscriber when the
	// (subscriber, parameter) pair is already registered.
	ErrAlreadyRegistered = errors.New("timer: subscription already registered")

	// ErrNotFound is returned by RemoveSubscriber when the
	// (subscriber, parameter) pair is not registered and removal is not
	// tolerant.
	ErrNotFound = errors.New("timer: subscription not registered")

	// ErrTimerRunning is returned by Run when the scheduler is already running.
	ErrTimerRunning = errors.New("timer: already running")

	// ErrTimerShutdown is returned by Run after Shutdown.
	ErrTimerShutdown = errors.New("timer: already shut down")
)
