// Package history records completed timer notifications.
//
// It implements timer.Recorder with two backends: a capped in-memory ring and
// an optional SQLite store (build with -tags sqlite). History is operational
// visibility only; it is not a subscriber registry and nothing is replayed
// from it.
package history

import (
	"time"

	"metronome/timer"
)

// Store is a fire recorder with a lifecycle.
type Store interface {
	timer.Recorder
	Close() error
}

// Config configures history.
//
// Driver values:
//   - "memory": capped in-process ring
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type Config struct {
	Driver string
	Path   string
	// Keep bounds retained records; 0 means a sensible default.
	Keep        int
	BusyTimeout time.Duration // sqlite only; 0 means default
}

const defaultKeep = 200
