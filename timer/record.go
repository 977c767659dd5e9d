package timer

import (
	"fmt"
	"time"
)

// FireRecord describes one completed notification.
type FireRecord struct {
	Subscriber string
	At         time.Time
	Took       time.Duration
	Once       bool
	Error      string
}

// Recorder receives a FireRecord after every notification, successful or not.
// It is called on the scheduler goroutine with no lock held and should return
// quickly.
type Recorder interface {
	RecordFire(r FireRecord)
}

// label names a subscriber for logs and records.
func label(sub Subscriber) string {
	if n, ok := sub.(Named); ok {
		if s := n.Name(); s != "" {
			return s
		}
	}
	return fmt.Sprintf("%T", sub)
}
