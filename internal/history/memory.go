package history

import (
	"sync"

	"metronome/timer"
)

// Memory keeps the most recent fire records in a capped slice.
type Memory struct {
	mu   sync.Mutex
	keep int
	recs []timer.FireRecord
}

func NewMemory(keep int) *Memory {
	if keep <= 0 {
		keep = defaultKeep
	}
	return &Memory{keep: keep}
}

func (m *Memory) RecordFire(r timer.FireRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, r)
	if len(m.recs) > m.keep {
		m.recs = m.recs[len(m.recs)-m.keep:]
	}
}

// Recent returns up to n records, newest last. n <= 0 returns everything kept.
func (m *Memory) Recent(n int) []timer.FireRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.recs) {
		n = len(m.recs)
	}
	out := make([]timer.FireRecord, n)
	copy(out, m.recs[len(m.recs)-n:])
	return out
}

func (m *Memory) Close() error { return nil }
