package engine

import (
	"sync"

	"breakout/internal/models"
)

// Ledger is the append-only fill record, readable concurrently by the
// control surface and the journal flusher.
type Ledger struct {
	mu    sync.RWMutex
	fills []models.Fill
}

func (l *Ledger) Append(f models.Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, f)
	l.mu.Unlock()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fills)
}

// Snapshot copies the full fill sequence in append order.
func (l *Ledger) Snapshot() []models.Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// Since copies fills appended at or after index i; used to flush only
// not-yet-journaled fills.
func (l *Ledger) Since(i int) []models.Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.fills) {
		return nil
	}
	out := make([]models.Fill, len(l.fills)-i)
	copy(out, l.fills[i:])
	return out
}
