package engine

import (
	"context"
	"sync"
)

// MemoryCursors is a CursorStore that lives only as long as the process.
type MemoryCursors struct {
	mu       sync.Mutex
	cursor   Cursor
	progress map[string]int
	saves    int
}

// NewMemoryCursors returns an empty in-memory store.
func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{progress: map[string]int{}}
}

func (m *MemoryCursors) LoadCursor(ctx context.Context) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor, nil
}

func (m *MemoryCursors) SaveCursor(ctx context.Context, c Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = c
	m.saves++
	return nil
}

func (m *MemoryCursors) LoadSequenceProgress(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.progress))
	for k, v := range m.progress {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryCursors) SaveSequenceProgress(ctx context.Context, progress map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = make(map[string]int, len(progress))
	for k, v := range progress {
		m.progress[k] = v
	}
	m.saves++
	return nil
}

// Saves returns how many writes the store has accepted.
func (m *MemoryCursors) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
