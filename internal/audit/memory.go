package audit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRecorder keeps events in memory for local runs and tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events map[string]Event
	order  []string
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{events: make(map[string]Event)}
}

func (m *MemoryRecorder) Create(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[ev.EventID]; exists {
		return fmt.Errorf("audit: duplicate event %s", ev.EventID)
	}
	m.events[ev.EventID] = ev
	m.order = append(m.order, ev.EventID)
	return nil
}

func (m *MemoryRecorder) Update(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[ev.EventID]; !exists {
		return fmt.Errorf("audit: unknown event %s", ev.EventID)
	}
	m.events[ev.EventID] = ev
	return nil
}

// Events returns all recorded events in creation order.
func (m *MemoryRecorder) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	return out
}
