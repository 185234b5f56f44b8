package notify

import (
	"context"
	"sync"
)

// MemoryNotifier keeps notifications in process memory.
type MemoryNotifier struct {
	mu      sync.Mutex
	pending map[string][]Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{pending: make(map[string][]Notification)}
}

var _ Notifier = (*MemoryNotifier)(nil)

func (m *MemoryNotifier) Push(ctx context.Context, audience string, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.pending[audience], n)
	if len(list) > maxPending {
		list = list[len(list)-maxPending:]
	}
	m.pending[audience] = list
	return nil
}

func (m *MemoryNotifier) Drain(ctx context.Context, audience string) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.pending[audience]
	delete(m.pending, audience)
	if list == nil {
		list = []Notification{}
	}
	return list, nil
}
