package channel

import (
	"sync"

	"github.com/voxtask/voxtask/internal/taskstore"
)

// notifyBuffer is the per-connection queue depth for pushed notifications.
// When a slow connection's queue is full, new notifications for it are
// dropped; they remain retrievable from the store.
const notifyBuffer = 16

// Hub fans notifications out to a user's live connections. It satisfies the
// dispatcher's Notifier interface, so an executed command on one connection
// reaches every other connection the same user has open.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[chan taskstore.Notification]struct{}
}

// NewHub creates an empty [Hub].
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[chan taskstore.Notification]struct{})}
}

// register adds a connection's notification queue for userID and returns the
// matching unregister function.
func (h *Hub) register(userID string, ch chan taskstore.Notification) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		set = make(map[chan taskstore.Notification]struct{})
		h.conns[userID] = set
	}
	set[ch] = struct{}{}

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(set, ch)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Push delivers n to every live connection of userID without blocking.
func (h *Hub) Push(userID string, n taskstore.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.conns[userID] {
		select {
		case ch <- n:
		default:
			// Queue full; drop rather than stall the dispatcher.
		}
	}
}
