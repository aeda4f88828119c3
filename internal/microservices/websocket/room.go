package websocket

import (
	"log/slog"
	"sort"
	"sync"
)

// Room is the broadcast group of one chat room: the live connections
// subscribed to its events.
type Room struct {
	Name    string
	members map[string]Conn // map[connID] -> Conn
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewRoom creates an empty broadcast group.
func NewRoom(name string, logger *slog.Logger) *Room {
	return &Room{
		Name:    name,
		members: make(map[string]Conn),
		logger:  logger,
	}
}

// Add subscribes c; adding a subscribed connection again is a no-op.
func (r *Room) Add(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c.ID()]; ok {
		return false
	}
	r.members[c.ID()] = c
	r.logger.Debug("room_subscribed", "room", r.Name, "conn_id", c.ID())
	return true
}

// Remove unsubscribes the connection with the given id.
func (r *Room) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[connID]; !ok {
		return false
	}
	delete(r.members, connID)
	r.logger.Debug("room_unsubscribed", "room", r.Name, "conn_id", connID)
	return true
}

// Has reports whether connID is subscribed.
func (r *Room) Has(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[connID]
	return ok
}

// Broadcast queues data on every subscriber except the one with id exclude.
// A subscriber whose queue is full or closed is skipped.
func (r *Room) Broadcast(data []byte, exclude string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.members {
		if id == exclude {
			continue
		}
		if err := c.Send(data); err != nil {
			r.logger.Warn("broadcast_failed", "room", r.Name, "conn_id", id, "error", err)
		}
	}
}

// Count returns the number of subscribers.
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ConnIDs returns the subscribed connection ids, sorted.
func (r *Room) ConnIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
