package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"schedule-tracker/pkg/task"
)

// Type names what happened to an entity.
type Type string

const (
	TypeCreated Type = "task.created"
	TypeUpdated Type = "task.updated"
	TypeDeleted Type = "task.deleted"
	TypeCleared Type = "tasks.cleared" // bulk delete of one kind
)

// Change is a notification about a successful mutation of the task store.
type Change struct {
	ID        string    `json:"id"`                  // UUID v7 (time-ordered)
	Type      Type      `json:"type"`                // e.g. "task.created"
	Kind      task.Kind `json:"kind"`                // TASK, EPIC or SUBTASK
	EntityID  int       `json:"entity_id,omitempty"` // zero for bulk changes
	Timestamp time.Time `json:"timestamp"`
}

// NewChange stamps a change with a fresh id and the current time.
func NewChange(typ Type, kind task.Kind, entityID int) Change {
	return Change{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      typ,
		Kind:      kind,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

// Bus is an in-process fan-out of changes to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

// NewBus creates a Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Change]struct{})}
}

// Publish delivers c to every subscriber without blocking.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
			// slow subscriber, drop
		}
	}
}

// Subscribe returns a buffered channel that receives all new changes.
func (b *Bus) Subscribe() chan Change {
	ch := make(chan Change, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// channels are ignored.
func (b *Bus) Unsubscribe(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
