package stamps

import (
	"github.com/google/uuid"
)

// Registry tracks the channels currently connected. It has no locking: the
// hub goroutine is its only user.
type Registry struct {
	byID  map[string]*Channel
	order []*Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Channel)}
}

// Register adds ch and returns its ID. A missing or colliding ID is replaced
// with a fresh UUID. Registration always succeeds.
func (r *Registry) Register(ch *Channel) string {
	if _, taken := r.byID[ch.ID]; ch.ID == "" || taken {
		ch.ID = uuid.NewString()
	}
	r.byID[ch.ID] = ch
	r.order = append(r.order, ch)
	return ch.ID
}

// Unregister removes the channel with the given ID and returns it, or nil if
// no such channel is registered.
func (r *Registry) Unregister(id string) *Channel {
	ch, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	for i, c := range r.order {
		if c == ch {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return ch
}

// Channels returns a snapshot of registered channels in connection order.
func (r *Registry) Channels() []*Channel {
	out := make([]*Channel, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	return len(r.order)
}
