package stamps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrHubClosed is returned by Relay after Shutdown.
var ErrHubClosed = errors.New("relay hub is shut down")

// Observer receives relay telemetry. Implemented by metrics.Prometheus.
type Observer interface {
	ChannelRegistered(total int)
	ChannelUnregistered(total int)
	ChannelEvicted()
	MessageRelayed(recipients int)
}

type nopObserver struct{}

func (nopObserver) ChannelRegistered(int)   {}
func (nopObserver) ChannelUnregistered(int) {}
func (nopObserver) ChannelEvicted()         {}
func (nopObserver) MessageRelayed(int)      {}

// Request to register a channel.
type registration struct {
	ch   *Channel
	done chan string
}

// Request to unregister a channel.
type unregistration struct {
	id   string
	done chan struct{}
}

// Hub is the broadcast relay. One goroutine owns the registry and processes
// registrations, removals and dispatches from its channels, so every message
// reaches the channels registered at the moment the hub handles it, in the
// order the hub receives messages.
type Hub struct {
	registry  *Registry
	backplane Backplane
	observer  Observer

	// Register channels, buffered at 32
	register chan *registration

	// Unregister channels, buffered at 32
	unregister chan *unregistration

	// Messages to dispatch, buffered at 4096
	dispatch chan Message

	// Registry snapshot requests, unbuffered
	snapshot chan chan []*Channel

	// Request to shutdown, unbuffered
	shutdown chan chan struct{}

	// Closed when the run loop exits
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithBackplane routes relayed messages through b so that hubs in several
// processes deliver the same stream in the same order.
func WithBackplane(b Backplane) Option {
	return func(h *Hub) { h.backplane = b }
}

// WithObserver installs a telemetry observer.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// NewHub creates a hub. Call Start before use.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		registry:   NewRegistry(),
		observer:   nopObserver{},
		register:   make(chan *registration, 32),
		unregister: make(chan *unregistration, 32),
		dispatch:   make(chan Message, 4096),
		snapshot:   make(chan chan []*Channel),
		shutdown:   make(chan chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the run loop. With a backplane configured it first
// subscribes, and fails if the subscription cannot be established. ctx bounds
// the lifetime of the subscription.
func (h *Hub) Start(ctx context.Context) error {
	var err error
	h.startOnce.Do(func() {
		if h.backplane != nil {
			var inbound <-chan Message
			inbound, err = h.backplane.Subscribe(ctx)
			if err != nil {
				err = fmt.Errorf("subscribing to backplane: %w", err)
				return
			}
			go h.pump(inbound)
		}
		h.started.Store(true)
		go h.run()
	})
	return err
}

// Register adds ch to the broadcast set and returns its ID. Once Register
// returns, every later dispatch reaches ch.
func (h *Hub) Register(ch *Channel) string {
	req := &registration{ch: ch, done: make(chan string, 1)}
	select {
	case h.register <- req:
		select {
		case id := <-req.done:
			return id
		case <-h.done:
		}
	case <-h.done:
	}

	// The hub stopped. If it registered ch before stopping, shutdown already
	// closed the queue; otherwise close it here so the write loop exits.
	select {
	case id := <-req.done:
		return id
	default:
		close(ch.send)
		return ch.ID
	}
}

// Unregister removes the channel and closes its outbound queue. Once
// Unregister returns, the channel receives no further messages. Unknown IDs
// are ignored.
func (h *Hub) Unregister(id string) {
	req := &unregistration{id: id, done: make(chan struct{})}
	select {
	case h.unregister <- req:
		select {
		case <-req.done:
		case <-h.done:
		}
	case <-h.done:
	}
}

// Relay queues msg for delivery to every registered channel, the sender
// included. from is informational and may be nil. The payload is not
// validated.
func (h *Hub) Relay(ctx context.Context, msg Message, from *Channel) error {
	if from != nil {
		slog.Debug("relaying stamp",
			slog.String("channel_id", from.ID),
			slog.Int("bytes", len(msg)),
		)
	}

	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	if h.backplane != nil {
		if err := h.backplane.Publish(ctx, msg); err != nil {
			return fmt.Errorf("publishing to backplane: %w", err)
		}
		return nil
	}
	return h.enqueue(ctx, msg)
}

// Channels returns the channels registered right now, in connection order.
func (h *Hub) Channels() []*Channel {
	reply := make(chan []*Channel, 1)
	select {
	case h.snapshot <- reply:
		return <-reply
	case <-h.done:
		return nil
	}
}

// Shutdown unregisters and closes every channel and stops the run loop.
// Safe to call more than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		if !h.started.Load() {
			close(h.done)
			return
		}
		ack := make(chan struct{})
		h.shutdown <- ack
		<-ack
	})
}

func (h *Hub) enqueue(ctx context.Context, msg Message) error {
	select {
	case h.dispatch <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump feeds backplane messages into the dispatch queue.
func (h *Hub) pump(inbound <-chan Message) {
	for msg := range inbound {
		select {
		case h.dispatch <- msg:
		case <-h.done:
			return
		}
	}
	slog.Info("relay backplane subscription ended")
}

func (h *Hub) run() {
	for {
		select {
		case req := <-h.register:
			id := h.registry.Register(req.ch)
			h.observer.ChannelRegistered(h.registry.Len())
			req.done <- id

		case req := <-h.unregister:
			if ch := h.registry.Unregister(req.id); ch != nil {
				close(ch.send)
				h.observer.ChannelUnregistered(h.registry.Len())
			}
			close(req.done)

		case msg := <-h.dispatch:
			h.broadcast(msg)

		case reply := <-h.snapshot:
			reply <- h.registry.Channels()

		case ack := <-h.shutdown:
			for _, ch := range h.registry.Channels() {
				h.registry.Unregister(ch.ID)
				close(ch.send)
			}
			h.observer.ChannelUnregistered(0)
			close(h.done)
			close(ack)
			slog.Info("relay hub stopped")
			return
		}
	}
}

// broadcast queues msg on every registered channel. A channel whose queue is
// full is evicted instead of stalling the hub.
func (h *Hub) broadcast(msg Message) {
	frame := encodeFrame(msg)
	delivered := 0
	for _, ch := range h.registry.Channels() {
		select {
		case ch.send <- frame:
			delivered++
		default:
			h.registry.Unregister(ch.ID)
			close(ch.send)
			h.observer.ChannelEvicted()
			h.observer.ChannelUnregistered(h.registry.Len())
			slog.Warn("evicting slow channel",
				slog.String("channel_id", ch.ID),
				slog.String("remote_addr", ch.RemoteAddr),
			)
		}
	}
	h.observer.MessageRelayed(delivered)
}
