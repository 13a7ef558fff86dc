// Package hub implements the in-process fan-out registry for guestbook events.
//
// A Hub holds the set of Outboxes belonging to currently open stream sessions.
// Broadcast delivers a serialized frame to every registered Outbox without
// blocking: an Outbox that is full loses the frame, nobody else is affected.
//
//	h := hub.New(hub.WithCapacity(100))
//	o := h.NewOutbox()
//	h.Register(o)
//	defer h.Unregister(o)
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/logger"
)

// Hub is the registry of active Outboxes and the single broadcast point.
type Hub struct {
	mu       sync.Mutex
	outboxes map[uint64]*Outbox

	capacity int
	dropped  atomic.Uint64
	log      zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithCapacity sets the capacity of outboxes created by Hub.NewOutbox.
func WithCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithLogger sets the logger used for registry events.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = l
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		outboxes: make(map[uint64]*Outbox),
		capacity: DefaultCapacity,
		log:      logger.Component("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewOutbox creates an unregistered outbox with the hub's capacity.
func (h *Hub) NewOutbox() *Outbox {
	return NewOutbox(h.capacity)
}

// Register adds o to the active set. Registering the same outbox twice is a no-op.
func (h *Hub) Register(o *Outbox) {
	if o == nil {
		return
	}

	h.mu.Lock()
	if _, ok := h.outboxes[o.id]; ok {
		h.mu.Unlock()
		return
	}
	h.outboxes[o.id] = o
	total := len(h.outboxes)
	h.mu.Unlock()

	h.log.Debug().Uint64("outbox_id", o.id).Int("total", total).Msg("outbox registered")
}

// Unregister removes o from the active set and closes it. Unregistering an
// outbox that is not registered only closes it.
func (h *Hub) Unregister(o *Outbox) {
	if o == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.outboxes[o.id]
	if ok {
		delete(h.outboxes, o.id)
	}
	total := len(h.outboxes)
	h.mu.Unlock()

	o.close()

	if ok {
		h.log.Debug().Uint64("outbox_id", o.id).Int("total", total).Msg("outbox unregistered")
	}
}

// Broadcast offers msg to every registered outbox and returns how many accepted it.
// The lock is held only while the set is copied; enqueueing happens outside it.
func (h *Hub) Broadcast(msg string) int {
	h.mu.Lock()
	targets := make([]*Outbox, 0, len(h.outboxes))
	for _, o := range h.outboxes {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	delivered := 0
	for _, o := range targets {
		if o.Enqueue(msg) {
			delivered++
			continue
		}
		h.dropped.Add(1)
		h.log.Debug().Uint64("outbox_id", o.id).Int("pending", o.Len()).Msg("outbox full, dropping message")
	}

	h.log.Debug().Int("delivered", delivered).Int("targets", len(targets)).Msg("broadcast")
	return delivered
}

// Len returns the number of registered outboxes.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.outboxes)
}

// Contains reports whether o is currently registered.
func (h *Hub) Contains(o *Outbox) bool {
	if o == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.outboxes[o.id]
	return ok
}

// Dropped returns the total number of messages dropped because an outbox was full or closed.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
