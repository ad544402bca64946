package graph

import (
	"pipelined.dev/graph/mutable"
)

// Handoff delivers values from a control goroutine to the goroutine that
// processes the graph. Every settable endpoint has one slot, a newer value
// overwrites the pending one. Values become visible at the start of the
// next tick. Set must be called from a single goroutine.
type Handoff struct {
	pusher *mutable.Pusher
	index  map[string]int
	names  []string
}

// NewHandoff returns handoff with one slot per name. Slots are numbered in
// names order.
func NewHandoff(names []string) *Handoff {
	h := &Handoff{
		pusher: mutable.NewPusher(len(names)),
		index:  make(map[string]int, len(names)),
		names:  names,
	}
	for i, name := range names {
		h.index[name] = i
	}
	return h
}

// Set stores value for the endpoint with provided name.
func (h *Handoff) Set(name string, v float32) error {
	i, ok := h.index[name]
	if !ok {
		return ErrUnknownEndpoint
	}
	h.pusher.Put(i, v)
	return nil
}

// Names returns names of settable endpoints in slot order.
func (h *Handoff) Names() []string {
	return append([]string(nil), h.names...)
}

// Pull calls fn for every pending slot. It must be called by the processing
// goroutine only.
func (h *Handoff) Pull(fn func(slot int, v float32)) {
	if h == nil {
		return
	}
	h.pusher.Pull(fn)
}
