// Package mutable hands parameter values from a control goroutine to the
// goroutine that processes a graph. Every value has its own slot; a newer
// write overwrites an older one that was not taken yet.
package mutable

import (
	"math"
	"sync/atomic"
)

// pending marks a stored value that was not taken yet.
const pending = 1 << 32

// Slot holds the last value stored until the reader takes it. The value and
// its pending mark share one word.
type Slot struct {
	state atomic.Uint64
}

// Store overwrites the slot value.
func (s *Slot) Store(v float32) {
	s.state.Store(pending | uint64(math.Float32bits(v)))
}

// Take returns pending value and marks slot as consumed. Every stored value
// is taken at most once.
func (s *Slot) Take() (float32, bool) {
	state := s.state.Swap(0)
	if state&pending == 0 {
		return 0, false
	}
	return math.Float32frombits(uint32(state)), true
}

// Pusher is a fixed set of slots with a single writer and a single reader.
type Pusher struct {
	slots []Slot
	dirty atomic.Bool
}

// NewPusher returns pusher with n slots.
func NewPusher(n int) *Pusher {
	return &Pusher{
		slots: make([]Slot, n),
	}
}

// Len returns number of slots.
func (p *Pusher) Len() int {
	return len(p.slots)
}

// Put stores v into slot i. Must be called from one goroutine only.
func (p *Pusher) Put(i int, v float32) {
	p.slots[i].Store(v)
	p.dirty.Store(true)
}

// Pull calls fn for every slot with a pending value, in slot order. It does
// nothing if no value was put since the previous pull.
func (p *Pusher) Pull(fn func(i int, v float32)) {
	if p == nil || !p.dirty.Swap(false) {
		return
	}
	for i := range p.slots {
		if v, ok := p.slots[i].Take(); ok {
			fn(i, v)
		}
	}
}
