package jit

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/param"
)

// Layout assigns storage to endpoints. Sources of scalar connections and
// graph boundary scalars live in a flat float32 state, graph boundary event
// endpoints own a bus each. Node inputs stay in node fields.
type Layout struct {
	Scalars int
	Buses   int
	// Offsets holds state offset of every endpoint or NoIndex.
	Offsets []int
	// BusSlots holds bus index of every endpoint or NoIndex.
	BusSlots []int
}

// NewLayout lays out IR endpoints in endpoint order.
func NewLayout(ir *GraphIR) *Layout {
	l := Layout{
		Offsets:  make([]int, len(ir.Endpoints)),
		BusSlots: make([]int, len(ir.Endpoints)),
	}
	for i := range ir.Endpoints {
		e := &ir.Endpoints[i]
		l.Offsets[i], l.BusSlots[i] = NoIndex, NoIndex
		switch {
		case e.Boundary() && e.Kind.IsScalar():
			l.Offsets[i] = l.Scalars
			l.Scalars++
		case e.Boundary():
			l.BusSlots[i] = l.Buses
			l.Buses++
		case e.Kind.IsScalar() && e.Direction == graph.Output:
			l.Offsets[i] = l.Scalars
			l.Scalars++
		}
	}
	return &l
}

// settable is a value target with its shaping.
type settable struct {
	dst   *float32
	input param.Input
}

// State is the storage of a compiled graph. It is allocated once.
type State struct {
	Scalars []float32
	Buses   []event.Bus

	settable []settable
}

// NewState allocates state for layout. Scalars start with current values of
// their endpoints.
func NewState(ir *GraphIR, l *Layout) *State {
	s := State{
		Scalars:  make([]float32, l.Scalars),
		Buses:    make([]event.Bus, l.Buses),
		settable: make([]settable, len(ir.Settable)),
	}
	for i := range ir.Endpoints {
		if off := l.Offsets[i]; off != NoIndex {
			s.Scalars[off] = *ir.Endpoints[i].Scalar
		}
	}
	for slot, i := range ir.Settable {
		e := &ir.Endpoints[i]
		s.settable[slot].input.Spec = e.Spec
		s.settable[slot].dst = s.Scalar(l, i)
		if s.settable[slot].dst == nil {
			s.settable[slot].dst = e.Scalar
		}
	}
	return &s
}

// Scalar returns state storage of endpoint i or nil.
func (s *State) Scalar(l *Layout, i int) *float32 {
	if off := l.Offsets[i]; off != NoIndex {
		return &s.Scalars[off]
	}
	return nil
}

// Bus returns bus of boundary event endpoint i or nil.
func (s *State) Bus(l *Layout, i int) *event.Bus {
	if slot := l.BusSlots[i]; slot != NoIndex {
		return &s.Buses[slot]
	}
	return nil
}

// set applies shaped value to settable slot.
func (s *State) set(slot int, v float32) {
	t := &s.settable[slot]
	t.input.Set(t.dst, v)
}

func (s *State) setNormalized(slot int, x float32) {
	t := &s.settable[slot]
	t.input.SetNormalized(t.dst, x)
}

// advance moves active ramps one tick.
func (s *State) advance() {
	for i := range s.settable {
		if t := &s.settable[i]; t.input.Ramping() {
			t.input.Advance(t.dst)
		}
	}
}
