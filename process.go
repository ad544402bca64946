package graph

import (
	"pipelined.dev/graph/event"
)

// Process runs one tick. A changed graph is validated first, which is the
// only case when Process allocates or returns an error.
//
// Tick steps are: apply handoff values, advance ramps, clear graph event
// outputs, route graph event inputs, process nodes in order and copy graph
// stream and value outputs.
func (g *Graph) Process() error {
	if !g.valid {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	g.handoff.Pull(g.apply)
	for _, k := range g.settable {
		e := g.endpoints[k]
		if e.input.Ramping() {
			e.input.Advance(e.scalar)
		}
	}
	for _, k := range g.outputs {
		if e := g.endpoints[k]; e.events != nil {
			e.events.Clear()
		}
	}
	for _, k := range g.inputs {
		if e := g.endpoints[k]; e.events != nil {
			g.route(k)
			e.events.Clear()
		}
	}

	for _, nk := range g.order {
		n := g.nodes[nk]
		for _, k := range n.endpoints {
			e := g.endpoints[k]
			switch {
			case e.desc.Direction == Input && e.scalar != nil:
				if src := g.sources[k]; src != NoValue {
					*e.scalar = *g.endpoints[src].scalar
				}
			case e.desc.Direction == Output && e.events != nil:
				e.events.Clear()
			}
		}
		n.node.Process()
		for _, k := range n.endpoints {
			e := g.endpoints[k]
			if e.events == nil {
				continue
			}
			if e.desc.Direction == Output {
				g.route(k)
			} else {
				e.events.Clear()
			}
		}
	}

	for _, k := range g.outputs {
		e := g.endpoints[k]
		if e.scalar == nil {
			continue
		}
		if src := g.sources[k]; src != NoValue {
			*e.scalar = *g.endpoints[src].scalar
		}
	}
	return nil
}

// route copies pending events of endpoint k to all its destinations.
func (g *Graph) route(k ValueKey) {
	src := g.endpoints[k].events
	for _, dst := range g.fanout[k] {
		event.Copy(g.endpoints[dst].events, src)
	}
}

// ProcessSample runs one tick and returns the first stream or value output.
// It returns zero if graph is invalid or has no such output.
func (g *Graph) ProcessSample() float32 {
	if err := g.Process(); err != nil || g.primary == NoValue {
		return 0
	}
	return *g.endpoints[g.primary].scalar
}

func (g *Graph) applyHandoff(slot int, v float32) {
	e := g.endpoints[g.settable[slot]]
	e.input.Set(e.scalar, v)
}

func (g *Graph) settableEndpoint(k ValueKey) (*endpoint, error) {
	e, ok := g.lookup(k)
	if !ok {
		return nil, ErrUnknownEndpoint
	}
	if !isSettable(e) {
		return nil, ErrNotSettable
	}
	return e, nil
}

// SetValue sets value of a graph input or a node value input. Graph input
// values are shaped by the input spec: clamped to the range and ramped.
func (g *Graph) SetValue(k ValueKey, v float32) error {
	e, err := g.settableEndpoint(k)
	if err != nil {
		return err
	}
	e.input.Set(e.scalar, v)
	return nil
}

// SetValueWithRamp moves value towards v linearly over n ticks.
func (g *Graph) SetValueWithRamp(k ValueKey, v float32, n int) error {
	e, err := g.settableEndpoint(k)
	if err != nil {
		return err
	}
	e.input.SetWithRamp(e.scalar, v, n)
	return nil
}

// SetInput sets value by endpoint path.
func (g *Graph) SetInput(name string, v float32) error {
	k, ok := g.paths[name]
	if !ok {
		return ErrUnknownEndpoint
	}
	return g.SetValue(k, v)
}

// SetNormalized maps x in [0, 1] through the curve of the input spec and
// sets the result.
func (g *Graph) SetNormalized(name string, x float32) error {
	k, ok := g.paths[name]
	if !ok {
		return ErrUnknownEndpoint
	}
	e, err := g.settableEndpoint(k)
	if err != nil {
		return err
	}
	e.input.SetNormalized(e.scalar, x)
	return nil
}

// Value returns current value of a stream or value endpoint.
func (g *Graph) Value(k ValueKey) float32 {
	if e, ok := g.lookup(k); ok && e.scalar != nil {
		return *e.scalar
	}
	return 0
}

// Output returns current value of an endpoint by path. Unknown and event
// endpoints read as zero.
func (g *Graph) Output(name string) float32 {
	k, ok := g.paths[name]
	if !ok {
		return 0
	}
	return g.Value(k)
}

// PushEvent queues event to a graph event input or a node event input.
func (g *Graph) PushEvent(name string, ev event.Instance) error {
	k, ok := g.paths[name]
	if !ok {
		return ErrUnknownEndpoint
	}
	e := g.endpoints[k]
	if e.events == nil || e.desc.Direction != Input {
		return ErrNotSettable
	}
	return e.events.Push(ev)
}

// DrainEvents calls fn for every event pending on the endpoint and clears
// it. Graph event outputs hold events produced by the last tick.
func (g *Graph) DrainEvents(name string, fn func(event.Instance)) error {
	k, ok := g.paths[name]
	if !ok {
		return ErrUnknownEndpoint
	}
	e := g.endpoints[k]
	if e.events == nil {
		return ErrKindMismatch
	}
	for i, n := 0, e.events.Len(); i < n; i++ {
		fn(e.events.At(i))
	}
	e.events.Clear()
	return nil
}

// SampleRate returns sample rate nodes are initialized with.
func (g *Graph) SampleRate() float32 {
	return g.sampleRate
}

// SetSampleRate initializes all nodes with a new sample rate.
func (g *Graph) SetSampleRate(sampleRate float32) {
	g.sampleRate = sampleRate
	for _, n := range g.nodes {
		if !n.removed && n.init != nil {
			n.init.Init(sampleRate)
		}
	}
}
