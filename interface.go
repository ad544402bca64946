package graph

import "pipelined.dev/graph/event"

type (
	// Interface is implemented by every executable graph: dynamic graphs,
	// compiled graphs and generated static graphs.
	Interface interface {
		// ProcessSample runs one tick and returns the first stream or
		// value output of the graph.
		ProcessSample() float32
		// SetInput sets graph input or node value input by name.
		SetInput(name string, v float32) error
		// SetNormalized sets input by name from a value in [0, 1] mapped
		// through its parameter curve.
		SetNormalized(name string, x float32) error
		// Output returns current value of graph output or node endpoint.
		Output(name string) float32
		SampleRate() float32
		SetSampleRate(sampleRate float32)
	}

	// EventInterface is implemented by graphs that carry events.
	EventInterface interface {
		PushEvent(name string, e event.Instance) error
		DrainEvents(name string, fn func(event.Instance)) error
	}
)

var (
	_ Interface      = (*Graph)(nil)
	_ EventInterface = (*Graph)(nil)
)
