package nodes

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/compiler"
)

// Types returns description types of all nodes in this package.
func Types() []compiler.NodeType {
	return []compiler.NodeType{
		{
			Name:        "constant",
			Defaults:    []float32{0},
			New:         func(a []float32) graph.Node { return NewConstant(a[0]) },
			Constructor: "NewConstant",
		},
		{
			Name:        "gain",
			Defaults:    []float32{1},
			New:         func(a []float32) graph.Node { return NewGain(a[0]) },
			Constructor: "NewGain",
		},
		{
			Name:        "oscillator",
			Defaults:    []float32{440, 1},
			New:         func(a []float32) graph.Node { return NewOscillator(a[0], a[1]) },
			Constructor: "NewOscillator",
		},
		{
			Name:        "delay",
			New:         func([]float32) graph.Node { return NewDelay() },
			Constructor: "NewDelay",
		},
		{
			Name:        "passthrough",
			New:         func([]float32) graph.Node { return NewPassthrough() },
			Constructor: "NewPassthrough",
		},
		{
			Name:        "gate",
			New:         func([]float32) graph.Node { return NewGate() },
			Constructor: "NewGate",
		},
		{
			Name:        "trigger",
			Defaults:    []float32{1},
			New:         func(a []float32) graph.Node { return NewTrigger(a[0]) },
			Constructor: "NewTrigger",
		},
		{
			Name:        "allocator",
			New:         func([]float32) graph.Node { return NewVoiceAllocator() },
			Constructor: "NewVoiceAllocator",
		},
	}
}

// Registry returns registry with all nodes of this package.
func Registry() *compiler.Registry {
	r := compiler.NewRegistry()
	if err := r.Register(Types()...); err != nil {
		panic(err)
	}
	return r
}
