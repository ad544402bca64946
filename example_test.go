package graph_test

import (
	"fmt"

	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/nodes"
	"pipelined.dev/graph/param"
)

func Example() {
	g := graph.New(graph.WithSampleRate(8000))
	g.AddInput("level", graph.Value, graph.WithDefault(0.5), graph.WithSpec(param.Range(0, 1)))
	g.AddNode("c", nodes.NewConstant(2))
	g.AddNode("amp", nodes.NewGain(1))
	g.AddOutput("out", graph.Stream)
	g.ConnectPaths("c.output", "amp.input")
	g.ConnectPaths("level", "amp.gain")
	g.ConnectPaths("amp.output", "out")
	if err := g.Validate(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(g.ProcessSample())

	// values above the range are clamped
	g.SetInput("level", 4)
	fmt.Println(g.ProcessSample())

	// Output:
	// 1
	// 2
}

func Example_feedback() {
	g := graph.New()
	g.AddNode("c", nodes.NewConstant(1))
	g.AddNode("a", nodes.NewGain(1))
	g.AddNode("b", nodes.NewGain(1))
	g.ConnectPaths("c.output", "a.input")
	g.ConnectPaths("a.output", "b.input")
	g.ConnectPaths("b.output", "a.gain")
	fmt.Println(g.Validate())

	b, _ := g.Node("b")
	g.RemoveNode(b)
	g.AddNode("z", nodes.NewDelay())
	g.ConnectPaths("a.output", "z.input")
	g.ConnectPaths("z.output", "a.gain")
	fmt.Println(g.Validate())
	for _, c := range g.Delayed() {
		from, _ := g.EndpointInfo(c.From)
		to, _ := g.EndpointInfo(c.To)
		fmt.Println(from.Path, "->", to.Path)
	}

	// Output:
	// topology: cycle without feedback-capable node: a -> b -> a
	// <nil>
	// a.output -> z.input
}

func Example_events() {
	g := graph.New()
	g.AddInput("notes", graph.Event)
	g.AddNode("alloc", nodes.NewVoiceAllocator())
	g.AddNode("gate", nodes.NewGate())
	g.AddOutput("level", graph.Stream)
	g.ConnectPaths("notes", "alloc.input")
	g.ConnectPaths("alloc.voice[0]", "gate.input")
	g.ConnectPaths("gate.output", "level")

	g.PushEvent("notes", event.At(0, event.NoteOn(60, 0.75)))
	fmt.Println(g.ProcessSample())
	g.PushEvent("notes", event.At(0, event.NoteOff(60)))
	fmt.Println(g.ProcessSample())

	// Output:
	// 0.75
	// 0
}
