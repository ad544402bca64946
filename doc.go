/*
Package graph allows to build and execute real-time DSP graphs.

Concept

A graph is a set of nodes connected with typed endpoints. Every node
declares a fixed list of endpoints of three kinds:

    Stream - a signal recomputed on every tick;
    Value - a parameter set asynchronously and read once per tick;
    Event - discrete timestamped messages, queued per endpoint.

A tick is one call to Process. Within a tick nodes are processed in
topological order, so a node observes outputs its sources produced in the
same tick. A cycle is allowed only if one of its participants allows
feedback. The edge into that node is then excluded from ordering and reads
the value produced on the previous tick.

Nodes

Node implementations own their endpoint storage as plain fields. Bind
returns pointers to those fields once, when the node is added:

    type Gain struct {
        Input, Gain, Output float32
    }

    var gainEndpoints = []graph.EndpointDescriptor{
        graph.StreamInput("input"),
        graph.ValueInput("gain"),
        graph.StreamOutput("output"),
    }

    func (g *Gain) Endpoints() []graph.EndpointDescriptor { return gainEndpoints }
    func (g *Gain) Bind() []graph.Binding {
        return []graph.Binding{graph.Scalar(&g.Input), graph.Scalar(&g.Gain), graph.Scalar(&g.Output)}
    }
    func (g *Gain) Process() { g.Output = g.Input * g.Gain }

Building

Graph is built with AddNode, AddInput, AddOutput and Connect. Validate
checks the topology and derives the execution order:

    g := graph.New(graph.WithSampleRate(48000))
    osc, _ := g.AddNode("osc", nodes.NewConstant(1))
    amp, _ := g.AddNode("amp", nodes.NewGain(0.5))
    out, _ := g.AddOutput("out", graph.Stream)
    g.Connect(g.MustEndpoint("osc.output"), g.MustEndpoint("amp.input"))
    g.Connect(g.MustEndpoint("amp.output"), out)
    if err := g.Validate(); err != nil {
        // cycle, dangling endpoint or kind mismatch
    }
    sample := g.ProcessSample()

Construction allocates, Process does not. Values set from another goroutine
go through Handoff and are applied at the start of the next tick.

Graphs can also be built from a description by the compiler package, either
as a dynamic Graph or as generated Go code. The jit package lowers a dynamic
Graph into a program with pre-resolved memory offsets. All three implement
Interface.
*/
package graph
