// Package mock provides configurable nodes and sinks for integration
// tests of graphs.
package mock

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/run"
)

// Recorder records names of processed nodes in processing order. Nodes of
// one graph share a recorder.
type Recorder struct {
	Names []string
}

// Reset clears recorded names.
func (r *Recorder) Reset() {
	r.Names = r.Names[:0]
}

// Node mocks a graph.Node with arbitrary endpoints. Every endpoint is bound
// to an element of Scalars or Queues with the same index.
type Node struct {
	Name        string
	Descriptors []graph.EndpointDescriptor
	Feedback    bool
	Recorder    *Recorder
	// Fn is called on every tick after counters are updated.
	Fn func(*Node)

	Scalars []float32
	Queues  []event.Queue

	Ticks      int
	Inits      int
	SampleRate float32
}

var (
	_ graph.Node            = (*Node)(nil)
	_ graph.Initializer     = (*Node)(nil)
	_ graph.FeedbackAllower = (*Node)(nil)
)

// New returns node with provided endpoints.
func New(name string, descriptors ...graph.EndpointDescriptor) *Node {
	return &Node{
		Name:        name,
		Descriptors: descriptors,
		Scalars:     make([]float32, len(descriptors)),
		Queues:      make([]event.Queue, len(descriptors)),
	}
}

// Endpoints returns configured descriptors.
func (n *Node) Endpoints() []graph.EndpointDescriptor {
	return n.Descriptors
}

// Bind binds scalars and queues by endpoint index.
func (n *Node) Bind() []graph.Binding {
	b := make([]graph.Binding, len(n.Descriptors))
	for i, d := range n.Descriptors {
		if d.Kind.IsScalar() {
			b[i] = graph.Scalar(&n.Scalars[i])
		} else {
			b[i] = graph.Events(&n.Queues[i])
		}
	}
	return b
}

// Init implements graph.Initializer.
func (n *Node) Init(sampleRate float32) {
	n.Inits++
	n.SampleRate = sampleRate
}

// AllowsFeedback implements graph.FeedbackAllower.
func (n *Node) AllowsFeedback() bool {
	return n.Feedback
}

// Process implements graph.Node.
func (n *Node) Process() {
	n.Ticks++
	if n.Recorder != nil {
		n.Recorder.Names = append(n.Recorder.Names, n.Name)
	}
	if n.Fn != nil {
		n.Fn(n)
	}
}

// Value returns current value of scalar endpoint.
func (n *Node) Value(name string) float32 {
	return n.Scalars[n.index(name)]
}

// Set sets value of scalar endpoint.
func (n *Node) Set(name string, v float32) {
	n.Scalars[n.index(name)] = v
}

// Queue returns queue of event endpoint.
func (n *Node) Queue(name string) *event.Queue {
	return &n.Queues[n.index(name)]
}

func (n *Node) index(name string) int {
	i := graph.IndexOf(n.Descriptors, name)
	if i == -1 {
		panic("mock: no endpoint " + name)
	}
	return i
}

// Sum sets every scalar output to the sum of scalar inputs.
func Sum(n *Node) {
	var sum float32
	for i, d := range n.Descriptors {
		if d.Kind.IsScalar() && d.Direction == graph.Input {
			sum += n.Scalars[i]
		}
	}
	for i, d := range n.Descriptors {
		if d.Kind.IsScalar() && d.Direction == graph.Output {
			n.Scalars[i] = sum
		}
	}
}

// Forward copies events of all event inputs to every event output.
func Forward(n *Node) {
	for i, in := range n.Descriptors {
		if in.Kind != graph.Event || in.Direction != graph.Input {
			continue
		}
		for j, out := range n.Descriptors {
			if out.Kind == graph.Event && out.Direction == graph.Output {
				event.Copy(&n.Queues[j], &n.Queues[i])
			}
		}
	}
}

// Sink mocks a run.Sink. Samples are not thread-safe and should not be
// checked while rendering.
type Sink struct {
	counter
	samples      []float32
	Discard      bool
	Flushed      bool
	ErrorOnCall  error
	ErrorOnFlush error
}

var (
	_ run.Sink    = (*Sink)(nil)
	_ run.Flusher = (*Sink)(nil)
)

// Write implements run.Sink.
func (m *Sink) Write(b *run.Block) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	if !m.Discard {
		m.samples = append(m.samples, b.Samples()...)
	}
	m.advance(b.Frames)
	return nil
}

// Flush implements run.Flusher.
func (m *Sink) Flush() error {
	m.Flushed = true
	return m.ErrorOnFlush
}

// Samples returns received interleaved samples.
func (m *Sink) Samples() []float32 {
	return m.samples
}

// Reset clears samples and counters.
func (m *Sink) Reset() {
	m.samples = nil
	m.Flushed = false
	m.reset()
}

// counter counts blocks and frames.
type counter struct {
	blocks int
	frames int
}

func (c *counter) reset() {
	c.blocks, c.frames = 0, 0
}

func (c *counter) advance(frames int) {
	c.blocks++
	c.frames += frames
}

// Count returns blocks and frames received.
func (c *counter) Count() (int, int) {
	return c.blocks, c.frames
}
