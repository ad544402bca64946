// Package jit lowers validated dynamic graphs into compiled programs.
//
// Lowering has three stages. NewIR derives a read-only intermediate
// representation from a graph. NewLayout assigns every connection source a
// slot in a flat state. A backend then compiles IR and state into a program.
// The closure backend resolves all storage ahead of time, so a tick is a
// sequence of calls without lookups.
//
// A compiled graph drives the nodes of its source graph. The source graph
// must not be processed while the compiled graph is in use, and any change
// of the source graph makes the compiled graph stale.
package jit

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/log"
)

// ErrStale is returned when source graph changed after compilation.
var ErrStale = errors.New("compiled graph is stale")

type config struct {
	backend string
	logger  logrus.FieldLogger
}

// Option configures compilation.
type Option func(*config)

// WithBackend selects backend by name.
func WithBackend(name string) Option {
	return func(c *config) {
		c.backend = name
	}
}

// WithLogger sets the logger compilation is reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// CompiledGraph runs a lowered graph. It has the runtime surface of the
// dynamic graph it was compiled from.
type CompiledGraph struct {
	source  *graph.Graph
	backend string
	ir      *GraphIR
	layout  *Layout
	state   *State
	program Program
	paths   map[string]int
	primary *float32
	handoff *graph.Handoff
	apply   func(int, float32)
}

var (
	_ graph.Interface      = (*CompiledGraph)(nil)
	_ graph.EventInterface = (*CompiledGraph)(nil)
)

// Compile lowers graph g.
func Compile(g *graph.Graph, opts ...Option) (*CompiledGraph, error) {
	c := config{backend: DefaultBackend}
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = g.Logger()
	}
	b, err := Lookup(c.backend)
	if err != nil {
		return nil, err
	}
	ir, err := NewIR(g)
	if err != nil {
		return nil, err
	}
	layout := NewLayout(ir)
	state := NewState(ir, layout)
	program, err := b.Compile(ir, layout, state)
	if err != nil {
		return nil, fmt.Errorf("jit %s: %w", b.Name(), err)
	}

	cg := CompiledGraph{
		source:  g,
		backend: b.Name(),
		ir:      ir,
		layout:  layout,
		state:   state,
		program: program,
		paths:   make(map[string]int, len(ir.Endpoints)),
	}
	for i := range ir.Endpoints {
		cg.paths[ir.Endpoints[i].Path] = i
	}
	if ir.Primary != NoIndex {
		cg.primary = state.Scalar(layout, ir.Primary)
	}
	names := make([]string, len(ir.Settable))
	for slot, i := range ir.Settable {
		names[slot] = ir.Endpoints[i].Path
	}
	cg.handoff = graph.NewHandoff(names)
	cg.apply = state.set

	l := c.logger.WithFields(logrus.Fields{
		"backend":    b.Name(),
		"nodes":      len(ir.Nodes),
		"scalars":    layout.Scalars,
		"buses":      layout.Buses,
		"settable":   len(ir.Settable),
		"generation": ir.Generation,
	})
	if traceEnabled(c.logger) {
		l.Trace(ir.Dump())
	}
	l.Debug("graph compiled")
	return &cg, nil
}

func traceEnabled(l logrus.FieldLogger) bool {
	switch l := l.(type) {
	case *logrus.Entry:
		return l.Logger.IsLevelEnabled(logrus.TraceLevel)
	case *logrus.Logger:
		return l.IsLevelEnabled(logrus.TraceLevel)
	}
	return log.GetLogger().IsLevelEnabled(logrus.TraceLevel)
}

// Backend returns name of the backend graph was compiled with.
func (c *CompiledGraph) Backend() string {
	return c.backend
}

// IR returns the lowering input.
func (c *CompiledGraph) IR() *GraphIR {
	return c.ir
}

// Layout returns the state layout.
func (c *CompiledGraph) Layout() *Layout {
	return c.layout
}

// Stale reports if source graph changed after compilation.
func (c *CompiledGraph) Stale() bool {
	return c.source.Generation() != c.ir.Generation
}

// Handoff returns handoff for value updates from another goroutine.
func (c *CompiledGraph) Handoff() *graph.Handoff {
	return c.handoff
}

// Dropped returns number of events rejected by event endpoints.
func (c *CompiledGraph) Dropped() uint64 {
	var n uint64
	for i := range c.state.Buses {
		n += c.state.Buses[i].Dropped()
	}
	for i := range c.ir.Endpoints {
		if e := &c.ir.Endpoints[i]; !e.Boundary() && e.Events != nil {
			n += event.Dropped(e.Events)
		}
	}
	return n
}

// Process runs one tick. It returns ErrStale and does nothing if source
// graph changed.
func (c *CompiledGraph) Process() error {
	if c.Stale() {
		return ErrStale
	}
	c.handoff.Pull(c.apply)
	c.state.advance()
	c.program.Tick()
	return nil
}

// ProcessSample runs one tick and returns the first stream or value output.
func (c *CompiledGraph) ProcessSample() float32 {
	if err := c.Process(); err != nil || c.primary == nil {
		return 0
	}
	return *c.primary
}

func (c *CompiledGraph) slot(name string) (int, error) {
	i, ok := c.paths[name]
	if !ok {
		return 0, graph.ErrUnknownEndpoint
	}
	for slot, s := range c.ir.Settable {
		if s == i {
			return slot, nil
		}
	}
	return 0, graph.ErrNotSettable
}

// SetInput sets value of a graph input or a node value input.
func (c *CompiledGraph) SetInput(name string, v float32) error {
	slot, err := c.slot(name)
	if err != nil {
		return err
	}
	c.state.set(slot, v)
	return nil
}

// SetNormalized maps x in [0, 1] through the input curve and sets the
// result.
func (c *CompiledGraph) SetNormalized(name string, x float32) error {
	slot, err := c.slot(name)
	if err != nil {
		return err
	}
	c.state.setNormalized(slot, x)
	return nil
}

// Output returns current value of a stream or value endpoint.
func (c *CompiledGraph) Output(name string) float32 {
	i, ok := c.paths[name]
	if !ok || !c.ir.Endpoints[i].Kind.IsScalar() {
		return 0
	}
	if p := c.state.Scalar(c.layout, i); p != nil {
		return *p
	}
	return *c.ir.Endpoints[i].Scalar
}

func (c *CompiledGraph) events(i int) event.Events {
	if b := c.state.Bus(c.layout, i); b != nil {
		return b
	}
	return c.ir.Endpoints[i].Events
}

// PushEvent queues event to an event input.
func (c *CompiledGraph) PushEvent(name string, e event.Instance) error {
	i, ok := c.paths[name]
	if !ok {
		return graph.ErrUnknownEndpoint
	}
	ep := &c.ir.Endpoints[i]
	if ep.Kind != graph.Event || ep.Direction != graph.Input {
		return graph.ErrNotSettable
	}
	return c.events(i).Push(e)
}

// DrainEvents calls fn for every event pending on the endpoint and clears
// it.
func (c *CompiledGraph) DrainEvents(name string, fn func(event.Instance)) error {
	i, ok := c.paths[name]
	if !ok {
		return graph.ErrUnknownEndpoint
	}
	if c.ir.Endpoints[i].Kind != graph.Event {
		return graph.ErrKindMismatch
	}
	q := c.events(i)
	for j, n := 0, q.Len(); j < n; j++ {
		fn(q.At(j))
	}
	q.Clear()
	return nil
}

// SampleRate returns sample rate nodes are initialized with.
func (c *CompiledGraph) SampleRate() float32 {
	return c.source.SampleRate()
}

// SetSampleRate initializes all nodes with a new sample rate. Node outputs
// reset by initialization are published to the state.
func (c *CompiledGraph) SetSampleRate(sampleRate float32) {
	c.source.SetSampleRate(sampleRate)
	for i := range c.ir.Endpoints {
		e := &c.ir.Endpoints[i]
		if e.Boundary() {
			continue
		}
		if p := c.state.Scalar(c.layout, i); p != nil {
			*p = *e.Scalar
		}
	}
}
