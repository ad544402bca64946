package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/graph/event"
	"pipelined.dev/graph/log"
	"pipelined.dev/graph/param"
	"pipelined.dev/graph/topology"
)

// Connection is a directed edge between two endpoints.
type Connection struct {
	From, To ValueKey
}

type endpoint struct {
	desc    EndpointDescriptor
	path    string
	node    NodeKey
	scalar  *float32
	events  event.Events
	input   param.Input
	value   float32
	initial float32
	bus     *event.Bus
	removed bool
}

// isSource returns true if endpoint can be the origin of a connection.
func (e *endpoint) isSource() bool {
	if e.node == NoNode {
		return e.desc.Direction == Input
	}
	return e.desc.Direction == Output
}

type nodeEntry struct {
	name      string
	node      Node
	init      Initializer
	feedback  bool
	endpoints []ValueKey
	removed   bool
}

// Graph is a dynamic DSP graph. It owns its nodes and their endpoints.
// Graph is not safe for concurrent use, except for its Handoff.
type Graph struct {
	id         xid.ID
	logger     logrus.FieldLogger
	sampleRate float32

	nodes       []*nodeEntry
	endpoints   []*endpoint
	paths       map[string]ValueKey
	nodeNames   map[string]NodeKey
	inputs      []ValueKey
	outputs     []ValueKey
	connections []Connection
	generation  uint64

	// derived by Validate
	valid    bool
	order    []NodeKey
	delayed  []Connection
	sources  []ValueKey
	fanout   [][]ValueKey
	settable []ValueKey
	primary  ValueKey
	handoff  *Handoff
	apply    func(int, float32)
}

// New returns an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		id:         xid.New(),
		sampleRate: DefaultSampleRate,
		paths:      make(map[string]ValueKey),
		nodeNames:  make(map[string]NodeKey),
		primary:    NoValue,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.GetLogger()
	}
	g.logger = g.logger.WithField("graph", g.id.String())
	g.apply = g.applyHandoff
	return g
}

// ID returns identifier used to label graph logs.
func (g *Graph) ID() xid.ID {
	return g.id
}

// Logger returns graph logger.
func (g *Graph) Logger() logrus.FieldLogger {
	return g.logger
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, ". ") {
		return fmt.Errorf("%w: %q is not a valid name", ErrInvalidNode, name)
	}
	return nil
}

// AddNode adds node to the graph under provided name. Initializer nodes are
// initialized with current sample rate.
func (g *Graph) AddNode(name string, n Node) (NodeKey, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if _, ok := g.nodeNames[name]; ok {
		return 0, fmt.Errorf("%w: node %q", ErrDuplicateName, name)
	}
	if _, ok := g.paths[name]; ok {
		return 0, fmt.Errorf("%w: node %q", ErrDuplicateName, name)
	}
	descriptors, bindings, err := checkNode(n)
	if err != nil {
		return 0, fmt.Errorf("node %q: %w", name, err)
	}

	key := NodeKey(len(g.nodes))
	entry := nodeEntry{
		name:      name,
		node:      n,
		feedback:  AllowsFeedback(n),
		endpoints: make([]ValueKey, len(descriptors)),
	}
	for i, d := range descriptors {
		e := &endpoint{
			desc:   d,
			path:   name + "." + d.Name,
			node:   key,
			scalar: bindings[i].Scalar,
			events: bindings[i].Events,
		}
		entry.endpoints[i] = g.addEndpoint(e)
	}
	if init, ok := n.(Initializer); ok {
		entry.init = init
		init.Init(g.sampleRate)
	}
	g.nodes = append(g.nodes, &entry)
	g.nodeNames[name] = key
	g.invalidate()
	g.logger.WithFields(logrus.Fields{
		"node":      name,
		"key":       key,
		"endpoints": len(descriptors),
		"feedback":  entry.feedback,
	}).Debug("node added")
	return key, nil
}

// AddInput adds a graph-level input endpoint.
func (g *Graph) AddInput(name string, kind Kind, opts ...InputOption) (ValueKey, error) {
	e, err := g.boundary(name, Input, kind)
	if err != nil {
		return NoValue, err
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.input.Spec.Validate(); err != nil {
		return NoValue, fmt.Errorf("input %q: %w", name, err)
	}
	if kind == Event && (e.input.Spec != param.Spec{}) {
		return NoValue, fmt.Errorf("input %q: %w: event inputs have no shaping", name, ErrKindMismatch)
	}
	e.value = e.input.Spec.Clamp(e.value)
	e.initial = e.value
	k := g.addEndpoint(e)
	g.inputs = append(g.inputs, k)
	g.invalidate()
	return k, nil
}

// AddOutput adds a graph-level output endpoint.
func (g *Graph) AddOutput(name string, kind Kind) (ValueKey, error) {
	e, err := g.boundary(name, Output, kind)
	if err != nil {
		return NoValue, err
	}
	k := g.addEndpoint(e)
	g.outputs = append(g.outputs, k)
	g.invalidate()
	return k, nil
}

func (g *Graph) boundary(name string, dir Direction, kind Kind) (*endpoint, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, ok := g.paths[name]; ok {
		return nil, fmt.Errorf("%w: endpoint %q", ErrDuplicateName, name)
	}
	if _, ok := g.nodeNames[name]; ok {
		return nil, fmt.Errorf("%w: endpoint %q", ErrDuplicateName, name)
	}
	if kind > Event {
		return nil, fmt.Errorf("%w: %v", ErrKindMismatch, kind)
	}
	e := &endpoint{
		desc: EndpointDescriptor{Name: name, Direction: dir, Kind: kind},
		path: name,
		node: NoNode,
	}
	if kind == Event {
		e.bus = new(event.Bus)
		e.events = e.bus
	} else {
		e.scalar = &e.value
	}
	return e, nil
}

func (g *Graph) addEndpoint(e *endpoint) ValueKey {
	k := ValueKey(len(g.endpoints))
	g.endpoints = append(g.endpoints, e)
	g.paths[e.path] = k
	return k
}

func (g *Graph) invalidate() {
	g.valid = false
	g.generation++
}

func (g *Graph) lookup(k ValueKey) (*endpoint, bool) {
	if k < 0 || int(k) >= len(g.endpoints) || g.endpoints[k].removed {
		return nil, false
	}
	return g.endpoints[k], true
}

// Endpoint returns key of endpoint by its path. Graph boundary endpoints
// are addressed by name, node endpoints as "node.endpoint".
func (g *Graph) Endpoint(path string) (ValueKey, error) {
	if k, ok := g.paths[path]; ok {
		return k, nil
	}
	return NoValue, fmt.Errorf("%w: %q", ErrUnknownEndpoint, path)
}

// MustEndpoint is like Endpoint, but panics if endpoint does not exist.
func (g *Graph) MustEndpoint(path string) ValueKey {
	k, err := g.Endpoint(path)
	if err != nil {
		panic(err)
	}
	return k
}

// Connect adds a connection. Source must be a node output or a graph input,
// destination must be a node input or a graph output.
func (g *Graph) Connect(from, to ValueKey) error {
	src, ok := g.lookup(from)
	if !ok {
		return &TopologyError{Err: ErrDanglingEndpoint, Endpoints: []string{g.pathOf(from), g.pathOf(to)}}
	}
	dst, ok := g.lookup(to)
	if !ok {
		return &TopologyError{Err: ErrDanglingEndpoint, Endpoints: []string{src.path, g.pathOf(to)}}
	}
	names := []string{src.path, dst.path}
	if !src.isSource() || dst.isSource() {
		return &TopologyError{Err: ErrDirection, Endpoints: names}
	}
	if !src.desc.Kind.Compatible(dst.desc.Kind) {
		return &TopologyError{
			Err:       fmt.Errorf("%w: %v to %v", ErrKindMismatch, src.desc.Kind, dst.desc.Kind),
			Endpoints: names,
		}
	}
	fanout := 0
	for _, c := range g.connections {
		if c.From == from {
			fanout++
			if c.To == to {
				return &TopologyError{Err: ErrInputConnected, Endpoints: names}
			}
		}
		if c.To == to && dst.desc.Kind.IsScalar() {
			return &TopologyError{Err: ErrInputConnected, Endpoints: []string{g.pathOf(c.From), dst.path}}
		}
	}
	if fanout >= MaxConnectionsPerOutput {
		return &TopologyError{
			Err:       fmt.Errorf("%w: maximum is %d", ErrFanOutExceeded, MaxConnectionsPerOutput),
			Endpoints: names,
		}
	}
	g.connections = append(g.connections, Connection{From: from, To: to})
	g.invalidate()
	return nil
}

// ConnectPaths connects endpoints by their paths.
func (g *Graph) ConnectPaths(from, to string) error {
	f, ok := g.paths[from]
	if !ok {
		return &TopologyError{Err: ErrDanglingEndpoint, Endpoints: []string{from, to}}
	}
	t, ok := g.paths[to]
	if !ok {
		return &TopologyError{Err: ErrDanglingEndpoint, Endpoints: []string{from, to}}
	}
	return g.Connect(f, t)
}

// Disconnect removes a connection.
func (g *Graph) Disconnect(from, to ValueKey) error {
	for i, c := range g.connections {
		if c.From == from && c.To == to {
			g.connections = append(g.connections[:i], g.connections[i+1:]...)
			g.invalidate()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrNotConnected, g.pathOf(from), g.pathOf(to))
}

// RemoveNode removes node with all its connections. Keys of removed node and
// its endpoints are never reused.
func (g *Graph) RemoveNode(k NodeKey) error {
	n, ok := g.node(k)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, k)
	}
	owned := func(v ValueKey) bool {
		return g.endpoints[v].node == k
	}
	kept := g.connections[:0]
	for _, c := range g.connections {
		if !owned(c.From) && !owned(c.To) {
			kept = append(kept, c)
		}
	}
	g.connections = kept
	for _, v := range n.endpoints {
		e := g.endpoints[v]
		e.removed = true
		delete(g.paths, e.path)
	}
	n.removed = true
	delete(g.nodeNames, n.name)
	g.invalidate()
	g.logger.WithField("node", n.name).Debug("node removed")
	return nil
}

func (g *Graph) node(k NodeKey) (*nodeEntry, bool) {
	if k < 0 || int(k) >= len(g.nodes) || g.nodes[k].removed {
		return nil, false
	}
	return g.nodes[k], true
}

func (g *Graph) pathOf(k ValueKey) string {
	if k >= 0 && int(k) < len(g.endpoints) {
		return g.endpoints[k].path
	}
	return fmt.Sprintf("#%d", k)
}

// Validate checks the topology and derives execution order. It must be
// called after the last change of the graph and before processing.
func (g *Graph) Validate() error {
	edges := make([]topology.Edge, 0, len(g.connections))
	for _, c := range g.connections {
		src, dst := g.endpoints[c.From], g.endpoints[c.To]
		if src.node == NoNode || dst.node == NoNode || !src.desc.Kind.IsScalar() {
			continue
		}
		edges = append(edges, topology.Edge{From: int(src.node), To: int(dst.node)})
	}
	res, err := topology.Sort(len(g.nodes), edges, func(i int) bool {
		return !g.nodes[i].removed && g.nodes[i].feedback
	})
	if err != nil {
		var cycle *topology.CycleError
		if errors.As(err, &cycle) {
			names := make([]string, len(cycle.Path))
			for i, n := range cycle.Path {
				names[i] = g.nodes[n].name
			}
			return &TopologyError{Err: ErrCycle, Cycle: names}
		}
		return err
	}

	g.order = g.order[:0]
	for _, n := range res.Order {
		if !g.nodes[n].removed {
			g.order = append(g.order, NodeKey(n))
		}
	}
	g.delayed = g.delayed[:0]
	g.sources = make([]ValueKey, len(g.endpoints))
	g.fanout = make([][]ValueKey, len(g.endpoints))
	for i := range g.sources {
		g.sources[i] = NoValue
	}
	for _, c := range g.connections {
		src, dst := g.endpoints[c.From], g.endpoints[c.To]
		if src.desc.Kind == Event {
			g.fanout[c.From] = append(g.fanout[c.From], c.To)
			continue
		}
		g.sources[c.To] = c.From
		if src.node != NoNode && dst.node != NoNode && res.IsDelayed(int(src.node), int(dst.node)) {
			g.delayed = append(g.delayed, c)
		}
	}

	g.settable = g.settable[:0]
	g.primary = NoValue
	for k, e := range g.endpoints {
		if e.removed {
			continue
		}
		if isSettable(e) {
			g.settable = append(g.settable, ValueKey(k))
		}
		if g.primary == NoValue && e.node == NoNode && e.desc.Direction == Output && e.desc.Kind.IsScalar() {
			g.primary = ValueKey(k)
		}
	}
	names := make([]string, len(g.settable))
	for i, k := range g.settable {
		names[i] = g.endpoints[k].path
	}
	// handoff survives validation while settable endpoints keep their slots
	if g.handoff == nil || !slices.Equal(g.handoff.names, names) {
		g.handoff = NewHandoff(names)
	}
	g.valid = true

	order := make([]string, len(g.order))
	for i, k := range g.order {
		order[i] = g.nodes[k].name
	}
	g.logger.WithFields(logrus.Fields{
		"order":   strings.Join(order, ","),
		"delayed": len(g.delayed),
	}).Debug("graph validated")
	return nil
}

func isSettable(e *endpoint) bool {
	if e.desc.Direction != Input {
		return false
	}
	if e.node == NoNode {
		return e.desc.Kind.IsScalar()
	}
	return e.desc.Kind == Value
}

// Valid reports if graph was validated after the last change.
func (g *Graph) Valid() bool {
	return g.valid
}

// Generation increments on every change of the graph.
func (g *Graph) Generation() uint64 {
	return g.generation
}

// Handoff returns handoff for value updates from another goroutine. It is
// available once graph is validated. Validation replaces it only when the
// set of settable endpoints changes; holders must fetch it again then.
func (g *Graph) Handoff() *Handoff {
	return g.handoff
}
