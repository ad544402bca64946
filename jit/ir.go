package jit

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/multierr"

	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/param"
)

// ErrInvalidIR is returned when IR is inconsistent.
var ErrInvalidIR = errors.New("invalid graph IR")

// NoIndex marks absent IR index.
const NoIndex = -1

// NodeIR is a node of the graph.
type NodeIR struct {
	Key       graph.NodeKey
	Name      string
	Node      graph.Node
	Feedback  bool
	Endpoints []int
}

// EndpointIR is an endpoint of the graph. Scalar endpoints point to their
// float32 storage, event endpoints to their queue.
type EndpointIR struct {
	graph.EndpointDescriptor
	Key  graph.ValueKey
	Path string
	// Node is index in GraphIR.Nodes or NoIndex for graph boundary.
	Node     int
	Settable bool
	Spec     param.Spec
	Initial  float32
	Scalar   *float32
	Events   event.Events
}

// Boundary returns true for graph-level endpoints.
func (e *EndpointIR) Boundary() bool {
	return e.Node == NoIndex
}

// EdgeIR is a connection. Delayed edges read the value of the previous
// tick.
type EdgeIR struct {
	From, To int
	Delayed  bool
}

// GraphIR is a read-only lowering input derived from a validated graph.
type GraphIR struct {
	Nodes      []NodeIR
	Endpoints  []EndpointIR
	Edges      []EdgeIR
	Order      []int
	Inputs     []int
	Outputs    []int
	Settable   []int
	Primary    int
	SampleRate float32
	Generation uint64
}

// NewIR derives IR from graph. Graph is validated if it changed since the
// last validation.
func NewIR(g *graph.Graph) (*GraphIR, error) {
	if !g.Valid() {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	ir := GraphIR{
		Primary:    NoIndex,
		SampleRate: g.SampleRate(),
		Generation: g.Generation(),
	}
	nodes := make(map[graph.NodeKey]int)
	for _, k := range g.Nodes() {
		info, _ := g.NodeInfo(k)
		nodes[k] = len(ir.Nodes)
		ir.Nodes = append(ir.Nodes, NodeIR{Key: k, Name: info.Name, Node: info.Node, Feedback: info.AllowsFeedback})
	}
	endpoints := make(map[graph.ValueKey]int)
	for _, k := range g.Endpoints() {
		info, _ := g.EndpointInfo(k)
		e := EndpointIR{
			EndpointDescriptor: info.EndpointDescriptor,
			Key:                k,
			Path:               info.Path,
			Node:               NoIndex,
			Spec:               info.Spec,
			Initial:            info.Initial,
			Scalar:             info.Scalar,
			Events:             info.Events,
		}
		if !info.Boundary() {
			e.Node = nodes[info.Node]
			n := &ir.Nodes[e.Node]
			n.Endpoints = append(n.Endpoints, len(ir.Endpoints))
		}
		endpoints[k] = len(ir.Endpoints)
		ir.Endpoints = append(ir.Endpoints, e)
	}

	delayed := make(map[graph.Connection]bool)
	for _, c := range g.Delayed() {
		delayed[c] = true
	}
	for _, c := range g.Connections() {
		ir.Edges = append(ir.Edges, EdgeIR{From: endpoints[c.From], To: endpoints[c.To], Delayed: delayed[c]})
	}
	for _, k := range g.Order() {
		ir.Order = append(ir.Order, nodes[k])
	}
	for _, k := range g.Inputs() {
		ir.Inputs = append(ir.Inputs, endpoints[k])
	}
	for _, k := range g.Outputs() {
		ir.Outputs = append(ir.Outputs, endpoints[k])
	}
	for _, k := range g.Settable() {
		i := endpoints[k]
		ir.Endpoints[i].Settable = true
		ir.Settable = append(ir.Settable, i)
	}
	if k := g.Primary(); k != graph.NoValue {
		ir.Primary = endpoints[k]
	}
	return &ir, ir.Validate()
}

// Sources returns source endpoint of every scalar endpoint or NoIndex.
func (ir *GraphIR) Sources() []int {
	sources := make([]int, len(ir.Endpoints))
	for i := range sources {
		sources[i] = NoIndex
	}
	for _, e := range ir.Edges {
		if ir.Endpoints[e.To].Kind.IsScalar() {
			sources[e.To] = e.From
		}
	}
	return sources
}

// Fanout returns destinations of every event endpoint in connection order.
func (ir *GraphIR) Fanout() [][]int {
	fanout := make([][]int, len(ir.Endpoints))
	for _, e := range ir.Edges {
		if ir.Endpoints[e.From].Kind == graph.Event {
			fanout[e.From] = append(fanout[e.From], e.To)
		}
	}
	return fanout
}

// Validate checks that IR is consistent: every node is scheduled once and
// every non-delayed edge runs its source node first.
func (ir *GraphIR) Validate() error {
	var errs error
	position := make([]int, len(ir.Nodes))
	for i := range position {
		position[i] = NoIndex
	}
	for i, n := range ir.Order {
		if n < 0 || n >= len(ir.Nodes) {
			errs = multierr.Append(errs, fmt.Errorf("%w: order[%d] is out of range", ErrInvalidIR, i))
			continue
		}
		if position[n] != NoIndex {
			errs = multierr.Append(errs, fmt.Errorf("%w: node %q is scheduled twice", ErrInvalidIR, ir.Nodes[n].Name))
			continue
		}
		position[n] = i
	}
	for n, p := range position {
		if p == NoIndex {
			errs = multierr.Append(errs, fmt.Errorf("%w: node %q is not scheduled", ErrInvalidIR, ir.Nodes[n].Name))
		}
	}
	if errs != nil {
		return errs
	}

	fed := make(map[int]bool)
	for _, e := range ir.Edges {
		if e.From < 0 || e.From >= len(ir.Endpoints) || e.To < 0 || e.To >= len(ir.Endpoints) {
			errs = multierr.Append(errs, fmt.Errorf("%w: edge %d -> %d is out of range", ErrInvalidIR, e.From, e.To))
			continue
		}
		src, dst := &ir.Endpoints[e.From], &ir.Endpoints[e.To]
		if !src.Kind.Compatible(dst.Kind) {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s %v to %s %v", ErrInvalidIR, src.Path, src.Kind, dst.Path, dst.Kind))
			continue
		}
		if !dst.Kind.IsScalar() {
			continue
		}
		if fed[e.To] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s has two sources", ErrInvalidIR, dst.Path))
		}
		fed[e.To] = true
		if src.Boundary() || dst.Boundary() || e.Delayed {
			continue
		}
		if position[src.Node] >= position[dst.Node] {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s runs after %s", ErrInvalidIR, src.Path, dst.Path))
		}
	}
	return errs
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	MaxDepth:                3,
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump returns readable listing of IR without node internals.
func (ir *GraphIR) Dump() string {
	type node struct {
		Name      string
		Feedback  bool
		Endpoints []int
	}
	type endpoint struct {
		Path      string
		Kind      string
		Direction string
		Settable  bool
	}
	listing := struct {
		Nodes     []node
		Endpoints []endpoint
		Edges     []EdgeIR
		Order     []int
	}{Edges: ir.Edges, Order: ir.Order}
	for _, n := range ir.Nodes {
		listing.Nodes = append(listing.Nodes, node{Name: n.Name, Feedback: n.Feedback, Endpoints: n.Endpoints})
	}
	for _, e := range ir.Endpoints {
		listing.Endpoints = append(listing.Endpoints, endpoint{Path: e.Path, Kind: e.Kind.String(), Direction: e.Direction.String(), Settable: e.Settable})
	}
	return dumpConfig.Sdump(listing)
}
