package graph

import (
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/param"
)

// EndpointInfo describes an endpoint of the graph.
type EndpointInfo struct {
	EndpointDescriptor
	Key  ValueKey
	Path string
	// Node is NoNode for graph boundary endpoints.
	Node NodeKey
	// Spec and Initial are set for graph inputs.
	Spec    param.Spec
	Initial float32
	// Scalar and Events point to the endpoint storage.
	Scalar *float32
	Events event.Events
}

// Boundary returns true for graph-level endpoints.
func (i EndpointInfo) Boundary() bool {
	return i.Node == NoNode
}

// NodeInfo describes a node of the graph.
type NodeInfo struct {
	Key            NodeKey
	Name           string
	Node           Node
	Endpoints      []ValueKey
	AllowsFeedback bool
}

// EndpointInfo returns endpoint description.
func (g *Graph) EndpointInfo(k ValueKey) (EndpointInfo, bool) {
	e, ok := g.lookup(k)
	if !ok {
		return EndpointInfo{}, false
	}
	return EndpointInfo{
		EndpointDescriptor: e.desc,
		Key:                k,
		Path:               e.path,
		Node:               e.node,
		Spec:               e.input.Spec,
		Initial:            e.initial,
		Scalar:             e.scalar,
		Events:             e.events,
	}, true
}

// NodeInfo returns node description.
func (g *Graph) NodeInfo(k NodeKey) (NodeInfo, bool) {
	n, ok := g.node(k)
	if !ok {
		return NodeInfo{}, false
	}
	return NodeInfo{
		Key:            k,
		Name:           n.name,
		Node:           n.node,
		Endpoints:      append([]ValueKey(nil), n.endpoints...),
		AllowsFeedback: n.feedback,
	}, true
}

// Node returns node key by its name.
func (g *Graph) Node(name string) (NodeKey, bool) {
	k, ok := g.nodeNames[name]
	return k, ok
}

// Nodes returns keys of all nodes in declaration order.
func (g *Graph) Nodes() []NodeKey {
	keys := make([]NodeKey, 0, len(g.nodes))
	for i, n := range g.nodes {
		if !n.removed {
			keys = append(keys, NodeKey(i))
		}
	}
	return keys
}

// Endpoints returns keys of all endpoints in creation order.
func (g *Graph) Endpoints() []ValueKey {
	keys := make([]ValueKey, 0, len(g.endpoints))
	for i, e := range g.endpoints {
		if !e.removed {
			keys = append(keys, ValueKey(i))
		}
	}
	return keys
}

// Inputs returns keys of graph inputs in creation order.
func (g *Graph) Inputs() []ValueKey {
	return append([]ValueKey(nil), g.inputs...)
}

// Outputs returns keys of graph outputs in creation order.
func (g *Graph) Outputs() []ValueKey {
	return append([]ValueKey(nil), g.outputs...)
}

// Connections returns all connections in creation order.
func (g *Graph) Connections() []Connection {
	return append([]Connection(nil), g.connections...)
}

// Order returns execution order derived by the last validation.
func (g *Graph) Order() []NodeKey {
	return append([]NodeKey(nil), g.order...)
}

// Delayed returns connections that read the value of the previous tick.
func (g *Graph) Delayed() []Connection {
	return append([]Connection(nil), g.delayed...)
}

// Dropped returns number of events rejected by event endpoints of the graph.
// Endpoints of removed nodes are not counted.
func (g *Graph) Dropped() uint64 {
	var n uint64
	for _, e := range g.endpoints {
		if !e.removed && e.events != nil {
			n += event.Dropped(e.events)
		}
	}
	return n
}

// Source returns the endpoint feeding stream or value endpoint k, or NoValue.
func (g *Graph) Source(k ValueKey) ValueKey {
	if int(k) >= len(g.sources) || k < 0 {
		return NoValue
	}
	return g.sources[k]
}

// Destinations returns endpoints receiving events of endpoint k.
func (g *Graph) Destinations(k ValueKey) []ValueKey {
	if int(k) >= len(g.fanout) || k < 0 {
		return nil
	}
	return append([]ValueKey(nil), g.fanout[k]...)
}

// Settable returns keys of endpoints accepted by SetValue, in handoff slot
// order.
func (g *Graph) Settable() []ValueKey {
	return append([]ValueKey(nil), g.settable...)
}

// Primary returns the first stream or value graph output, or NoValue.
func (g *Graph) Primary() ValueKey {
	return g.primary
}
