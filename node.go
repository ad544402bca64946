package graph

import (
	"fmt"
)

type (
	// Node is a unit of signal processing with a fixed set of endpoints.
	// Node must not keep references to other nodes.
	Node interface {
		// Endpoints returns descriptors of the node type. Every instance
		// of the type must return the same descriptors.
		Endpoints() []EndpointDescriptor
		// Bind returns pointers to endpoint fields in descriptors order.
		// It is called once, when the node is added to a graph.
		Bind() []Binding
		// Process runs one tick.
		Process()
	}

	// Initializer is implemented by nodes that depend on sample rate. Init
	// is called before the first tick and every time sample rate changes.
	Initializer interface {
		Init(sampleRate float32)
	}

	// FeedbackAllower is implemented by nodes that can close a cycle.
	FeedbackAllower interface {
		AllowsFeedback() bool
	}
)

type (
	// NodeKey identifies a node within the graph that created it.
	NodeKey int32

	// ValueKey identifies an endpoint within the graph that created it.
	ValueKey int32
)

const (
	// NoNode is the key of graph boundary endpoints owner.
	NoNode NodeKey = -1
	// NoValue marks absent endpoint.
	NoValue ValueKey = -1
)

// AllowsFeedback returns true if node implements FeedbackAllower and
// allows feedback.
func AllowsFeedback(n Node) bool {
	if f, ok := n.(FeedbackAllower); ok {
		return f.AllowsFeedback()
	}
	return false
}

// checkNode validates endpoints and bindings of the node.
func checkNode(n Node) ([]EndpointDescriptor, []Binding, error) {
	descriptors := n.Endpoints()
	if len(descriptors) > MaxNodeEndpoints {
		return nil, nil, fmt.Errorf("%w: %d endpoints, maximum is %d", ErrInvalidNode, len(descriptors), MaxNodeEndpoints)
	}
	bindings := n.Bind()
	if len(bindings) != len(descriptors) {
		return nil, nil, fmt.Errorf("%w: %d bindings for %d endpoints", ErrInvalidNode, len(bindings), len(descriptors))
	}
	names := make(map[string]struct{}, len(descriptors))
	for i, d := range descriptors {
		if d.Name == "" {
			return nil, nil, fmt.Errorf("%w: endpoint %d has no name", ErrInvalidNode, i)
		}
		if _, ok := names[d.Name]; ok {
			return nil, nil, fmt.Errorf("%w: duplicate endpoint %q", ErrInvalidNode, d.Name)
		}
		names[d.Name] = struct{}{}
		if !bindings[i].matches(d.Kind) {
			return nil, nil, fmt.Errorf("%w: binding of %v does not match its kind", ErrInvalidNode, d)
		}
	}
	return descriptors, bindings, nil
}
