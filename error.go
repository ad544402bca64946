package graph

import (
	"errors"
	"fmt"
	"strings"

	"pipelined.dev/graph/event"
	"pipelined.dev/graph/topology"
)

var (
	// ErrCycle is returned when connections form a cycle and none of its
	// nodes allows feedback.
	ErrCycle = topology.ErrCycle
	// ErrDanglingEndpoint is returned when connection references an endpoint
	// that does not exist in the graph.
	ErrDanglingEndpoint = errors.New("dangling endpoint")
	// ErrKindMismatch is returned when connected endpoints have
	// incompatible kinds.
	ErrKindMismatch = errors.New("endpoint kind mismatch")
	// ErrFanOutExceeded is returned when endpoint has more than
	// MaxConnectionsPerOutput connections.
	ErrFanOutExceeded = errors.New("fan-out limit exceeded")
	// ErrDirection is returned when connection does not go from a source
	// endpoint to a destination endpoint.
	ErrDirection = errors.New("invalid connection direction")
	// ErrInputConnected is returned when a stream or value input already
	// has a source.
	ErrInputConnected = errors.New("input already connected")
	// ErrNotConnected is returned when removed connection does not exist.
	ErrNotConnected = errors.New("endpoints not connected")
	// ErrInvalidNode is returned when node endpoints and bindings disagree.
	ErrInvalidNode = errors.New("invalid node")
	// ErrUnknownNode is returned for removed or never added nodes.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateName is returned when node or boundary name is taken.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownEndpoint is returned when an endpoint is looked up by a name
	// that does not exist.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	// ErrNotSettable is returned when value is set to an endpoint that is
	// not a stream or value input.
	ErrNotSettable = errors.New("endpoint is not settable")
	// ErrOverflow is returned when event is pushed to a full queue.
	ErrOverflow = event.ErrOverflow
)

// TopologyError is returned when connections cannot form a valid graph.
type TopologyError struct {
	Err error
	// Cycle holds node names of a cycle path.
	Cycle []string
	// Endpoints holds names of offending endpoints.
	Endpoints []string
}

func (e *TopologyError) Error() string {
	switch {
	case len(e.Cycle) > 0:
		return fmt.Sprintf("topology: %v: %s", e.Err, strings.Join(e.Cycle, " -> "))
	case len(e.Endpoints) > 0:
		return fmt.Sprintf("topology: %v: %s", e.Err, strings.Join(e.Endpoints, " -> "))
	}
	return fmt.Sprintf("topology: %v", e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *TopologyError) Unwrap() error {
	return e.Err
}
