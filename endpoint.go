package graph

import (
	"fmt"

	"pipelined.dev/graph/event"
)

const (
	// MaxNodeEndpoints limits number of endpoints a node can declare.
	MaxNodeEndpoints = 32
	// MaxConnectionsPerOutput limits number of connections from one endpoint.
	MaxConnectionsPerOutput = 1024
)

// Direction of an endpoint.
type Direction uint8

// Endpoint directions.
const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Kind of an endpoint.
type Kind uint8

// Endpoint kinds.
const (
	Stream Kind = iota
	Value
	Event
)

func (k Kind) String() string {
	switch k {
	case Stream:
		return "stream"
	case Value:
		return "value"
	case Event:
		return "event"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind returns kind by its name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "stream":
		return Stream, nil
	case "value":
		return Value, nil
	case "event":
		return Event, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrKindMismatch, s)
}

// IsScalar returns true for stream and value kinds.
func (k Kind) IsScalar() bool {
	return k == Stream || k == Value
}

// Compatible reports if an endpoint of kind k can feed an endpoint of kind
// dst. Stream and value are interchangeable, events only connect to events.
func (k Kind) Compatible(dst Kind) bool {
	return k.IsScalar() == dst.IsScalar()
}

// EndpointDescriptor is static metadata of a node endpoint.
type EndpointDescriptor struct {
	Name      string
	Direction Direction
	Kind      Kind
}

func (d EndpointDescriptor) String() string {
	return fmt.Sprintf("%s %s %s", d.Kind, d.Direction, d.Name)
}

// StreamInput declares a stream input.
func StreamInput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Input, Kind: Stream}
}

// StreamOutput declares a stream output.
func StreamOutput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Output, Kind: Stream}
}

// ValueInput declares a value input.
func ValueInput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Input, Kind: Value}
}

// ValueOutput declares a value output.
func ValueOutput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Output, Kind: Value}
}

// EventInput declares an event input.
func EventInput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Input, Kind: Event}
}

// EventOutput declares an event output.
func EventOutput(name string) EndpointDescriptor {
	return EndpointDescriptor{Name: name, Direction: Output, Kind: Event}
}

// EventOutputs declares an array of n event outputs named name[i].
func EventOutputs(name string, n int) []EndpointDescriptor {
	d := make([]EndpointDescriptor, n)
	for i := range d {
		d[i] = EventOutput(ElementName(name, i))
	}
	return d
}

// ElementName returns name of i-th element of an array endpoint or node.
func ElementName(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}

// EndpointIndex returns index of i-th element of array endpoint name in
// descriptors list. It returns -1 if there is no such element.
func EndpointIndex(descriptors []EndpointDescriptor, name string, i int) int {
	return IndexOf(descriptors, ElementName(name, i))
}

// IndexOf returns index of endpoint name in descriptors list or -1.
func IndexOf(descriptors []EndpointDescriptor, name string) int {
	for i := range descriptors {
		if descriptors[i].Name == name {
			return i
		}
	}
	return -1
}

// Binding points to the storage of a node endpoint. Exactly one field is
// set: Scalar for stream and value endpoints, Events for event endpoints.
type Binding struct {
	Scalar *float32
	Events event.Events
}

// Scalar binds a stream or value endpoint.
func Scalar(v *float32) Binding {
	return Binding{Scalar: v}
}

// Events binds an event endpoint to a node queue.
func Events(q *event.Queue) Binding {
	return Binding{Events: q}
}

// EventArray binds every queue of an array event endpoint.
func EventArray(qs []event.Queue) []Binding {
	b := make([]Binding, len(qs))
	for i := range qs {
		b[i] = Events(&qs[i])
	}
	return b
}

func (b Binding) matches(k Kind) bool {
	if k == Event {
		return b.Events != nil && b.Scalar == nil
	}
	return b.Scalar != nil && b.Events == nil
}
