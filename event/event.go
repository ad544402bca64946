// Package event carries discrete, timestamped control messages between graph
// endpoints. Queues have a fixed capacity, are ready to use as zero values and
// never allocate.
package event

import "errors"

const (
	// MaxStaticEventsPerEndpoint is the capacity of a node endpoint queue.
	MaxStaticEventsPerEndpoint = 32
	// MaxEvents is the capacity of a graph boundary queue.
	MaxEvents = 256
)

// ErrOverflow is returned when an event is pushed to a full queue. The
// event is rejected and the queue is left unchanged.
var ErrOverflow = errors.New("event queue overflow")

// Kind identifies the payload of an event.
type Kind uint8

// Payload kinds.
const (
	KindScalar Kind = iota
	KindNoteOn
	KindNoteOff
	KindTrigger
	KindObject
)

var kindNames = [...]string{
	KindScalar:  "scalar",
	KindNoteOn:  "note-on",
	KindNoteOff: "note-off",
	KindTrigger: "trigger",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Payload is an immutable event body.
type Payload struct {
	kind Kind
	a, b float32
	obj  interface{}
}

// Scalar returns a payload carrying a single value.
func Scalar(v float32) Payload {
	return Payload{kind: KindScalar, a: v}
}

// NoteOn returns a note-on payload.
func NoteOn(pitch, velocity float32) Payload {
	return Payload{kind: KindNoteOn, a: pitch, b: velocity}
}

// NoteOff returns a note-off payload.
func NoteOff(pitch float32) Payload {
	return Payload{kind: KindNoteOff, a: pitch}
}

// Trigger returns a payload without parameters.
func Trigger() Payload {
	return Payload{kind: KindTrigger}
}

// Object returns a payload carrying an arbitrary value. Copying the payload
// copies only the reference.
func Object(v interface{}) Payload {
	return Payload{kind: KindObject, obj: v}
}

// Kind returns payload kind.
func (p Payload) Kind() Kind {
	return p.kind
}

// Scalar returns the value of a scalar payload.
func (p Payload) Scalar() (float32, bool) {
	return p.a, p.kind == KindScalar
}

// Note returns pitch and velocity of a note payload. Velocity of note-off is
// always zero.
func (p Payload) Note() (pitch, velocity float32, ok bool) {
	if p.kind != KindNoteOn && p.kind != KindNoteOff {
		return 0, 0, false
	}
	return p.a, p.b, true
}

// Object returns the value of an object payload.
func (p Payload) Object() (interface{}, bool) {
	return p.obj, p.kind == KindObject
}

// Instance is an event attached to a frame offset within the current tick.
type Instance struct {
	Offset  uint32
	Payload Payload
}

// At returns an instance of payload at offset.
func At(offset uint32, p Payload) Instance {
	return Instance{Offset: offset, Payload: p}
}

// Events is the common behaviour of node and boundary queues.
type Events interface {
	Push(Instance) error
	Len() int
	At(i int) Instance
	Clear()
}

// Queue holds pending events of a node endpoint.
type Queue struct {
	events  [MaxStaticEventsPerEndpoint]Instance
	n       int
	dropped uint64
}

// Push appends e to the queue. It returns ErrOverflow when the queue is full.
func (q *Queue) Push(e Instance) error {
	if q.n == len(q.events) {
		q.dropped++
		return ErrOverflow
	}
	q.events[q.n] = e
	q.n++
	return nil
}

// Len returns number of pending events.
func (q *Queue) Len() int {
	return q.n
}

// At returns i-th pending event.
func (q *Queue) At(i int) Instance {
	return q.events[:q.n][i]
}

// Clear drops all pending events.
func (q *Queue) Clear() {
	for i := 0; i < q.n; i++ {
		q.events[i] = Instance{}
	}
	q.n = 0
}

// Drain calls fn for every pending event in push order and clears the queue.
func (q *Queue) Drain(fn func(Instance)) {
	for i := 0; i < q.n; i++ {
		fn(q.events[i])
	}
	q.Clear()
}

// Dropped returns number of events rejected since the queue was created.
func (q *Queue) Dropped() uint64 {
	return q.dropped
}

// Bus holds pending events of a graph boundary endpoint.
type Bus struct {
	events  [MaxEvents]Instance
	n       int
	dropped uint64
}

// Push appends e to the bus. It returns ErrOverflow when the bus is full.
func (b *Bus) Push(e Instance) error {
	if b.n == len(b.events) {
		b.dropped++
		return ErrOverflow
	}
	b.events[b.n] = e
	b.n++
	return nil
}

// Len returns number of pending events.
func (b *Bus) Len() int {
	return b.n
}

// At returns i-th pending event.
func (b *Bus) At(i int) Instance {
	return b.events[:b.n][i]
}

// Clear drops all pending events.
func (b *Bus) Clear() {
	for i := 0; i < b.n; i++ {
		b.events[i] = Instance{}
	}
	b.n = 0
}

// Drain calls fn for every pending event in push order and clears the bus.
func (b *Bus) Drain(fn func(Instance)) {
	for i := 0; i < b.n; i++ {
		fn(b.events[i])
	}
	b.Clear()
}

// Dropped returns number of events rejected since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped
}

// Dropped returns number of events rejected by e, or zero if e does not
// count them.
func Dropped(e Events) uint64 {
	if d, ok := e.(interface{ Dropped() uint64 }); ok {
		return d.Dropped()
	}
	return 0
}

// Copy pushes every pending event of src to dst in order. Events that do not
// fit are rejected by dst. It returns number of rejected events.
func Copy(dst, src Events) int {
	rejected := 0
	for i, n := 0, src.Len(); i < n; i++ {
		if dst.Push(src.At(i)) != nil {
			rejected++
		}
	}
	return rejected
}
