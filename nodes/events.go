package nodes

import (
	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
)

// Voices is number of outputs of VoiceAllocator.
const Voices = 4

var (
	passthroughEndpoints = []graph.EndpointDescriptor{
		graph.EventInput("input"),
		graph.EventOutput("output"),
	}
	gateEndpoints = []graph.EndpointDescriptor{
		graph.EventInput("input"),
		graph.StreamOutput("output"),
	}
	triggerEndpoints = []graph.EndpointDescriptor{
		graph.ValueInput("period"),
		graph.EventOutput("output"),
	}
	voiceAllocatorEndpoints = append(
		[]graph.EndpointDescriptor{graph.EventInput("input")},
		graph.EventOutputs("voice", Voices)...,
	)
)

// Passthrough forwards events unchanged.
type Passthrough struct {
	Input  event.Queue
	Output event.Queue
}

// NewPassthrough returns passthrough node.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Endpoints of the passthrough.
func (*Passthrough) Endpoints() []graph.EndpointDescriptor { return passthroughEndpoints }

// Bind the endpoint fields.
func (p *Passthrough) Bind() []graph.Binding {
	return []graph.Binding{graph.Events(&p.Input), graph.Events(&p.Output)}
}

// Process forwards pending events.
func (p *Passthrough) Process() {
	event.Copy(&p.Output, &p.Input)
}

// Gate turns note events into a level: note-on sets velocity, note-off sets
// zero, scalar events set their value.
type Gate struct {
	Input  event.Queue
	Output float32
}

// NewGate returns closed gate.
func NewGate() *Gate {
	return &Gate{}
}

// Endpoints of the gate.
func (*Gate) Endpoints() []graph.EndpointDescriptor { return gateEndpoints }

// Bind the endpoint fields.
func (g *Gate) Bind() []graph.Binding {
	return []graph.Binding{graph.Events(&g.Input), graph.Scalar(&g.Output)}
}

// Process applies pending events in order.
func (g *Gate) Process() {
	for i, n := 0, g.Input.Len(); i < n; i++ {
		p := g.Input.At(i).Payload
		switch p.Kind() {
		case event.KindNoteOn:
			_, velocity, _ := p.Note()
			g.Output = velocity
		case event.KindNoteOff:
			g.Output = 0
		case event.KindScalar:
			g.Output, _ = p.Scalar()
		}
	}
}

// Trigger emits a trigger event every period ticks, starting with the first.
type Trigger struct {
	Period float32
	Output event.Queue

	count int
}

// NewTrigger returns trigger of provided period in ticks.
func NewTrigger(period float32) *Trigger {
	return &Trigger{Period: period}
}

// Endpoints of the trigger.
func (*Trigger) Endpoints() []graph.EndpointDescriptor { return triggerEndpoints }

// Bind the endpoint fields.
func (t *Trigger) Bind() []graph.Binding {
	return []graph.Binding{graph.Scalar(&t.Period), graph.Events(&t.Output)}
}

// Init restarts the period.
func (t *Trigger) Init(float32) {
	t.count = 0
}

// Process counts ticks.
func (t *Trigger) Process() {
	if t.Period < 1 {
		return
	}
	if t.count == 0 {
		_ = t.Output.Push(event.At(0, event.Trigger()))
	}
	t.count++
	if t.count >= int(t.Period) {
		t.count = 0
	}
}

// VoiceAllocator spreads notes across its voice outputs round-robin. A
// note-off goes to the voice that plays its pitch.
type VoiceAllocator struct {
	Input event.Queue
	Voice [Voices]event.Queue

	pitches [Voices]float32
	active  [Voices]bool
	next    int
}

// NewVoiceAllocator returns allocator with all voices free.
func NewVoiceAllocator() *VoiceAllocator {
	return &VoiceAllocator{}
}

// Endpoints of the allocator.
func (*VoiceAllocator) Endpoints() []graph.EndpointDescriptor { return voiceAllocatorEndpoints }

// Bind the endpoint fields.
func (v *VoiceAllocator) Bind() []graph.Binding {
	return append([]graph.Binding{graph.Events(&v.Input)}, graph.EventArray(v.Voice[:])...)
}

// VoiceOutput returns i-th voice queue.
func (v *VoiceAllocator) VoiceOutput(i int) *event.Queue {
	return &v.Voice[i]
}

// Process routes pending notes.
func (v *VoiceAllocator) Process() {
	for i, n := 0, v.Input.Len(); i < n; i++ {
		e := v.Input.At(i)
		pitch, _, ok := e.Payload.Note()
		if !ok {
			continue
		}
		switch e.Payload.Kind() {
		case event.KindNoteOn:
			voice := v.next
			v.next = (v.next + 1) % Voices
			v.pitches[voice] = pitch
			v.active[voice] = true
			_ = v.Voice[voice].Push(e)
		case event.KindNoteOff:
			for voice := range v.pitches {
				if v.active[voice] && v.pitches[voice] == pitch {
					v.active[voice] = false
					_ = v.Voice[voice].Push(e)
					break
				}
			}
		}
	}
}
