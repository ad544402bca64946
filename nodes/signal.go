// Package nodes provides a reference set of graph nodes: signal sources,
// a delay, event routing and voice allocation.
package nodes

import (
	"math"

	"pipelined.dev/graph"
)

var (
	constantEndpoints = []graph.EndpointDescriptor{
		graph.ValueInput("value"),
		graph.StreamOutput("output"),
	}
	gainEndpoints = []graph.EndpointDescriptor{
		graph.StreamInput("input"),
		graph.ValueInput("gain"),
		graph.StreamOutput("output"),
	}
	oscillatorEndpoints = []graph.EndpointDescriptor{
		graph.ValueInput("frequency"),
		graph.ValueInput("amplitude"),
		graph.StreamOutput("output"),
	}
	delayEndpoints = []graph.EndpointDescriptor{
		graph.StreamInput("input"),
		graph.StreamOutput("output"),
	}
)

// Constant outputs its value on every tick.
type Constant struct {
	Value  float32
	Output float32
}

// NewConstant returns constant of value v.
func NewConstant(v float32) *Constant {
	return &Constant{Value: v}
}

// Endpoints of the constant.
func (*Constant) Endpoints() []graph.EndpointDescriptor { return constantEndpoints }

// Bind the endpoint fields.
func (c *Constant) Bind() []graph.Binding {
	return []graph.Binding{graph.Scalar(&c.Value), graph.Scalar(&c.Output)}
}

// Process copies value to output.
func (c *Constant) Process() {
	c.Output = c.Value
}

// Gain multiplies input by gain.
type Gain struct {
	Input  float32
	Gain   float32
	Output float32
}

// NewGain returns gain node.
func NewGain(gain float32) *Gain {
	return &Gain{Gain: gain}
}

// Endpoints of the gain.
func (*Gain) Endpoints() []graph.EndpointDescriptor { return gainEndpoints }

// Bind the endpoint fields.
func (g *Gain) Bind() []graph.Binding {
	return []graph.Binding{graph.Scalar(&g.Input), graph.Scalar(&g.Gain), graph.Scalar(&g.Output)}
}

// Process applies gain.
func (g *Gain) Process() {
	g.Output = g.Input * g.Gain
}

// Oscillator produces a sine wave.
type Oscillator struct {
	Frequency float32
	Amplitude float32
	Output    float32

	sampleRate float32
	phase      float64
}

// NewOscillator returns sine oscillator.
func NewOscillator(frequency, amplitude float32) *Oscillator {
	return &Oscillator{Frequency: frequency, Amplitude: amplitude}
}

// Endpoints of the oscillator.
func (*Oscillator) Endpoints() []graph.EndpointDescriptor { return oscillatorEndpoints }

// Bind the endpoint fields.
func (o *Oscillator) Bind() []graph.Binding {
	return []graph.Binding{graph.Scalar(&o.Frequency), graph.Scalar(&o.Amplitude), graph.Scalar(&o.Output)}
}

// Init resets phase.
func (o *Oscillator) Init(sampleRate float32) {
	o.sampleRate = sampleRate
	o.phase = 0
}

// Process outputs current phase and advances it.
func (o *Oscillator) Process() {
	o.Output = o.Amplitude * float32(math.Sin(2*math.Pi*o.phase))
	if o.sampleRate > 0 {
		o.phase += float64(o.Frequency) / float64(o.sampleRate)
		o.phase -= math.Floor(o.phase)
	}
}

// Delay outputs its input of the previous tick. It allows feedback.
type Delay struct {
	Input  float32
	Output float32

	last float32
}

// NewDelay returns one sample delay.
func NewDelay() *Delay {
	return &Delay{}
}

// Endpoints of the delay.
func (*Delay) Endpoints() []graph.EndpointDescriptor { return delayEndpoints }

// Bind the endpoint fields.
func (d *Delay) Bind() []graph.Binding {
	return []graph.Binding{graph.Scalar(&d.Input), graph.Scalar(&d.Output)}
}

// AllowsFeedback returns true.
func (*Delay) AllowsFeedback() bool { return true }

// Process shifts the delay line.
func (d *Delay) Process() {
	d.Output = d.last
	d.last = d.Input
}
