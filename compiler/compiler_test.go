package compiler_test

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"pipelined.dev/graph"
	"pipelined.dev/graph/compiler"
	"pipelined.dev/graph/description"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/nodes"
)

func parse(t *testing.T, yaml string) *description.Description {
	t.Helper()
	d, err := description.Parse([]byte(yaml))
	require.NoError(t, err)
	return d
}

const scaled = `
name: scaled
inputs:
  - {name: level, kind: value, default: 0.5, range: [0, 1]}
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: osc, type: constant, args: [2]}
connections:
  - osc.output * level -> out
`

func TestCompileDynamic(t *testing.T) {
	a, err := compiler.Compile(parse(t, scaled), nodes.Registry())
	require.NoError(t, err)
	require.NotNil(t, a.Graph)
	assert.Nil(t, a.Source)

	for i := 0; i < 3; i++ {
		assert.Equal(t, float32(1), a.Graph.ProcessSample())
	}
	require.NoError(t, a.Graph.SetInput("level", 2))
	assert.Equal(t, float32(2), a.Graph.ProcessSample(), "level is clamped to its range")
}

const array = `
name: array
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: osc, type: constant, args: [2]}
  - {name: voices, type: gain, count: 4, args: [0.5]}
connections:
  - osc.output -> voices.input
  - voices.output -> out
`

func TestArrayInstances(t *testing.T) {
	p, err := compiler.Analyze(parse(t, array), nodes.Registry())
	require.NoError(t, err)
	require.Len(t, p.Instances, 5)
	assert.Equal(t, "voices[3]", p.Instances[4].Name)
	// broadcast to four inputs and one sum of four terms
	require.Len(t, p.Wires, 5)
	assert.Len(t, p.Wires[4].Terms, 4)

	g, err := compiler.BuildDynamic(p)
	require.NoError(t, err)
	assert.Equal(t, float32(4), g.ProcessSample())

	require.NoError(t, g.SetInput("voices[1].gain", 2))
	assert.Equal(t, float32(7), g.ProcessSample())
	assert.Equal(t, float32(4), g.Output("voices[1].output"))
	assert.Equal(t, float32(1), g.Output("voices[2].output"))
}

func TestLiteralCoefficient(t *testing.T) {
	d := parse(t, `
name: literal
outputs:
  - {name: out, kind: stream}
  - {name: bias, kind: value}
nodes:
  - {name: a, type: constant, args: [3]}
  - {name: b, type: constant, args: [4]}
connections:
  - 0.5 * a.output * b.output + 2 * a.output -> out
  - 0.25 -> bias
`)
	p, err := compiler.Analyze(d, nodes.Registry())
	require.NoError(t, err)
	require.Len(t, p.Wires, 2)
	assert.Equal(t, float32(0.5), p.Wires[0].Terms[0].Coefficient)
	assert.Len(t, p.Wires[0].Terms[0].Factors, 2)
	assert.Empty(t, p.Wires[1].Terms[0].Factors)

	g, err := compiler.BuildDynamic(p)
	require.NoError(t, err)
	assert.Equal(t, float32(12), g.ProcessSample())
	assert.Equal(t, float32(0.25), g.Output("bias"))
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		description string
		connections string
		errs        []error
	}{
		{
			description: "kind mismatch",
			connections: "  - gate -> out\n",
			errs:        []error{graph.ErrKindMismatch},
		},
		{
			description: "direction",
			connections: "  - out -> osc.value\n  - osc.value -> out\n",
			errs:        []error{graph.ErrDirection, graph.ErrDirection},
		},
		{
			description: "dangling",
			connections: "  - nope.output -> out\n  - osc.nope -> out\n  - osc.output -> nope\n",
			errs:        []error{graph.ErrDanglingEndpoint, graph.ErrDanglingEndpoint, graph.ErrDanglingEndpoint},
		},
		{
			description: "input connected twice",
			connections: "  - osc.output -> out\n  - osc.output -> out\n",
			errs:        []error{graph.ErrInputConnected},
		},
		{
			description: "events cannot be combined",
			connections: "  - gate * 2 -> events\n",
			errs:        []error{graph.ErrKindMismatch},
		},
		{
			description: "index of single node",
			connections: "  - osc[1].output -> out\n",
			errs:        []error{graph.ErrDanglingEndpoint},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			d := parse(t, `
name: bad
inputs:
  - {name: gate, kind: event}
outputs:
  - {name: out, kind: stream}
  - {name: events, kind: event}
nodes:
  - {name: osc, type: constant}
connections:
`+test.connections)
			_, err := compiler.Analyze(d, nodes.Registry())
			require.Error(t, err)
			errs := multierr.Errors(err)
			require.Len(t, errs, len(test.errs))
			for i, expected := range test.errs {
				var diag *compiler.Diagnostic
				assert.ErrorAs(t, errs[i], &diag)
				assert.ErrorIs(t, errs[i], expected)
			}
		})
	}
}

func TestUnknownType(t *testing.T) {
	d := parse(t, `
name: unknown
nodes:
  - {name: a, type: reverb}
  - {name: b, type: gain, args: [1, 2]}
`)
	_, err := compiler.Analyze(d, nodes.Registry())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], compiler.ErrUnknownType)
	assert.ErrorIs(t, errs[1], compiler.ErrArity)
}

const cycle = `
name: cycle
mode: static
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: a, type: gain}
  - {name: b, type: gain}
connections:
  - a.output -> b.input
  - b.output -> a.input
  - b.output -> out
`

func TestCycle(t *testing.T) {
	d := parse(t, cycle)
	a, err := compiler.Compile(d, nodes.Registry())
	assert.ErrorIs(t, err, graph.ErrCycle)
	assert.Nil(t, a)

	p, err := compiler.Analyze(d, nodes.Registry())
	require.NoError(t, err)
	g, err := compiler.BuildDynamic(p)
	assert.ErrorIs(t, err, graph.ErrCycle)
	assert.Nil(t, g)

	var topo *graph.TopologyError
	require.ErrorAs(t, err, &topo)
	assert.Equal(t, []string{"a", "b", "a"}, topo.Cycle)
}

func TestFeedbackThroughDelay(t *testing.T) {
	d := parse(t, `
name: feedback
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: one, type: constant, args: [1]}
  - {name: z, type: delay}
connections:
  - one.output + z.output -> z.input
  - z.output -> out
`)
	a, err := compiler.Compile(d, nodes.Registry())
	require.NoError(t, err)
	// the loop takes two ticks: one in the delay line, one on the delayed edge
	for _, expected := range []float32{0, 0, 1, 1, 2, 2} {
		assert.Equal(t, expected, a.Graph.ProcessSample())
	}
}

func TestEventsThroughAllocator(t *testing.T) {
	d := parse(t, `
name: poly
inputs:
  - {name: notes, kind: event}
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: alloc, type: allocator}
  - {name: gates, type: gate, count: 4}
connections:
  - notes -> alloc.input
  - alloc.voice[0] -> gates[0].input
  - alloc.voice[1] -> gates[1].input
  - gates.output -> out
`)
	a, err := compiler.Compile(d, nodes.Registry())
	require.NoError(t, err)
	g := a.Graph

	require.NoError(t, g.PushEvent("notes", event.At(0, event.NoteOn(60, 0.25))))
	require.NoError(t, g.PushEvent("notes", event.At(0, event.NoteOn(64, 0.5))))
	assert.Equal(t, float32(0.75), g.ProcessSample())

	require.NoError(t, g.PushEvent("notes", event.At(0, event.NoteOff(60))))
	assert.Equal(t, float32(0.5), g.ProcessSample())
}

func TestGenerateStatic(t *testing.T) {
	d := parse(t, `
name: voice
package: synth
mode: static
sample_rate: 48000
inputs:
  - {name: level, kind: value, default: 0.5, range: [0, 1], ramp: 16}
  - {name: notes, kind: event}
outputs:
  - {name: out, kind: stream}
  - {name: events, kind: event}
nodes:
  - {name: osc, type: oscillator, args: [220]}
  - {name: voices, type: gain, count: 2}
  - {name: thru, type: passthrough}
connections:
  - osc.output -> voices.input
  - voices.output * level -> out
  - notes -> thru.input
  - thru.output -> events
`)
	a, err := compiler.Compile(d, nodes.Registry())
	require.NoError(t, err)
	require.NotEmpty(t, a.Source)
	assert.Nil(t, a.Graph)

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "voice_gen.go", a.Source, parser.ParseComments)
	require.NoError(t, err)
	assert.Equal(t, "synth", f.Name.Name)

	src := string(a.Source)
	for _, expected := range []string{
		"// Code generated by graphgen. DO NOT EDIT.",
		"type Voice struct {",
		"func NewVoice(sampleRate float32) *Voice {",
		"sampleRate = 48000",
		"[2]nodes.Gain",
		"g.osc = *nodes.NewOscillator(220, 1)",
		"g.levelIn_.Spec = param.Spec{Min: 0, Max: 1, Bounded: true, Curve: param.Linear, Ramp: 16}",
		"g.voices[1].Input = g.osc.Output",
		"g.tmp0_ = float32(g.voices[0].Output*g.Level) + float32(g.voices[1].Output*g.Level)",
		"event.Copy(&g.thru.Input, &g.Notes)",
		"event.Copy(&g.Events, &g.thru.Output)",
		"g.Out = g.tmp0_",
		`"pipelined.dev/graph/nodes"`,
		"g.osc.Init(sampleRate)",
	} {
		assert.Contains(t, src, expected)
	}
}

type hidden struct {
	out float32
}

var hiddenEndpoints = []graph.EndpointDescriptor{graph.StreamOutput("output")}

func (*hidden) Endpoints() []graph.EndpointDescriptor { return hiddenEndpoints }

func (h *hidden) Bind() []graph.Binding { return []graph.Binding{graph.Scalar(&h.out)} }

func (*hidden) Process() {}

func TestGenerateUnexportedField(t *testing.T) {
	r := compiler.NewRegistry()
	require.NoError(t, r.Register(compiler.NodeType{
		Name:        "hidden",
		New:         func([]float32) graph.Node { return &hidden{} },
		Constructor: "newHidden",
	}))
	p, err := compiler.Analyze(parse(t, `
name: hidden
mode: static
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: h, type: hidden}
connections:
  - h.output -> out
`), r)
	require.NoError(t, err)
	_, err = compiler.GenerateStatic(p)
	assert.ErrorIs(t, err, compiler.ErrUnsupportedNode)
}

func TestReservedName(t *testing.T) {
	_, err := compiler.Analyze(parse(t, `
name: reserved
outputs:
  - {name: output, kind: stream}
nodes:
  - {name: c, type: constant, args: [1]}
connections:
  - c.output -> output
`), nodes.Registry())
	assert.ErrorIs(t, err, compiler.ErrReservedName)
	assert.ErrorIs(t, err, description.ErrInvalid)
}

func TestRegistry(t *testing.T) {
	r := compiler.NewRegistry()
	gain := compiler.NodeType{Name: "gain", Defaults: []float32{1}, New: func(a []float32) graph.Node { return nodes.NewGain(a[0]) }}
	require.NoError(t, r.Register(gain))
	assert.ErrorIs(t, r.Register(gain), compiler.ErrDuplicateType)
	assert.ErrorIs(t, r.Register(compiler.NodeType{Name: "empty"}), compiler.ErrUnknownType)
	assert.Equal(t, []string{"gain"}, r.Names())

	args, err := gain.Args(nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, args)
	_, err = gain.Args([]float32{1, 2})
	assert.ErrorIs(t, err, compiler.ErrArity)
}
