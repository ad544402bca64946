package description_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"pipelined.dev/graph/description"
	"pipelined.dev/graph/param"
)

const voiceYAML = `
name: voice
mode: static
sample_rate: 48000
inputs:
  - {name: level, kind: value, default: 0.5, range: [0, 1], ramp: 64}
  - {name: cutoff, kind: value, default: 3000, range: [20, 20000], curve: log}
  - {name: gate, kind: event}
outputs:
  - {name: out, kind: stream}
nodes:
  - {name: osc, type: constant, args: [1.5]}
  - {name: voices, type: gain, count: 4, args: [0.5]}
connections:
  - osc.output -> voices.input
  - voices.output * level -> out
`

func TestParse(t *testing.T) {
	d, err := description.Parse([]byte(voiceYAML))
	require.NoError(t, err)
	require.NoError(t, description.Validate(d))

	assert.Equal(t, "voice", d.Name)
	assert.Equal(t, description.Static, d.CompileMode())
	assert.Equal(t, float32(48000), d.SampleRate)
	require.Len(t, d.Inputs, 3)
	require.NotNil(t, d.Inputs[0].Default)
	assert.Equal(t, float32(0.5), *d.Inputs[0].Default)

	spec, err := d.Inputs[1].Spec()
	require.NoError(t, err)
	assert.Equal(t, param.Spec{Min: 20, Max: 20000, Bounded: true, Curve: param.Logarithmic}, spec)

	assert.Equal(t, 4, d.Nodes[1].Count)
	assert.Equal(t, []description.Connection{
		description.Connect("osc.output", "voices.input"),
		description.Connect("voices.output * level", "out"),
	}, d.Connections)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(voiceYAML), 0o644))
	d, err := description.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "voice", d.Name)

	_, err = description.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseBadConnection(t *testing.T) {
	_, err := description.Parse([]byte("name: x\nconnections:\n  - osc.output\n"))
	assert.ErrorIs(t, err, description.ErrSyntax)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		description string
		d           description.Description
		errors      int
	}{
		{
			description: "valid",
			d: description.Description{
				Name:    "ok",
				Outputs: []description.Output{{Name: "out", Kind: "stream"}},
			},
		},
		{
			description: "missing name and bad kind",
			d: description.Description{
				Outputs: []description.Output{{Name: "out", Kind: "audio"}},
			},
			errors: 2,
		},
		{
			description: "duplicate names ignore case",
			d: description.Description{
				Name:    "dup",
				Inputs:  []description.Input{{Name: "level", Kind: "value"}},
				Outputs: []description.Output{{Name: "Level", Kind: "stream"}},
			},
			errors: 1,
		},
		{
			description: "reserved name",
			d: description.Description{
				Name:    "reserved",
				Outputs: []description.Output{{Name: "output", Kind: "stream"}},
			},
			errors: 1,
		},
		{
			description: "invalid identifier",
			d: description.Description{
				Name:  "bad",
				Nodes: []description.Node{{Name: "my_node", Type: "gain"}},
			},
			errors: 1,
		},
		{
			description: "event input with range",
			d: description.Description{
				Name:   "events",
				Inputs: []description.Input{{Name: "gate", Kind: "event", Range: []float32{0, 1}}},
			},
			errors: 1,
		},
		{
			description: "inverted range",
			d: description.Description{
				Name:   "ranges",
				Inputs: []description.Input{{Name: "cutoff", Kind: "value", Range: []float32{10, 1}}},
			},
			errors: 1,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			err := description.Validate(&test.d)
			if test.errors == 0 {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, description.ErrInvalid)
			assert.Len(t, multierr.Errors(err), test.errors)
		})
	}
}

func TestReserved(t *testing.T) {
	for _, name := range []string{"output", "Handoff", "SETINPUT", "func", "range"} {
		assert.True(t, description.Reserved(name), name)
	}
	for _, name := range []string{"out", "level", "handoffs"} {
		assert.False(t, description.Reserved(name), name)
	}

	err := description.Validate(&description.Description{
		Name:   "reserved",
		Inputs: []description.Input{{Name: "SampleRate", Kind: "value"}},
		Nodes:  []description.Node{{Name: "type", Type: "gain"}},
	})
	assert.ErrorIs(t, err, description.ErrReservedName)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
		terms    int
	}{
		{expr: "osc.output", expected: "osc.output", terms: 1},
		{expr: "a.output*b.output + 0.5", expected: "a.output * b.output + 0.5", terms: 2},
		{expr: "voices[2].output * level", expected: "voices[2].output * level", terms: 1},
		{expr: "alloc.voice[3]", expected: "alloc.voice[3]", terms: 1},
		{expr: "-1.5e-3 * x", expected: "-0.0015 * x", terms: 1},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			e, err := description.ParseExpr(test.expr)
			require.NoError(t, err)
			assert.Equal(t, test.expected, e.String())
			assert.Len(t, e.Terms, test.terms)
		})
	}

	for _, bad := range []string{"", "a +", "a..b", "a[x]", "3 ** a", "a.b c"} {
		_, err := description.ParseExpr(bad)
		assert.ErrorIs(t, err, description.ErrSyntax, bad)
	}
}

func TestParseRef(t *testing.T) {
	r, err := description.ParseRef("voices[1].gain")
	require.NoError(t, err)
	assert.Equal(t, description.Ref{Name: "voices", Index: 1, Endpoint: "gain", EndpointIndex: description.NoIndex}, r)
	assert.Equal(t, "voices[1]", r.NodeName())
	assert.False(t, r.IsBoundary())

	r, err = description.ParseRef("out")
	require.NoError(t, err)
	assert.True(t, r.IsBoundary())

	single, ok := mustExpr(t, "osc.output").Single()
	assert.True(t, ok)
	assert.Equal(t, "osc", single.Name)
	_, ok = mustExpr(t, "osc.output + 1").Single()
	assert.False(t, ok)
}

func mustExpr(t *testing.T, s string) description.Expr {
	t.Helper()
	e, err := description.ParseExpr(s)
	require.NoError(t, err)
	return e
}
