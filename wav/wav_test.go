package wav_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph"
	"pipelined.dev/graph/nodes"
	"pipelined.dev/graph/run"
	wavsink "pipelined.dev/graph/wav"
)

func stereo(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(graph.WithSampleRate(8000))
	_, err := g.AddNode("c", nodes.NewConstant(0.5))
	require.NoError(t, err)
	_, err = g.AddNode("loud", nodes.NewGain(4))
	require.NoError(t, err)
	_, err = g.AddOutput("left", graph.Stream)
	require.NoError(t, err)
	_, err = g.AddOutput("right", graph.Stream)
	require.NoError(t, err)
	require.NoError(t, g.ConnectPaths("c.output", "left"))
	require.NoError(t, g.ConnectPaths("c.output", "loud.input"))
	require.NoError(t, g.ConnectPaths("loud.output", "right"))
	require.NoError(t, g.Validate())
	return g
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		outputs  []string
		channels int
		expected []float32
	}{
		{
			name:     "mono",
			channels: 1,
			expected: []float32{0.5},
		},
		{
			name:     "stereo clipped",
			outputs:  []string{"left", "right"},
			channels: 2,
			expected: []float32{0.5, 1},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.wav")
			err := wavsink.Render(context.Background(), stereo(t), path, 0.1, test.outputs...)
			require.NoError(t, err)

			samples, format, err := wavsink.Load(path)
			require.NoError(t, err)
			assert.Equal(t, test.channels, format.NumChannels)
			assert.Equal(t, 8000, format.SampleRate)
			assert.Len(t, samples, 800*test.channels)
			for i, v := range test.expected {
				assert.InDelta(t, v, samples[i], 1e-3)
			}

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			d := wav.NewDecoder(f)
			require.True(t, d.IsValidFile())
			assert.Equal(t, uint16(16), d.BitDepth)
		})
	}
}

func TestRenderInvalidDuration(t *testing.T) {
	for _, seconds := range []float64{0, -1, 0.0001, math.NaN()} {
		path := filepath.Join(t.TempDir(), "out.wav")
		err := wavsink.Render(context.Background(), stereo(t), path, seconds)
		assert.ErrorIs(t, err, wavsink.ErrInvalidDuration, "%v seconds", seconds)
		assert.NoFileExists(t, path)
	}
}

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	_, err := wavsink.Create(path, 8000, 1, 24)
	assert.ErrorIs(t, err, wavsink.ErrUnsupportedBitDepth)

	s, err := wavsink.Create(path, 8000, 2, wavsink.BitDepth32)
	require.NoError(t, err)
	err = s.Write(&run.Block{Data: make([]float32, 4), Frames: 4, Channels: 1})
	assert.Error(t, err)

	require.NoError(t, s.Write(&run.Block{Data: []float32{-2, 0.25}, Frames: 1, Channels: 2}))
	require.NoError(t, s.Flush())

	samples, _, err := wavsink.Load(path)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.InDelta(t, -1, samples[0], 1e-6)
	assert.InDelta(t, 0.25, samples[1], 1e-6)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all"), 0o600))
	_, _, err := wavsink.Load(path)
	assert.ErrorIs(t, err, wavsink.ErrInvalidFile)
}
