package run_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/graph"
	"pipelined.dev/graph/event"
	"pipelined.dev/graph/metric"
	"pipelined.dev/graph/mock"
	"pipelined.dev/graph/nodes"
	"pipelined.dev/graph/run"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func constant(t *testing.T, v float32) *graph.Graph {
	t.Helper()
	g := graph.New(graph.WithSampleRate(8000))
	_, err := g.AddNode("c", nodes.NewConstant(v))
	require.NoError(t, err)
	_, err = g.AddOutput("out", graph.Stream)
	require.NoError(t, err)
	_, err = g.AddOutput("half", graph.Value)
	require.NoError(t, err)
	_, err = g.AddNode("g", nodes.NewGain(0.5))
	require.NoError(t, err)
	require.NoError(t, g.ConnectPaths("c.output", "out"))
	require.NoError(t, g.ConnectPaths("c.output", "g.input"))
	require.NoError(t, g.ConnectPaths("g.output", "half"))
	require.NoError(t, g.Validate())
	return g
}

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		opts      []run.Option
		blocks    int
		frames    int
		samples   int
		firstPair []float32
	}{
		{
			name:      "whole blocks",
			opts:      []run.Option{run.WithBlockSize(64), run.WithLimit(192)},
			blocks:    3,
			frames:    192,
			samples:   192,
			firstPair: []float32{1, 1},
		},
		{
			name:      "partial last block",
			opts:      []run.Option{run.WithBlockSize(64), run.WithLimit(100)},
			blocks:    2,
			frames:    100,
			samples:   100,
			firstPair: []float32{1, 1},
		},
		{
			name:      "outputs as channels",
			opts:      []run.Option{run.WithBlockSize(10), run.WithLimit(20), run.WithOutputs("out", "half")},
			blocks:    2,
			frames:    20,
			samples:   40,
			firstPair: []float32{1, 0.5},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var s mock.Sink
			err := run.Render(context.Background(), constant(t, 1), &s, test.opts...)
			require.NoError(t, err)
			blocks, frames := s.Count()
			assert.Equal(t, test.blocks, blocks)
			assert.Equal(t, test.frames, frames)
			assert.Len(t, s.Samples(), test.samples)
			assert.Equal(t, test.firstPair, s.Samples()[:2])
			assert.True(t, s.Flushed)
		})
	}
}

func TestCancel(t *testing.T) {
	var (
		once    sync.Once
		started = make(chan struct{})
	)
	s := run.SinkFunc(func(*run.Block) error {
		once.Do(func() { close(started) })
		return nil
	})
	r := run.New(context.Background(), constant(t, 1), s, run.WithBlockSize(16))
	<-started
	r.Cancel()
	assert.ErrorIs(t, r.Wait(), context.Canceled)
	assert.Positive(t, r.Frames())
}

func TestContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := mock.Sink{Discard: true}
	err := run.Render(ctx, constant(t, 1), &s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Flushed)
}

func TestSinkError(t *testing.T) {
	errSink := errors.New("sink failed")
	s := mock.Sink{ErrorOnCall: errSink}
	err := run.Render(context.Background(), constant(t, 1), &s, run.WithBlockSize(8))
	assert.ErrorIs(t, err, errSink)
	assert.False(t, s.Flushed)
}

type meteredGraph struct {
	*graph.Graph
}

func TestMetrics(t *testing.T) {
	g := meteredGraph{constant(t, 1)}
	_, err := g.AddInput("notes", graph.Event)
	require.NoError(t, err)
	_, err = g.AddNode("p", nodes.NewPassthrough())
	require.NoError(t, err)
	require.NoError(t, g.ConnectPaths("notes", "p.input"))
	require.NoError(t, g.Validate())
	// the node queue takes only a part of the first tick events
	for i := 0; i < event.MaxStaticEventsPerEndpoint+8; i++ {
		require.NoError(t, g.PushEvent("notes", event.At(0, event.Trigger())))
	}

	err = run.Render(context.Background(), g, run.SinkFunc(func(*run.Block) error { return nil }),
		run.WithBlockSize(80),
		run.WithLimit(800),
	)
	require.NoError(t, err)
	m := metric.Get(g)
	assert.Equal(t, "1", m[metric.GraphCounter])
	assert.Equal(t, "10", m[metric.BlockCounter])
	assert.Equal(t, "800", m[metric.TickCounter])
	assert.Equal(t, "8", m[metric.DroppedCounter])
	assert.Equal(t, `"100ms"`, m[metric.SignalTimeCounter])
	assert.Contains(t, m, metric.LoadCounter)
}

func TestRepeat(t *testing.T) {
	var (
		first  mock.Sink
		second = mock.Sink{ErrorOnFlush: errors.New("flush failed")}
	)
	err := run.Render(context.Background(), constant(t, 1), run.Repeat(&first, &second),
		run.WithBlockSize(32),
		run.WithLimit(64),
	)
	assert.ErrorIs(t, err, second.ErrorOnFlush)
	assert.Equal(t, first.Samples(), second.Samples())
	blocks, frames := second.Count()
	assert.Equal(t, 2, blocks)
	assert.Equal(t, 64, frames)
	assert.True(t, first.Flushed)
	assert.True(t, second.Flushed)
}
