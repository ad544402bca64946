package metric_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/graph/metric"
)

type graphA struct{}

type graphB struct{}

// droppingGraph rejects one event per tick.
type droppingGraph struct {
	dropped uint64
}

func (g *droppingGraph) Dropped() uint64 {
	return g.dropped
}

func TestMeter(t *testing.T) {
	var sampleRate float32 = 44100
	// second meter of the same kind accumulates into the same counters
	tests := []struct {
		graph          interface{}
		routines       int
		blocks         int
		blockSize      int
		expectedTicks  string
		expectedGraphs string
		expectedBlocks string
	}{
		{
			graph:          graphA{},
			routines:       2,
			blocks:         10,
			blockSize:      100,
			expectedTicks:  "2000",
			expectedGraphs: "2",
			expectedBlocks: "20",
		},
		{
			graph:          &graphA{},
			routines:       2,
			blocks:         10,
			blockSize:      100,
			expectedTicks:  "4000",
			expectedGraphs: "4",
			expectedBlocks: "40",
		},
		{
			graph:          &graphB{},
			routines:       1,
			blocks:         3,
			blockSize:      512,
			expectedTicks:  "1536",
			expectedGraphs: "1",
			expectedBlocks: "3",
		},
	}
	measure := func(m *metric.Meter, wg *sync.WaitGroup, blocks, blockSize int) {
		defer wg.Done()
		for i := 0; i < blocks; i++ {
			m.Begin()
			m.End(blockSize)
		}
	}

	for _, test := range tests {
		var wg sync.WaitGroup
		wg.Add(test.routines)
		for i := 0; i < test.routines; i++ {
			go measure(metric.New(test.graph, sampleRate), &wg, test.blocks, test.blockSize)
		}
		wg.Wait()
		values := metric.Get(test.graph)
		assert.Equal(t, test.expectedTicks, values[metric.TickCounter])
		assert.Equal(t, test.expectedGraphs, values[metric.GraphCounter])
		assert.Equal(t, test.expectedBlocks, values[metric.BlockCounter])
	}
	assert.Contains(t, metric.GetAll(), "metric_test.graphB")
}

func TestOverruns(t *testing.T) {
	type slowGraph struct{}
	m := metric.New(slowGraph{}, 44100)
	m.Begin()
	m.End(44100)
	m.Begin()
	time.Sleep(2 * time.Millisecond)
	m.End(1)

	values := metric.Get(slowGraph{})
	assert.Equal(t, "1", values[metric.OverrunCounter])
	assert.Equal(t, `"1.000022675s"`, values[metric.SignalTimeCounter])
	slowest, err := time.ParseDuration(strings.Trim(values[metric.MaxBlockTimeCounter], `"`))
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, slowest, 2*time.Millisecond)
	assert.NotEqual(t, "0", values[metric.LoadCounter])
}

func TestDropped(t *testing.T) {
	g := droppingGraph{dropped: 5}
	m := metric.New(&g, 8000)
	for i := 0; i < 3; i++ {
		m.Begin()
		g.dropped++
		m.End(64)
	}
	// drops before the meter was created are not counted
	assert.Equal(t, "3", metric.Get(&g)[metric.DroppedCounter])
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, metric.DurationOf(44100, 44100))
	assert.Equal(t, 10*time.Millisecond, metric.DurationOf(48000, 480))
	assert.Equal(t, time.Duration(0), metric.DurationOf(0, 480))
}
