package mutable_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/graph/mutable"
)

func TestSlot(t *testing.T) {
	var s mutable.Slot
	_, ok := s.Take()
	assert.False(t, ok)

	s.Store(1)
	s.Store(2)
	v, ok := s.Take()
	assert.True(t, ok)
	assert.Equal(t, float32(2), v, "last write wins")

	_, ok = s.Take()
	assert.False(t, ok)
}

func TestSlotConcurrent(t *testing.T) {
	const writes = 10000
	var (
		s  mutable.Slot
		wg sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			s.Store(float32(i))
		}
	}()

	var last float32
	for last < writes {
		v, ok := s.Take()
		if !ok {
			continue
		}
		// a value taken twice would not increase
		if v <= last {
			t.Fatalf("took %v after %v", v, last)
		}
		last = v
	}
	wg.Wait()
	_, ok := s.Take()
	assert.False(t, ok)
}

func TestPusher(t *testing.T) {
	type pulled struct {
		i int
		v float32
	}
	tests := []struct {
		description string
		puts        []pulled
		expected    []pulled
	}{
		{
			description: "nothing put",
		},
		{
			description: "slot order",
			puts:        []pulled{{2, 0.2}, {0, 0.1}},
			expected:    []pulled{{0, 0.1}, {2, 0.2}},
		},
		{
			description: "overwrite",
			puts:        []pulled{{1, 1}, {1, 2}, {1, 3}},
			expected:    []pulled{{1, 3}},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			p := mutable.NewPusher(3)
			for _, put := range test.puts {
				p.Put(put.i, put.v)
			}
			var result []pulled
			p.Pull(func(i int, v float32) {
				result = append(result, pulled{i, v})
			})
			assert.Equal(t, test.expected, result)

			// consumed values are not pulled again
			p.Pull(func(int, float32) {
				t.Fatal("unexpected value")
			})
		})
	}
}

func TestPusherConcurrent(t *testing.T) {
	p := mutable.NewPusher(1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 1000; i++ {
			p.Put(0, float32(i))
		}
	}()

	var last float32
	fn := func(_ int, v float32) {
		if v < last {
			t.Errorf("value went back from %v to %v", last, v)
		}
		last = v
	}
	for last < 1000 {
		p.Pull(fn)
	}
	wg.Wait()
	assert.Equal(t, float32(1000), last)
}

func TestPullAllocs(t *testing.T) {
	p := mutable.NewPusher(8)
	var sum float32
	fn := func(_ int, v float32) { sum += v }
	allocs := testing.AllocsPerRun(100, func() {
		p.Put(3, 1)
		p.Pull(fn)
	})
	assert.Equal(t, float64(0), allocs)
	assert.Equal(t, float32(101), sum)
}
