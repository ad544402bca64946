package topology_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/graph/topology"
)

func none(int) bool { return false }

func only(nodes ...int) func(int) bool {
	return func(n int) bool {
		for _, v := range nodes {
			if v == n {
				return true
			}
		}
		return false
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		description string
		n           int
		edges       []topology.Edge
		feedback    func(int) bool
		order       []int
		delayed     []topology.Edge
	}{
		{
			description: "independent nodes keep declaration order",
			n:           4,
			feedback:    none,
			order:       []int{0, 1, 2, 3},
		},
		{
			description: "chain declared backwards",
			n:           3,
			edges:       []topology.Edge{{From: 2, To: 1}, {From: 1, To: 0}},
			feedback:    none,
			order:       []int{2, 1, 0},
		},
		{
			description: "diamond",
			n:           4,
			edges: []topology.Edge{
				{From: 3, To: 1}, {From: 3, To: 2}, {From: 1, To: 0}, {From: 2, To: 0},
			},
			feedback: none,
			order:    []int{3, 1, 2, 0},
		},
		{
			description: "duplicate edges",
			n:           2,
			edges:       []topology.Edge{{From: 1, To: 0}, {From: 1, To: 0}},
			feedback:    none,
			order:       []int{1, 0},
		},
		{
			description: "closing edge into feedback node",
			n:           2,
			edges:       []topology.Edge{{From: 0, To: 1}, {From: 1, To: 0}},
			feedback:    only(0),
			order:       []int{0, 1},
			delayed:     []topology.Edge{{From: 1, To: 0}},
		},
		{
			description: "feedback node inside the cycle path",
			n:           3,
			edges:       []topology.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 0}},
			feedback:    only(1),
			order:       []int{1, 2, 0},
			delayed:     []topology.Edge{{From: 0, To: 1}},
		},
		{
			description: "self loop",
			n:           2,
			edges:       []topology.Edge{{From: 1, To: 1}, {From: 0, To: 1}},
			feedback:    only(1),
			order:       []int{0, 1},
			delayed:     []topology.Edge{{From: 1, To: 1}},
		},
		{
			description: "edge excluded for an earlier cycle is put back",
			n:           5,
			edges: []topology.Edge{
				{From: 3, To: 1}, {From: 1, To: 2}, {From: 0, To: 2}, {From: 1, To: 3},
				{From: 2, To: 3}, {From: 0, To: 1}, {From: 1, To: 4},
			},
			feedback: only(1, 2),
			order:    []int{0, 1, 2, 3, 4},
			delayed:  []topology.Edge{{From: 3, To: 1}},
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			res, err := topology.Sort(test.n, test.edges, test.feedback)
			require.NoError(t, err)
			assert.Equal(t, test.order, res.Order)
			assert.Equal(t, test.delayed, res.Delayed)
			for _, e := range test.delayed {
				assert.True(t, res.IsDelayed(e.From, e.To))
			}
		})
	}
}

func TestCycle(t *testing.T) {
	edges := []topology.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 0}}

	_, err := topology.Sort(3, edges, none)
	require.Error(t, err)
	assert.True(t, errors.Is(err, topology.ErrCycle))
	var cycleErr *topology.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []int{0, 1, 2, 0}, cycleErr.Path)
	names := []string{"osc", "gain", "filter"}
	assert.Equal(t, "osc -> gain -> filter -> osc", cycleErr.Format(func(i int) string { return names[i] }))

	// the same set succeeds once one participant allows feedback
	_, err = topology.Sort(3, edges, only(2))
	assert.NoError(t, err)
}

func TestTwoCycles(t *testing.T) {
	edges := []topology.Edge{
		{From: 0, To: 1}, {From: 1, To: 0},
		{From: 2, To: 3}, {From: 3, To: 2},
	}
	_, err := topology.Sort(4, edges, only(0))
	assert.ErrorIs(t, err, topology.ErrCycle)

	res, err := topology.Sort(4, edges, only(0, 3))
	require.NoError(t, err)
	assert.Len(t, res.Delayed, 2)
}

func TestRandomAcyclic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(20)
		// random permutation defines a hidden order, edges follow it
		perm := r.Perm(n)
		var edges []topology.Edge
		count := r.Intn(n*3 + 1)
		for j := 0; j < count; j++ {
			a, b := r.Intn(n), r.Intn(n)
			if a == b {
				continue
			}
			if a > b {
				a, b = b, a
			}
			edges = append(edges, topology.Edge{From: perm[a], To: perm[b]})
		}

		res, err := topology.Sort(n, edges, none)
		require.NoError(t, err)
		require.Len(t, res.Order, n)
		pos := make([]int, n)
		for p, node := range res.Order {
			pos[node] = p
		}
		for _, e := range edges {
			assert.Less(t, pos[e.From], pos[e.To], "edge %v", e)
		}
	}
}

func TestRandomFeedback(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		n := 2 + r.Intn(8)
		var edges []topology.Edge
		count := r.Intn(n*2 + 1)
		for j := 0; j < count; j++ {
			edges = append(edges, topology.Edge{From: r.Intn(n), To: r.Intn(n)})
		}
		feedback := make([]bool, n)
		for j := range feedback {
			feedback[j] = r.Intn(2) == 0
		}

		res, err := topology.Sort(n, edges, func(i int) bool { return feedback[i] })
		if err != nil {
			require.ErrorIs(t, err, topology.ErrCycle)
			continue
		}
		require.Len(t, res.Order, n)
		pos := make([]int, n)
		for p, node := range res.Order {
			pos[node] = p
		}
		for _, e := range edges {
			if res.IsDelayed(e.From, e.To) {
				assert.True(t, feedback[e.To], "delayed edge %v into node without feedback", e)
				assert.LessOrEqual(t, pos[e.To], pos[e.From], "delayed edge %v reads the current tick", e)
				continue
			}
			assert.Less(t, pos[e.From], pos[e.To], "edge %v", e)
		}
	}
}
