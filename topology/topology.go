// Package topology computes execution order of graph nodes.
//
// Nodes are identified by their declaration index. Sort classifies every
// edge that closes a cycle: if the edge points into a node that allows
// feedback, it is excluded from ordering and reported as delayed, otherwise
// the cycle is an error. Nodes without ordering dependency between them keep
// declaration order.
package topology

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ErrCycle is returned when a cycle has no participant that allows feedback.
var ErrCycle = errors.New("cycle without feedback-capable node")

// Edge is a dependency: From must be processed before To.
type Edge struct {
	From, To int
}

// Result of the sort.
type Result struct {
	// Order holds node indices in execution order.
	Order []int
	// Delayed holds edges that were excluded from ordering. Destination of
	// every delayed edge reads the value produced on the previous tick.
	Delayed []Edge
}

// IsDelayed reports if edge from -> to was excluded from ordering.
func (r Result) IsDelayed(from, to int) bool {
	for _, e := range r.Delayed {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// CycleError describes a cycle that cannot be broken.
type CycleError struct {
	// Path starts and ends with the same node.
	Path []int
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, e.Format(func(i int) string { return fmt.Sprint(i) }))
}

// Unwrap returns ErrCycle.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// Format joins cycle path using provided names.
func (e *CycleError) Format(name func(int) string) string {
	s := make([]string, len(e.Path))
	for i, n := range e.Path {
		s[i] = name(n)
	}
	return strings.Join(s, " -> ")
}

// Sort orders n nodes connected with edges. Edge endpoints must be in range
// [0, n). Duplicate edges are allowed.
func Sort(n int, edges []Edge, allowsFeedback func(int) bool) (Result, error) {
	adj := adjacency(n, edges)
	excluded := make(map[Edge]bool)
	var delayed []Edge
	for {
		cycle := findCycle(adj, excluded)
		if cycle == nil {
			break
		}
		e, ok := breakable(cycle, allowsFeedback)
		if !ok {
			return Result{}, &CycleError{Path: cycle}
		}
		excluded[e] = true
		delayed = append(delayed, e)
	}
	delayed = restore(adj, excluded, delayed)
	return Result{
		Order:   kahn(adj, excluded),
		Delayed: delayed,
	}, nil
}

// adjacency returns deduplicated children of every node in edge order.
func adjacency(n int, edges []Edge) [][]int {
	adj := make([][]int, n)
	seen := make(map[Edge]struct{}, len(edges))
	for _, e := range edges {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		adj[e.From] = append(adj[e.From], e.To)
	}
	return adj
}

// findCycle runs depth-first search in declaration order and returns the
// first cycle found as a closed path.
func findCycle(adj [][]int, excluded map[Edge]bool) []int {
	visited := make([]bool, len(adj))
	onStack := make([]bool, len(adj))
	var stack []int

	var dfs func(u int) []int
	dfs = func(u int) []int {
		visited[u] = true
		onStack[u] = true
		stack = append(stack, u)
		for _, v := range adj[u] {
			if excluded[Edge{From: u, To: v}] {
				continue
			}
			if onStack[v] {
				start := slices.Index(stack, v)
				cycle := append([]int{}, stack[start:]...)
				return append(cycle, v)
			}
			if !visited[v] {
				if c := dfs(v); c != nil {
					return c
				}
			}
		}
		onStack[u] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for u := range adj {
		if !visited[u] {
			if c := dfs(u); c != nil {
				return c
			}
		}
	}
	return nil
}

// breakable picks the edge of the cycle to exclude. The closing edge is
// preferred, then edges in path order.
func breakable(cycle []int, allowsFeedback func(int) bool) (Edge, bool) {
	last := len(cycle) - 1
	closing := Edge{From: cycle[last-1], To: cycle[last]}
	if allowsFeedback(closing.To) {
		return closing, true
	}
	for i := 0; i < last-1; i++ {
		if allowsFeedback(cycle[i+1]) {
			return Edge{From: cycle[i], To: cycle[i+1]}, true
		}
	}
	return Edge{}, false
}

// restore puts back excluded edges that no longer close a cycle. Every edge
// left excluded has a path from its destination to its source, so ordering
// runs the destination first and the edge reads the previous tick.
func restore(adj [][]int, excluded map[Edge]bool, delayed []Edge) []Edge {
	kept := delayed[:0]
	for _, e := range delayed {
		delete(excluded, e)
		if reachable(adj, excluded, e.To, e.From) {
			excluded[e] = true
			kept = append(kept, e)
		}
	}
	return kept
}

// reachable reports if there is a path from u to v over edges that are not
// excluded.
func reachable(adj [][]int, excluded map[Edge]bool, u, v int) bool {
	visited := make([]bool, len(adj))
	stack := []int{u}
	visited[u] = true
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if w == v {
			return true
		}
		for _, c := range adj[w] {
			if !visited[c] && !excluded[Edge{From: w, To: c}] {
				visited[c] = true
				stack = append(stack, c)
			}
		}
	}
	return false
}

// kahn sorts acyclic graph. Ready nodes are kept sorted by index, so
// independent nodes keep declaration order.
func kahn(adj [][]int, excluded map[Edge]bool) []int {
	inDegree := make([]int, len(adj))
	for u, children := range adj {
		for _, v := range children {
			if !excluded[Edge{From: u, To: v}] {
				inDegree[v]++
			}
		}
	}

	var ready []int
	for u, d := range inDegree {
		if d == 0 {
			ready = append(ready, u)
		}
	}

	order := make([]int, 0, len(adj))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		order = append(order, u)
		for _, v := range adj[u] {
			if excluded[Edge{From: u, To: v}] {
				continue
			}
			inDegree[v]--
			if inDegree[v] == 0 {
				ready = insertSorted(ready, v)
			}
		}
	}
	return order
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	return slices.Insert(s, i, v)
}
