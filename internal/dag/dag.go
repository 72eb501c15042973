// SPDX-License-Identifier: MPL-2.0

// Package dag orders nodes so that every node comes after the nodes it has
// an edge from. The package validator uses it to install bundled libraries
// after their dependencies.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError is returned by TopologicalSort when some nodes can never
	// be scheduled.
	CycleError struct {
		// Cycle lists the unscheduled nodes in insertion order: the nodes on
		// a cycle and everything downstream of one.
		Cycle []string
	}

	// Graph holds "must come before" edges between comparable keys.
	Graph[K comparable] struct {
		index map[K]int
		keys  []K
		// after[i] are the indices that must follow keys[i].
		after [][]int
	}
)

func (e *CycleError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

func New[K comparable]() *Graph[K] {
	return &Graph[K]{index: make(map[K]int)}
}

// AddNode registers k. Adding a known node keeps its original position.
func (g *Graph[K]) AddNode(k K) {
	g.add(k)
}

// AddEdge records that from must come before to, adding both if needed.
func (g *Graph[K]) AddEdge(from, to K) {
	f, t := g.add(from), g.add(to)
	g.after[f] = append(g.after[f], t)
}

func (g *Graph[K]) Len() int { return len(g.keys) }

func (g *Graph[K]) add(k K) int {
	if i, ok := g.index[k]; ok {
		return i
	}
	i := len(g.keys)
	g.index[k] = i
	g.keys = append(g.keys, k)
	g.after = append(g.after, nil)
	return i
}

// TopologicalSort returns the nodes in dependency order (Kahn's algorithm).
// Among nodes that become ready together, insertion order wins, so the same
// graph always sorts the same way. An empty graph yields nil.
func (g *Graph[K]) TopologicalSort() ([]K, error) {
	if len(g.keys) == 0 {
		return nil, nil
	}

	pending := make([]int, len(g.keys))
	for _, targets := range g.after {
		for _, t := range targets {
			pending[t]++
		}
	}

	ready := make([]int, 0, len(g.keys))
	for i, n := range pending {
		if n == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]K, 0, len(g.keys))
	for head := 0; head < len(ready); head++ {
		i := ready[head]
		order = append(order, g.keys[i])
		for _, t := range g.after[i] {
			if pending[t]--; pending[t] == 0 {
				ready = append(ready, t)
			}
		}
	}

	if len(order) < len(g.keys) {
		cyc := &CycleError{}
		for i, n := range pending {
			if n > 0 {
				cyc.Cycle = append(cyc.Cycle, fmt.Sprint(g.keys[i]))
			}
		}
		return nil, cyc
	}
	return order, nil
}
