package graph

import (
	"fmt"

	"github.com/sporks/rota/internal/entity"
)

// Graph is the task dependency DAG.
//
// Nodes are task indices in insertion order; ids[i] is the id of node i.
// deps[i] lists the indices task i depends on; dependents is the reverse
// adjacency. Both are append-only between successful inserts, which makes
// rollback of a rejected batch a truncation.
//
// INVARIANT: after every successful Insert the graph is acyclic.
type Graph struct {
	ids        []entity.TaskID
	index      map[entity.TaskID]int
	deps       [][]int
	dependents [][]int
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{index: make(map[entity.TaskID]int)}
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.ids) }

// IDs returns the task ids in insertion order. The caller must not
// mutate the returned slice.
func (g *Graph) IDs() []entity.TaskID { return g.ids }

// Contains reports whether a task id is in the graph.
func (g *Graph) Contains(id entity.TaskID) bool {
	_, ok := g.index[id]
	return ok
}

// Insert adds a validated task batch to the graph atomically.
//
// Every dependency must reference a task already in the graph or a task
// in the same batch (validation guarantees this). If the batch would
// close a cycle the graph is left exactly as before and a CycleError
// carrying the minimal cycle is returned.
func (g *Graph) Insert(batch []entity.Task) error {
	before := len(g.ids)

	// Duplicate ids are checked for the whole batch before any node is
	// appended, so this failure needs no rollback.
	seen := make(map[entity.TaskID]bool, len(batch))
	for _, task := range batch {
		if _, dup := g.index[task.ID]; dup || seen[task.ID] {
			return fmt.Errorf("task %s already in graph", task.ID)
		}
		seen[task.ID] = true
	}

	for _, task := range batch {
		g.index[task.ID] = len(g.ids)
		g.ids = append(g.ids, task.ID)
		g.deps = append(g.deps, nil)
		g.dependents = append(g.dependents, nil)
	}

	// Edges resolve only after all batch nodes exist, so in-batch forward
	// references work.
	for bi, task := range batch {
		from := before + bi
		for _, dep := range task.DepList() {
			to, ok := g.index[dep]
			if !ok {
				g.rollback(before)
				return fmt.Errorf("task %s: unknown dependency %s", task.ID, dep)
			}
			g.deps[from] = append(g.deps[from], to)
			g.dependents[to] = append(g.dependents[to], from)
		}
	}

	// The pre-existing graph was acyclic, so any new cycle passes through
	// a batch node; searching from those is sufficient.
	if g.hasCycleFrom(before) {
		cycle := g.minimalCycle(before)
		g.rollback(before)
		return &CycleError{Cycle: cycle}
	}

	return nil
}

// rollback truncates the graph to its size before a failed insert.
func (g *Graph) rollback(size int) {
	for _, id := range g.ids[size:] {
		delete(g.index, id)
	}
	// Reverse edges into pre-existing nodes were appended after their
	// surviving entries; drop any that point at removed nodes.
	for i := 0; i < size; i++ {
		kept := g.dependents[i][:0]
		for _, d := range g.dependents[i] {
			if d < size {
				kept = append(kept, d)
			}
		}
		g.dependents[i] = kept
	}
	g.ids = g.ids[:size]
	g.deps = g.deps[:size]
	g.dependents = g.dependents[:size]
}

// Tricolor DFS states.
const (
	white = iota // unvisited
	gray         // in progress
	black        // done
)

// hasCycleFrom runs a tricolor depth-first reachability check rooted at
// every node added at or after index first.
func (g *Graph) hasCycleFrom(first int) bool {
	color := make([]int, len(g.ids))
	var visit func(int) bool
	visit = func(n int) bool {
		color[n] = gray
		for _, next := range g.deps[n] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for n := first; n < len(g.ids); n++ {
		if color[n] == white && visit(n) {
			return true
		}
	}
	return false
}

// minimalCycle finds the shortest dependency cycle through a node added
// at or after index first, by breadth-first search from each candidate
// back to itself. Called only when hasCycleFrom reported a cycle.
func (g *Graph) minimalCycle(first int) []entity.TaskID {
	var best []int
	for n := first; n < len(g.ids); n++ {
		if c := g.shortestCycleThrough(n); c != nil && (best == nil || len(c) < len(best)) {
			best = c
		}
	}
	cycle := make([]entity.TaskID, len(best))
	for i, n := range best {
		cycle[i] = g.ids[n]
	}
	return cycle
}

// shortestCycleThrough BFS-walks dependency edges from root until the
// walk returns to root, reconstructing the path via parent pointers.
// Returns nil when no cycle passes through root.
func (g *Graph) shortestCycleThrough(root int) []int {
	parent := make(map[int]int, len(g.ids))
	queue := []int{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range g.deps[n] {
			if next == root {
				// Walk back from n to root to recover the path.
				path := []int{root}
				for at := n; at != root; at = parent[at] {
					path = append(path, at)
				}
				// path is root..n reversed; flip to dependency order.
				for i, j := 1, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if _, seen := parent[next]; !seen && next != root {
				parent[next] = n
				queue = append(queue, next)
			}
		}
	}
	return nil
}
