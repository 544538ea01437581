package graph

import (
	"sort"
	"time"

	"github.com/sporks/rota/internal/entity"
)

// EffectiveDeadlines computes each task's deadline after propagating
// constraints from all tasks that depend on it:
//
//	eff(T) = min(T.deadline, min over dependents D of eff(D) − duration(D))
//
// tasks must be the committed tasks aligned with the graph's insertion
// order. duration supplies each task's estimated duration (derived from
// its bound slot; the zero-duration policy applies otherwise). A nil
// entry means the task has no deadline and no deadline-bearing dependent,
// and sorts least urgent.
//
// Computed by dynamic programming over a topological order (Kahn over
// the dependent→dependency direction), so each dependent's effective
// deadline is final before it is pushed down.
func (g *Graph) EffectiveDeadlines(tasks []entity.Task, duration func(entity.TaskID) time.Duration) []*time.Time {
	n := len(g.ids)
	eff := make([]*time.Time, n)
	pushed := make([]*time.Time, n) // min over dependents so far

	indegree := make([]int, n)
	for i := range g.dependents {
		indegree[i] = len(g.dependents[i])
	}

	// Seed with tasks nothing depends on, ascending index for a
	// deterministic walk.
	var queue []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		eff[d] = minTime(tasks[d].Deadline, pushed[d])

		var candidate *time.Time
		if eff[d] != nil {
			c := eff[d].Add(-duration(tasks[d].ID))
			candidate = &c
		}
		for _, dep := range g.deps[d] {
			pushed[dep] = minTime(pushed[dep], candidate)
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	return eff
}

// UrgencyOrder returns task indices sorted ascending by effective
// deadline. Tasks without one sort last. Ties break by insertion order
// (ascending index), which makes the order a total order and the
// assigner deterministic.
func UrgencyOrder(eff []*time.Time) []int {
	order := make([]int, len(eff))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := eff[order[a]], eff[order[b]]
		switch {
		case ea == nil && eb == nil:
			return order[a] < order[b]
		case ea == nil:
			return false
		case eb == nil:
			return true
		case ea.Equal(*eb):
			return order[a] < order[b]
		default:
			return ea.Before(*eb)
		}
	})
	return order
}

// minTime returns the earlier of two optional instants; nil means
// unconstrained.
func minTime(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
