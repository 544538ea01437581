package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sporks/rota/internal/entity"
)

// CycleError rejects a task batch whose dependencies would close a cycle.
//
// Cycle holds the participating task ids in dependency order: each task
// depends on the next, and the last depends on the first. It is the
// shortest cycle through the rejected batch, found by breadth-first
// search, so the error names the tightest loop rather than an arbitrary
// traversal artifact.
type CycleError struct {
	Cycle []entity.TaskID
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = id.String()
	}
	return fmt.Sprintf("task dependencies cannot be cyclic: %s", strings.Join(parts, " -> "))
}

// IsCycleError returns true if err is (or wraps) a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
