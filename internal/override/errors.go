package override

import (
	"errors"
	"fmt"
)

// Constraint names carried by a ViolationError. Coverage, skill, and
// overlap are the hard staffing constraints; existence, task binding,
// and assignment are referential checks.
const (
	ConstraintExistence   = "existence"
	ConstraintTaskBinding = "task_binding"
	ConstraintCoverage    = "coverage"
	ConstraintSkill       = "skill"
	ConstraintOverlap     = "overlap"
	ConstraintAssignment  = "assignment"
)

// ViolationError rejects an edit that breaks a hard constraint. The
// schedule is left untouched.
type ViolationError struct {
	Edit       Edit
	Constraint string
	Reason     string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("override rejected (%s): %s", e.Constraint, e.Reason)
}

// IsViolationError reports whether err is a ViolationError.
func IsViolationError(err error) bool {
	var e *ViolationError
	return errors.As(err, &e)
}
