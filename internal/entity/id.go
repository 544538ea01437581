package entity

import "fmt"

// SlotID uniquely identifies a Slot within a session.
//
// Ids are opaque, server-assigned, monotonically increasing from zero,
// and never reused for the lifetime of the session. Callers must not
// derive meaning from the numeric value.
type SlotID int64

// TaskID uniquely identifies a Task within a session.
type TaskID int64

// UserID uniquely identifies a User within a session.
type UserID int64

// Display forms follow the original wire convention: a one-letter kind
// prefix and the id in lowercase hex.

func (id SlotID) String() string { return fmt.Sprintf("s.%x", int64(id)) }
func (id TaskID) String() string { return fmt.Sprintf("t.%x", int64(id)) }
func (id UserID) String() string { return fmt.Sprintf("u.%x", int64(id)) }

// Skill names a capability a user holds or a task requires.
// Skills are opaque, non-empty, case-sensitive strings.
type Skill string

// HasSkills reports whether the skill set held covers every required
// skill. An empty requirement list is always covered.
func HasSkills(held map[Skill]bool, required []Skill) bool {
	for _, s := range required {
		if !held[s] {
			return false
		}
	}
	return true
}
