package entity

import (
	"sort"
	"time"
)

// Slot is a staffing need over a span of time.
type Slot struct {
	ID       SlotID       `json:"id"`
	Interval TimeInterval `json:"interval"`
	MinStaff int          `json:"min_staff"`
	Name     string       `json:"name"`
}

// Task is work with precedence constraints.
//
// Deps lists tasks that must complete before this one; the relation over
// all committed tasks always forms a DAG. Slots lists the slots this task
// is bound to, exactly one in the common case. SkillReqs is kept in the
// order the client supplied it.
type Task struct {
	ID        TaskID          `json:"id"`
	Title     string          `json:"title"`
	Desc      string          `json:"desc,omitempty"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
	Deps      map[TaskID]bool `json:"-"`
	SkillReqs []Skill         `json:"skill_reqs,omitempty"`
	Slots     []SlotID        `json:"slots,omitempty"`
}

// DepList returns the dependencies in ascending id order.
// The map form is for membership checks; ordered output always goes
// through this accessor.
func (t *Task) DepList() []TaskID {
	out := make([]TaskID, 0, len(t.Deps))
	for id := range t.Deps {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// User is a person who can be assigned to slots.
//
// Availability holds the concrete intervals resolved from Rules at commit
// time, sorted by start then end, exclusions already subtracted. Skills is
// the set of capabilities the user holds.
type User struct {
	ID           UserID         `json:"id"`
	Name         string         `json:"name"`
	Rules        []Rule         `json:"rules,omitempty"`
	Availability []TimeInterval `json:"availability"`
	Skills       map[Skill]bool `json:"-"`
}

// SkillList returns the user's skills sorted lexicographically.
func (u *User) SkillList() []Skill {
	out := make([]Skill, 0, len(u.Skills))
	for s := range u.Skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
