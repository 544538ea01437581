package entity

import (
	"fmt"
	"sort"
	"time"
)

// External specs: the shapes clients submit. Optional fields are pointers
// or nilable slices; the Validate* functions translate a spec batch into
// canonical entities, rejecting the whole batch on any failure.
//
// Defaulting table:
//
//	SlotSpec.MinStaff  nil  -> 0 (no hard staffing floor)
//	SlotSpec.Name      nil  -> "slot-<id>"
//	TaskSpec.Desc      nil  -> ""
//	TaskSpec.Awaiting  nil  -> no dependencies
//	TaskSpec.Skills    nil  -> no skill requirements
//	TaskSpec.Slots     nil  -> no bound slot (zero-duration policy)
//	RuleSpec.Pref      zero value -> 0 (neutral preference)

// SlotSpec describes a slot to be created.
type SlotSpec struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	MinStaff *int      `json:"min_staff,omitempty"`
	Name     *string   `json:"name,omitempty"`
}

// TaskSpec describes a task to be created.
//
// Awaiting may reference tasks committed earlier or tasks appearing
// earlier in the same batch (by the ids the caller will receive, which
// are assigned in input order).
type TaskSpec struct {
	Title    string     `json:"title"`
	Desc     *string    `json:"desc,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Awaiting []TaskID   `json:"awaiting,omitempty"`
	Skills   []Skill    `json:"skills,omitempty"`
	Slots    []SlotID   `json:"slots,omitempty"`
}

// RuleSpec describes one availability rule.
type RuleSpec struct {
	Include []TimeInterval `json:"include"`
	Repeat  *Repetition    `json:"repeat,omitempty"`
	Pref    Preference     `json:"pref,omitempty"`
}

// UserSpec describes a user to be created. Availability rules are
// supplied here and resolved at commit; committed users are immutable.
type UserSpec struct {
	Name   string     `json:"name"`
	Rules  []RuleSpec `json:"rules,omitempty"`
	Skills []Skill    `json:"skills,omitempty"`
}

// ValidateSlotSpecs translates a slot batch into canonical slots with ids
// nextID, nextID+1, ... in input order. On any failure it returns a
// ValidationError naming every offending element and no slots.
func ValidateSlotSpecs(batch []SlotSpec, nextID SlotID) ([]Slot, error) {
	var fields []FieldError
	slots := make([]Slot, 0, len(batch))
	for i, spec := range batch {
		id := nextID + SlotID(i)
		iv := TimeInterval{Start: spec.Start, End: spec.End}
		if !iv.Valid() {
			fields = append(fields, FieldError{Index: i, Field: "interval", Reason: "start must precede end"})
		}
		minStaff := 0
		if spec.MinStaff != nil {
			if *spec.MinStaff < 0 {
				fields = append(fields, FieldError{Index: i, Field: "min_staff", Reason: "must be non-negative"})
			} else {
				minStaff = *spec.MinStaff
			}
		}
		name := fmt.Sprintf("slot-%s", id)
		if spec.Name != nil && *spec.Name != "" {
			name = *spec.Name
		}
		slots = append(slots, Slot{ID: id, Interval: iv, MinStaff: minStaff, Name: name})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Kind: "slot", Fields: fields}
	}
	return slots, nil
}

// ValidateTaskSpecs translates a task batch into canonical tasks with ids
// nextID onward. taskKnown reports whether a dependency id exists
// (committed tasks only; in-batch forward references are resolved here).
// slotBindable reports whether a slot id exists and has no bound task.
func ValidateTaskSpecs(
	batch []TaskSpec,
	nextID TaskID,
	taskKnown func(TaskID) bool,
	slotBindable func(SlotID) (exists, free bool),
) ([]Task, error) {
	var fields []FieldError
	tasks := make([]Task, 0, len(batch))
	// Slots bound earlier in this batch count as taken too.
	boundInBatch := make(map[SlotID]bool)

	for i, spec := range batch {
		id := nextID + TaskID(i)
		if spec.Title == "" {
			fields = append(fields, FieldError{Index: i, Field: "title", Reason: "must not be empty"})
		}
		deps := make(map[TaskID]bool, len(spec.Awaiting))
		for _, dep := range spec.Awaiting {
			switch {
			case dep == id:
				fields = append(fields, FieldError{Index: i, Field: "awaiting", Reason: fmt.Sprintf("task cannot depend on itself (%s)", dep)})
			case dep >= nextID && dep < nextID+TaskID(len(batch)):
				deps[dep] = true // in-batch reference
			case taskKnown(dep):
				deps[dep] = true
			default:
				fields = append(fields, FieldError{Index: i, Field: "awaiting", Reason: fmt.Sprintf("unknown task %s", dep)})
			}
		}
		for _, skill := range spec.Skills {
			if skill == "" {
				fields = append(fields, FieldError{Index: i, Field: "skills", Reason: "skill must not be empty"})
			}
		}
		for _, slot := range spec.Slots {
			exists, free := slotBindable(slot)
			switch {
			case !exists:
				fields = append(fields, FieldError{Index: i, Field: "slots", Reason: fmt.Sprintf("unknown slot %s", slot)})
			case !free || boundInBatch[slot]:
				fields = append(fields, FieldError{Index: i, Field: "slots", Reason: fmt.Sprintf("slot %s is already bound to a task", slot)})
			default:
				boundInBatch[slot] = true
			}
		}
		desc := ""
		if spec.Desc != nil {
			desc = *spec.Desc
		}
		tasks = append(tasks, Task{
			ID:        id,
			Title:     spec.Title,
			Desc:      desc,
			Deadline:  copyTime(spec.Deadline),
			Deps:      deps,
			SkillReqs: append([]Skill(nil), spec.Skills...),
			Slots:     append([]SlotID(nil), spec.Slots...),
		})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Kind: "task", Fields: fields}
	}
	return tasks, nil
}

// ValidateUserSpecs translates a user batch into canonical users with ids
// nextID onward. Rule resolution into concrete availability happens at
// commit, not here; this only checks that every rule is well formed.
func ValidateUserSpecs(batch []UserSpec, nextID UserID) ([]User, error) {
	var fields []FieldError
	users := make([]User, 0, len(batch))
	for i, spec := range batch {
		if spec.Name == "" {
			fields = append(fields, FieldError{Index: i, Field: "name", Reason: "must not be empty"})
		}
		rules := make([]Rule, 0, len(spec.Rules))
		for r, rs := range spec.Rules {
			fields = append(fields, validateRuleSpec(i, r, rs)...)
			rules = append(rules, Rule{
				Include: append([]TimeInterval(nil), rs.Include...),
				Rep:     copyRepetition(rs.Repeat),
				Pref:    rs.Pref,
			})
		}
		skills := make(map[Skill]bool, len(spec.Skills))
		for _, skill := range spec.Skills {
			if skill == "" {
				fields = append(fields, FieldError{Index: i, Field: "skills", Reason: "skill must not be empty"})
				continue
			}
			skills[skill] = true
		}
		users = append(users, User{
			ID:     nextID + UserID(i),
			Name:   spec.Name,
			Rules:  rules,
			Skills: skills,
		})
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Kind: "user", Fields: fields}
	}
	return users, nil
}

// validateRuleSpec checks one rule of one user. The field name encodes the
// rule position so a batch error still pinpoints the exact rule.
func validateRuleSpec(userIdx, ruleIdx int, rs RuleSpec) []FieldError {
	field := func(name string) string { return fmt.Sprintf("rules[%d].%s", ruleIdx, name) }
	var fields []FieldError
	if len(rs.Include) == 0 {
		fields = append(fields, FieldError{Index: userIdx, Field: field("include"), Reason: "must list at least one interval"})
	}
	for _, iv := range rs.Include {
		if !iv.Valid() {
			fields = append(fields, FieldError{Index: userIdx, Field: field("include"), Reason: fmt.Sprintf("interval %s: start must precede end", iv)})
		}
	}
	if !rs.Pref.Valid() {
		fields = append(fields, FieldError{Index: userIdx, Field: field("pref"), Reason: "must be in [-1, +1] or exactly ±Inf"})
	}
	if rep := rs.Repeat; rep != nil {
		if rep.Every.IsZero() {
			fields = append(fields, FieldError{Index: userIdx, Field: field("repeat.every"), Reason: "repetition must advance time"})
		}
		if rep.Every.Negative() {
			fields = append(fields, FieldError{Index: userIdx, Field: field("repeat.every"), Reason: "frequency components must be non-negative"})
		}
		if rep.Until != nil && rep.Until.Before(rep.Start) {
			fields = append(fields, FieldError{Index: userIdx, Field: field("repeat.until"), Reason: "must not precede repeat.start"})
		}
	}
	return fields
}

// SortIntervals orders intervals by start, then end, in place.
func SortIntervals(intervals []TimeInterval) {
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Before(intervals[j]) })
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyRepetition(r *Repetition) *Repetition {
	if r == nil {
		return nil
	}
	c := *r
	c.Until = copyTime(r.Until)
	return &c
}
