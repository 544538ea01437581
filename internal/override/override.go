// Package override layers manual schedule edits on top of a generated
// baseline. The baseline is never mutated; the effective schedule is the
// baseline with the edit log replayed in order.
//
// Hard constraints (interval coverage, skill match, no double-booking)
// still bind an edit. min_staff does not: a manager may legally leave a
// slot short, and the shortfall is recorded rather than rejected.
package override

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/store"
)

// Op is the edit operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Edit is one manual adjustment: add or remove one user on one slot.
// Task names the task bound to the slot (nil for an unbound slot) and
// must match the schedule's binding; it is carried so the log stays
// meaningful if bindings ever diverge across regenerations.
type Edit struct {
	Slot entity.SlotID
	Task *entity.TaskID
	Op   Op
	User entity.UserID
}

// Layer holds a baseline schedule, the edit log, and the effective
// schedule derived from the two.
type Layer struct {
	baseline  *assign.Schedule
	log       []Edit
	effective *assign.Schedule
}

// NewLayer starts an empty edit log over a baseline.
func NewLayer(baseline *assign.Schedule) *Layer {
	return &Layer{baseline: baseline, effective: baseline.Clone()}
}

// Baseline returns the untouched generated schedule.
func (l *Layer) Baseline() *assign.Schedule { return l.baseline }

// Effective returns the baseline with the log replayed.
// Callers must treat it as read-only.
func (l *Layer) Effective() *assign.Schedule { return l.effective }

// Log returns the applied edits in order.
func (l *Layer) Log() []Edit { return l.log }

// Apply validates one edit against the effective schedule and the
// current entity state, appends it to the log, and returns the new
// effective schedule. A rejected edit changes nothing.
func (l *Layer) Apply(v *store.View, e Edit) (*assign.Schedule, error) {
	next := l.effective.Clone()
	if err := applyEdit(next, v, e); err != nil {
		return nil, err
	}
	l.log = append(l.log, e)
	l.effective = next
	slog.Debug("override applied", "op", string(e.Op), "slot", e.Slot.String(), "user", e.User.String())
	return l.effective, nil
}

// Rebase replays the log onto a new baseline, dropping edits that no
// longer validate. It returns the dropped edits so the caller can
// report them.
func (l *Layer) Rebase(v *store.View, baseline *assign.Schedule) []Edit {
	effective := baseline.Clone()
	var kept, dropped []Edit
	for _, e := range l.log {
		if err := applyEdit(effective, v, e); err != nil {
			dropped = append(dropped, e)
			slog.Debug("override dropped on rebase", "op", string(e.Op), "slot", e.Slot.String(), "user", e.User.String(), "error", err)
			continue
		}
		kept = append(kept, e)
	}
	l.baseline = baseline
	l.log = kept
	l.effective = effective
	return dropped
}

// applyEdit validates e against sched and mutates sched in place.
func applyEdit(sched *assign.Schedule, v *store.View, e Edit) error {
	violation := func(constraint, format string, args ...any) error {
		return &ViolationError{Edit: e, Constraint: constraint, Reason: fmt.Sprintf(format, args...)}
	}

	idx := -1
	for i := range sched.Entries {
		if sched.Entries[i].Slot == e.Slot {
			idx = i
			break
		}
	}
	if idx < 0 {
		return violation(ConstraintExistence, "slot %s is not in the schedule", e.Slot)
	}
	entry := &sched.Entries[idx]

	if !taskMatches(entry.Task, e.Task) {
		return violation(ConstraintTaskBinding, "slot %s is not bound to the named task", e.Slot)
	}

	slot, ok := v.SlotByID(e.Slot)
	if !ok {
		return violation(ConstraintExistence, "unknown slot %s", e.Slot)
	}
	user, ok := v.UserByID(e.User)
	if !ok {
		return violation(ConstraintExistence, "unknown user %s", e.User)
	}

	switch e.Op {
	case OpAdd:
		for _, uid := range entry.Users {
			if uid == e.User {
				return violation(ConstraintAssignment, "user %s is already assigned to slot %s", e.User, e.Slot)
			}
		}
		if !v.Index.Covers(e.User, slot.Interval) {
			return violation(ConstraintCoverage, "user %s has no availability interval covering %s", e.User, slot.Interval)
		}
		if entry.Task != nil {
			task, ok := taskByID(v, *entry.Task)
			if !ok {
				return violation(ConstraintExistence, "unknown task %s", *entry.Task)
			}
			if !entity.HasSkills(user.Skills, task.SkillReqs) {
				return violation(ConstraintSkill, "user %s lacks skills required by task %s", e.User, task.ID)
			}
		}
		for i := range sched.Entries {
			other := &sched.Entries[i]
			if other.Slot == e.Slot || !holds(other.Users, e.User) {
				continue
			}
			otherSlot, ok := v.SlotByID(other.Slot)
			if ok && otherSlot.Interval.Overlaps(slot.Interval) {
				return violation(ConstraintOverlap, "user %s already holds overlapping slot %s", e.User, other.Slot)
			}
		}
		entry.Users = insertID(entry.Users, e.User)

	case OpRemove:
		if !holds(entry.Users, e.User) {
			return violation(ConstraintAssignment, "user %s is not assigned to slot %s", e.User, e.Slot)
		}
		entry.Users = removeID(entry.Users, e.User)

	default:
		return violation(ConstraintExistence, "unknown operation %q", e.Op)
	}

	// min_staff is soft here: recompute status, never reject.
	if len(entry.Users) >= entry.MinStaff {
		entry.Status = assign.StatusSatisfied
		entry.Reason = ""
	} else {
		entry.Status = assign.StatusUnderfilled
		entry.Reason = assign.ReasonOverride
	}
	return nil
}

func taskMatches(bound, named *entity.TaskID) bool {
	if bound == nil || named == nil {
		return bound == nil && named == nil
	}
	return *bound == *named
}

func taskByID(v *store.View, id entity.TaskID) (entity.Task, bool) {
	for _, task := range v.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return entity.Task{}, false
}

func holds(ids []entity.UserID, id entity.UserID) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}

func insertID(ids []entity.UserID, id entity.UserID) []entity.UserID {
	out := append(ids, id)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func removeID(ids []entity.UserID, id entity.UserID) []entity.UserID {
	out := ids[:0:0]
	for _, other := range ids {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}
