// Package assign produces schedules: given a consistent view of slots,
// tasks, users, and the urgency order, it staffs each slot up to its
// minimum, degrading to an annotated underfill instead of failing.
package assign

import (
	"sort"

	"github.com/sporks/rota/internal/entity"
)

// FillStatus reports whether a slot reached its staffing minimum.
type FillStatus string

const (
	StatusSatisfied   FillStatus = "satisfied"
	StatusUnderfilled FillStatus = "underfilled"
)

// UnderfillReason classifies why a slot fell short of min_staff. The
// reason describes the users who could NOT serve, excluding those
// already committed to the slot itself.
type UnderfillReason string

const (
	// ReasonAvailability: no remaining user has a single availability
	// interval covering the slot.
	ReasonAvailability UnderfillReason = "insufficient_availability"
	// ReasonSkill: coverage exists but no remaining covering user holds
	// the required skills.
	ReasonSkill UnderfillReason = "insufficient_skill"
	// ReasonCommitted: covering, skilled users exist but were consumed
	// by more urgent overlapping slots.
	ReasonCommitted UnderfillReason = "already_committed"
	// ReasonOverride: a manual edit left the slot below min_staff.
	ReasonOverride UnderfillReason = "override"
)

// Assignment is one slot's staffing outcome.
type Assignment struct {
	Slot  entity.SlotID
	Task  *entity.TaskID // nil when no task is bound to the slot
	Users []entity.UserID
	// MinStaff is carried from the slot so override replay can
	// re-derive fill status without another store lookup.
	MinStaff int
	Status   FillStatus
	Reason   UnderfillReason // empty unless underfilled
}

// Schedule is the result of one generation: every committed slot mapped
// to its assignment, in ascending slot order. Read-only once produced;
// manual edits layer on top through the override log.
type Schedule struct {
	// Token identifies this generation. It is excluded from the
	// fingerprint so identical inputs fingerprint identically.
	Token   string
	Entries []Assignment
}

// Entry returns the assignment for a slot.
func (s *Schedule) Entry(id entity.SlotID) (Assignment, bool) {
	i := sort.Search(len(s.Entries), func(i int) bool { return s.Entries[i].Slot >= id })
	if i < len(s.Entries) && s.Entries[i].Slot == id {
		return s.Entries[i], true
	}
	return Assignment{}, false
}

// Clone deep-copies the schedule so edits on the copy cannot reach the
// baseline.
func (s *Schedule) Clone() *Schedule {
	c := &Schedule{Token: s.Token, Entries: make([]Assignment, len(s.Entries))}
	for i, e := range s.Entries {
		e.Users = append([]entity.UserID(nil), e.Users...)
		if e.Task != nil {
			t := *e.Task
			e.Task = &t
		}
		c.Entries[i] = e
	}
	return c
}

// scheduleDomain separates schedule fingerprints from any other hash
// produced over canonical JSON.
const scheduleDomain = "rota/schedule/v1"

// Canonical returns the schedule as the restricted value tree the
// canonical JSON marshaller accepts. The generation token is excluded.
func (s *Schedule) Canonical() map[string]any {
	entries := make([]any, 0, len(s.Entries))
	for _, e := range s.Entries {
		users := make([]any, 0, len(e.Users))
		for _, u := range e.Users {
			users = append(users, u.String())
		}
		m := map[string]any{
			"slot":      e.Slot.String(),
			"users":     users,
			"min_staff": e.MinStaff,
			"status":    string(e.Status),
		}
		if e.Task != nil {
			m["task"] = e.Task.String()
		}
		if e.Reason != "" {
			m["reason"] = string(e.Reason)
		}
		entries = append(entries, m)
	}
	return map[string]any{"entries": entries}
}

// Fingerprint returns a stable content hash of the schedule, excluding
// the generation token. Two generations over identical state always
// fingerprint identically.
func (s *Schedule) Fingerprint() (string, error) {
	data, err := entity.MarshalCanonical(s.Canonical())
	if err != nil {
		return "", err
	}
	return entity.HashWithDomain(scheduleDomain, data), nil
}
