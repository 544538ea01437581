package session

import (
	"regexp"
	"time"

	"github.com/sporks/rota/internal/entity"
)

// Query filters. Conditions AND-combine; a nil or empty field matches
// everything, so the zero filter lists the whole collection.

// SlotFilter selects slots by id, name pattern, interval, and staffing
// bounds.
type SlotFilter struct {
	IDs      []entity.SlotID
	Name     *regexp.Regexp
	Within   *entity.TimeInterval // slot interval fully inside
	MinStaff *int                 // staffing floor at least this
	MaxStaff *int                 // staffing floor at most this
}

// TaskFilter selects tasks by id, title/desc pattern, deadline bounds,
// and required skill.
type TaskFilter struct {
	IDs       []entity.TaskID
	Title     *regexp.Regexp
	Desc      *regexp.Regexp
	DueBefore *time.Time // deadline strictly before; undeadlined never match
	DueAfter  *time.Time // deadline strictly after; undeadlined never match
	Skill     *entity.Skill
}

// UserFilter selects users by id, name pattern, held skill, and
// resolved availability.
type UserFilter struct {
	IDs             []entity.UserID
	Name            *regexp.Regexp
	Skill           *entity.Skill
	AvailableDuring *entity.TimeInterval // one availability interval covers it
}

// Slots returns committed slots matching the filter, in id order.
func (s *Session) Slots(f SlotFilter) []entity.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Slot
	for _, slot := range s.store.Slots() {
		if len(f.IDs) > 0 && !containsID(f.IDs, slot.ID) {
			continue
		}
		if f.Name != nil && !f.Name.MatchString(slot.Name) {
			continue
		}
		if f.Within != nil && !f.Within.Contains(slot.Interval) {
			continue
		}
		if f.MinStaff != nil && slot.MinStaff < *f.MinStaff {
			continue
		}
		if f.MaxStaff != nil && slot.MinStaff > *f.MaxStaff {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// Tasks returns committed tasks matching the filter, in id order.
func (s *Session) Tasks(f TaskFilter) []entity.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Task
	for _, task := range s.store.Tasks() {
		if len(f.IDs) > 0 && !containsID(f.IDs, task.ID) {
			continue
		}
		if f.Title != nil && !f.Title.MatchString(task.Title) {
			continue
		}
		if f.Desc != nil && !f.Desc.MatchString(task.Desc) {
			continue
		}
		if f.DueBefore != nil && (task.Deadline == nil || !task.Deadline.Before(*f.DueBefore)) {
			continue
		}
		if f.DueAfter != nil && (task.Deadline == nil || !task.Deadline.After(*f.DueAfter)) {
			continue
		}
		if f.Skill != nil && !requiresSkill(task, *f.Skill) {
			continue
		}
		out = append(out, task)
	}
	return out
}

// Users returns committed users matching the filter, in id order.
func (s *Session) Users(f UserFilter) []entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.User
	for _, user := range s.store.Users() {
		if len(f.IDs) > 0 && !containsID(f.IDs, user.ID) {
			continue
		}
		if f.Name != nil && !f.Name.MatchString(user.Name) {
			continue
		}
		if f.Skill != nil && !user.Skills[*f.Skill] {
			continue
		}
		if f.AvailableDuring != nil && !s.store.Index().Covers(user.ID, *f.AvailableDuring) {
			continue
		}
		out = append(out, user)
	}
	return out
}

// Rules returns a committed user's availability rules as supplied at
// creation. The second result is false for unknown users.
func (s *Session) Rules(id entity.UserID) ([]entity.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.store.UserByID(id)
	if !ok {
		return nil, false
	}
	return append([]entity.Rule(nil), user.Rules...), true
}

func requiresSkill(task entity.Task, skill entity.Skill) bool {
	for _, req := range task.SkillReqs {
		if req == skill {
			return true
		}
	}
	return false
}

func containsID[T ~int64](ids []T, id T) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
