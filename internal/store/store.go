// Package store is the canonical, id-indexed storage for slots, tasks,
// and users: the sole writer of entity state.
//
// All operations are batch operations with all-or-nothing semantics: a
// batch that fails validation (or would close a dependency cycle)
// changes nothing, consumes no ids, and reports every offending element.
//
// The store is NOT internally synchronized. The session layer serializes
// every mutation through a single-writer discipline and hands readers
// immutable snapshots.
package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sporks/rota/internal/avail"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/graph"
)

// Store holds committed entities and the structures derived from them
// (dependency graph, availability index, planning horizon).
type Store struct {
	slots []entity.Slot
	tasks []entity.Task
	users []entity.User

	slotIdx map[entity.SlotID]int
	taskIdx map[entity.TaskID]int
	userIdx map[entity.UserID]int

	// slotTask binds a slot to the task scheduled in it. At most one
	// task per slot.
	slotTask map[entity.SlotID]entity.TaskID

	graph *graph.Graph
	index *avail.Index

	horizon    entity.TimeInterval
	hasHorizon bool

	nextSlot entity.SlotID
	nextTask entity.TaskID
	nextUser entity.UserID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		slotIdx:  make(map[entity.SlotID]int),
		taskIdx:  make(map[entity.TaskID]int),
		userIdx:  make(map[entity.UserID]int),
		slotTask: make(map[entity.SlotID]entity.TaskID),
		graph:    graph.New(),
		index:    avail.Build(nil),
	}
}

// AddSlots validates and commits a slot batch, assigning ids in input
// order. Growing the planning horizon re-expands every user's
// availability rules, because expanded availability is bounded by the
// horizon known at expansion time.
func (s *Store) AddSlots(batch []entity.SlotSpec) ([]entity.SlotID, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	slots, err := entity.ValidateSlotSpecs(batch, s.nextSlot)
	if err != nil {
		return nil, err
	}

	prevHorizon, prevHas := s.horizon, s.hasHorizon
	prevLen := len(s.slots)

	ids := make([]entity.SlotID, len(slots))
	for i, slot := range slots {
		s.slotIdx[slot.ID] = len(s.slots)
		s.slots = append(s.slots, slot)
		ids[i] = slot.ID
	}
	s.recomputeHorizon()

	grew := !prevHas || !s.horizon.Start.Equal(prevHorizon.Start) || !s.horizon.End.Equal(prevHorizon.End)
	if s.hasHorizon && grew {
		if err := s.reexpandUsers(); err != nil {
			// A grown horizon can push a previously fine repetition past
			// the expansion cap. The slot batch is the trigger, so the
			// slot batch is what rolls back.
			for _, id := range ids {
				delete(s.slotIdx, id)
			}
			s.slots = s.slots[:prevLen]
			s.horizon, s.hasHorizon = prevHorizon, prevHas
			return nil, fmt.Errorf("expanding availability for new horizon: %w", err)
		}
	}

	s.nextSlot += entity.SlotID(len(slots))
	slog.Debug("slots committed", "count", len(slots), "next_id", s.nextSlot.String())
	return ids, nil
}

// AddTasks validates and commits a task batch, forwarding it to the
// dependency graph inside the same operation. A cycle rejects the whole
// batch: the graph rolls back, no task is stored, and the id counter is
// untouched so later batches continue the sequence.
func (s *Store) AddTasks(batch []entity.TaskSpec) ([]entity.TaskID, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	tasks, err := entity.ValidateTaskSpecs(batch, s.nextTask,
		s.graph.Contains,
		func(id entity.SlotID) (bool, bool) {
			_, exists := s.slotIdx[id]
			_, bound := s.slotTask[id]
			return exists, !bound
		},
	)
	if err != nil {
		return nil, err
	}

	if err := s.graph.Insert(tasks); err != nil {
		return nil, err
	}

	ids := make([]entity.TaskID, len(tasks))
	for i, task := range tasks {
		s.taskIdx[task.ID] = len(s.tasks)
		s.tasks = append(s.tasks, task)
		for _, slot := range task.Slots {
			s.slotTask[slot] = task.ID
		}
		ids[i] = task.ID
	}
	s.nextTask += entity.TaskID(len(tasks))
	slog.Debug("tasks committed", "count", len(tasks), "next_id", s.nextTask.String())
	return ids, nil
}

// AddUsers validates and commits a user batch. Availability rules are
// resolved here against the current planning horizon; a rule that fails
// to expand rejects the whole batch as a validation error.
func (s *Store) AddUsers(batch []entity.UserSpec) ([]entity.UserID, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	users, err := entity.ValidateUserSpecs(batch, s.nextUser)
	if err != nil {
		return nil, err
	}

	for i := range users {
		resolved, err := s.expandFor(&users[i])
		if err != nil {
			return nil, &entity.ValidationError{
				Kind: "user",
				Fields: []entity.FieldError{{
					Index: i, Field: "rules", Reason: err.Error(),
				}},
			}
		}
		users[i].Availability = resolved
	}

	ids := make([]entity.UserID, len(users))
	for i, user := range users {
		s.userIdx[user.ID] = len(s.users)
		s.users = append(s.users, user)
		ids[i] = user.ID
	}
	s.nextUser += entity.UserID(len(users))
	s.index = avail.Build(s.users)
	slog.Debug("users committed", "count", len(users), "next_id", s.nextUser.String())
	return ids, nil
}

// expandFor resolves one user's rules against the current horizon.
// Without a horizon (no slots yet) nothing expands; AddSlots re-expands
// when the horizon appears.
func (s *Store) expandFor(u *entity.User) ([]entity.TimeInterval, error) {
	if !s.hasHorizon {
		return nil, nil
	}
	return avail.ExpandRules(u.Rules, s.horizon)
}

// reexpandUsers re-resolves every user's availability after a horizon
// change and rebuilds the index. Resolution is staged into a scratch
// slice so a failure partway through leaves every user untouched; the
// caller rolls the triggering slot batch back and readers must not see
// availability from the rejected horizon.
func (s *Store) reexpandUsers() error {
	resolved := make([][]entity.TimeInterval, len(s.users))
	for i := range s.users {
		out, err := s.expandFor(&s.users[i])
		if err != nil {
			return fmt.Errorf("user %s: %w", s.users[i].ID, err)
		}
		resolved[i] = out
	}
	for i := range s.users {
		s.users[i].Availability = resolved[i]
	}
	s.index = avail.Build(s.users)
	return nil
}

func (s *Store) recomputeHorizon() {
	s.horizon, s.hasHorizon = avail.Horizon(s.slots)
}

// Slots returns the committed slots in insertion order.
// Callers must not mutate the returned slice.
func (s *Store) Slots() []entity.Slot { return s.slots }

// Tasks returns the committed tasks in insertion order.
func (s *Store) Tasks() []entity.Task { return s.tasks }

// Users returns the committed users in insertion order.
func (s *Store) Users() []entity.User { return s.users }

// Index returns the current availability index.
func (s *Store) Index() *avail.Index { return s.index }

// Graph returns the dependency graph.
func (s *Store) Graph() *graph.Graph { return s.graph }

// Horizon returns the union bound of all slot intervals, false when no
// slots have been committed.
func (s *Store) Horizon() (entity.TimeInterval, bool) {
	return s.horizon, s.hasHorizon
}

// SlotByID looks up a committed slot.
func (s *Store) SlotByID(id entity.SlotID) (entity.Slot, bool) {
	i, ok := s.slotIdx[id]
	if !ok {
		return entity.Slot{}, false
	}
	return s.slots[i], true
}

// TaskByID looks up a committed task.
func (s *Store) TaskByID(id entity.TaskID) (entity.Task, bool) {
	i, ok := s.taskIdx[id]
	if !ok {
		return entity.Task{}, false
	}
	return s.tasks[i], true
}

// UserByID looks up a committed user.
func (s *Store) UserByID(id entity.UserID) (entity.User, bool) {
	i, ok := s.userIdx[id]
	if !ok {
		return entity.User{}, false
	}
	return s.users[i], true
}

// TaskForSlot returns the task bound to a slot, if any.
func (s *Store) TaskForSlot(id entity.SlotID) (entity.TaskID, bool) {
	t, ok := s.slotTask[id]
	return t, ok
}

// Duration estimates a task's duration for deadline propagation: the
// interval length of its bound slot when it has exactly one, zero
// otherwise. Zero propagates the dependent's effective deadline
// undiminished rather than inventing slack.
func (s *Store) Duration(id entity.TaskID) time.Duration {
	task, ok := s.TaskByID(id)
	if !ok || len(task.Slots) != 1 {
		return 0
	}
	slot, ok := s.SlotByID(task.Slots[0])
	if !ok {
		return 0
	}
	return slot.Interval.Duration()
}
