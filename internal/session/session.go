// Package session is the boundary of the scheduling core: an
// instantiable server state holding the entity store, the assigner, and
// the override layer behind a narrow set of operations.
//
// A session serializes all mutation through one writer lock. Generation
// runs over an immutable view taken under that lock, and the lock is
// held until the computation returns, so a mutation issued mid-flight
// queues behind it and can never touch the view being read. Independent
// sessions share nothing; tests construct as many as they like.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/override"
	"github.com/sporks/rota/internal/store"
)

// Session drives one scheduling conversation from entity collection
// through generation and review.
type Session struct {
	mu       sync.Mutex
	store    *store.Store
	assigner *assign.Assigner
	layer    *override.Layer // nil until the first generation

	// state has its own lock so observers can see "generating" while
	// the writer lock is held by a running generation.
	stateMu sync.Mutex
	state   State
}

// New creates an empty session. A nil token generator means UUIDv7
// generation tokens.
func New(tokens assign.TokenGenerator) *Session {
	return &Session{
		store:    store.New(),
		assigner: assign.New(tokens),
		state:    StateIdle,
	}
}

// State reports the session's current phase.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.stateMu.Lock()
	s.state = next
	s.stateMu.Unlock()
}

// guardMutation checks that entity mutation is legal in the current
// phase and moves the session to collecting. Mutating after a review
// leaves the existing schedule stale; the override log survives for a
// later preserving regeneration.
func (s *Session) guardMutation(op string) error {
	switch st := s.State(); st {
	case StateIdle, StateCollecting, StateReviewing:
		s.setState(StateCollecting)
		return nil
	default:
		return &StateError{Op: op, State: st}
	}
}

// AddSlots commits a slot batch. All-or-nothing; a failed batch leaves
// the session unchanged.
func (s *Session) AddSlots(batch []entity.SlotSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutation("add_slots"); err != nil {
		return err
	}
	_, err := s.store.AddSlots(batch)
	return err
}

// AddTasks commits a task batch and returns the assigned ids in input
// order.
func (s *Session) AddTasks(batch []entity.TaskSpec) ([]entity.TaskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutation("add_tasks"); err != nil {
		return nil, err
	}
	return s.store.AddTasks(batch)
}

// AddUsers commits a user batch and returns the assigned ids in input
// order.
func (s *Session) AddUsers(batch []entity.UserSpec) ([]entity.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardMutation("add_users"); err != nil {
		return nil, err
	}
	return s.store.AddUsers(batch)
}

// GenerateFresh produces a new baseline schedule and discards any
// previous override log.
func (s *Session) GenerateFresh(ctx context.Context) (*assign.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.generate(ctx)
	if err != nil {
		return nil, err
	}
	s.layer = override.NewLayer(sched)
	return s.layer.Effective(), nil
}

// GeneratePreservingOverrides produces a new baseline and replays the
// existing override log onto it. Edits that no longer validate are
// dropped and returned so the caller can report them.
func (s *Session) GeneratePreservingOverrides(ctx context.Context) (*assign.Schedule, []override.Edit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.generate(ctx)
	if err != nil {
		return nil, nil, err
	}
	if s.layer == nil {
		s.layer = override.NewLayer(sched)
		return s.layer.Effective(), nil, nil
	}
	dropped := s.layer.Rebase(s.store.View(), sched)
	return s.layer.Effective(), dropped, nil
}

// generate runs the assigner under the writer lock. Caller holds s.mu.
func (s *Session) generate(ctx context.Context) (*assign.Schedule, error) {
	st := s.State()
	switch st {
	case StateIdle, StateCollecting, StateReviewing:
		// From idle the assigner reports the empty input itself.
	default:
		return nil, &StateError{Op: "generate", State: st}
	}
	s.setState(StateGenerating)

	sched, err := s.assigner.Generate(ctx, s.store.View())
	if err != nil {
		s.setState(st)
		return nil, err
	}
	s.setState(StateReviewing)
	slog.Debug("generation finished", "token", sched.Token, "state", string(StateReviewing))
	return sched, nil
}

// ApplyOverride validates and applies one manual edit, returning the
// updated effective schedule. A rejected edit leaves everything
// unchanged.
func (s *Session) ApplyOverride(e override.Edit) (*assign.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateReviewing {
		return nil, &StateError{Op: "apply_override", State: st}
	}
	return s.layer.Apply(s.store.View(), e)
}

// Schedule returns the current effective schedule, false before the
// first generation.
func (s *Session) Schedule() (*assign.Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer == nil {
		return nil, false
	}
	return s.layer.Effective(), true
}

// Overrides returns the applied edit log in order.
func (s *Session) Overrides() []override.Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layer == nil {
		return nil
	}
	return s.layer.Log()
}

// View captures a consistent read-only view of the entity state.
func (s *Session) View() *store.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.View()
}

// Close tears the session down. Every later operation fails with a
// StateError.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.State(); st == StateClosed {
		return &StateError{Op: "close", State: st}
	}
	s.setState(StateClosed)
	return nil
}
