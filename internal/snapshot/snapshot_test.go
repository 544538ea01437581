package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/override"
	"github.com/sporks/rota/internal/session"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

func openDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seed fills a session with a slot, a skilled task, a recurring-rule
// user, and one applied override.
func seed(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(assign.FixedGenerator{Token: "snap"})

	two := 2
	name := "lunch line"
	require.NoError(t, s.AddSlots([]entity.SlotSpec{
		{Start: at(9), End: at(12), MinStaff: &two, Name: &name},
	}))

	desc := "main service"
	deadline := at(12)
	_, err := s.AddTasks([]entity.TaskSpec{
		{Title: "prep"},
		{Title: "lunch", Desc: &desc, Deadline: &deadline, Awaiting: []entity.TaskID{0}, Skills: []entity.Skill{"cook"}, Slots: []entity.SlotID{0}},
	})
	require.NoError(t, err)

	until := at(24 * 28)
	_, err = s.AddUsers([]entity.UserSpec{
		{
			Name:   "ada",
			Skills: []entity.Skill{"cook", "serve"},
			Rules: []entity.RuleSpec{
				{
					Include: []entity.TimeInterval{{Start: at(8), End: at(18)}},
					Repeat:  &entity.Repetition{Every: entity.Frequency{Weeks: 1}, Start: at(0), Until: &until},
					Pref:    0.5,
				},
				{
					Include: []entity.TimeInterval{{Start: at(12), End: at(13)}},
					Pref:    entity.PrefExclude,
				},
			},
		},
	})
	require.NoError(t, err)

	_, err = s.GenerateFresh(context.Background())
	require.NoError(t, err)
	task := entity.TaskID(1)
	_, err = s.ApplyOverride(override.Edit{Slot: 0, Task: &task, Op: override.OpRemove, User: 0})
	require.NoError(t, err)
	return s
}

func TestRoundTripRestoresIdenticalSession(t *testing.T) {
	db := openDB(t)
	s := seed(t)

	sched, ok := s.Schedule()
	require.True(t, ok)
	require.NoError(t, db.Save(s.View(), sched, s.Overrides()))

	state, err := db.Load()
	require.NoError(t, err)

	// Recommitting the batches reproduces the same ids and entities.
	restored := session.New(assign.FixedGenerator{Token: "snap"})
	require.NoError(t, restored.AddSlots(state.Slots))
	_, err = restored.AddTasks(state.Tasks)
	require.NoError(t, err)
	_, err = restored.AddUsers(state.Users)
	require.NoError(t, err)

	want, got := s.View(), restored.View()
	assert.Equal(t, want.Slots, got.Slots)
	assert.Equal(t, want.Tasks, got.Tasks)
	assert.Equal(t, want.Users, got.Users)

	// The saved schedule and log come back verbatim.
	require.NotNil(t, state.Schedule)
	assert.Equal(t, sched.Token, state.Schedule.Token)
	assert.Equal(t, sched.Entries, state.Schedule.Entries)
	assert.Equal(t, s.Overrides(), state.Overrides)
}

func TestRestoredStateRegeneratesIdentically(t *testing.T) {
	db := openDB(t)
	s := seed(t)

	sched, ok := s.Schedule()
	require.True(t, ok)
	require.NoError(t, db.Save(s.View(), sched, s.Overrides()))
	state, err := db.Load()
	require.NoError(t, err)

	restored := session.New(assign.FixedGenerator{Token: "snap"})
	require.NoError(t, restored.AddSlots(state.Slots))
	_, err = restored.AddTasks(state.Tasks)
	require.NoError(t, err)
	_, err = restored.AddUsers(state.Users)
	require.NoError(t, err)

	// Generating over the restored entities matches generating over the
	// original entities.
	want, err := s.GenerateFresh(context.Background())
	require.NoError(t, err)
	got, err := restored.GenerateFresh(context.Background())
	require.NoError(t, err)

	wantFP, err := want.Fingerprint()
	require.NoError(t, err)
	gotFP, err := got.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, wantFP, gotFP)
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	db := openDB(t)
	s := seed(t)

	sched, ok := s.Schedule()
	require.True(t, ok)
	require.NoError(t, db.Save(s.View(), sched, s.Overrides()))
	require.NoError(t, db.Save(s.View(), sched, s.Overrides()))

	state, err := db.Load()
	require.NoError(t, err)
	assert.Len(t, state.Slots, 1)
	assert.Len(t, state.Tasks, 2)
	assert.Len(t, state.Users, 1)
	assert.Len(t, state.Overrides, 1)
}

func TestLoadEmptySnapshot(t *testing.T) {
	db := openDB(t)

	state, err := db.Load()
	require.NoError(t, err)
	assert.Empty(t, state.Slots)
	assert.Empty(t, state.Tasks)
	assert.Empty(t, state.Users)
	assert.Nil(t, state.Schedule)
	assert.Empty(t, state.Overrides)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}
