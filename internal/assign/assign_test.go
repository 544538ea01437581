package assign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/store"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

func iv(startHour, endHour int) entity.TimeInterval {
	return entity.TimeInterval{Start: at(startHour), End: at(endHour)}
}

type fixture struct {
	t *testing.T
	s *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, s: store.New()}
}

func (f *fixture) slot(startHour, endHour, minStaff int) entity.SlotID {
	f.t.Helper()
	ids, err := f.s.AddSlots([]entity.SlotSpec{
		{Start: at(startHour), End: at(endHour), MinStaff: &minStaff},
	})
	require.NoError(f.t, err)
	return ids[0]
}

func (f *fixture) task(spec entity.TaskSpec) entity.TaskID {
	f.t.Helper()
	ids, err := f.s.AddTasks([]entity.TaskSpec{spec})
	require.NoError(f.t, err)
	return ids[0]
}

func (f *fixture) user(startHour, endHour int, skills ...entity.Skill) entity.UserID {
	f.t.Helper()
	ids, err := f.s.AddUsers([]entity.UserSpec{{
		Name:   "user",
		Rules:  []entity.RuleSpec{{Include: []entity.TimeInterval{iv(startHour, endHour)}}},
		Skills: skills,
	}})
	require.NoError(f.t, err)
	return ids[0]
}

func (f *fixture) generate() *Schedule {
	f.t.Helper()
	sched, err := New(FixedGenerator{Token: "test"}).Generate(context.Background(), f.s.View())
	require.NoError(f.t, err)
	return sched
}

func entryFor(t *testing.T, sched *Schedule, slot entity.SlotID) Assignment {
	t.Helper()
	e, ok := sched.Entry(slot)
	require.True(t, ok, "no entry for slot %s", slot)
	return e
}

func TestPartialCoverageUnderfillsWithAvailability(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 2)
	a := f.user(8, 13, "cook")
	f.user(10, 11, "cook") // covers only part of the slot
	f.task(entity.TaskSpec{Title: "lunch", Skills: []entity.Skill{"cook"}, Slots: []entity.SlotID{s1}})

	e := entryFor(t, f.generate(), s1)
	assert.Equal(t, []entity.UserID{a}, e.Users)
	assert.Equal(t, StatusUnderfilled, e.Status)
	assert.Equal(t, ReasonAvailability, e.Reason)
}

func TestMissingSkillUnderfillsWithSkill(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	f.user(8, 13) // covers, but cannot cook
	f.task(entity.TaskSpec{Title: "lunch", Skills: []entity.Skill{"cook"}, Slots: []entity.SlotID{s1}})

	e := entryFor(t, f.generate(), s1)
	assert.Empty(t, e.Users)
	assert.Equal(t, ReasonSkill, e.Reason)
}

func TestUrgentTaskWinsContendedUser(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	s2 := f.slot(10, 13, 1)
	u := f.user(8, 14)

	d1, d2 := at(20), at(15) // s2's task is more urgent
	f.task(entity.TaskSpec{Title: "later", Deadline: &d1, Slots: []entity.SlotID{s1}})
	f.task(entity.TaskSpec{Title: "sooner", Deadline: &d2, Slots: []entity.SlotID{s2}})

	sched := f.generate()
	e2 := entryFor(t, sched, s2)
	assert.Equal(t, []entity.UserID{u}, e2.Users)
	assert.Equal(t, StatusSatisfied, e2.Status)

	e1 := entryFor(t, sched, s1)
	assert.Empty(t, e1.Users)
	assert.Equal(t, StatusUnderfilled, e1.Status)
	assert.Equal(t, ReasonCommitted, e1.Reason)
}

func TestNoDoubleBookingAcrossOverlappingSlots(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	s2 := f.slot(11, 14, 1)
	f.user(8, 15)
	f.task(entity.TaskSpec{Title: "a", Slots: []entity.SlotID{s1}})
	f.task(entity.TaskSpec{Title: "b", Slots: []entity.SlotID{s2}})

	sched := f.generate()
	staffed := 0
	for _, e := range sched.Entries {
		staffed += len(e.Users)
	}
	assert.Equal(t, 1, staffed, "one user cannot hold two overlapping slots")
}

func TestAdjacentSlotsShareAUser(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	s2 := f.slot(12, 15, 1)
	u := f.user(8, 16)
	f.task(entity.TaskSpec{Title: "a", Slots: []entity.SlotID{s1}})
	f.task(entity.TaskSpec{Title: "b", Slots: []entity.SlotID{s2}})

	sched := f.generate()
	assert.Equal(t, []entity.UserID{u}, entryFor(t, sched, s1).Users)
	assert.Equal(t, []entity.UserID{u}, entryFor(t, sched, s2).Users)
}

func TestLoadBalancingPrefersLessCommittedUser(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 11, 1)
	s2 := f.slot(12, 14, 1) // no overlap, both users stay eligible
	u0 := f.user(8, 15)
	u1 := f.user(8, 15)
	f.task(entity.TaskSpec{Title: "a", Slots: []entity.SlotID{s1}})
	f.task(entity.TaskSpec{Title: "b", Slots: []entity.SlotID{s2}})

	sched := f.generate()
	assert.Equal(t, []entity.UserID{u0}, entryFor(t, sched, s1).Users)
	assert.Equal(t, []entity.UserID{u1}, entryFor(t, sched, s2).Users)
}

func TestUnboundSlotIsStaffedWithoutSkillCheck(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	u := f.user(8, 13) // no skills at all

	e := entryFor(t, f.generate(), s1)
	assert.Nil(t, e.Task)
	assert.Equal(t, []entity.UserID{u}, e.Users)
	assert.Equal(t, StatusSatisfied, e.Status)
}

func TestZeroMinStaffIsSatisfiedEmpty(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 0)

	e := entryFor(t, f.generate(), s1)
	assert.Empty(t, e.Users)
	assert.Equal(t, StatusSatisfied, e.Status)
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	f := newFixture(t)
	f.user(8, 13)

	_, err := New(nil).Generate(context.Background(), f.s.View())
	require.Error(t, err)
	assert.True(t, IsEmptyInputError(err))
}

func TestGenerateHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	f.slot(9, 12, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Generate(ctx, f.s.View())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerationIsDeterministic(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 2)
	f.user(8, 13, "cook")
	f.user(8, 13, "cook")
	f.user(8, 13)
	f.task(entity.TaskSpec{Title: "lunch", Skills: []entity.Skill{"cook"}, Slots: []entity.SlotID{s1}})

	first, second := f.generate(), f.generate()
	fp1, err := first.Fingerprint()
	require.NoError(t, err)
	fp2, err := second.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.Equal(t, first.Entries, second.Entries)
}

func TestFingerprintExcludesToken(t *testing.T) {
	f := newFixture(t)
	f.slot(9, 12, 0)

	v := f.s.View()
	a, err := New(FixedGenerator{Token: "one"}).Generate(context.Background(), v)
	require.NoError(t, err)
	b, err := New(FixedGenerator{Token: "two"}).Generate(context.Background(), v)
	require.NoError(t, err)

	fpa, err := a.Fingerprint()
	require.NoError(t, err)
	fpb, err := b.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, fpa, fpb)
}

func TestCloneIsIndependent(t *testing.T) {
	f := newFixture(t)
	s1 := f.slot(9, 12, 1)
	f.user(8, 13)
	f.task(entity.TaskSpec{Title: "a", Slots: []entity.SlotID{s1}})

	sched := f.generate()
	clone := sched.Clone()
	clone.Entries[0].Users[0] = 99
	clone.Entries[0].Status = StatusUnderfilled

	e := entryFor(t, sched, s1)
	assert.Equal(t, entity.UserID(0), e.Users[0])
	assert.Equal(t, StatusSatisfied, e.Status)
}
