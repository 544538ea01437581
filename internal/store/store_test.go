package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/graph"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time { return day.Add(time.Duration(hour) * time.Hour) }

func slotSpec(startHour, endHour int) entity.SlotSpec {
	return entity.SlotSpec{Start: at(startHour), End: at(endHour)}
}

func commitSlots(t *testing.T, s *Store, specs ...entity.SlotSpec) []entity.SlotID {
	t.Helper()
	ids, err := s.AddSlots(specs)
	require.NoError(t, err)
	return ids
}

func TestAddSlotsAssignsSequentialIDs(t *testing.T) {
	s := New()

	first := commitSlots(t, s, slotSpec(9, 12), slotSpec(13, 17))
	second := commitSlots(t, s, slotSpec(18, 20))

	assert.Equal(t, []entity.SlotID{0, 1}, first)
	assert.Equal(t, []entity.SlotID{2}, second)
	assert.Len(t, s.Slots(), 3)
}

func TestAddSlotsRejectsWholeBatch(t *testing.T) {
	s := New()

	_, err := s.AddSlots([]entity.SlotSpec{
		slotSpec(9, 12),
		{Start: at(17), End: at(13)}, // inverted
	})
	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	assert.Empty(t, s.Slots())

	// The failed batch consumed no ids.
	ids := commitSlots(t, s, slotSpec(9, 12))
	assert.Equal(t, []entity.SlotID{0}, ids)
}

func TestAddTasksForwardsToGraph(t *testing.T) {
	s := New()

	ids, err := s.AddTasks([]entity.TaskSpec{
		{Title: "prep"},
		{Title: "serve", Awaiting: []entity.TaskID{0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.TaskID{0, 1}, ids)
	assert.True(t, s.Graph().Contains(0))
	assert.True(t, s.Graph().Contains(1))
}

func TestAddTasksCycleRollsBackEverything(t *testing.T) {
	s := New()

	_, err := s.AddTasks([]entity.TaskSpec{{Title: "base"}})
	require.NoError(t, err)

	_, err = s.AddTasks([]entity.TaskSpec{
		{Title: "a", Awaiting: []entity.TaskID{2}},
		{Title: "b", Awaiting: []entity.TaskID{1}},
	})
	require.Error(t, err)
	assert.True(t, graph.IsCycleError(err))

	assert.Len(t, s.Tasks(), 1)
	assert.False(t, s.Graph().Contains(1))

	// Counter unchanged: the next batch continues at id 1.
	ids, err := s.AddTasks([]entity.TaskSpec{{Title: "clean"}})
	require.NoError(t, err)
	assert.Equal(t, []entity.TaskID{1}, ids)
}

func TestAddTasksRejectsUnknownDependency(t *testing.T) {
	s := New()

	_, err := s.AddTasks([]entity.TaskSpec{
		{Title: "orphan", Awaiting: []entity.TaskID{41}},
	})
	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	assert.Empty(t, s.Tasks())
}

func TestSlotBindingIsExclusive(t *testing.T) {
	s := New()
	slots := commitSlots(t, s, slotSpec(9, 12))

	_, err := s.AddTasks([]entity.TaskSpec{
		{Title: "first", Slots: slots},
	})
	require.NoError(t, err)

	bound, ok := s.TaskForSlot(slots[0])
	require.True(t, ok)
	assert.Equal(t, entity.TaskID(0), bound)

	_, err = s.AddTasks([]entity.TaskSpec{
		{Title: "second", Slots: slots},
	})
	require.Error(t, err)
	assert.True(t, entity.IsValidationError(err))
	assert.Len(t, s.Tasks(), 1)
}

func TestAddUsersExpandsAgainstHorizon(t *testing.T) {
	s := New()
	commitSlots(t, s, slotSpec(9, 17))

	shift := entity.TimeInterval{Start: at(8), End: at(18)}
	_, err := s.AddUsers([]entity.UserSpec{
		{Name: "ada", Rules: []entity.RuleSpec{{Include: []entity.TimeInterval{shift}}}},
	})
	require.NoError(t, err)

	assert.True(t, s.Index().Covers(0, entity.TimeInterval{Start: at(9), End: at(17)}))
}

func TestHorizonGrowthReexpandsUsers(t *testing.T) {
	s := New()
	commitSlots(t, s, slotSpec(9, 17))

	// Weekly rule: only the first occurrence fits the one-day horizon.
	weekly := entity.RuleSpec{
		Include: []entity.TimeInterval{{Start: at(8), End: at(18)}},
		Repeat:  &entity.Repetition{Every: entity.Frequency{Weeks: 1}, Start: at(0)},
	}
	_, err := s.AddUsers([]entity.UserSpec{{Name: "ada", Rules: []entity.RuleSpec{weekly}}})
	require.NoError(t, err)

	nextWeek := entity.TimeInterval{
		Start: at(9).AddDate(0, 0, 7),
		End:   at(17).AddDate(0, 0, 7),
	}
	assert.False(t, s.Index().Covers(0, nextWeek))

	// A slot one week out grows the horizon and re-resolves the rule.
	_, err = s.AddSlots([]entity.SlotSpec{{Start: nextWeek.Start, End: nextWeek.End}})
	require.NoError(t, err)
	assert.True(t, s.Index().Covers(0, nextWeek))
}

func TestRejectedHorizonGrowthLeavesAvailabilityUntouched(t *testing.T) {
	s := New()
	commitSlots(t, s, slotSpec(9, 10))

	weekly := entity.RuleSpec{
		Include: []entity.TimeInterval{{Start: at(8), End: at(18)}},
		Repeat:  &entity.Repetition{Every: entity.Frequency{Weeks: 1}, Start: at(0)},
	}
	perSecond := entity.RuleSpec{
		Include: []entity.TimeInterval{{Start: at(9), End: at(9).Add(time.Second)}},
		Repeat:  &entity.Repetition{Every: entity.Frequency{Seconds: 1}, Start: at(9)},
	}
	_, err := s.AddUsers([]entity.UserSpec{
		{Name: "ada", Rules: []entity.RuleSpec{weekly}},
		{Name: "ben", Rules: []entity.RuleSpec{perSecond}},
	})
	require.NoError(t, err)

	ada, ok := s.UserByID(0)
	require.True(t, ok)
	adaBefore := append([]entity.TimeInterval(nil), ada.Availability...)
	require.Len(t, adaBefore, 1)

	// A slot a year out grows the horizon past ben's expansion cap. The
	// batch rolls back, and ada, re-expanded before ben failed, must not
	// keep availability from the rejected horizon.
	_, err = s.AddSlots([]entity.SlotSpec{
		{Start: at(9).AddDate(1, 0, 0), End: at(10).AddDate(1, 0, 0)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occurrences")

	assert.Len(t, s.Slots(), 1)
	horizon, ok := s.Horizon()
	require.True(t, ok)
	assert.Equal(t, at(10), horizon.End)

	ada, ok = s.UserByID(0)
	require.True(t, ok)
	assert.Equal(t, adaBefore, ada.Availability)

	nextWeek := entity.TimeInterval{
		Start: at(9).AddDate(0, 0, 7),
		End:   at(10).AddDate(0, 0, 7),
	}
	assert.False(t, s.Index().Covers(0, nextWeek))
}

func TestUsersBeforeSlotsHaveNoAvailabilityYet(t *testing.T) {
	s := New()

	shift := entity.TimeInterval{Start: at(8), End: at(18)}
	_, err := s.AddUsers([]entity.UserSpec{
		{Name: "ada", Rules: []entity.RuleSpec{{Include: []entity.TimeInterval{shift}}}},
	})
	require.NoError(t, err)

	user, ok := s.UserByID(0)
	require.True(t, ok)
	assert.Empty(t, user.Availability)

	// First slot establishes the horizon and backfills availability.
	commitSlots(t, s, slotSpec(9, 17))
	assert.True(t, s.Index().Covers(0, entity.TimeInterval{Start: at(9), End: at(17)}))
}

func TestDurationFollowsSingleBoundSlot(t *testing.T) {
	s := New()
	slots := commitSlots(t, s, slotSpec(9, 12), slotSpec(13, 17))

	_, err := s.AddTasks([]entity.TaskSpec{
		{Title: "bound", Slots: slots[:1]},
		{Title: "unbound"},
		{Title: "spread", Slots: slots[1:]},
	})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Hour, s.Duration(0))
	assert.Equal(t, time.Duration(0), s.Duration(1))
	assert.Equal(t, 4*time.Hour, s.Duration(2))
}

func TestViewIsIsolatedFromLaterCommits(t *testing.T) {
	s := New()
	commitSlots(t, s, slotSpec(9, 12))
	_, err := s.AddTasks([]entity.TaskSpec{{Title: "prep"}})
	require.NoError(t, err)

	v := s.View()
	require.Len(t, v.Tasks, 1)
	require.Len(t, v.UrgencyOrder, 1)

	_, err = s.AddTasks([]entity.TaskSpec{{Title: "serve"}})
	require.NoError(t, err)
	commitSlots(t, s, slotSpec(13, 17))

	assert.Len(t, v.Tasks, 1)
	assert.Len(t, v.Slots, 1)
	assert.Len(t, s.View().Tasks, 2)
}

func TestViewUrgencyOrderPrefersEarlierDeadline(t *testing.T) {
	s := New()
	commitSlots(t, s, slotSpec(9, 12), slotSpec(13, 17))

	late, early := at(20), at(10)
	_, err := s.AddTasks([]entity.TaskSpec{
		{Title: "late", Deadline: &late},
		{Title: "early", Deadline: &early},
		{Title: "open"},
	})
	require.NoError(t, err)

	v := s.View()
	assert.Equal(t, []int{1, 0, 2}, v.UrgencyOrder)
}
