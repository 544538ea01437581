package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestValidateSlotSpecs_Defaults(t *testing.T) {
	slots, err := ValidateSlotSpecs([]SlotSpec{
		{Start: ts(9, 0), End: ts(12, 0)},
		{Start: ts(13, 0), End: ts(17, 0), MinStaff: intPtr(3), Name: strPtr("closing")},
	}, 7)
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, SlotID(7), slots[0].ID)
	assert.Equal(t, 0, slots[0].MinStaff)
	assert.Equal(t, "slot-s.7", slots[0].Name, "missing name gets a generated placeholder")

	assert.Equal(t, SlotID(8), slots[1].ID)
	assert.Equal(t, 3, slots[1].MinStaff)
	assert.Equal(t, "closing", slots[1].Name)
}

func TestValidateSlotSpecs_ReportsEveryOffender(t *testing.T) {
	_, err := ValidateSlotSpecs([]SlotSpec{
		{Start: ts(12, 0), End: ts(9, 0)},
		{Start: ts(9, 0), End: ts(12, 0)},
		{Start: ts(9, 0), End: ts(12, 0), MinStaff: intPtr(-1)},
	}, 0)
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "slot", ve.Kind)
	require.Len(t, ve.Fields, 2, "both bad elements reported, good one skipped")
	assert.Equal(t, 0, ve.Fields[0].Index)
	assert.Equal(t, "interval", ve.Fields[0].Field)
	assert.Equal(t, 2, ve.Fields[1].Index)
	assert.Equal(t, "min_staff", ve.Fields[1].Field)
}

func TestValidateTaskSpecs_InBatchReferences(t *testing.T) {
	// ids 10 and 11 will be assigned to this batch; 11 awaits 10.
	tasks, err := ValidateTaskSpecs([]TaskSpec{
		{Title: "buy shelves"},
		{Title: "stock shelves", Awaiting: []TaskID{10}},
	}, 10,
		func(TaskID) bool { return false },
		func(SlotID) (bool, bool) { return false, false },
	)
	require.NoError(t, err)
	assert.True(t, tasks[1].Deps[10])
}

func TestValidateTaskSpecs_Failures(t *testing.T) {
	_, err := ValidateTaskSpecs([]TaskSpec{
		{Title: ""},
		{Title: "ok", Awaiting: []TaskID{99}},
		{Title: "self", Awaiting: []TaskID{7}},
		{Title: "bad slot", Slots: []SlotID{4}},
	}, 5,
		func(TaskID) bool { return false },
		func(SlotID) (bool, bool) { return false, false },
	)
	require.Error(t, err)

	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Fields, 4)
	assert.Equal(t, "title", ve.Fields[0].Field)
	assert.Equal(t, "awaiting", ve.Fields[1].Field)
	assert.Contains(t, ve.Fields[1].Reason, "unknown task")
	assert.Contains(t, ve.Fields[2].Reason, "cannot depend on itself")
	assert.Contains(t, ve.Fields[3].Reason, "unknown slot")
}

func TestValidateTaskSpecs_SlotDoubleBindingInBatch(t *testing.T) {
	_, err := ValidateTaskSpecs([]TaskSpec{
		{Title: "a", Slots: []SlotID{1}},
		{Title: "b", Slots: []SlotID{1}},
	}, 0,
		func(TaskID) bool { return false },
		func(SlotID) (bool, bool) { return true, true },
	)
	require.Error(t, err)

	ve := err.(*ValidationError)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, 1, ve.Fields[0].Index)
	assert.Contains(t, ve.Fields[0].Reason, "already bound")
}

func TestValidateUserSpecs(t *testing.T) {
	users, err := ValidateUserSpecs([]UserSpec{
		{
			Name:   "alice",
			Skills: []Skill{"cook", "cook", "serve"},
			Rules: []RuleSpec{
				{Include: []TimeInterval{iv(8, 0, 13, 0)}},
			},
		},
	}, 2)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, UserID(2), users[0].ID)
	assert.Equal(t, []Skill{"cook", "serve"}, users[0].SkillList())
	assert.Nil(t, users[0].Availability, "availability is resolved at commit, not validation")
}

func TestValidateUserSpecs_RuleFailures(t *testing.T) {
	until := ts(9, 0)
	_, err := ValidateUserSpecs([]UserSpec{
		{Name: "bob", Rules: []RuleSpec{
			{Include: nil},
			{Include: []TimeInterval{iv(12, 0, 9, 0)}, Pref: Preference(3)},
			{
				Include: []TimeInterval{iv(9, 0, 10, 0)},
				Repeat:  &Repetition{Every: Frequency{}, Start: ts(10, 0), Until: &until},
			},
		}},
	}, 0)
	require.Error(t, err)

	ve := err.(*ValidationError)
	fieldNames := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		fieldNames[i] = f.Field
	}
	assert.Contains(t, fieldNames, "rules[0].include")
	assert.Contains(t, fieldNames, "rules[1].include")
	assert.Contains(t, fieldNames, "rules[1].pref")
	assert.Contains(t, fieldNames, "rules[2].repeat.every")
	assert.Contains(t, fieldNames, "rules[2].repeat.until")
}

func TestPreference_Valid(t *testing.T) {
	assert.True(t, Preference(0).Valid())
	assert.True(t, Preference(-1).Valid())
	assert.True(t, Preference(1).Valid())
	assert.True(t, PrefExclude.Valid())
	assert.True(t, PrefRequire.Valid())
	assert.False(t, Preference(1.5).Valid())
	assert.False(t, Preference(-2).Valid())

	assert.True(t, PrefExclude.Exclusion())
	assert.False(t, PrefRequire.Exclusion())
	assert.False(t, Preference(-1).Exclusion())
}

func TestFrequency_AddTo(t *testing.T) {
	base := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	weekly := Frequency{Weeks: 1}
	assert.Equal(t, time.Date(2025, 1, 22, 8, 0, 0, 0, time.UTC), weekly.AddTo(base))

	mixed := Frequency{Days: 1, Hours: 12}
	assert.Equal(t, time.Date(2025, 1, 16, 20, 0, 0, 0, time.UTC), mixed.AddTo(base))
}
