package compiler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporks/rota/internal/entity"
)

const kitchenRoster = `
roster: {
	slots: [
		{start: "2026-03-02T09:00:00Z", end: "2026-03-02T12:00:00Z", min_staff: 2, name: "lunch line"},
		{start: "2026-03-02T13:00:00Z", end: "2026-03-02T17:00:00Z"},
	]
	tasks: [
		{title: "prep"},
		{
			title:    "lunch"
			desc:     "main service"
			deadline: "2026-03-02T12:00:00Z"
			awaiting: [0]
			skills: ["cook"]
			slots: [0]
		},
	]
	users: [
		{
			name: "ada"
			skills: ["cook"]
			rules: [
				{
					include: [{start: "2026-03-02T08:00:00Z", end: "2026-03-02T18:00:00Z"}]
					repeat: {every: {weeks: 1}, start: "2026-03-02T00:00:00Z", until: "2026-03-30T00:00:00Z"}
					pref: 0.5
				},
				{
					include: [{start: "2026-03-02T12:00:00Z", end: "2026-03-02T13:00:00Z"}]
					pref: "exclude"
				},
			]
		},
	]
}
`

func TestCompileKitchenRoster(t *testing.T) {
	roster, err := LoadString(kitchenRoster)
	require.NoError(t, err)

	require.Len(t, roster.Slots, 2)
	require.NotNil(t, roster.Slots[0].MinStaff)
	assert.Equal(t, 2, *roster.Slots[0].MinStaff)
	require.NotNil(t, roster.Slots[0].Name)
	assert.Equal(t, "lunch line", *roster.Slots[0].Name)
	assert.Nil(t, roster.Slots[1].MinStaff)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), roster.Slots[0].Start)

	require.Len(t, roster.Tasks, 2)
	lunch := roster.Tasks[1]
	assert.Equal(t, "lunch", lunch.Title)
	require.NotNil(t, lunch.Desc)
	assert.Equal(t, "main service", *lunch.Desc)
	assert.Equal(t, []entity.TaskID{0}, lunch.Awaiting)
	assert.Equal(t, []entity.Skill{"cook"}, lunch.Skills)
	assert.Equal(t, []entity.SlotID{0}, lunch.Slots)

	require.Len(t, roster.Users, 1)
	ada := roster.Users[0]
	require.Len(t, ada.Rules, 2)
	require.NotNil(t, ada.Rules[0].Repeat)
	assert.Equal(t, 1, ada.Rules[0].Repeat.Every.Weeks)
	require.NotNil(t, ada.Rules[0].Repeat.Until)
	assert.Equal(t, entity.Preference(0.5), ada.Rules[0].Pref)
	assert.True(t, ada.Rules[1].Pref.Exclusion())
}

func TestCompileRejectsEmptyRoster(t *testing.T) {
	_, err := LoadString(`roster: {}`)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "roster", cerr.Field)
}

func TestCompileRejectsBadTimestamp(t *testing.T) {
	_, err := LoadString(`
roster: slots: [{start: "yesterday", end: "2026-03-02T12:00:00Z"}]
`)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "slots[0].start", cerr.Field)
	assert.Contains(t, cerr.Message, "RFC 3339")
}

func TestCompileRejectsMissingTitle(t *testing.T) {
	_, err := LoadString(`
roster: tasks: [{skills: ["cook"]}]
`)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "tasks[0].title", cerr.Field)
}

func TestCompileRejectsUnknownPreferenceKeyword(t *testing.T) {
	_, err := LoadString(`
roster: users: [{
	name: "ada"
	rules: [{
		include: [{start: "2026-03-02T08:00:00Z", end: "2026-03-02T18:00:00Z"}]
		pref: "sometimes"
	}]
}]
`)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "pref", cerr.Field)
}

func TestCompileRejectsRuleWithoutInclude(t *testing.T) {
	_, err := LoadString(`
roster: users: [{name: "ada", rules: [{pref: 1.0}]}]
`)
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "include")
}

func TestMissingRosterDeclaration(t *testing.T) {
	_, err := LoadString(`other: {a: 1}`)
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "roster.cue"), kitchenRoster)

	roster, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, roster.Slots, 2)
	assert.Len(t, roster.Tasks, 2)
	assert.Len(t, roster.Users, 1)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load("testdata/does-not-exist")
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Message, "not found")
}

func TestLoadEmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Contains(t, lerr.Message, "no CUE files")
}
