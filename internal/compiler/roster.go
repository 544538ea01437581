// Package compiler parses CUE roster definitions into entity specs.
// A roster file declares the slots, tasks, and users a session should
// be seeded with:
//
//	roster: {
//		slots: [{start: "2026-03-02T09:00:00Z", end: "2026-03-02T12:00:00Z", min_staff: 2}]
//		tasks: [{title: "lunch", skills: ["cook"], slots: [0]}]
//		users: [{name: "ada", skills: ["cook"], rules: [{include: [...]}]}]
//	}
//
// Task and slot references use list positions, which equal the ids a
// fresh session assigns when the batches are committed in file order.
package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/sporks/rota/internal/entity"
)

// Roster is the compiled form of a roster file: three spec batches in
// declaration order.
type Roster struct {
	Slots []entity.SlotSpec
	Tasks []entity.TaskSpec
	Users []entity.UserSpec
}

// CompileError is a roster compilation failure with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileRoster parses a CUE value holding the roster struct. The value
// is the roster itself, not its parent:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	roster, err := CompileRoster(v.LookupPath(cue.ParsePath("roster")))
func CompileRoster(v cue.Value) (*Roster, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	roster := &Roster{}
	var err error

	if slotsVal := v.LookupPath(cue.ParsePath("slots")); slotsVal.Exists() {
		roster.Slots, err = parseSlots(slotsVal)
		if err != nil {
			return nil, err
		}
	}
	if tasksVal := v.LookupPath(cue.ParsePath("tasks")); tasksVal.Exists() {
		roster.Tasks, err = parseTasks(tasksVal)
		if err != nil {
			return nil, err
		}
	}
	if usersVal := v.LookupPath(cue.ParsePath("users")); usersVal.Exists() {
		roster.Users, err = parseUsers(usersVal)
		if err != nil {
			return nil, err
		}
	}

	if len(roster.Slots) == 0 && len(roster.Tasks) == 0 && len(roster.Users) == 0 {
		return nil, &CompileError{
			Field:   "roster",
			Message: "roster declares no slots, tasks, or users",
			Pos:     v.Pos(),
		}
	}
	return roster, nil
}

func parseSlots(v cue.Value) ([]entity.SlotSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var slots []entity.SlotSpec
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		field := func(name string) string { return fmt.Sprintf("slots[%d].%s", i, name) }

		start, err := parseTime(sv, "start", field("start"))
		if err != nil {
			return nil, err
		}
		end, err := parseTime(sv, "end", field("end"))
		if err != nil {
			return nil, err
		}
		spec := entity.SlotSpec{Start: start, End: end}

		if mv := sv.LookupPath(cue.ParsePath("min_staff")); mv.Exists() {
			n, err := mv.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			staff := int(n)
			spec.MinStaff = &staff
		}
		if nv := sv.LookupPath(cue.ParsePath("name")); nv.Exists() {
			name, err := nv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Name = &name
		}
		slots = append(slots, spec)
	}
	return slots, nil
}

func parseTasks(v cue.Value) ([]entity.TaskSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tasks []entity.TaskSpec
	for i := 0; iter.Next(); i++ {
		tv := iter.Value()
		field := func(name string) string { return fmt.Sprintf("tasks[%d].%s", i, name) }

		title, err := requiredString(tv, "title", field("title"))
		if err != nil {
			return nil, err
		}
		spec := entity.TaskSpec{Title: title}

		if dv := tv.LookupPath(cue.ParsePath("desc")); dv.Exists() {
			desc, err := dv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			spec.Desc = &desc
		}
		if dv := tv.LookupPath(cue.ParsePath("deadline")); dv.Exists() {
			deadline, err := parseTime(tv, "deadline", field("deadline"))
			if err != nil {
				return nil, err
			}
			spec.Deadline = &deadline
		}
		awaiting, err := parseIDList(tv, "awaiting")
		if err != nil {
			return nil, err
		}
		for _, id := range awaiting {
			spec.Awaiting = append(spec.Awaiting, entity.TaskID(id))
		}
		spec.Skills, err = parseSkills(tv)
		if err != nil {
			return nil, err
		}
		bound, err := parseIDList(tv, "slots")
		if err != nil {
			return nil, err
		}
		for _, id := range bound {
			spec.Slots = append(spec.Slots, entity.SlotID(id))
		}
		tasks = append(tasks, spec)
	}
	return tasks, nil
}

func parseUsers(v cue.Value) ([]entity.UserSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var users []entity.UserSpec
	for i := 0; iter.Next(); i++ {
		uv := iter.Value()
		field := func(name string) string { return fmt.Sprintf("users[%d].%s", i, name) }

		name, err := requiredString(uv, "name", field("name"))
		if err != nil {
			return nil, err
		}
		spec := entity.UserSpec{Name: name}

		spec.Skills, err = parseSkills(uv)
		if err != nil {
			return nil, err
		}
		if rv := uv.LookupPath(cue.ParsePath("rules")); rv.Exists() {
			spec.Rules, err = parseRules(rv, field("rules"))
			if err != nil {
				return nil, err
			}
		}
		users = append(users, spec)
	}
	return users, nil
}

func parseRules(v cue.Value, field string) ([]entity.RuleSpec, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rules []entity.RuleSpec
	for iter.Next() {
		rv := iter.Value()
		rule := entity.RuleSpec{}

		incVal := rv.LookupPath(cue.ParsePath("include"))
		if !incVal.Exists() {
			return nil, &CompileError{Field: field, Message: "rule is missing include intervals", Pos: rv.Pos()}
		}
		incIter, err := incVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for incIter.Next() {
			iv := incIter.Value()
			start, err := parseTime(iv, "start", field+".include.start")
			if err != nil {
				return nil, err
			}
			end, err := parseTime(iv, "end", field+".include.end")
			if err != nil {
				return nil, err
			}
			rule.Include = append(rule.Include, entity.TimeInterval{Start: start, End: end})
		}

		if repVal := rv.LookupPath(cue.ParsePath("repeat")); repVal.Exists() {
			rep, err := parseRepetition(repVal, field+".repeat")
			if err != nil {
				return nil, err
			}
			rule.Repeat = rep
		}
		if pv := rv.LookupPath(cue.ParsePath("pref")); pv.Exists() {
			pref, err := parsePreference(pv)
			if err != nil {
				return nil, err
			}
			rule.Pref = pref
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRepetition(v cue.Value, field string) (*entity.Repetition, error) {
	rep := &entity.Repetition{}

	everyVal := v.LookupPath(cue.ParsePath("every"))
	if !everyVal.Exists() {
		return nil, &CompileError{Field: field + ".every", Message: "repetition requires a frequency", Pos: v.Pos()}
	}
	for name, dst := range map[string]*int{
		"seconds": &rep.Every.Seconds,
		"minutes": &rep.Every.Minutes,
		"hours":   &rep.Every.Hours,
		"days":    &rep.Every.Days,
		"weeks":   &rep.Every.Weeks,
		"months":  &rep.Every.Months,
		"years":   &rep.Every.Years,
	} {
		cv := everyVal.LookupPath(cue.ParsePath(name))
		if !cv.Exists() {
			continue
		}
		n, err := cv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*dst = int(n)
	}

	start, err := parseTime(v, "start", field+".start")
	if err != nil {
		return nil, err
	}
	rep.Start = start

	if uv := v.LookupPath(cue.ParsePath("until")); uv.Exists() {
		until, err := parseTime(v, "until", field+".until")
		if err != nil {
			return nil, err
		}
		rep.Until = &until
	}
	return rep, nil
}

// parsePreference accepts a number in [-1, +1] or the keywords
// "exclude" and "require" for the infinite legal rules.
func parsePreference(v cue.Value) (entity.Preference, error) {
	if s, err := v.String(); err == nil {
		switch s {
		case "exclude":
			return entity.PrefExclude, nil
		case "require":
			return entity.PrefRequire, nil
		default:
			return 0, &CompileError{Field: "pref", Message: fmt.Sprintf("unknown preference keyword %q", s), Pos: v.Pos()}
		}
	}
	f, err := v.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return entity.Preference(f), nil
}

func parseSkills(v cue.Value) ([]entity.Skill, error) {
	sv := v.LookupPath(cue.ParsePath("skills"))
	if !sv.Exists() {
		return nil, nil
	}
	iter, err := sv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var skills []entity.Skill
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		skills = append(skills, entity.Skill(s))
	}
	return skills, nil
}

func parseIDList(v cue.Value, path string) ([]int64, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ids []int64
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", &CompileError{Field: field, Message: "is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseTime reads an RFC 3339 timestamp field.
func parseTime(v cue.Value, path, field string) (time.Time, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return time.Time{}, &CompileError{Field: field, Message: "is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return time.Time{}, formatCUEError(err)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &CompileError{Field: field, Message: fmt.Sprintf("not an RFC 3339 timestamp: %v", err), Pos: sv.Pos()}
	}
	return t.UTC(), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	firstErr := errs[0]
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
