package harness

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/graph"
	"github.com/sporks/rota/internal/override"
	"github.com/sporks/rota/internal/session"
)

// Error kinds a step may expect.
const (
	ErrKindValidation = "validation"
	ErrKindCycle      = "cycle"
	ErrKindEmptyInput = "empty_input"
	ErrKindViolation  = "violation"
	ErrKindState      = "state"
)

// Result is the outcome of a scenario run.
type Result struct {
	Session  *session.Session
	Schedule *assign.Schedule // effective schedule after the last generation, nil if none
	Dropped  []override.Edit  // dropped by the last preserving regeneration
}

// Run executes the scenario against a fresh session.
func Run(sc *Scenario) (*Result, error) {
	res := &Result{Session: session.New(assign.FixedGenerator{Token: sc.Token})}
	ctx := context.Background()

	for i, step := range sc.Steps {
		err := runStep(ctx, res, step)
		if step.ExpectError != "" {
			if err == nil {
				return nil, fmt.Errorf("steps[%d] (%s): expected %s error, got success", i, step.Op, step.ExpectError)
			}
			if kind := classifyError(err); kind != step.ExpectError {
				return nil, fmt.Errorf("steps[%d] (%s): expected %s error, got %s: %w", i, step.Op, step.ExpectError, kind, err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}
	return res, nil
}

func runStep(ctx context.Context, res *Result, step Step) error {
	s := res.Session
	switch step.Op {
	case OpAddSlots:
		batch, err := slotSpecs(step.Slots)
		if err != nil {
			return err
		}
		return s.AddSlots(batch)
	case OpAddTasks:
		batch, err := taskSpecs(step.Tasks)
		if err != nil {
			return err
		}
		_, err = s.AddTasks(batch)
		return err
	case OpAddUsers:
		batch, err := userSpecs(step.Users)
		if err != nil {
			return err
		}
		_, err = s.AddUsers(batch)
		return err
	case OpGenerate:
		sched, err := s.GenerateFresh(ctx)
		if err != nil {
			return err
		}
		res.Schedule, res.Dropped = sched, nil
		return nil
	case OpGeneratePreserving:
		sched, dropped, err := s.GeneratePreservingOverrides(ctx)
		if err != nil {
			return err
		}
		res.Schedule, res.Dropped = sched, dropped
		return nil
	case OpOverride:
		edit := override.Edit{
			Slot: entity.SlotID(step.Override.Slot),
			Op:   override.Op(step.Override.Action),
			User: entity.UserID(step.Override.User),
		}
		if step.Override.Task != nil {
			id := entity.TaskID(*step.Override.Task)
			edit.Task = &id
		}
		sched, err := s.ApplyOverride(edit)
		if err != nil {
			return err
		}
		res.Schedule = sched
		return nil
	case OpClose:
		return s.Close()
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func classifyError(err error) string {
	switch {
	case entity.IsValidationError(err):
		return ErrKindValidation
	case graph.IsCycleError(err):
		return ErrKindCycle
	case assign.IsEmptyInputError(err):
		return ErrKindEmptyInput
	case override.IsViolationError(err):
		return ErrKindViolation
	case session.IsStateError(err):
		return ErrKindState
	default:
		return "unknown"
	}
}

func slotSpecs(steps []SlotStep) ([]entity.SlotSpec, error) {
	specs := make([]entity.SlotSpec, 0, len(steps))
	for i, s := range steps {
		field := fmt.Sprintf("slots[%d]", i)
		start, err := parseStepTime(s.Start, field+".start")
		if err != nil {
			return nil, err
		}
		end, err := parseStepTime(s.End, field+".end")
		if err != nil {
			return nil, err
		}
		specs = append(specs, entity.SlotSpec{Start: start, End: end, MinStaff: s.MinStaff, Name: s.Name})
	}
	return specs, nil
}

func taskSpecs(steps []TaskStep) ([]entity.TaskSpec, error) {
	specs := make([]entity.TaskSpec, 0, len(steps))
	for i, t := range steps {
		field := fmt.Sprintf("tasks[%d]", i)
		spec := entity.TaskSpec{Title: t.Title, Desc: t.Desc}
		if t.Deadline != nil {
			deadline, err := parseStepTime(*t.Deadline, field+".deadline")
			if err != nil {
				return nil, err
			}
			spec.Deadline = &deadline
		}
		for _, id := range t.Awaiting {
			spec.Awaiting = append(spec.Awaiting, entity.TaskID(id))
		}
		for _, skill := range t.Skills {
			spec.Skills = append(spec.Skills, entity.Skill(skill))
		}
		for _, id := range t.Slots {
			spec.Slots = append(spec.Slots, entity.SlotID(id))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func userSpecs(steps []UserStep) ([]entity.UserSpec, error) {
	specs := make([]entity.UserSpec, 0, len(steps))
	for i, u := range steps {
		spec := entity.UserSpec{Name: u.Name}
		for _, skill := range u.Skills {
			spec.Skills = append(spec.Skills, entity.Skill(skill))
		}
		for r, rule := range u.Rules {
			field := fmt.Sprintf("users[%d].rules[%d]", i, r)
			rs, err := ruleSpec(rule, field)
			if err != nil {
				return nil, err
			}
			spec.Rules = append(spec.Rules, rs)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func ruleSpec(rule RuleStep, field string) (entity.RuleSpec, error) {
	rs := entity.RuleSpec{}
	for _, iv := range rule.Include {
		parsed, err := parseStepInterval(iv, field+".include")
		if err != nil {
			return rs, err
		}
		rs.Include = append(rs.Include, parsed)
	}
	if rule.Repeat != nil {
		rep := &entity.Repetition{}
		for name, n := range rule.Repeat.Every {
			switch name {
			case "seconds":
				rep.Every.Seconds = n
			case "minutes":
				rep.Every.Minutes = n
			case "hours":
				rep.Every.Hours = n
			case "days":
				rep.Every.Days = n
			case "weeks":
				rep.Every.Weeks = n
			case "months":
				rep.Every.Months = n
			case "years":
				rep.Every.Years = n
			default:
				return rs, fmt.Errorf("%s.repeat.every: unknown component %q", field, name)
			}
		}
		start, err := parseStepTime(rule.Repeat.Start, field+".repeat.start")
		if err != nil {
			return rs, err
		}
		rep.Start = start
		if rule.Repeat.Until != nil {
			until, err := parseStepTime(*rule.Repeat.Until, field+".repeat.until")
			if err != nil {
				return rs, err
			}
			rep.Until = &until
		}
		rs.Repeat = rep
	}
	if rule.Pref != "" {
		pref, err := parsePref(rule.Pref, field+".pref")
		if err != nil {
			return rs, err
		}
		rs.Pref = pref
	}
	return rs, nil
}

func parsePref(s, field string) (entity.Preference, error) {
	switch s {
	case "exclude":
		return entity.PrefExclude, nil
	case "require":
		return entity.PrefRequire, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number or keyword: %w", field, err)
	}
	return entity.Preference(f), nil
}

// Check verifies the scenario's expectations against the run result.
func Check(sc *Scenario, res *Result) error {
	if sc.Expect == nil {
		return nil
	}
	if sc.Expect.State != "" {
		if got := string(res.Session.State()); got != sc.Expect.State {
			return fmt.Errorf("final state: got %s, want %s", got, sc.Expect.State)
		}
	}
	if sc.Expect.Dropped != nil && len(res.Dropped) != *sc.Expect.Dropped {
		return fmt.Errorf("dropped overrides: got %d, want %d", len(res.Dropped), *sc.Expect.Dropped)
	}
	for _, want := range sc.Expect.Entries {
		if res.Schedule == nil {
			return fmt.Errorf("entry check for slot %d: no schedule was generated", want.Slot)
		}
		got, ok := res.Schedule.Entry(entity.SlotID(want.Slot))
		if !ok {
			return fmt.Errorf("entry check: slot %d not in schedule", want.Slot)
		}
		if err := checkEntry(want, got); err != nil {
			return err
		}
	}
	return nil
}

func checkEntry(want EntryExpect, got assign.Assignment) error {
	users := make([]int64, 0, len(got.Users))
	for _, u := range got.Users {
		users = append(users, int64(u))
	}
	if len(users) != len(want.Users) {
		return fmt.Errorf("slot %d users: got %v, want %v", want.Slot, users, want.Users)
	}
	for i := range users {
		if users[i] != want.Users[i] {
			return fmt.Errorf("slot %d users: got %v, want %v", want.Slot, users, want.Users)
		}
	}
	if want.Status != "" && string(got.Status) != want.Status {
		return fmt.Errorf("slot %d status: got %s, want %s", want.Slot, got.Status, want.Status)
	}
	if want.Reason != "" && string(got.Reason) != want.Reason {
		return fmt.Errorf("slot %d reason: got %s, want %s", want.Slot, got.Reason, want.Reason)
	}
	return nil
}
