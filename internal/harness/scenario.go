// Package harness runs YAML scheduling scenarios end to end: seed a
// session, generate, apply overrides, then check the effective schedule
// against inline expectations or a golden snapshot.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sporks/rota/internal/entity"
)

// Scenario is one scripted session.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Token is the fixed generation token. Defaults to "scenario".
	Token string `yaml:"token,omitempty"`

	// Steps run in order against a fresh session.
	Steps []Step `yaml:"steps"`

	// Expect checks the final session, when present.
	Expect *Expectations `yaml:"expect,omitempty"`
}

// Step is one session operation. Exactly one operation per step; the
// op string selects which payload field applies.
type Step struct {
	// Op is one of: add_slots, add_tasks, add_users, generate,
	// generate_preserving, override, close.
	Op string `yaml:"op"`

	Slots    []SlotStep    `yaml:"slots,omitempty"`
	Tasks    []TaskStep    `yaml:"tasks,omitempty"`
	Users    []UserStep    `yaml:"users,omitempty"`
	Override *OverrideStep `yaml:"override,omitempty"`

	// ExpectError names the error kind this step must fail with:
	// validation, cycle, empty_input, violation, or state. A step
	// without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SlotStep mirrors a slot spec with RFC 3339 timestamps.
type SlotStep struct {
	Start    string  `yaml:"start"`
	End      string  `yaml:"end"`
	MinStaff *int    `yaml:"min_staff,omitempty"`
	Name     *string `yaml:"name,omitempty"`
}

// TaskStep mirrors a task spec. References are session ids.
type TaskStep struct {
	Title    string   `yaml:"title"`
	Desc     *string  `yaml:"desc,omitempty"`
	Deadline *string  `yaml:"deadline,omitempty"`
	Awaiting []int64  `yaml:"awaiting,omitempty"`
	Skills   []string `yaml:"skills,omitempty"`
	Slots    []int64  `yaml:"slots,omitempty"`
}

// UserStep mirrors a user spec.
type UserStep struct {
	Name   string     `yaml:"name"`
	Skills []string   `yaml:"skills,omitempty"`
	Rules  []RuleStep `yaml:"rules,omitempty"`
}

// RuleStep mirrors an availability rule. Pref is a number or the
// keywords "exclude" / "require".
type RuleStep struct {
	Include []IntervalStep `yaml:"include"`
	Repeat  *RepeatStep    `yaml:"repeat,omitempty"`
	Pref    string         `yaml:"pref,omitempty"`
}

// IntervalStep is an RFC 3339 interval.
type IntervalStep struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// RepeatStep mirrors a repetition.
type RepeatStep struct {
	Every map[string]int `yaml:"every"`
	Start string         `yaml:"start"`
	Until *string        `yaml:"until,omitempty"`
}

// OverrideStep is one manual edit.
type OverrideStep struct {
	Slot   int64  `yaml:"slot"`
	Task   *int64 `yaml:"task,omitempty"`
	Action string `yaml:"action"` // add or remove
	User   int64  `yaml:"user"`
}

// Expectations check the final state of the run.
type Expectations struct {
	// Entries are subset checks against the effective schedule.
	Entries []EntryExpect `yaml:"entries,omitempty"`
	// State is the expected final session state.
	State string `yaml:"state,omitempty"`
	// Dropped is the number of overrides dropped by the last
	// preserving regeneration.
	Dropped *int `yaml:"dropped,omitempty"`
}

// EntryExpect checks one slot's assignment.
type EntryExpect struct {
	Slot   int64   `yaml:"slot"`
	Users  []int64 `yaml:"users"`
	Status string  `yaml:"status"`
	Reason string  `yaml:"reason,omitempty"`
}

// Step op constants.
const (
	OpAddSlots           = "add_slots"
	OpAddTasks           = "add_tasks"
	OpAddUsers           = "add_users"
	OpGenerate           = "generate"
	OpGeneratePreserving = "generate_preserving"
	OpOverride           = "override"
	OpClose              = "close"
)

// LoadScenario reads one scenario file. Unknown YAML fields are
// rejected so typos fail loudly instead of silently skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	if sc.Token == "" {
		sc.Token = "scenario"
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range sc.Steps {
		switch step.Op {
		case OpAddSlots:
			if len(step.Slots) == 0 {
				return fmt.Errorf("steps[%d]: add_slots requires slots", i)
			}
		case OpAddTasks:
			if len(step.Tasks) == 0 {
				return fmt.Errorf("steps[%d]: add_tasks requires tasks", i)
			}
		case OpAddUsers:
			if len(step.Users) == 0 {
				return fmt.Errorf("steps[%d]: add_users requires users", i)
			}
		case OpOverride:
			if step.Override == nil {
				return fmt.Errorf("steps[%d]: override requires an override payload", i)
			}
		case OpGenerate, OpGeneratePreserving, OpClose:
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		switch step.ExpectError {
		case "", ErrKindValidation, ErrKindCycle, ErrKindEmptyInput, ErrKindViolation, ErrKindState:
		default:
			return fmt.Errorf("steps[%d]: unknown expect_error %q", i, step.ExpectError)
		}
	}
	return nil
}

func parseStepTime(s, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: not an RFC 3339 timestamp: %w", field, err)
	}
	return t.UTC(), nil
}

func parseStepInterval(iv IntervalStep, field string) (entity.TimeInterval, error) {
	start, err := parseStepTime(iv.Start, field+".start")
	if err != nil {
		return entity.TimeInterval{}, err
	}
	end, err := parseStepTime(iv.End, field+".end")
	if err != nil {
		return entity.TimeInterval{}, err
	}
	return entity.TimeInterval{Start: start, End: end}, nil
}
