package entity

import (
	"math"
	"time"
)

// Preference expresses how strongly an availability rule applies.
//
// Finite values lie in [-1, +1] and are soft signals carried through for
// external consumers (exporters, UIs). The infinities are hard:
//
//   - +Inf: legally required availability (reserved, not interpreted here)
//   - −Inf: hard exclusion: the rule's intervals are subtracted from the
//     user's availability ("never available on Fridays")
type Preference float64

// PrefExclude marks a rule as a hard exclusion.
var PrefExclude = Preference(math.Inf(-1))

// PrefRequire marks a rule as legally required.
var PrefRequire = Preference(math.Inf(1))

// Valid reports whether the preference is in [-1, +1] or exactly ±Inf.
// NaN is never valid.
func (p Preference) Valid() bool {
	f := float64(p)
	if math.IsNaN(f) {
		return false
	}
	return math.IsInf(f, 0) || (f >= -1 && f <= 1)
}

// Exclusion reports whether the rule bearing this preference removes
// availability instead of adding it.
func (p Preference) Exclusion() bool {
	return math.IsInf(float64(p), -1)
}

// Frequency is a repetition step. Fields add together: {Days: 1, Hours: 12}
// repeats every 36 hours. The zero Frequency is invalid on a repeating rule
// because it would never advance.
type Frequency struct {
	Seconds int `json:"seconds,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Days    int `json:"days,omitempty"`
	Weeks   int `json:"weeks,omitempty"`
	Months  int `json:"months,omitempty"`
	Years   int `json:"years,omitempty"`
}

// IsZero reports whether every component is zero.
func (f Frequency) IsZero() bool {
	return f == Frequency{}
}

// Negative reports whether any component is negative.
func (f Frequency) Negative() bool {
	return f.Seconds < 0 || f.Minutes < 0 || f.Hours < 0 ||
		f.Days < 0 || f.Weeks < 0 || f.Months < 0 || f.Years < 0
}

// AddTo advances t by one frequency step. Calendar components use
// calendar arithmetic (a month from Jan 31 normalizes per time.AddDate);
// clock components use fixed durations.
func (f Frequency) AddTo(t time.Time) time.Time {
	t = t.AddDate(f.Years, f.Months, f.Days+7*f.Weeks)
	return t.Add(time.Duration(f.Seconds)*time.Second +
		time.Duration(f.Minutes)*time.Minute +
		time.Duration(f.Hours)*time.Hour)
}

// Repetition describes how a rule's intervals repeat.
type Repetition struct {
	// Every is the repetition step. Must advance time.
	Every Frequency `json:"every"`

	// Start anchors the first occurrence.
	Start time.Time `json:"start"`

	// Until bounds the repetition, inclusive. Nil repeats forever; the
	// planning horizon bounds expansion in that case.
	Until *time.Time `json:"until,omitempty"`
}

// Rule is one availability statement for a user: a set of base intervals,
// an optional repetition, and a preference weight.
//
// Rules are resolved exactly once, at commit, into concrete intervals
// bounded by the active planning horizon. After commit only the resolved
// intervals matter to scheduling; the rule itself is retained for
// introspection and export.
type Rule struct {
	Include []TimeInterval `json:"include"`
	Rep     *Repetition    `json:"rep,omitempty"`
	Pref    Preference     `json:"pref"`
}
