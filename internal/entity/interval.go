package entity

import (
	"fmt"
	"time"
)

// TimeInterval is a half-open time range [Start, End).
//
// INVARIANT: Start < End for every committed interval. Specs carrying a
// reversed or empty interval are rejected during validation.
//
// Intervals are ordered by Start, then End, which gives every slice of
// intervals a single total order used for deterministic output.
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the interval satisfies Start < End.
func (t TimeInterval) Valid() bool {
	return t.Start.Before(t.End)
}

// Duration returns End − Start.
func (t TimeInterval) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Contains reports whether other lies entirely within t.
// Containment is inclusive on both bounds: an interval contains itself.
func (t TimeInterval) Contains(other TimeInterval) bool {
	return !other.Start.Before(t.Start) && !other.End.After(t.End)
}

// Overlaps reports whether t and other share any instant.
// Half-open semantics: adjacent intervals ([a,b) and [b,c)) do not overlap.
func (t TimeInterval) Overlaps(other TimeInterval) bool {
	return t.Start.Before(other.End) && other.Start.Before(t.End)
}

// Before orders intervals by Start, then End.
func (t TimeInterval) Before(other TimeInterval) bool {
	if !t.Start.Equal(other.Start) {
		return t.Start.Before(other.Start)
	}
	return t.End.Before(other.End)
}

func (t TimeInterval) String() string {
	return fmt.Sprintf("%s..%s", t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339))
}

// Union returns the smallest interval containing every input, or false
// when the input is empty. Used to derive the planning horizon from the
// known slot intervals.
func Union(intervals []TimeInterval) (TimeInterval, bool) {
	if len(intervals) == 0 {
		return TimeInterval{}, false
	}
	u := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Start.Before(u.Start) {
			u.Start = iv.Start
		}
		if iv.End.After(u.End) {
			u.End = iv.End
		}
	}
	return u, true
}
