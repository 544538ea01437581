package avail

import (
	"fmt"

	"github.com/sporks/rota/internal/entity"
)

// maxOccurrences caps repetition expansion within the horizon. A rule
// that produces more concrete intervals than this is treated as
// malformed rather than allowed to consume unbounded memory.
const maxOccurrences = 10000

// ExpandRules resolves a user's rules into concrete availability
// intervals bounded by the planning horizon.
//
// Inclusion intervals are NOT merged with each other: coverage requires
// a single containing interval, so two declarations touching at 12:00
// stay two intervals. Exclusion rules (Pref −Inf) are merged among
// themselves and subtracted from every inclusion; an exclusion punching
// a hole in an inclusion splits it.
//
// The returned intervals are sorted by start then end, duplicates
// removed. An error marks the rule set malformed (non-advancing or
// runaway repetition) and is surfaced as a validation failure by the
// store.
func ExpandRules(rules []entity.Rule, horizon entity.TimeInterval) ([]entity.TimeInterval, error) {
	var include, exclude []entity.TimeInterval

	for i, rule := range rules {
		occ, err := expandRule(rule, horizon)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Pref.Exclusion() {
			exclude = append(exclude, occ...)
		} else {
			include = append(include, occ...)
		}
	}

	exclude = mergeIntervals(exclude)

	var out []entity.TimeInterval
	for _, iv := range include {
		out = append(out, subtract(iv, exclude)...)
	}

	entity.SortIntervals(out)
	return dedupIntervals(out), nil
}

// expandRule produces the concrete occurrences of one rule that overlap
// the horizon.
func expandRule(rule entity.Rule, horizon entity.TimeInterval) ([]entity.TimeInterval, error) {
	var out []entity.TimeInterval
	keep := func(iv entity.TimeInterval) {
		if iv.Overlaps(horizon) {
			out = append(out, iv)
		}
	}

	if rule.Rep == nil {
		for _, iv := range rule.Include {
			keep(iv)
		}
		return out, nil
	}

	rep := rule.Rep
	if rep.Every.IsZero() || rep.Every.Negative() {
		return nil, fmt.Errorf("repetition does not advance time")
	}

	// Earliest include start decides when shifted occurrences have moved
	// entirely past the horizon.
	earliest := rule.Include[0].Start
	for _, iv := range rule.Include[1:] {
		if iv.Start.Before(earliest) {
			earliest = iv.Start
		}
	}

	// Only occurrences landing in the horizon count against the cap;
	// a frequent rule anchored far in the past walks past its early
	// occurrences without being charged for them.
	count := 0
	for date := rep.Start; ; date = rep.Every.AddTo(date) {
		if rep.Until != nil && date.After(*rep.Until) {
			break
		}
		offset := date.Sub(rep.Start)
		if earliest.Add(offset).After(horizon.End) {
			break
		}
		for _, iv := range rule.Include {
			occ := entity.TimeInterval{Start: iv.Start.Add(offset), End: iv.End.Add(offset)}
			if !occ.Overlaps(horizon) {
				continue
			}
			if count++; count > maxOccurrences {
				return nil, fmt.Errorf("repetition expands to more than %d occurrences within the planning horizon", maxOccurrences)
			}
			out = append(out, occ)
		}
	}
	return out, nil
}

// mergeIntervals normalizes a set into sorted, disjoint, coalesced
// intervals. Only used for exclusions; inclusions must never be merged.
func mergeIntervals(intervals []entity.TimeInterval) []entity.TimeInterval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]entity.TimeInterval(nil), intervals...)
	entity.SortIntervals(sorted)

	out := []entity.TimeInterval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract removes every hole from iv, returning the surviving pieces in
// order. holes must be sorted and disjoint.
func subtract(iv entity.TimeInterval, holes []entity.TimeInterval) []entity.TimeInterval {
	var out []entity.TimeInterval
	cur := iv.Start
	for _, hole := range holes {
		if !hole.Overlaps(entity.TimeInterval{Start: cur, End: iv.End}) {
			continue
		}
		if hole.Start.After(cur) {
			out = append(out, entity.TimeInterval{Start: cur, End: hole.Start})
		}
		if hole.End.After(cur) {
			cur = hole.End
		}
		if !cur.Before(iv.End) {
			return out
		}
	}
	if cur.Before(iv.End) {
		out = append(out, entity.TimeInterval{Start: cur, End: iv.End})
	}
	return out
}

func dedupIntervals(intervals []entity.TimeInterval) []entity.TimeInterval {
	if len(intervals) < 2 {
		return intervals
	}
	out := intervals[:1]
	for _, iv := range intervals[1:] {
		if iv != out[len(out)-1] {
			out = append(out, iv)
		}
	}
	return out
}

// Horizon derives the active planning horizon from the known slots.
// Returns false when no slots exist yet; rule expansion then produces no
// intervals and re-runs when the first slots arrive.
func Horizon(slots []entity.Slot) (entity.TimeInterval, bool) {
	intervals := make([]entity.TimeInterval, len(slots))
	for i, s := range slots {
		intervals[i] = s.Interval
	}
	return entity.Union(intervals)
}
