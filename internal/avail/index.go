package avail

import (
	"sort"
	"time"

	"github.com/sporks/rota/internal/entity"
)

// Index answers coverage queries over resolved availability.
//
// Per user, intervals are stored sorted by start with a running prefix
// maximum of ends. "Does some single interval contain [s, e)" then
// reduces to: among intervals starting at or before s (binary search),
// does the maximum end reach e. Query cost is logarithmic in the user's
// interval count plus the size of the answer, independent of the total
// user population.
type Index struct {
	users  []entity.UserID
	byUser map[entity.UserID]*userIntervals
}

type userIntervals struct {
	intervals []entity.TimeInterval // sorted by start, then end
	maxEnd    []time.Time           // maxEnd[i] = max End of intervals[0..i]
}

// Build constructs an index over the users' resolved availability.
// User availability must already be sorted (ExpandRules output).
func Build(users []entity.User) *Index {
	idx := &Index{byUser: make(map[entity.UserID]*userIntervals, len(users))}
	for _, u := range users {
		ui := &userIntervals{
			intervals: u.Availability,
			maxEnd:    make([]time.Time, len(u.Availability)),
		}
		for i, iv := range u.Availability {
			ui.maxEnd[i] = iv.End
			if i > 0 && ui.maxEnd[i-1].After(iv.End) {
				ui.maxEnd[i] = ui.maxEnd[i-1]
			}
		}
		idx.byUser[u.ID] = ui
		idx.users = append(idx.users, u.ID)
	}
	sort.Slice(idx.users, func(i, j int) bool { return idx.users[i] < idx.users[j] })
	return idx
}

// Covers reports whether some single availability interval of the user
// fully contains iv.
func (x *Index) Covers(id entity.UserID, iv entity.TimeInterval) bool {
	ui, ok := x.byUser[id]
	if !ok || len(ui.intervals) == 0 {
		return false
	}
	// First interval starting strictly after iv.Start; candidates are
	// everything before it.
	n := sort.Search(len(ui.intervals), func(i int) bool {
		return ui.intervals[i].Start.After(iv.Start)
	})
	if n == 0 {
		return false
	}
	return !ui.maxEnd[n-1].Before(iv.End)
}

// CandidatesFor returns every user with a single interval fully covering
// iv, in ascending UserID order for deterministic downstream iteration.
func (x *Index) CandidatesFor(iv entity.TimeInterval) []entity.UserID {
	var out []entity.UserID
	for _, id := range x.users {
		if x.Covers(id, iv) {
			out = append(out, id)
		}
	}
	return out
}
