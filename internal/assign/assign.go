package assign

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/store"
)

// Assigner turns a store view into a schedule. It holds no state across
// generations; every call starts from a clean commitment ledger.
type Assigner struct {
	tokens TokenGenerator
}

// New creates an assigner. A nil generator falls back to UUIDv7 tokens.
func New(tokens TokenGenerator) *Assigner {
	if tokens == nil {
		tokens = UUIDGenerator{}
	}
	return &Assigner{tokens: tokens}
}

// unit is one slot queued for staffing, with the task bound to it when
// one exists.
type unit struct {
	slot entity.Slot
	task *entity.Task
}

// Generate staffs every slot in the view and returns the schedule.
// Slots are processed most urgent first; contention for scarce users is
// resolved in that order, so a less urgent slot can end up underfilled
// with already_committed. The only error conditions are an empty view
// and context cancellation.
//
// Generation is deterministic: every tie-break is a total order over
// stable ids, so identical views produce identical entries (and an
// identical fingerprint).
func (a *Assigner) Generate(ctx context.Context, v *store.View) (*Schedule, error) {
	if len(v.Slots) == 0 && len(v.Tasks) == 0 {
		return nil, &EmptyInputError{}
	}

	users := make(map[entity.UserID]entity.User, len(v.Users))
	for _, u := range v.Users {
		users[u.ID] = u
	}

	// Committed intervals and commitment counts for this generation
	// only. Counts drive load balancing; intervals drive the
	// no-double-booking rule.
	committed := make(map[entity.UserID][]entity.TimeInterval)
	counts := make(map[entity.UserID]int)

	units := planOrder(v)
	entries := make([]Assignment, 0, len(units))
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries = append(entries, staff(v, users, u, committed, counts))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Slot < entries[j].Slot })
	sched := &Schedule{Token: a.tokens.NewToken(), Entries: entries}
	slog.Debug("schedule generated", "token", sched.Token, "slots", len(entries))
	return sched, nil
}

// planOrder lists every slot once: slots bound to tasks first, in task
// urgency order, then unbound slots in insertion order.
func planOrder(v *store.View) []unit {
	slots := make(map[entity.SlotID]entity.Slot, len(v.Slots))
	for _, s := range v.Slots {
		slots[s.ID] = s
	}

	units := make([]unit, 0, len(v.Slots))
	for _, ti := range v.UrgencyOrder {
		task := v.Tasks[ti]
		bound := append([]entity.SlotID(nil), task.Slots...)
		sort.Slice(bound, func(i, j int) bool { return bound[i] < bound[j] })
		for _, sid := range bound {
			t := task
			units = append(units, unit{slot: slots[sid], task: &t})
		}
	}
	for _, s := range v.Slots {
		if _, taken := v.SlotTask[s.ID]; !taken {
			units = append(units, unit{slot: s})
		}
	}
	return units
}

// staff commits up to min_staff eligible users to one slot and records
// the outcome. Candidates must cover the slot with a single availability
// interval, hold the bound task's skills, and not overlap an interval
// they were already committed to.
func staff(
	v *store.View,
	users map[entity.UserID]entity.User,
	u unit,
	committed map[entity.UserID][]entity.TimeInterval,
	counts map[entity.UserID]int,
) Assignment {
	slot := u.slot

	var required []entity.Skill
	var taskID *entity.TaskID
	if u.task != nil {
		required = u.task.SkillReqs
		id := u.task.ID
		taskID = &id
	}

	covering := v.Index.CandidatesFor(slot.Interval)

	skilled := covering[:0:0]
	for _, uid := range covering {
		if entity.HasSkills(users[uid].Skills, required) {
			skilled = append(skilled, uid)
		}
	}

	eligible := skilled[:0:0]
	for _, uid := range skilled {
		if !overlapsAny(committed[uid], slot.Interval) {
			eligible = append(eligible, uid)
		}
	}

	// Fewer prior commitments first, then ascending id.
	sort.SliceStable(eligible, func(i, j int) bool {
		ci, cj := counts[eligible[i]], counts[eligible[j]]
		if ci != cj {
			return ci < cj
		}
		return eligible[i] < eligible[j]
	})
	if len(eligible) > slot.MinStaff {
		eligible = eligible[:slot.MinStaff]
	}
	for _, uid := range eligible {
		committed[uid] = append(committed[uid], slot.Interval)
		counts[uid]++
	}

	out := Assignment{
		Slot:     slot.ID,
		Task:     taskID,
		Users:    sortedIDs(eligible),
		MinStaff: slot.MinStaff,
		Status:   StatusSatisfied,
	}
	if len(out.Users) < slot.MinStaff {
		out.Status = StatusUnderfilled
		out.Reason = classifyShortfall(out.Users, covering, skilled)
	}
	return out
}

// classifyShortfall explains an underfill in terms of the users who
// could not serve, excluding those assigned to the slot itself. Any
// remaining covering, skilled user must have been blocked by a prior
// commitment, so the fallthrough is already_committed.
func classifyShortfall(assigned, covering, skilled []entity.UserID) UnderfillReason {
	taken := make(map[entity.UserID]bool, len(assigned))
	for _, uid := range assigned {
		taken[uid] = true
	}
	remaining := func(ids []entity.UserID) int {
		n := 0
		for _, uid := range ids {
			if !taken[uid] {
				n++
			}
		}
		return n
	}
	switch {
	case remaining(covering) == 0:
		return ReasonAvailability
	case remaining(skilled) == 0:
		return ReasonSkill
	default:
		return ReasonCommitted
	}
}

func overlapsAny(intervals []entity.TimeInterval, iv entity.TimeInterval) bool {
	for _, other := range intervals {
		if other.Overlaps(iv) {
			return true
		}
	}
	return false
}

func sortedIDs(ids []entity.UserID) []entity.UserID {
	out := append([]entity.UserID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
