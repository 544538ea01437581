package store

import (
	"time"

	"github.com/sporks/rota/internal/avail"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/graph"
)

// View is a consistent read-only capture of store state, taken under
// the session's writer lock and safe to read after the lock is
// released. Entities are immutable once committed, so the element
// values are shared; the slices and binding map are copied so later
// appends cannot alias into a view.
type View struct {
	Slots []entity.Slot
	Tasks []entity.Task
	Users []entity.User

	Index    *avail.Index
	SlotTask map[entity.SlotID]entity.TaskID

	// EffectiveDeadlines and UrgencyOrder are positional over Tasks.
	EffectiveDeadlines []*time.Time
	UrgencyOrder       []int
}

// View captures the current state, including effective deadlines and
// the urgency order derived from the dependency graph.
func (s *Store) View() *View {
	v := &View{
		Slots:    append([]entity.Slot(nil), s.slots...),
		Tasks:    append([]entity.Task(nil), s.tasks...),
		Users:    append([]entity.User(nil), s.users...),
		Index:    s.index,
		SlotTask: make(map[entity.SlotID]entity.TaskID, len(s.slotTask)),
	}
	for slot, task := range s.slotTask {
		v.SlotTask[slot] = task
	}
	v.EffectiveDeadlines = s.graph.EffectiveDeadlines(s.tasks, s.Duration)
	v.UrgencyOrder = graph.UrgencyOrder(v.EffectiveDeadlines)
	return v
}

// TaskAt returns the task at a positional index in the captured order.
func (v *View) TaskAt(i int) entity.Task { return v.Tasks[i] }

// SlotByID looks up a slot in the view.
func (v *View) SlotByID(id entity.SlotID) (entity.Slot, bool) {
	for _, slot := range v.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return entity.Slot{}, false
}

// UserByID looks up a user in the view.
func (v *View) UserByID(id entity.UserID) (entity.User, bool) {
	for _, user := range v.Users {
		if user.ID == id {
			return user, true
		}
	}
	return entity.User{}, false
}
