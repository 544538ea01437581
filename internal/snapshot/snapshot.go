// Package snapshot persists a session to SQLite and reads it back as
// spec batches ready to recommit. The scheduling core never imports
// this package; it is a collaborator for callers who want durability
// between process runs.
package snapshot

import (
	"database/sql"
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/override"
	"github.com/sporks/rota/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DB is an open snapshot database.
type DB struct {
	db *sql.DB
}

// State is everything a snapshot holds: spec batches in id order, plus
// the saved schedule and override log when a generation had happened.
// Recommitting the batches to a fresh session reproduces the same ids.
type State struct {
	Slots     []entity.SlotSpec
	Tasks     []entity.TaskSpec
	Users     []entity.UserSpec
	Schedule  *assign.Schedule
	Overrides []override.Edit
}

// Open creates or opens a snapshot database. WAL mode, a single
// connection, and a busy timeout match SQLite's one-writer model.
// Idempotent: the embedded schema only creates what is missing.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Save replaces the snapshot with the given session state in one
// transaction. sched and edits may be nil when no generation has run.
func (d *DB) Save(v *store.View, sched *assign.Schedule, edits []override.Edit) (err error) {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	wipe := []string{
		"DELETE FROM overrides", "DELETE FROM schedule_users",
		"DELETE FROM schedule_entries", "DELETE FROM schedule",
		"DELETE FROM rule_includes", "DELETE FROM user_rules",
		"DELETE FROM user_skills", "DELETE FROM users",
		"DELETE FROM task_slots", "DELETE FROM task_skills",
		"DELETE FROM task_deps", "DELETE FROM tasks",
		"DELETE FROM slots",
	}
	for _, stmt := range wipe {
		if _, err = tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	if err = saveSlots(tx, v.Slots); err != nil {
		return err
	}
	if err = saveTasks(tx, v.Tasks); err != nil {
		return err
	}
	if err = saveUsers(tx, v.Users); err != nil {
		return err
	}
	if sched != nil {
		if err = saveSchedule(tx, sched); err != nil {
			return err
		}
	}
	if err = saveOverrides(tx, edits); err != nil {
		return err
	}
	return tx.Commit()
}

func saveSlots(tx *sql.Tx, slots []entity.Slot) error {
	for _, slot := range slots {
		_, err := tx.Exec(
			"INSERT INTO slots (id, start_at, end_at, min_staff, name) VALUES (?, ?, ?, ?, ?)",
			int64(slot.ID), fmtTime(slot.Interval.Start), fmtTime(slot.Interval.End), slot.MinStaff, slot.Name,
		)
		if err != nil {
			return fmt.Errorf("save slot %s: %w", slot.ID, err)
		}
	}
	return nil
}

func saveTasks(tx *sql.Tx, tasks []entity.Task) error {
	for _, task := range tasks {
		_, err := tx.Exec(
			"INSERT INTO tasks (id, title, details, deadline) VALUES (?, ?, ?, ?)",
			int64(task.ID), task.Title, task.Desc, fmtTimePtr(task.Deadline),
		)
		if err != nil {
			return fmt.Errorf("save task %s: %w", task.ID, err)
		}
		for _, dep := range task.DepList() {
			if _, err := tx.Exec("INSERT INTO task_deps (task_id, dep_id) VALUES (?, ?)", int64(task.ID), int64(dep)); err != nil {
				return fmt.Errorf("save task %s deps: %w", task.ID, err)
			}
		}
		for i, skill := range task.SkillReqs {
			if _, err := tx.Exec("INSERT INTO task_skills (task_id, position, skill) VALUES (?, ?, ?)", int64(task.ID), i, string(skill)); err != nil {
				return fmt.Errorf("save task %s skills: %w", task.ID, err)
			}
		}
		for _, slot := range task.Slots {
			if _, err := tx.Exec("INSERT INTO task_slots (task_id, slot_id) VALUES (?, ?)", int64(task.ID), int64(slot)); err != nil {
				return fmt.Errorf("save task %s slots: %w", task.ID, err)
			}
		}
	}
	return nil
}

func saveUsers(tx *sql.Tx, users []entity.User) error {
	for _, user := range users {
		if _, err := tx.Exec("INSERT INTO users (id, name) VALUES (?, ?)", int64(user.ID), user.Name); err != nil {
			return fmt.Errorf("save user %s: %w", user.ID, err)
		}
		for _, skill := range user.SkillList() {
			if _, err := tx.Exec("INSERT INTO user_skills (user_id, skill) VALUES (?, ?)", int64(user.ID), string(skill)); err != nil {
				return fmt.Errorf("save user %s skills: %w", user.ID, err)
			}
		}
		for r, rule := range user.Rules {
			var repStart, repUntil any
			var every entity.Frequency
			hasRepeat := 0
			if rule.Rep != nil {
				hasRepeat = 1
				repStart = fmtTime(rule.Rep.Start)
				repUntil = fmtTimePtr(rule.Rep.Until)
				every = rule.Rep.Every
			}
			_, err := tx.Exec(`
				INSERT INTO user_rules (
					user_id, position, pref, rep_start, rep_until, has_repeat,
					rep_seconds, rep_minutes, rep_hours, rep_days, rep_weeks, rep_months, rep_years
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				int64(user.ID), r, encodePref(rule.Pref), repStart, repUntil, hasRepeat,
				every.Seconds, every.Minutes, every.Hours, every.Days, every.Weeks, every.Months, every.Years,
			)
			if err != nil {
				return fmt.Errorf("save user %s rules: %w", user.ID, err)
			}
			for p, iv := range rule.Include {
				_, err := tx.Exec(
					"INSERT INTO rule_includes (user_id, rule_position, position, start_at, end_at) VALUES (?, ?, ?, ?, ?)",
					int64(user.ID), r, p, fmtTime(iv.Start), fmtTime(iv.End),
				)
				if err != nil {
					return fmt.Errorf("save user %s rule includes: %w", user.ID, err)
				}
			}
		}
	}
	return nil
}

func saveSchedule(tx *sql.Tx, sched *assign.Schedule) error {
	if _, err := tx.Exec("INSERT INTO schedule (id, token) VALUES (1, ?)", sched.Token); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	for _, e := range sched.Entries {
		var taskID any
		if e.Task != nil {
			taskID = int64(*e.Task)
		}
		_, err := tx.Exec(
			"INSERT INTO schedule_entries (slot_id, task_id, min_staff, status, reason) VALUES (?, ?, ?, ?, ?)",
			int64(e.Slot), taskID, e.MinStaff, string(e.Status), string(e.Reason),
		)
		if err != nil {
			return fmt.Errorf("save schedule entry %s: %w", e.Slot, err)
		}
		for _, uid := range e.Users {
			if _, err := tx.Exec("INSERT INTO schedule_users (slot_id, user_id) VALUES (?, ?)", int64(e.Slot), int64(uid)); err != nil {
				return fmt.Errorf("save schedule entry %s users: %w", e.Slot, err)
			}
		}
	}
	return nil
}

func saveOverrides(tx *sql.Tx, edits []override.Edit) error {
	for i, e := range edits {
		var taskID any
		if e.Task != nil {
			taskID = int64(*e.Task)
		}
		_, err := tx.Exec(
			"INSERT INTO overrides (position, slot_id, task_id, op, user_id) VALUES (?, ?, ?, ?, ?)",
			i, int64(e.Slot), taskID, string(e.Op), int64(e.User),
		)
		if err != nil {
			return fmt.Errorf("save override %d: %w", i, err)
		}
	}
	return nil
}

// Load reads the whole snapshot back as spec batches in id order.
func (d *DB) Load() (*State, error) {
	state := &State{}
	if err := d.loadSlots(state); err != nil {
		return nil, err
	}
	if err := d.loadTasks(state); err != nil {
		return nil, err
	}
	if err := d.loadUsers(state); err != nil {
		return nil, err
	}
	if err := d.loadSchedule(state); err != nil {
		return nil, err
	}
	if err := d.loadOverrides(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (d *DB) loadSlots(state *State) error {
	rows, err := d.db.Query("SELECT start_at, end_at, min_staff, name FROM slots ORDER BY id")
	if err != nil {
		return fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var start, end, name string
		var minStaff int
		if err := rows.Scan(&start, &end, &minStaff, &name); err != nil {
			return fmt.Errorf("scan slot: %w", err)
		}
		spec := entity.SlotSpec{MinStaff: &minStaff, Name: &name}
		if spec.Start, err = parseTime(start); err != nil {
			return err
		}
		if spec.End, err = parseTime(end); err != nil {
			return err
		}
		state.Slots = append(state.Slots, spec)
	}
	return rows.Err()
}

func (d *DB) loadTasks(state *State) error {
	rows, err := d.db.Query("SELECT id, title, details, deadline FROM tasks ORDER BY id")
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var title, desc string
		var deadline sql.NullString
		if err := rows.Scan(&id, &title, &desc, &deadline); err != nil {
			return fmt.Errorf("scan task: %w", err)
		}
		spec := entity.TaskSpec{Title: title}
		if desc != "" {
			spec.Desc = &desc
		}
		if deadline.Valid {
			t, err := parseTime(deadline.String)
			if err != nil {
				return err
			}
			spec.Deadline = &t
		}
		state.Tasks = append(state.Tasks, spec)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		spec := &state.Tasks[i]
		if err := d.scanInt64s("SELECT dep_id FROM task_deps WHERE task_id = ? ORDER BY dep_id", id, func(n int64) {
			spec.Awaiting = append(spec.Awaiting, entity.TaskID(n))
		}); err != nil {
			return err
		}
		if err := d.scanStrings("SELECT skill FROM task_skills WHERE task_id = ? ORDER BY position", id, func(s string) {
			spec.Skills = append(spec.Skills, entity.Skill(s))
		}); err != nil {
			return err
		}
		if err := d.scanInt64s("SELECT slot_id FROM task_slots WHERE task_id = ? ORDER BY slot_id", id, func(n int64) {
			spec.Slots = append(spec.Slots, entity.SlotID(n))
		}); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) loadUsers(state *State) error {
	rows, err := d.db.Query("SELECT id, name FROM users ORDER BY id")
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		state.Users = append(state.Users, entity.UserSpec{Name: name})
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, id := range ids {
		spec := &state.Users[i]
		if err := d.scanStrings("SELECT skill FROM user_skills WHERE user_id = ? ORDER BY skill", id, func(s string) {
			spec.Skills = append(spec.Skills, entity.Skill(s))
		}); err != nil {
			return err
		}
		if err := d.loadRules(id, spec); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) loadRules(userID int64, spec *entity.UserSpec) error {
	rows, err := d.db.Query(`
		SELECT position, pref, rep_start, rep_until, has_repeat,
		       rep_seconds, rep_minutes, rep_hours, rep_days, rep_weeks, rep_months, rep_years
		FROM user_rules WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var position, hasRepeat int
		var pref string
		var repStart, repUntil sql.NullString
		var every entity.Frequency
		err := rows.Scan(&position, &pref, &repStart, &repUntil, &hasRepeat,
			&every.Seconds, &every.Minutes, &every.Hours, &every.Days, &every.Weeks, &every.Months, &every.Years)
		if err != nil {
			return fmt.Errorf("scan rule: %w", err)
		}
		rule := entity.RuleSpec{}
		if rule.Pref, err = decodePref(pref); err != nil {
			return err
		}
		if hasRepeat == 1 {
			rep := &entity.Repetition{Every: every}
			if rep.Start, err = parseTime(repStart.String); err != nil {
				return err
			}
			if repUntil.Valid {
				until, err := parseTime(repUntil.String)
				if err != nil {
					return err
				}
				rep.Until = &until
			}
			rule.Repeat = rep
		}
		spec.Rules = append(spec.Rules, rule)
		positions = append(positions, position)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i, position := range positions {
		rule := &spec.Rules[i]
		incRows, err := d.db.Query(
			"SELECT start_at, end_at FROM rule_includes WHERE user_id = ? AND rule_position = ? ORDER BY position",
			userID, position)
		if err != nil {
			return fmt.Errorf("load rule includes: %w", err)
		}
		for incRows.Next() {
			var start, end string
			if err := incRows.Scan(&start, &end); err != nil {
				incRows.Close()
				return fmt.Errorf("scan rule include: %w", err)
			}
			iv := entity.TimeInterval{}
			if iv.Start, err = parseTime(start); err != nil {
				incRows.Close()
				return err
			}
			if iv.End, err = parseTime(end); err != nil {
				incRows.Close()
				return err
			}
			rule.Include = append(rule.Include, iv)
		}
		if err := incRows.Err(); err != nil {
			incRows.Close()
			return err
		}
		incRows.Close()
	}
	return nil
}

func (d *DB) loadSchedule(state *State) error {
	var token string
	err := d.db.QueryRow("SELECT token FROM schedule WHERE id = 1").Scan(&token)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load schedule: %w", err)
	}

	sched := &assign.Schedule{Token: token}
	rows, err := d.db.Query("SELECT slot_id, task_id, min_staff, status, reason FROM schedule_entries ORDER BY slot_id")
	if err != nil {
		return fmt.Errorf("load schedule entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slotID, minStaff int64
		var taskID sql.NullInt64
		var status, reason string
		if err := rows.Scan(&slotID, &taskID, &minStaff, &status, &reason); err != nil {
			return fmt.Errorf("scan schedule entry: %w", err)
		}
		e := assign.Assignment{
			Slot:     entity.SlotID(slotID),
			MinStaff: int(minStaff),
			Status:   assign.FillStatus(status),
			Reason:   assign.UnderfillReason(reason),
		}
		if taskID.Valid {
			id := entity.TaskID(taskID.Int64)
			e.Task = &id
		}
		sched.Entries = append(sched.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range sched.Entries {
		e := &sched.Entries[i]
		if err := d.scanInt64s("SELECT user_id FROM schedule_users WHERE slot_id = ? ORDER BY user_id", int64(e.Slot), func(n int64) {
			e.Users = append(e.Users, entity.UserID(n))
		}); err != nil {
			return err
		}
	}
	state.Schedule = sched
	return nil
}

func (d *DB) loadOverrides(state *State) error {
	rows, err := d.db.Query("SELECT slot_id, task_id, op, user_id FROM overrides ORDER BY position")
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slotID, userID int64
		var taskID sql.NullInt64
		var op string
		if err := rows.Scan(&slotID, &taskID, &op, &userID); err != nil {
			return fmt.Errorf("scan override: %w", err)
		}
		e := override.Edit{
			Slot: entity.SlotID(slotID),
			Op:   override.Op(op),
			User: entity.UserID(userID),
		}
		if taskID.Valid {
			id := entity.TaskID(taskID.Int64)
			e.Task = &id
		}
		state.Overrides = append(state.Overrides, e)
	}
	return rows.Err()
}

func (d *DB) scanInt64s(query string, arg int64, emit func(int64)) error {
	rows, err := d.db.Query(query, arg)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		emit(n)
	}
	return rows.Err()
}

func (d *DB) scanStrings(query string, arg int64, emit func(string)) error {
	rows, err := d.db.Query(query, arg)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		emit(s)
	}
	return rows.Err()
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodePref(p entity.Preference) string {
	switch {
	case p.Exclusion():
		return "exclude"
	case p == entity.PrefRequire:
		return "require"
	default:
		return strconv.FormatFloat(float64(p), 'g', -1, 64)
	}
}

func decodePref(s string) (entity.Preference, error) {
	switch s {
	case "exclude":
		return entity.PrefExclude, nil
	case "require":
		return entity.PrefRequire, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, fmt.Errorf("parse preference %q", s)
	}
	return entity.Preference(f), nil
}
