package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sporks/rota/internal/assign"
	"github.com/sporks/rota/internal/compiler"
	"github.com/sporks/rota/internal/entity"
	"github.com/sporks/rota/internal/session"
	"github.com/sporks/rota/internal/snapshot"
	"github.com/sporks/rota/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Snapshot string // save the generated state to this SQLite file
	Token    string // fixed generation token, random when empty
}

// ScheduleOutput is the JSON payload for a generated schedule.
type ScheduleOutput struct {
	Token       string        `json:"token"`
	Fingerprint string        `json:"fingerprint"`
	Entries     []EntryOutput `json:"entries"`
}

// EntryOutput is one slot's assignment in CLI output.
type EntryOutput struct {
	Slot     string   `json:"slot"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Task     string   `json:"task,omitempty"`
	Users    []string `json:"users"`
	MinStaff int      `json:"min_staff"`
	Status   string   `json:"status"`
	Reason   string   `json:"reason,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <roster-dir>",
		Short: "Generate a schedule from a roster directory",
		Long: `Compile a CUE roster directory, seed a scheduling session with its
slots, tasks, and users, and generate a staffed schedule.

With --snapshot, the generated state is saved to a SQLite file that
the show command can inspect later.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "save generated state to this SQLite file")
	cmd.Flags().StringVar(&opts.Token, "token", "", "fixed generation token (random when empty)")

	return cmd
}

func runGenerate(rootOpts *RootOptions, opts *GenerateOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	roster, err := compiler.Load(dir)
	if err != nil {
		return outputRosterError(formatter, err)
	}
	formatter.VerboseLog("compiled roster: %d slot(s), %d task(s), %d user(s)",
		len(roster.Slots), len(roster.Tasks), len(roster.Users))

	var tokens assign.TokenGenerator
	if opts.Token != "" {
		tokens = assign.FixedGenerator{Token: opts.Token}
	}
	sess := session.New(tokens)

	if err := seedSession(sess, roster); err != nil {
		return outputRosterError(formatter, err)
	}

	sched, err := sess.GenerateFresh(cmd.Context())
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "generation failed", Err: err}
	}

	if opts.Snapshot != "" {
		if err := saveSnapshot(opts.Snapshot, sess, sched); err != nil {
			_ = formatter.Error(err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "saving snapshot", Err: err}
		}
		formatter.VerboseLog("saved snapshot to %s", opts.Snapshot)
	}

	return outputSchedule(formatter, sess.View(), sched)
}

// seedSession commits the roster's batches in slot, task, user order so
// task slot bindings and availability expansion see the slots first.
func seedSession(sess *session.Session, roster *compiler.Roster) error {
	if len(roster.Slots) > 0 {
		if err := sess.AddSlots(roster.Slots); err != nil {
			return err
		}
	}
	if len(roster.Tasks) > 0 {
		if _, err := sess.AddTasks(roster.Tasks); err != nil {
			return err
		}
	}
	if len(roster.Users) > 0 {
		if _, err := sess.AddUsers(roster.Users); err != nil {
			return err
		}
	}
	return nil
}

func saveSnapshot(path string, sess *session.Session, sched *assign.Schedule) error {
	db, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Save(sess.View(), sched, sess.Overrides())
}

func outputSchedule(formatter *OutputFormatter, v *store.View, sched *assign.Schedule) error {
	out, err := scheduleOutput(v, sched)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "formatting schedule", Err: err}
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	fmt.Fprintf(formatter.Writer, "Schedule %s (%d slot(s))\n", out.Token, len(out.Entries))
	for _, e := range out.Entries {
		line := fmt.Sprintf("  %-6s %s – %s", e.Slot, e.Start, e.End)
		if e.Task != "" {
			line += "  " + e.Task
		}
		line += fmt.Sprintf("  [%s]  %s", strings.Join(e.Users, ", "), e.Status)
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}

func scheduleOutput(v *store.View, sched *assign.Schedule) (*ScheduleOutput, error) {
	fp, err := sched.Fingerprint()
	if err != nil {
		return nil, err
	}

	out := &ScheduleOutput{Token: sched.Token, Fingerprint: fp, Entries: make([]EntryOutput, 0, len(sched.Entries))}
	for _, e := range sched.Entries {
		entry := EntryOutput{
			Slot:     e.Slot.String(),
			Users:    make([]string, 0, len(e.Users)),
			MinStaff: e.MinStaff,
			Status:   string(e.Status),
			Reason:   string(e.Reason),
		}
		if slot, ok := v.SlotByID(e.Slot); ok {
			entry.Start = slot.Interval.Start.UTC().Format(time.RFC3339)
			entry.End = slot.Interval.End.UTC().Format(time.RFC3339)
		}
		if e.Task != nil {
			entry.Task = taskTitle(v, *e.Task)
		}
		for _, id := range e.Users {
			if user, ok := v.UserByID(id); ok {
				entry.Users = append(entry.Users, user.Name)
			} else {
				entry.Users = append(entry.Users, id.String())
			}
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func taskTitle(v *store.View, id entity.TaskID) string {
	for _, task := range v.Tasks {
		if task.ID == id {
			return task.Title
		}
	}
	return id.String()
}
