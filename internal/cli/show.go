package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sporks/rota/internal/compiler"
	"github.com/sporks/rota/internal/session"
	"github.com/sporks/rota/internal/snapshot"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the schedule saved in a snapshot",
		Long: `Load a snapshot saved by generate --snapshot and print its schedule
and any recorded overrides.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "snapshot SQLite file (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(rootOpts *RootOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	db, err := snapshot.Open(dbPath)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "opening snapshot", Err: err}
	}
	defer db.Close()

	state, err := db.Load()
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "loading snapshot", Err: err}
	}
	formatter.VerboseLog("loaded snapshot: %d slot(s), %d task(s), %d user(s), %d override(s)",
		len(state.Slots), len(state.Tasks), len(state.Users), len(state.Overrides))

	if state.Schedule == nil {
		if formatter.Format == "json" {
			return formatter.Success(map[string]any{"schedule": nil})
		}
		fmt.Fprintln(formatter.Writer, "No schedule saved")
		return nil
	}

	// Rebuild the session state so slot times and user names resolve.
	sess := session.New(nil)
	roster := &compiler.Roster{Slots: state.Slots, Tasks: state.Tasks, Users: state.Users}
	if err := seedSession(sess, roster); err != nil {
		_ = formatter.Error(err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "restoring snapshot state", Err: err}
	}

	if err := outputSchedule(formatter, sess.View(), state.Schedule); err != nil {
		return err
	}
	if formatter.Format != "json" && len(state.Overrides) > 0 {
		fmt.Fprintf(formatter.Writer, "%d override(s) recorded\n", len(state.Overrides))
	}
	return nil
}
