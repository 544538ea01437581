package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sporks/rota/internal/compiler"
)

// ValidationResult holds roster validation results.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Slots int    `json:"slots"`
	Tasks int    `json:"tasks"`
	Users int    `json:"users"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <roster-dir>",
		Short: "Validate a roster directory without generating",
		Long: `Validate CUE roster files without generating a schedule.

Compiles every slot, task, and user declaration and reports the first
error with its source position.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	roster, err := compiler.Load(dir)
	if err != nil {
		return outputRosterError(formatter, err)
	}

	formatter.VerboseLog("compiled roster from %s", dir)

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid: true,
			Slots: len(roster.Slots),
			Tasks: len(roster.Tasks),
			Users: len(roster.Users),
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Roster valid: %d slot(s), %d task(s), %d user(s)\n",
		len(roster.Slots), len(roster.Tasks), len(roster.Users))
	return nil
}

// outputRosterError reports a load or compile failure. Missing or
// unreadable roster directories are command errors; invalid roster
// content is a validation failure.
func outputRosterError(formatter *OutputFormatter, err error) error {
	code := ExitFailure
	var loadErr *compiler.LoadError
	if errors.As(err, &loadErr) {
		code = ExitCommandError
	}

	if formatter.Format == "json" {
		_ = formatter.Error(err.Error(), ValidationResult{Valid: false, Error: err.Error()})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Roster invalid")
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	return &ExitError{Code: code, Message: "roster validation failed", Err: err}
}
