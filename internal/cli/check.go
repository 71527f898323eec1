package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syssam/rhubarb/dialect/sql/schema"
	rschema "github.com/syssam/rhubarb/schema"
)

// NewCheckCommand creates the check command, comparing the configured
// tables with the database.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the configured tables against the database",
		Long: `check reports the configured tables and columns missing from the
database, and the columns whose type or nullability differ.`,
		Example: `  rhubarb check --dsn ./library.db
  rhubarb check --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			db, err := cfg.Open(cfg.Logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer db.Close()
			tables := make([]rschema.TableDescriptor, len(cfg.Tables))
			for i := range cfg.Tables {
				tables[i] = cfg.Tables[i].Descriptor()
			}
			result, err := schema.Verify(cmd.Context(), db, tables...)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			switch {
			case result.HasErrors():
				return errors.New("schema check failed")
			case strict && result.HasBreakingChanges():
				return errors.New("schema check found breaking differences")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on breaking warnings too")
	return cmd
}

// printResult prints one line per difference, errors first.
func printResult(w io.Writer, result *schema.ValidationResult) {
	if !result.HasErrors() && !result.HasWarnings() {
		color.New(color.FgGreen).Fprintln(w, "ok")
		return
	}
	list := func(level *color.Color, name string, errs []*schema.ValidationError) {
		for _, e := range errs {
			level.Fprintf(w, "%-8s", name)
			fmt.Fprint(w, e.Error())
			if e.Breaking {
				color.New(color.Bold).Fprint(w, " [BREAKING]")
			}
			fmt.Fprintln(w)
		}
	}
	list(color.New(color.FgRed), "error", result.Errors)
	list(color.New(color.FgYellow), "warning", result.Warnings)
}
