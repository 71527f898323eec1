package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/rhubarb/dialect/sql"
)

// Statement is the output of the sql command.
type Statement struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args,omitempty"`
}

// NewSQLCommand creates the sql command, printing the statement a query
// compiles to without connecting to the database.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "sql <model>",
		Short: "Print the statement of a query",
		Example: `  rhubarb sql Book --with author --where author_id=1
  rhubarb sql book_stats --order -count --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			// Only the dialect of the connection is read while compiling.
			conn := sql.NewDriver(cfg.Dialect, sql.Conn{})
			s, err := opts.build(reg, conn, args[0])
			if err != nil {
				return err
			}
			q, qargs, err := s.SQL()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(Statement{SQL: q, Args: qargs})
		},
	}
	opts.addFlags(cmd)
	return cmd
}
