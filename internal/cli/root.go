// Package cli implements the rhubarb command line interface.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/spf13/cobra"

	"github.com/syssam/rhubarb/config"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/objectset"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string // configuration file path
	DSN     string // overrides the configured dsn and the environment
	EnvFile string // dotenv file loaded before connecting
	Verbose bool
}

// NewRootCommand creates the root command of the rhubarb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:   "rhubarb",
		Short: "Compile and run rhubarb queries",
		Long: `rhubarb compiles queries over the tables declared in a configuration
file into single SQL statements, and runs them.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "rhubarb.yaml", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database connection string, overrides the configuration")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file setting "+config.EnvDSN)
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewModelsCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	return cmd
}

func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(o.EnvFile); err != nil {
		return nil, err
	}
	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// QueryOptions holds the flags shaping a query.
type QueryOptions struct {
	*RootOptions
	With   []string
	Only   []string
	Where  []string
	Order  []string
	Limit  int
	Offset int
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.With, "with", nil, "relation or virtual fields to add, dotted paths select nested fields")
	cmd.Flags().StringSliceVar(&o.Only, "only", nil, "restrict the selected fields")
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, "filter rows, field=value, field!=value or field=null")
	cmd.Flags().StringSliceVarP(&o.Order, "order", "o", nil, "order by field, -field for descending order")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "maximum number of rows")
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "number of rows to skip")
}

// build returns the query over the model named, or over the table named.
func (o *QueryOptions) build(reg *objectset.Registry, conn dialect.ExecQuerier, name string) (*objectset.ObjectSet, error) {
	if _, ok := reg.Model(name); !ok {
		name = inflect.Camelize(name)
	}
	s, err := reg.Query(conn, name)
	if err != nil {
		return nil, err
	}
	if len(o.With) > 0 {
		s = s.With(o.With...)
	}
	if len(o.Only) > 0 {
		s = s.Only(o.Only...)
	}
	for _, w := range o.Where {
		p, err := parseWhere(w)
		if err != nil {
			return nil, err
		}
		s = s.Where(p)
	}
	if len(o.Order) > 0 {
		order := o.Order
		s = s.OrderBy(func(m *objectset.ModelSelector) []objectset.Selector {
			sels := make([]objectset.Selector, len(order))
			for i, f := range order {
				if name, ok := strings.CutPrefix(f, "-"); ok {
					sels[i] = objectset.Desc(m.F(name))
				} else {
					sels[i] = objectset.Asc(m.F(f))
				}
			}
			return sels
		})
	}
	if o.Limit > 0 {
		s = s.Limit(o.Limit)
	}
	if o.Offset > 0 {
		s = s.Offset(o.Offset)
	}
	return s, nil
}

func parseWhere(w string) (objectset.Predicate, error) {
	f, v, ok := strings.Cut(w, "=")
	if !ok || f == "" {
		return nil, fmt.Errorf("invalid filter %q, expected field=value", w)
	}
	neg := strings.HasSuffix(f, "!")
	f = strings.TrimSuffix(f, "!")
	return func(m *objectset.ModelSelector) objectset.Selector {
		switch {
		case v == "null" && neg:
			return objectset.IsNotNull(m.F(f))
		case v == "null":
			return objectset.IsNull(m.F(f))
		case neg:
			return objectset.NEQ(m.F(f), v)
		default:
			return objectset.EQ(m.F(f), v)
		}
	}, nil
}

func verbosef(w io.Writer, verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
