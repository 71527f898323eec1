package cli

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/objectset"
)

// NewQueryCommand creates the query command, running a query and
// printing its results as YAML.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "query <model>",
		Short: "Run a query and print its results",
		Example: `  rhubarb query Author --with books --order name
  rhubarb query book --where "author_id=null" --dsn ./library.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := cfg.Logger(cmd.ErrOrStderr())
			db, err := cfg.Open(logger)
			if err != nil {
				return err
			}
			defer db.Close()
			reg, err := cfg.Registry(objectset.WithLogger(logger))
			if err != nil {
				return err
			}
			s, err := opts.build(reg, db, args[0])
			if err != nil {
				return err
			}
			all, err := s.All(cmd.Context())
			if err != nil {
				return err
			}
			if err := attachMany(cmd.Context(), s, opts.With, all); err != nil {
				return err
			}
			rows := make([]any, len(all))
			for i, v := range all {
				rows[i] = plain(v)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			if err := enc.Encode(rows); err != nil {
				return err
			}
			verbosef(cmd.ErrOrStderr(), opts.Verbose, "%d rows, %s", len(rows), db.Stats.Stats())
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// attachMany fills the to-many relations named by the with paths, which
// records leave unset, from the rows the statement of s fetched. The
// records are replaced by filled copies.
func attachMany(ctx context.Context, s *objectset.ObjectSet, with []string, records []any) error {
	seen := make(map[string]bool)
	for _, path := range with {
		name, _, _ := strings.Cut(path, ".")
		if rel, ok := s.Model().Relation(name); !ok || !rel.Many() || seen[name] {
			continue
		}
		seen[name] = true
		nested, err := s.Nested(ctx, name)
		if err != nil {
			return err
		}
		for i, v := range records {
			rec, ok := v.(*objectset.Record)
			if !ok || rec.PK() == nil {
				continue
			}
			pk, ok := rec.PK().([]any)
			if !ok {
				pk = []any{rec.PK()}
			}
			list, err := nested.ForPK(ctx, pk...)
			if err != nil {
				return err
			}
			if list == nil {
				list = []any{}
			}
			rec = rec.Clone()
			if err := rec.Set(name, list); err != nil {
				return err
			}
			records[i] = rec
		}
	}
	return nil
}

// plain converts extracted values to values the YAML encoder prints
// naturally. Records become mappings of their fetched fields.
func plain(v any) any {
	switch v := v.(type) {
	case *objectset.Record:
		m := make(map[string]any)
		for _, name := range v.Fields() {
			if f, ok := v.Lookup(name); ok && !rhubarb.IsUnset(f) {
				m[name] = plain(f)
			}
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, f := range v {
			m[k] = plain(f)
		}
		return m
	case []any:
		l := make([]any, len(v))
		for i, f := range v {
			l[i] = plain(f)
		}
		return l
	case []byte:
		return string(v)
	case uuid.UUID:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
