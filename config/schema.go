package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"

	"github.com/syssam/rhubarb/cache"
	"github.com/syssam/rhubarb/objectset"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

// Table declares a model and the table it reads from.
type Table struct {
	// Name is the model name. Defaults to the camel-cased table name.
	Name string `yaml:"name,omitempty"`
	// Table is the table name. Defaults to the underscored model name.
	Table      string     `yaml:"table,omitempty"`
	Schema     string     `yaml:"schema,omitempty"`
	PrimaryKey StringList `yaml:"primary_key,omitempty"`
	Columns    []Column   `yaml:"columns"`
	Relations  []Relation `yaml:"relations,omitempty"`
}

// Column declares a column of a table.
type Column struct {
	Name string `yaml:"name"`
	// Column is the column name. Defaults to the field name.
	Column        string `yaml:"column,omitempty"`
	Type          string `yaml:"type"`
	Nullable      bool   `yaml:"nullable,omitempty"`
	InsertDefault string `yaml:"insert_default,omitempty"`
	UpdateDefault string `yaml:"update_default,omitempty"`
}

// Relation declares a relation joining Local of the table to Remote of
// the Target model.
type Relation struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
	Many   bool   `yaml:"many,omitempty"`
	Inner  bool   `yaml:"inner,omitempty"`
}

// StringList accepts a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list, got %v", node.Line, node.Kind)
	}
}

// MarshalYAML implements yaml.Marshaler for StringList.
func (s StringList) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

func (t *Table) applyDefaults(schema string) {
	switch {
	case t.Name == "" && t.Table != "":
		t.Name = inflect.Camelize(t.Table)
	case t.Table == "" && t.Name != "":
		t.Table = inflect.Underscore(t.Name)
	}
	if t.Schema == "" {
		t.Schema = schema
	}
	for i := range t.Columns {
		t.Columns[i].Type = strings.ToUpper(t.Columns[i].Type)
	}
}

func (c *Config) validateTables() []error {
	var errs []error
	models := make(map[string]*Table, len(c.Tables))
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("config: table #%d has neither name nor table", i+1))
			continue
		}
		if _, ok := models[t.Name]; ok {
			errs = append(errs, fmt.Errorf("config: duplicate table %q", t.Name))
		}
		models[t.Name] = t
		if len(t.Columns) == 0 {
			errs = append(errs, fmt.Errorf("config: table %q declares no columns", t.Name))
		}
		for _, col := range t.Columns {
			if col.Name == "" || col.Type == "" {
				errs = append(errs, fmt.Errorf("config: table %q: columns need a name and a type", t.Name))
			}
			for _, d := range []string{col.InsertDefault, col.UpdateDefault} {
				if _, ok := field.DefaultByName(d); d != "" && !ok {
					errs = append(errs, fmt.Errorf("config: table %q: unknown default %q of column %q", t.Name, d, col.Name))
				}
			}
		}
	}
	for _, t := range models {
		for _, rel := range t.Relations {
			target, ok := models[rel.Target]
			if !ok {
				errs = append(errs, fmt.Errorf("config: relation %s.%s: unknown target %q", t.Name, rel.Name, rel.Target))
				continue
			}
			if !t.hasColumn(rel.Local) || !target.hasColumn(rel.Remote) {
				errs = append(errs, fmt.Errorf("config: relation %s.%s: unknown column %s.%s or %s.%s",
					t.Name, rel.Name, t.Name, rel.Local, target.Name, rel.Remote))
			}
		}
	}
	return errs
}

func (t *Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Descriptor returns the table descriptor of the declaration.
func (t *Table) Descriptor() *schema.Table {
	fields := make([]schema.Field, len(t.Columns))
	for i, c := range t.Columns {
		b := field.Of(c.Name, field.Type(c.Type))
		if c.Column != "" {
			b.Column(c.Column)
		}
		if c.Nullable {
			b.Optional()
		}
		if d, ok := field.DefaultByName(c.InsertDefault); ok {
			b.InsertDefault(d)
		}
		if d, ok := field.DefaultByName(c.UpdateDefault); ok {
			b.UpdateDefault(d)
		}
		fields[i] = b
	}
	d := schema.NewTable(t.Name, fields...).WithSchema(t.Schema).WithTable(t.Table)
	if len(t.PrimaryKey) > 0 {
		d.WithPrimaryKey(t.PrimaryKey...)
	}
	return d
}

// Options returns the model options declaring the relations of the table.
func (t *Table) Options() []objectset.ModelOption {
	opts := make([]objectset.ModelOption, 0, len(t.Relations))
	for _, rel := range t.Relations {
		var join []objectset.JoinOption
		if rel.Inner {
			join = append(join, objectset.Inner())
		}
		on := objectset.ForeignKey(rel.Local, rel.Remote)
		if rel.Many {
			opts = append(opts, objectset.HasMany(rel.Name, rel.Target, on, join...))
		} else {
			opts = append(opts, objectset.HasOne(rel.Name, rel.Target, on, join...))
		}
	}
	return opts
}

// Registry returns a registry holding a model per declared table. The
// second-level cache is enabled when configured; opts are applied after
// the configured options.
func (c *Config) Registry(opts ...objectset.Option) (*objectset.Registry, error) {
	if c.Cache.Enabled {
		opts = append([]objectset.Option{objectset.WithCache(cache.NewMemory(c.Cache.MaxEntries), c.Cache.TTL)}, opts...)
	}
	reg := objectset.NewRegistry(opts...)
	var errs []error
	for i := range c.Tables {
		t := &c.Tables[i]
		if _, err := reg.Register(t.Descriptor(), t.Options()...); err != nil {
			errs = append(errs, fmt.Errorf("config: table %q: %w", t.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}
