package objectset

import (
	"context"
	"iter"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect/sql"
)

// FuncOf computes a value in process from the extracted values of its
// dependencies.
type FuncOf func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// Deferred is a value that is not available yet. A function returning a
// Deferred is awaited before its value is treated as final.
type Deferred func(ctx context.Context) (any, error)

// Function is a value computed after extraction. It depends on other
// selectors, which are selected in its place. It never emits SQL.
type Function struct {
	fn     FuncOf
	args   []Selector
	kwargs []Pair
}

// Func returns a function selector over the given dependencies.
func Func(fn FuncOf, args ...Selector) *Function {
	return &Function{fn: fn, args: args}
}

// Named returns a copy of the function with an additional named dependency.
func (f *Function) Named(name string, s Selector) *Function {
	c := *f
	c.kwargs = append(c.kwargs[:len(c.kwargs):len(c.kwargs)], KV(name, s))
	return &c
}

// EmitSQL implements the sql.Emitter interface.
func (f *Function) EmitSQL(b *sql.Builder) {
	b.AddError(rhubarb.NewInvalidSQLEmissionError("function", "functions are evaluated after extraction"))
}

// Extractor implements the Selector interface.
func (f *Function) Extractor(b *sql.Builder, hint string) Extractor {
	x := &funcExtractor{fn: f.fn}
	for _, a := range f.args {
		x.args = append(x.args, a.Extractor(b, hint))
	}
	for _, p := range f.kwargs {
		x.names = append(x.names, p.Name)
		x.kwargs = append(x.kwargs, asSelector(p.Value).Extractor(b, p.Name))
	}
	return x
}

// Joins implements the Selector interface.
func (f *Function) Joins() iter.Seq[JoinField] {
	return func(yield func(JoinField) bool) {
		for jf := range joinsOf(f.args...) {
			if !yield(jf) {
				return
			}
		}
		for _, p := range f.kwargs {
			for jf := range asSelector(p.Value).Joins() {
				if !yield(jf) {
					return
				}
			}
		}
	}
}

type funcExtractor struct {
	fn     FuncOf
	args   []Extractor
	names  []string
	kwargs []Extractor
}

func (x *funcExtractor) Extract(ctx context.Context, row Row) (any, error) {
	args := make([]any, len(x.args))
	for i, a := range x.args {
		v, err := a.Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	kwargs := make(map[string]any, len(x.kwargs))
	for i, k := range x.kwargs {
		v, err := k.Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		kwargs[x.names[i]] = v
	}
	v, err := x.fn(ctx, args, kwargs)
	for err == nil {
		d, ok := v.(Deferred)
		if !ok {
			break
		}
		v, err = d(ctx)
	}
	return v, err
}

func (x *funcExtractor) forField(ref, field string) Extractor {
	if found := findField(x.args, ref, field); found != nil {
		return found
	}
	return findField(x.kwargs, ref, field)
}

func (*funcExtractor) newCache() *resultCache { return newResultCache(false) }
