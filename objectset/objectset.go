package objectset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
)

// ObjectSet is a lazily compiled query over a model.
//
// Every composing method returns a new ObjectSet and leaves its receiver
// untouched. An ObjectSet compiles into a single statement, executed at
// most once on first access to its results; concurrent callers share
// that execution. Results are cached by primary key afterwards.
type ObjectSet struct {
	model     *Model
	conn      dialect.ExecQuerier
	ref       *TableRef
	modelSel  *ModelSelector
	pk        Selector
	selection Selector
	where     Selector
	groupBy   Selector
	orderBy   Selector
	limit     any
	offset    any
	reg       joinRegistry
	ids       *refAllocator
	// filtered is set once Where was called.
	filtered bool
	exec     *execState
}

// execState guards the single execution of an ObjectSet.
type execState struct {
	sem   *semaphore.Weighted
	state atomic.Pointer[loadedState]
}

func newExecState() *execState {
	return &execState{sem: semaphore.NewWeighted(1)}
}

// loadedState is the immutable result of an execution.
type loadedState struct {
	rows  []cachedRow
	cache *resultCache
	main  Extractor
	pk    Extractor
}

type cachedRow struct {
	key any
	row Row
}

// New returns a query selecting all rows of the model.
func New(conn dialect.ExecQuerier, m *Model) *ObjectSet {
	return newObjectSet(conn, m, newRefAllocator(), "")
}

func newObjectSet(conn dialect.ExecQuerier, m *Model, ids *refAllocator, path string) *ObjectSet {
	s := &ObjectSet{
		model: m,
		conn:  conn,
		ids:   ids,
		reg:   newJoinRegistry(),
		exec:  newExecState(),
	}
	s.ref = newTableRef(m, s, ids.alloc(path))
	s.modelSel = newModelSelector(s.ref, nil)
	s.selection = s.modelSel
	s.pk = s.modelSel.pkSelector()
	if m.filter != nil {
		s.where = m.filter(s.modelSel)
		s.reg.sync(s.where)
	}
	if m.groupBy != nil {
		s.groupBy = m.groupBy(s.modelSel)
		s.pk = s.groupBy
		s.reg.sync(s.groupBy)
	}
	if m.order != nil {
		s.orderBy = m.order(s.modelSel)
		s.reg.sync(s.orderBy)
	}
	return s
}

// Model returns the model of the query.
func (s *ObjectSet) Model() *Model { return s.model }

// Ref returns the root table reference of the query.
func (s *ObjectSet) Ref() *TableRef { return s.ref }

// Selection returns the current selection.
func (s *ObjectSet) Selection() Selector { return s.selection }

// Clone returns a copy of the query that was not executed.
func (s *ObjectSet) Clone() *ObjectSet {
	c := *s
	c.reg = s.reg.clone()
	c.ids = s.ids.clone()
	c.exec = newExecState()
	return &c
}

// current returns the model selector of the current selection, or the
// root model selector, resolving relations within s.
func (s *ObjectSet) current() *ModelSelector {
	if m, ok := innerModel(s.selection); ok {
		return m.in(s)
	}
	return s.root()
}

// root returns the root model selector, resolving relations within s.
func (s *ObjectSet) root() *ModelSelector {
	return s.modelSel.in(s)
}

// Select replaces the selection.
func (s *ObjectSet) Select(fn func(*ModelSelector) Selector) *ObjectSet {
	c := s.Clone()
	c.selection = fn(c.current())
	c.reg.sync(c.selection)
	return c
}

// SelectField selects a field of the current model. The selection keeps
// the provenance of the field, which allows the result to be derived
// from the cached rows of s with SyncCache.
func (s *ObjectSet) SelectField(name string) *ObjectSet {
	return s.Select(func(m *ModelSelector) Selector {
		sel := m.F(name)
		if _, ok := sel.(*Wrapped); ok || Err(sel) != nil {
			return sel
		}
		return Wrap(sel, m.ref, name)
	})
}

// With adds fields to the model selection. See ModelSelector.With.
func (s *ObjectSet) With(fields ...string) *ObjectSet {
	return s.reshape(func(m *ModelSelector) *ModelSelector { return m.With(fields...) })
}

// Only restricts the model selection. See ModelSelector.Only.
func (s *ObjectSet) Only(fields ...string) *ObjectSet {
	return s.reshape(func(m *ModelSelector) *ModelSelector { return m.Only(fields...) })
}

func (s *ObjectSet) reshape(fn func(*ModelSelector) *ModelSelector) *ObjectSet {
	c := s.Clone()
	switch sel := s.selection.(type) {
	case *ModelSelector:
		c.selection = fn(sel.in(c))
		if sel == s.modelSel {
			c.modelSel = c.selection.(*ModelSelector)
		}
	case *List:
		if m, ok := sel.inner.(*ModelSelector); ok {
			c.selection = ListOf(fn(m.in(c)))
		}
	}
	c.reg.sync(c.selection)
	return c
}

// Where filters the rows by the given predicates, ANDed with the current
// filter.
func (s *ObjectSet) Where(preds ...Predicate) *ObjectSet {
	return s.whereWith((*ObjectSet).current, preds)
}

// whereWith adds the predicates, applied to the model selector pick
// returns for the new query.
func (s *ObjectSet) whereWith(pick func(*ObjectSet) *ModelSelector, preds []Predicate) *ObjectSet {
	c := s.Clone()
	m := pick(c)
	all := []Selector{c.where}
	for _, p := range preds {
		all = append(all, p(m))
	}
	c.where = And(all...)
	c.reg.sync(c.where)
	c.filtered = true
	return c
}

// WherePK filters the rows by key: their primary key, or their group
// key for aggregate models. Composite keys are given as []any in key
// order.
func (s *ObjectSet) WherePK(keys ...any) *ObjectSet {
	pk := s.pk
	return s.whereWith((*ObjectSet).root, []Predicate{func(*ModelSelector) Selector {
		if pk == nil {
			return V(false)
		}
		values := make([]any, len(keys))
		for i, k := range keys {
			if parts, ok := k.([]any); ok {
				values[i] = valueList(parts)
			} else {
				values[i] = k
			}
		}
		return In(pk, values...)
	}})
}

// OrderBy replaces the order of the rows. Selectors that are not Order
// values are sorted ascending.
func (s *ObjectSet) OrderBy(fn func(*ModelSelector) []Selector) *ObjectSet {
	c := s.Clone()
	items := fn(c.current())
	switch len(items) {
	case 0:
		c.orderBy = nil
	case 1:
		c.orderBy = items[0]
	default:
		c.orderBy = TupleOf(items...)
	}
	c.reg.sync(c.orderBy)
	return c
}

// GroupBy groups the rows by the selector fn returns. Aggregates of the
// grouped model become valid, and results are keyed by the group.
func (s *ObjectSet) GroupBy(fn func(*ModelSelector) Selector) *ObjectSet {
	c := s.Clone()
	ref := *s.ref
	ref.grouped = true
	c.ref = &ref
	c.modelSel = s.modelSel.withRef(c.ref).in(c)
	if s.selection == Selector(s.modelSel) {
		c.selection = c.modelSel
	}
	c.groupBy = fn(c.modelSel)
	c.pk = c.groupBy
	c.reg.sync(c.groupBy)
	return c
}

// Limit limits the number of rows.
func (s *ObjectSet) Limit(n any) *ObjectSet {
	c := s.Clone()
	c.limit = n
	return c
}

// Offset skips the first n rows.
func (s *ObjectSet) Offset(n any) *ObjectSet {
	c := s.Clone()
	c.offset = n
	return c
}

// Join joins the target model. The on function receives the selector
// of the joined model, and the current model selector of s is available
// through the closure of the caller. The joined model becomes the
// selection; as a list with the AsList option.
func (s *ObjectSet) Join(target *Model, on OnFunc, opts ...JoinOption) *ObjectSet {
	var spec joinSpec
	for _, opt := range opts {
		opt(&spec)
	}
	c := s.Clone()
	parent := c.current()
	return c.join(target, func(t *ModelSelector) Selector { return on(parent, t) }, spec)
}

// join registers a join of the target model in a copy of s sharing the
// allocator of s. The join is registered with a placeholder predicate
// first, because the predicate is built from the selector of the join
// itself.
func (s *ObjectSet) join(target *Model, on func(*ModelSelector) Selector, spec joinSpec) *ObjectSet {
	n := s.ids.alloc(spec.path)
	c := s.Clone()
	c.ids = s.ids
	ref := newTableRef(target, c, n)
	j, ok := c.reg.lookup("joins_" + ref.alias)
	if !ok {
		if target.hooked() {
			ref.sub = newObjectSet(c.conn, target, c.ids, spec.path+"/sub")
		}
		j = &Join{id: "joins_" + ref.alias, ref: ref, kind: spec.kind, on: V(false)}
		c.reg.add(j)
		j.on = on(newModelSelector(ref, j))
		c.reg.sync(j.on)
	}
	sel := newModelSelector(j.ref, j)
	if len(spec.fields) > 0 {
		sel = sel.With(spec.fields...)
	}
	if spec.list {
		c.selection = ListOf(sel)
	} else {
		c.selection = sel
	}
	c.reg.sync(c.selection)
	return c
}

// SQL compiles the query.
func (s *ObjectSet) SQL() (string, []any, error) {
	b := sql.NewBuilder(dialect.DialectOf(s.conn))
	s.build(b)
	if err := b.Err(); err != nil {
		return "", nil, err
	}
	q, args := b.Query()
	return q, args, nil
}

// build writes the SELECT statement and returns the key and the main
// extractors. The key extractor is nil for models without primary key.
func (s *ObjectSet) build(b *sql.Builder) (pk, main Extractor) {
	prev := b.ResetSelection()
	defer b.RestoreSelection(prev)
	b.Write("SELECT ")
	if s.pk != nil {
		pk = s.pk.Extractor(b, "")
	}
	main = s.selection.Extractor(b, "")
	s.writeFrom(b, &s.reg)
	return pk, main
}

// writeSubquery writes the query as the source of a join, surfacing the
// given fields under their bare names.
func (s *ObjectSet) writeSubquery(b *sql.Builder, fields []string) {
	prev := b.SetSubquery(true)
	defer b.SetSubquery(prev)
	prevSel := b.ResetSelection()
	defer b.RestoreSelection(prevSel)
	reg := s.reg.clone()
	b.Write("SELECT ")
	if s.pk != nil {
		s.pk.Extractor(b, "")
	}
	for _, name := range fields {
		sel := s.modelSel.F(name)
		reg.sync(sel)
		hint := hintOf(name)
		if c, ok := sel.(*Column); ok {
			hint = c.column
		}
		sel.Extractor(b, hint)
	}
	s.writeFrom(b, &reg)
}

func (s *ObjectSet) writeFrom(b *sql.Builder, reg *joinRegistry) {
	b.Write(" FROM ")
	s.ref.writeSource(b, nil)
	s.writeJoins(b, reg.joins, reg)
	if s.where != nil {
		b.Write(" WHERE ")
		s.where.EmitSQL(b)
	}
	s.writeTail(b)
}

func (s *ObjectSet) writeJoins(b *sql.Builder, joins []*Join, reg *joinRegistry) {
	for _, j := range joins {
		b.Write(" ").Write(j.kind.String()).Write(" ")
		j.ref.writeSource(b, reg.fields[j.id])
		b.Write(" ON ")
		j.on.EmitSQL(b)
	}
}

func (s *ObjectSet) writeTail(b *sql.Builder) {
	if s.groupBy != nil {
		b.Write(" GROUP BY ")
		writeClause(b, s.groupBy)
	}
	if s.orderBy != nil {
		b.Write(" ORDER BY ")
		writeClause(b, s.orderBy)
	}
	// SQLite only accepts OFFSET after LIMIT, and a negative LIMIT for no limit.
	if b.Dialect() == dialect.SQLite {
		if s.limit != nil || s.offset != nil {
			b.Write(" LIMIT ")
			if s.limit != nil {
				writeValue(b, s.limit)
			} else {
				b.Write("-1")
			}
		}
		if s.offset != nil {
			b.Write(" OFFSET ")
			writeValue(b, s.offset)
		}
		return
	}
	if s.offset != nil {
		b.Write(" OFFSET ")
		writeValue(b, s.offset)
	}
	if s.limit != nil {
		b.Write(" LIMIT ")
		writeValue(b, s.limit)
	}
}

// Load executes the query unless it was executed already.
func (s *ObjectSet) Load(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// Loaded reports if the query was executed.
func (s *ObjectSet) Loaded() bool {
	return s.exec.state.Load() != nil
}

func (s *ObjectSet) load(ctx context.Context) (*loadedState, error) {
	if st := s.exec.state.Load(); st != nil {
		return st, nil
	}
	// A cancelled wait leaves the state unloaded.
	if err := s.exec.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.exec.sem.Release(1)
	if st := s.exec.state.Load(); st != nil {
		return st, nil
	}
	st, err := s.execute(ctx)
	if err != nil {
		return nil, err
	}
	s.exec.state.Store(st)
	return st, nil
}

func (s *ObjectSet) execute(ctx context.Context) (*loadedState, error) {
	q, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}
	b := sql.NewBuilder(dialect.DialectOf(s.conn))
	pk, main := q.build(b)
	if err := b.Err(); err != nil {
		return nil, err
	}
	query, args := b.Query()
	rows, err := s.rows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return newLoadedState(ctx, rows, pk, main)
}

func newLoadedState(ctx context.Context, rows []Row, pk, main Extractor) (*loadedState, error) {
	st := &loadedState{
		rows:  make([]cachedRow, 0, len(rows)),
		cache: main.newCache(),
		main:  main,
		pk:    pk,
	}
	for i, row := range rows {
		var key any = int64(i)
		if pk != nil {
			k, err := pk.Extract(ctx, row)
			if err != nil {
				return nil, err
			}
			key = k
		}
		v, err := main.Extract(ctx, row)
		if err != nil {
			return nil, err
		}
		st.rows = append(st.rows, cachedRow{key: key, row: row})
		st.cache.add(key, v)
	}
	return st, nil
}

// rows runs a statement through the second-level cache, if configured.
func (s *ObjectSet) rows(ctx context.Context, q string, args []any) ([]Row, error) {
	reg := s.model.reg
	var key rhubarb.CacheKey
	if reg.cache != nil {
		key = s.cacheKey(q, args)
		if rows, ok := s.cached(ctx, key); ok {
			return rows, nil
		}
	}
	reg.log.DebugContext(ctx, "rhubarb: executing statement", slog.String("sql", q), slog.Any("args", args))
	rows, err := queryRows(ctx, s.conn, q, args)
	if err != nil {
		return nil, err
	}
	if reg.cache != nil {
		s.store(ctx, key, rows)
	}
	return rows, nil
}

func (s *ObjectSet) cacheKey(q string, args []any) rhubarb.CacheKey {
	h := sha256.New()
	h.Write([]byte(q))
	for _, a := range args {
		fmt.Fprintf(h, "\x00%T:%v", a, a)
	}
	return rhubarb.CacheKey{
		Table:      tableKey(s.model),
		Operation:  "select",
		Predicates: hex.EncodeToString(h.Sum(nil)),
	}
}

func tableKey(m *Model) string {
	return m.SchemaName() + "." + m.TableName()
}

func (s *ObjectSet) cached(ctx context.Context, key rhubarb.CacheKey) ([]Row, bool) {
	reg := s.model.reg
	data, err := reg.cache.Get(ctx, key.String())
	if err != nil {
		reg.log.WarnContext(ctx, "rhubarb: cache get failed", slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	rows, err := decodeRows(data)
	if err != nil {
		reg.log.WarnContext(ctx, "rhubarb: cache decode failed", slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}
	return rows, true
}

func (s *ObjectSet) store(ctx context.Context, key rhubarb.CacheKey, rows []Row) {
	reg := s.model.reg
	data, err := msgpack.Marshal(rows)
	if err == nil {
		err = reg.cache.Set(ctx, key.String(), data, reg.ttl)
	}
	if err != nil {
		reg.log.WarnContext(ctx, "rhubarb: cache set failed", slog.String("key", key.String()), slog.Any("error", err))
	}
}

func decodeRows(data []byte) ([]Row, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// invalidate drops the cached rows of the model table.
func invalidate(ctx context.Context, m *Model) {
	reg := m.reg
	if reg.cache == nil {
		return
	}
	prefix := rhubarb.CacheKey{Table: tableKey(m)}.Prefix()
	if err := reg.cache.DeletePrefix(ctx, prefix); err != nil {
		reg.log.WarnContext(ctx, "rhubarb: cache invalidation failed", slog.String("prefix", prefix), slog.Any("error", err))
	}
}

func queryRows(ctx context.Context, conn dialect.ExecQuerier, q string, args []any) ([]Row, error) {
	var rows sql.Rows
	if err := conn.Query(ctx, q, args, &rows); err != nil {
		return nil, err
	}
	return sql.ScanMaps(rows)
}

// All returns the results in row order.
func (s *ObjectSet) All(ctx context.Context) ([]any, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.cache.all(), nil
}

// One returns the first result, or nil if there is none.
func (s *ObjectSet) One(ctx context.Context) (any, error) {
	all, err := s.All(ctx)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// ForPK returns the result keyed by the given primary key, or nil if
// there is none. Composite keys are given in key order.
func (s *ObjectSet) ForPK(ctx context.Context, pk ...any) (any, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var key any = pk
	if len(pk) == 1 {
		key = pk[0]
	}
	v, _ := st.cache.get(key)
	return v, nil
}

// Count returns the number of rows of the query.
func (s *ObjectSet) Count(ctx context.Context) (int64, error) {
	v, err := s.wrap(ctx, "SELECT COUNT(*) AS count FROM (", ") AS counted")
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// Exists reports if the query has rows.
func (s *ObjectSet) Exists(ctx context.Context) (bool, error) {
	v, err := s.wrap(ctx, "SELECT EXISTS (", ") AS found")
	if err != nil {
		return false, err
	}
	n, err := toInt64(v)
	return n != 0, err
}

// wrap runs the statement of the query inside another returning one value.
func (s *ObjectSet) wrap(ctx context.Context, prefix, suffix string) (any, error) {
	set, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}
	b := sql.NewBuilder(dialect.DialectOf(s.conn))
	b.Write(prefix)
	set.build(b)
	b.Write(suffix)
	if err := b.Err(); err != nil {
		return nil, err
	}
	q, args := b.Query()
	s.model.reg.log.DebugContext(ctx, "rhubarb: executing statement", slog.String("sql", q), slog.Any("args", args))
	rows, err := queryRows(ctx, s.conn, q, args)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 || len(rows[0]) != 1 {
		return nil, fmt.Errorf("objectset: expected a single value, got %d rows", len(rows))
	}
	for _, v := range rows[0] {
		return v, nil
	}
	return nil, nil
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	k := normalizeKey(v)
	if n, ok := k.(int64); ok {
		return n, nil
	}
	return 0, fmt.Errorf("objectset: unexpected value %v (%T)", v, v)
}

// Resolve loads the given queries concurrently.
func Resolve(ctx context.Context, sets ...*ObjectSet) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range sets {
		g.Go(func() error { return s.Load(ctx) })
	}
	return g.Wait()
}
