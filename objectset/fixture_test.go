package objectset

import (
	"context"
	"database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/dialect/sql"
	"github.com/syssam/rhubarb/schema"
	"github.com/syssam/rhubarb/schema/field"
)

// library registers the models used across the tests:
//
//	Author(id, name) books -> []Book, stats -> BookStats
//	Book(id, title, author_id) author -> Author, writer -> Author
//	BookStats(author_id, count) grouped view over the book table
func library(t testing.TB, opts ...Option) *Registry {
	t.Helper()
	reg := NewRegistry(opts...)
	reg.MustRegister(
		schema.NewTable("Author", field.BigInt("id"), field.Text("name")),
		HasMany("books", "Book", ForeignKey("id", "author_id")),
		HasOne("stats", "BookStats", ForeignKey("id", "author_id")),
	)
	reg.MustRegister(
		schema.NewTable("Book", field.BigInt("id"), field.Text("title"), field.BigInt("author_id").Optional()),
		HasOne("author", "Author", ForeignKey("author_id", "id")),
		HasOne("writer", "Author", ForeignKey("author_id", "id")),
	)
	reg.MustRegister(
		schema.NewTable("BookStats", field.BigInt("author_id")).WithTable("book"),
		GroupBy(func(m *ModelSelector) Selector { return m.F("author_id") }),
		Virtual("count", func(m *ModelSelector) Selector { return Count(m, nil) }),
	)
	return reg
}

func model(t testing.TB, reg *Registry, name string) *Model {
	t.Helper()
	m, ok := reg.Model(name)
	require.True(t, ok, "model %s", name)
	return m
}

// mockDriver returns a postgres driver over sqlmock, counting statements.
func mockDriver(t testing.TB) (*sql.StatsDriver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.NewStatsDriver(sql.OpenDB(dialect.Postgres, db)), mock
}

func query(t testing.TB, reg *Registry, conn dialect.ExecQuerier, name string) *ObjectSet {
	t.Helper()
	s, err := reg.Query(conn, name)
	require.NoError(t, err)
	return s
}

func compile(t testing.TB, s *ObjectSet) string {
	t.Helper()
	q, _, err := s.SQL()
	require.NoError(t, err)
	return q
}

func rows(columns string, values ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(strings.Split(columns, ","))
	for _, v := range values {
		r.AddRow(v...)
	}
	return r
}

func row(values ...driver.Value) []driver.Value { return values }

func get(t testing.TB, v any, name string) any {
	t.Helper()
	rec, ok := v.(*Record)
	require.True(t, ok, "expected a record, got %T", v)
	return rec.Get(name)
}

func titles(t testing.TB, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "expected a list, got %T", v)
	out := make([]string, len(list))
	for i, rec := range list {
		out[i], _ = get(t, rec, "title").(string)
	}
	return out
}

// memCache is an in-memory rhubarb.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
