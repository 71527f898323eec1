package objectset

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/syssam/rhubarb"
	"github.com/syssam/rhubarb/dialect"
	"github.com/syssam/rhubarb/schema"
)

// Registry holds the models of an application. Relations resolve their
// targets by model name in the registry of their model.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	order  []string
	log    *slog.Logger
	cache  rhubarb.Cache
	ttl    time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger of the registry. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithCache enables the second-level row cache. Rows of every executed
// statement are stored for ttl, and the entries of a table are dropped
// by every command writing to it.
func WithCache(c rhubarb.Cache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = c
		r.ttl = ttl
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{models: make(map[string]*Model), log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a model for the table descriptor.
func (r *Registry) Register(t schema.TableDescriptor, opts ...ModelOption) (*Model, error) {
	if v, ok := t.(interface{ Err() error }); ok {
		if err := v.Err(); err != nil {
			return nil, err
		}
	}
	m := newModel(r, t)
	for _, opt := range opts {
		opt(m)
	}
	if m.err != nil {
		return nil, m.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[t.Name()]; ok {
		return nil, fmt.Errorf("objectset: model %q already registered", t.Name())
	}
	r.models[t.Name()] = m
	r.order = append(r.order, t.Name())
	return m, nil
}

// MustRegister is like Register but panics if the model cannot be registered.
func (r *Registry) MustRegister(t schema.TableDescriptor, opts ...ModelOption) *Model {
	m, err := r.Register(t, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Model returns the model registered under name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms := make([]*Model, len(r.order))
	for i, name := range r.order {
		ms[i] = r.models[name]
	}
	return ms
}

// Query returns a new query over the model registered under name.
func (r *Registry) Query(conn dialect.ExecQuerier, name string) (*ObjectSet, error) {
	m, ok := r.Model(name)
	if !ok {
		return nil, fmt.Errorf("objectset: unknown model %q", name)
	}
	return New(conn, m), nil
}
