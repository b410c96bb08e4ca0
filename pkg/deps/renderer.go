package deps

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/olivroy/shiny/internal/errors"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// Binder binds and unbinds rendered content. Its methods run while the
// document is locked and must not call Document.Update.
type Binder interface {
	Bind(ctx context.Context, scope *dom.Node)
	Unbind(scope *dom.Node, includeSelf bool)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBinder sets the binder invoked around content insertion.
func WithBinder(b Binder) Option {
	return func(r *Renderer) { r.binder = b }
}

// WithLogger sets the renderer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithErrorReporter sets the callback for failures that cannot be
// returned, such as background loads started by the sync variants.
func WithErrorReporter(fn func(error)) Option {
	return func(r *Renderer) { r.report = fn }
}

// Renderer inserts HTML content after loading its dependencies.
type Renderer struct {
	doc    *dom.Document
	table  *Table
	loader Loader
	binder Binder
	logger *slog.Logger
	report func(error)

	mu       sync.Mutex
	inflight int
	idle     chan struct{}
}

// NewRenderer creates a Renderer. table is typically shared by every
// renderer of a client.
func NewRenderer(doc *dom.Document, table *Table, loader Loader, opts ...Option) *Renderer {
	r := &Renderer{
		doc:    doc,
		table:  table,
		loader: loader,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the renderer's dependency table.
func (r *Renderer) Table() *Table { return r.table }

// RenderDependenciesAsync loads deps in declared order and returns once
// all are satisfied. The first failure aborts the call; dependencies
// loaded before it stay loaded.
func (r *Renderer) RenderDependenciesAsync(ctx context.Context, deps []protocol.Dependency) error {
	for _, dep := range deps {
		if err := r.ensure(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

// RenderDependencies starts loading deps in declared order without
// waiting. Failures go to the error reporter.
func (r *Renderer) RenderDependencies(ctx context.Context, deps []protocol.Dependency) {
	var pending []protocol.Dependency
	for _, dep := range deps {
		if !r.table.IsLoaded(dep) {
			pending = append(pending, dep)
		}
	}
	if len(pending) == 0 {
		return
	}

	r.begin()
	go func() {
		defer r.end()
		if err := r.RenderDependenciesAsync(context.WithoutCancel(ctx), pending); err != nil {
			r.fail(err)
		}
	}()
}

// RenderHTMLAsync loads deps, then inserts html relative to target. It
// returns the inserted nodes. Nothing is bound.
func (r *Renderer) RenderHTMLAsync(ctx context.Context, html string, deps []protocol.Dependency, target *dom.Node, where dom.Where) ([]*dom.Node, error) {
	if err := r.RenderDependenciesAsync(ctx, deps); err != nil {
		return nil, err
	}
	return r.insert(ctx, html, target, where, false)
}

// RenderHTML inserts html immediately while deps load in the background.
func (r *Renderer) RenderHTML(ctx context.Context, html string, deps []protocol.Dependency, target *dom.Node, where dom.Where) ([]*dom.Node, error) {
	r.RenderDependencies(ctx, deps)
	return r.insert(ctx, html, target, where, false)
}

// RenderContentAsync loads deps, then inserts html relative to target and
// binds the new content. Replacing content unbinds what it replaces.
func (r *Renderer) RenderContentAsync(ctx context.Context, html string, deps []protocol.Dependency, target *dom.Node, where dom.Where) error {
	if err := r.RenderDependenciesAsync(ctx, deps); err != nil {
		return err
	}
	_, err := r.insert(ctx, html, target, where, true)
	return err
}

// RenderContent is RenderContentAsync without waiting for dependencies.
// Dependencies already loaded are honored; the rest load in declared
// order in the background.
func (r *Renderer) RenderContent(ctx context.Context, html string, deps []protocol.Dependency, target *dom.Node, where dom.Where) error {
	r.RenderDependencies(ctx, deps)
	_, err := r.insert(ctx, html, target, where, true)
	return err
}

// Wait blocks until background loads started by the sync variants finish
// or ctx is done.
func (r *Renderer) Wait(ctx context.Context) error {
	r.mu.Lock()
	if r.inflight == 0 {
		r.mu.Unlock()
		return nil
	}
	if r.idle == nil {
		r.idle = make(chan struct{})
	}
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Renderer) ensure(ctx context.Context, dep protocol.Dependency) error {
	acq, version, e, err := r.table.acquire(ctx, dep)
	if err != nil {
		return err
	}
	switch acq {
	case satisfied:
		return nil
	case conflict:
		r.logger.Warn("dependency version conflict",
			"name", dep.Name, "loaded", version, "requested", dep.Version)
		r.fail(errors.New("E301").
			WithDetail(dep.Name + "@" + dep.Version + " requested, " + version + " loaded"))
		return nil
	}

	r.logger.Debug("loading dependency", "name", dep.Name, "version", dep.Version)
	lerr := r.loader.Load(withLoading(ctx, dep.Name), dep)
	if lerr != nil {
		code := "E300"
		if stderrors.Is(lerr, ErrUnsupportedScheme) {
			code = "E302"
		}
		lerr = errors.FromError(lerr, code)
	}
	r.table.finish(dep.Name, e, lerr)
	return lerr
}

func (r *Renderer) insert(ctx context.Context, html string, target *dom.Node, where dom.Where, bind bool) ([]*dom.Node, error) {
	if target == nil {
		return nil, ErrNoTarget
	}
	frag, err := dom.ParseFragment(html)
	if err != nil {
		return nil, err
	}

	var nodes []*dom.Node
	r.doc.Update(func() {
		if bind && r.binder != nil && where == dom.Replace {
			r.binder.Unbind(target, false)
		}
		nodes, err = dom.Insert(target, frag, where)
		if err != nil || !bind || r.binder == nil {
			return
		}
		for _, n := range nodes {
			r.binder.Bind(ctx, n)
		}
	})
	return nodes, err
}

func (r *Renderer) fail(err error) {
	r.logger.Error("render dependencies", "error", err)
	if r.report != nil {
		r.report(err)
	}
}

func (r *Renderer) begin() {
	r.mu.Lock()
	r.inflight++
	r.mu.Unlock()
}

func (r *Renderer) end() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight--
	if r.inflight == 0 && r.idle != nil {
		close(r.idle)
		r.idle = nil
	}
}
