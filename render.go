package shiny

import (
	"context"

	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// RenderContentAsync loads deps in declared order, then inserts html
// relative to target and binds what it inserted. Replacing content
// unbinds the content it replaces.
func (c *Client) RenderContentAsync(ctx context.Context, target *dom.Node, html string, deps []protocol.Dependency, where dom.Where) error {
	return c.renderer.RenderContentAsync(ctx, html, deps, target, where)
}

// RenderContent inserts and binds html immediately. Dependencies not yet
// loaded load in the background.
func (c *Client) RenderContent(ctx context.Context, target *dom.Node, html string, deps []protocol.Dependency, where dom.Where) error {
	return c.renderer.RenderContent(ctx, html, deps, target, where)
}

// RenderHTMLAsync loads deps, then inserts html without binding it.
func (c *Client) RenderHTMLAsync(ctx context.Context, target *dom.Node, html string, deps []protocol.Dependency, where dom.Where) ([]*dom.Node, error) {
	return c.renderer.RenderHTMLAsync(ctx, html, deps, target, where)
}

// RenderHTML inserts html without binding it while deps load in the
// background.
func (c *Client) RenderHTML(ctx context.Context, target *dom.Node, html string, deps []protocol.Dependency, where dom.Where) ([]*dom.Node, error) {
	return c.renderer.RenderHTML(ctx, html, deps, target, where)
}

// RenderDependenciesAsync loads deps in declared order. Each dependency
// is loaded at most once per table.
func (c *Client) RenderDependenciesAsync(ctx context.Context, deps []protocol.Dependency) error {
	return c.renderer.RenderDependenciesAsync(ctx, deps)
}

// RenderDependencies starts loading deps without waiting. Failures are
// reported to the console.
func (c *Client) RenderDependencies(ctx context.Context, deps []protocol.Dependency) {
	c.renderer.RenderDependencies(ctx, deps)
}
