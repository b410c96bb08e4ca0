package deps

import (
	"context"
	"net/url"
	"sort"

	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// DepAttr marks head elements inserted for a dependency.
const DepAttr = "data-shiny-dep"

// Loader makes one dependency available. Load returns once every resource
// of the dependency has loaded.
type Loader interface {
	Load(ctx context.Context, dep protocol.Dependency) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, dep protocol.Dependency) error

func (f LoaderFunc) Load(ctx context.Context, dep protocol.Dependency) error { return f(ctx, dep) }

// ScriptRunner executes a fetched script. ctx marks the dependency as
// loading, so renders started by the script do not wait on it.
type ScriptRunner interface {
	Run(ctx context.Context, dep protocol.Dependency, res protocol.Resource, src []byte) error
}

// ScriptRunnerFunc adapts a function to ScriptRunner.
type ScriptRunnerFunc func(ctx context.Context, dep protocol.Dependency, res protocol.Resource, src []byte) error

func (f ScriptRunnerFunc) Run(ctx context.Context, dep protocol.Dependency, res protocol.Resource, src []byte) error {
	return f(ctx, dep, res, src)
}

// Resolver is implemented by fetchers that resolve relative URLs.
type Resolver interface {
	Resolve(ref string) (*url.URL, error)
}

// DocumentLoader fetches resources and inserts matching <script> and
// <link> elements into the document head. Resources load in declared
// order; a script counts as loaded once Runner has run it.
type DocumentLoader struct {
	Doc     *dom.Document
	Fetcher Fetcher
	Runner  ScriptRunner
}

func (l *DocumentLoader) Load(ctx context.Context, dep protocol.Dependency) error {
	for _, res := range dep.Resources {
		if err := l.loadResource(ctx, dep, res); err != nil {
			return &LoadError{Name: dep.Name, Version: dep.Version, URL: res.URL, Err: err}
		}
	}
	if dep.Head != "" {
		frag, err := dom.ParseFragment(dep.Head)
		if err != nil {
			return &LoadError{Name: dep.Name, Version: dep.Version, Err: err}
		}
		l.Doc.Update(func() {
			for _, n := range frag.Children {
				if n.IsElement() {
					n.SetAttr(DepAttr, dep.Name)
				}
			}
			l.Doc.Head.AppendChild(frag)
		})
	}
	return nil
}

func (l *DocumentLoader) loadResource(ctx context.Context, dep protocol.Dependency, res protocol.Resource) error {
	u, err := l.resolve(res.URL)
	if err != nil {
		return err
	}
	src, err := l.Fetcher.Fetch(ctx, u)
	if err != nil {
		return err
	}

	var el *dom.Node
	switch res.Kind {
	case "stylesheet":
		el = dom.Element("link", dom.A("rel", "stylesheet", "href", res.URL))
	default:
		el = dom.Element("script", dom.A("src", res.URL))
	}
	keys := make([]string, 0, len(res.Attrs))
	for k := range res.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.SetAttr(k, res.Attrs[k])
	}
	el.SetAttr(DepAttr, dep.Name)
	l.Doc.Update(func() { l.Doc.Head.AppendChild(el) })

	if res.Kind != "stylesheet" && l.Runner != nil {
		return l.Runner.Run(ctx, dep, res, src)
	}
	return nil
}

func (l *DocumentLoader) resolve(ref string) (*url.URL, error) {
	if r, ok := l.Fetcher.(Resolver); ok {
		return r.Resolve(ref)
	}
	return url.Parse(ref)
}
