// Package deps loads the script and stylesheet dependencies of rendered
// content and inserts the content once they are satisfied.
//
// A Table records which dependencies are loaded or loading. It is shared
// by every render of a client: a dependency already loaded is skipped, and
// a render that needs a dependency another render is loading waits for
// that load instead of starting its own. A failed load is forgotten so the
// next request retries it.
//
// Loads for one render run in declared order. Independent renders proceed
// concurrently. A render started from inside a dependency's own load, for
// example by a script that renders more content, sees that dependency as
// satisfied rather than waiting on itself.
//
//	r := deps.NewRenderer(doc, deps.NewTable(), loader, binder)
//	err := r.RenderContentAsync(ctx, html, dependencies, target, dom.Replace)
package deps
