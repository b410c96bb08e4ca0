package deps

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-cmp/cmp"

	shinyerrors "github.com/olivroy/shiny/internal/errors"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	order []string
	delay time.Duration
	fail  map[string]int // name -> remaining failures
}

func newCountingLoader() *countingLoader {
	return &countingLoader{calls: make(map[string]int), fail: make(map[string]int)}
}

func (l *countingLoader) Load(ctx context.Context, dep protocol.Dependency) error {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[dep.Name+"@"+dep.Version]++
	l.order = append(l.order, dep.Name)
	if l.fail[dep.Name] > 0 {
		l.fail[dep.Name]--
		return stderrors.New("network down")
	}
	return nil
}

func (l *countingLoader) count(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[key]
}

func newTestRenderer(t *testing.T, l Loader) (*Renderer, *dom.Document) {
	t.Helper()
	doc, err := dom.ParseDocument(`<div id="target"></div>`)
	if err != nil {
		t.Fatal(err)
	}
	return NewRenderer(doc, NewTable(), l), doc
}

func TestRenderSkipsLoadedDependency(t *testing.T) {
	loader := newCountingLoader()
	r, doc := newTestRenderer(t, loader)
	ctx := context.Background()
	target := doc.Body.ByID("target")
	lib := []protocol.Dependency{{Name: "lib", Version: "1"}}

	if err := r.RenderContentAsync(ctx, `<div id="x">ok</div>`, lib, target, dom.Replace); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderContentAsync(ctx, `<div id="y">again</div>`, lib, target, dom.Replace); err != nil {
		t.Fatal(err)
	}

	if n := loader.count("lib@1"); n != 1 {
		t.Errorf("lib loaded %d times, want 1", n)
	}
	if got := target.InnerHTML(); got != `<div id="y">again</div>` {
		t.Errorf("target = %q", got)
	}
}

func TestConcurrentRendersShareLoad(t *testing.T) {
	loader := newCountingLoader()
	loader.delay = 20 * time.Millisecond
	r, doc := newTestRenderer(t, loader)
	target := doc.Body.ByID("target")
	deps := []protocol.Dependency{{Name: "shared", Version: "2.0"}}

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			html := fmt.Sprintf(`<p>%d</p>`, i)
			errs <- r.RenderContentAsync(context.Background(), html, deps, target, dom.BeforeEnd)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	if c := loader.count("shared@2.0"); c != 1 {
		t.Errorf("shared loaded %d times, want 1", c)
	}
	if got := len(target.Children); got != n {
		t.Errorf("inserted %d children, want %d", got, n)
	}
}

func TestDependenciesLoadInOrder(t *testing.T) {
	loader := newCountingLoader()
	r, _ := newTestRenderer(t, loader)
	deps := []protocol.Dependency{
		{Name: "jquery", Version: "3"},
		{Name: "plugin", Version: "1"},
		{Name: "theme", Version: "1"},
	}
	if err := r.RenderDependenciesAsync(context.Background(), deps); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"jquery", "plugin", "theme"}, loader.order); diff != "" {
		t.Errorf("load order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"jquery", "plugin", "theme"}, r.Table().Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedLoadIsRetried(t *testing.T) {
	loader := newCountingLoader()
	loader.fail["flaky"] = 1
	r, doc := newTestRenderer(t, loader)
	target := doc.Body.ByID("target")
	deps := []protocol.Dependency{{Name: "flaky", Version: "1"}}

	err := r.RenderContentAsync(context.Background(), `<b>x</b>`, deps, target, dom.Replace)
	if err == nil {
		t.Fatal("first render succeeded despite failing load")
	}
	if target.InnerHTML() != "" {
		t.Errorf("content inserted after failed load: %q", target.InnerHTML())
	}
	if r.Table().IsLoaded(deps[0]) {
		t.Fatal("failed dependency marked loaded")
	}

	if err := r.RenderContentAsync(context.Background(), `<b>x</b>`, deps, target, dom.Replace); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c := loader.count("flaky@1"); c != 2 {
		t.Errorf("flaky loaded %d times, want 2", c)
	}
}

func TestUnsupportedSchemeCode(t *testing.T) {
	doc := dom.NewDocument()
	loader := &DocumentLoader{Doc: doc, Fetcher: NewMux(nil)}
	r := NewRenderer(doc, NewTable(), loader)

	deps := []protocol.Dependency{{
		Name:      "far",
		Version:   "1",
		Resources: []protocol.Resource{{URL: "gopher://host/far.js", Kind: "script"}},
	}}
	err := r.RenderDependenciesAsync(context.Background(), deps)
	if !stderrors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("err = %v, want ErrUnsupportedScheme", err)
	}
	if code := shinyerrors.CodeOf(err); code != "E302" {
		t.Errorf("code = %q, want E302", code)
	}
}

func TestVersionConflictKeepsLoaded(t *testing.T) {
	loader := newCountingLoader()
	var reported []error
	doc := dom.NewDocument()
	r := NewRenderer(doc, NewTable(), loader, WithErrorReporter(func(err error) { reported = append(reported, err) }))
	ctx := context.Background()

	_ = r.RenderDependenciesAsync(ctx, []protocol.Dependency{{Name: "lib", Version: "1.0"}})
	if err := r.RenderDependenciesAsync(ctx, []protocol.Dependency{{Name: "lib", Version: "2.0"}}); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Table().Loaded("lib"); v != "1.0" {
		t.Errorf("loaded version = %q, want 1.0", v)
	}
	if loader.count("lib@2.0") != 0 {
		t.Error("conflicting version was loaded")
	}
	if len(reported) != 1 {
		t.Errorf("reported %d conflicts, want 1", len(reported))
	}
}

func TestReentrantRenderDoesNotDeadlock(t *testing.T) {
	doc, _ := dom.ParseDocument(`<div id="a"></div><div id="b"></div>`)
	table := NewTable()
	var r *Renderer
	widget := protocol.Dependency{Name: "widget", Version: "1"}
	loads := 0
	loader := LoaderFunc(func(ctx context.Context, dep protocol.Dependency) error {
		loads++
		// The dependency's own script renders content needing itself.
		return r.RenderContentAsync(ctx, `<span>inner</span>`, []protocol.Dependency{widget}, doc.Body.ByID("b"), dom.Replace)
	})
	r = NewRenderer(doc, table, loader)

	done := make(chan error, 1)
	go func() {
		done <- r.RenderContentAsync(context.Background(), `<span>outer</span>`, []protocol.Dependency{widget}, doc.Body.ByID("a"), dom.Replace)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant render deadlocked")
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if doc.Body.ByID("b").TextContent() != "inner" || doc.Body.ByID("a").TextContent() != "outer" {
		t.Errorf("body = %s", doc.Body.HTML())
	}
}

func TestSyncRenderInsertsImmediately(t *testing.T) {
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, dep protocol.Dependency) error {
		<-release
		return nil
	})
	r, doc := newTestRenderer(t, loader)
	target := doc.Body.ByID("target")
	dep := protocol.Dependency{Name: "slow", Version: "1"}

	if err := r.RenderContent(context.Background(), `<i>now</i>`, []protocol.Dependency{dep}, target, dom.Replace); err != nil {
		t.Fatal(err)
	}
	if target.InnerHTML() != "<i>now</i>" {
		t.Errorf("target = %q", target.InnerHTML())
	}
	if r.Table().IsLoaded(dep) {
		t.Error("dependency loaded before release")
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if !r.Table().IsLoaded(dep) {
		t.Error("background load did not complete")
	}
}

type recordingBinder struct {
	bound   []string
	unbound []string
}

func (b *recordingBinder) Bind(_ context.Context, scope *dom.Node) {
	b.bound = append(b.bound, scope.ID())
}

func (b *recordingBinder) Unbind(scope *dom.Node, includeSelf bool) {
	b.unbound = append(b.unbound, scope.ID())
}

func TestRenderContentBinds(t *testing.T) {
	binder := &recordingBinder{}
	doc, _ := dom.ParseDocument(`<div id="target"><input id="old"></div>`)
	r := NewRenderer(doc, NewTable(), newCountingLoader(), WithBinder(binder))
	target := doc.Body.ByID("target")

	if err := r.RenderContentAsync(context.Background(), `<input id="n1"><input id="n2">`, nil, target, dom.Replace); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"target"}, binder.unbound); diff != "" {
		t.Errorf("unbound mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"n1", "n2"}, binder.bound); diff != "" {
		t.Errorf("bound mismatch (-want +got):\n%s", diff)
	}

	// RenderHTML never binds.
	binder.bound = nil
	if _, err := r.RenderHTMLAsync(context.Background(), `<input id="n3">`, nil, target, dom.BeforeEnd); err != nil {
		t.Fatal(err)
	}
	if len(binder.bound) != 0 {
		t.Errorf("RenderHTML bound %v", binder.bound)
	}

	if err := r.RenderContentAsync(context.Background(), `<p></p>`, nil, nil, dom.Replace); !stderrors.Is(err, ErrNoTarget) {
		t.Errorf("nil target error = %v, want ErrNoTarget", err)
	}
}

func TestDocumentLoaderInsertsHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.js" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "/* %s */", r.URL.Path)
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL + "/lib/")
	doc := dom.NewDocument()
	var ran []string
	loader := &DocumentLoader{
		Doc:     doc,
		Fetcher: NewMux(base),
		Runner: ScriptRunnerFunc(func(ctx context.Context, dep protocol.Dependency, res protocol.Resource, src []byte) error {
			ran = append(ran, string(src))
			return nil
		}),
	}

	dep := protocol.Dependency{
		Name:    "widget",
		Version: "1.0",
		Resources: []protocol.Resource{
			{URL: "widget.css", Kind: "stylesheet"},
			{URL: "widget.js", Kind: "script", Attrs: map[string]string{"type": "module", "defer": ""}},
		},
		Head: `<meta name="widget" content="1">`,
	}
	if err := loader.Load(context.Background(), dep); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"/* /lib/widget.js */"}, ran); diff != "" {
		t.Errorf("scripts run mismatch (-want +got):\n%s", diff)
	}
	inserted := doc.Head.QueryAll("[" + DepAttr + "=widget]")
	if len(inserted) != 3 {
		t.Fatalf("head has %d dependency elements, want 3: %s", len(inserted), doc.Head.HTML())
	}
	if inserted[0].Tag != "link" || inserted[1].Tag != "script" || inserted[2].Tag != "meta" {
		t.Errorf("head order = %s", doc.Head.HTML())
	}
	if v, _ := inserted[1].Attr("type"); v != "module" {
		t.Errorf("script attrs = %v", inserted[1].Attrs)
	}

	bad := protocol.Dependency{Name: "bad", Version: "1", Resources: []protocol.Resource{{URL: "/missing.js", Kind: "script"}}}
	err := loader.Load(context.Background(), bad)
	var le *LoadError
	if !stderrors.As(err, &le) || le.Name != "bad" {
		t.Errorf("Load(bad) = %v, want *LoadError", err)
	}
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dep.js")
	if err := os.WriteFile(path, []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}
	u := &url.URL{Scheme: "file", Path: path}
	got, err := NewMux(nil).Fetch(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "console.log(1)" {
		t.Errorf("Fetch = %q", got)
	}

	if _, err := NewMux(nil).Fetch(context.Background(), &url.URL{Scheme: "gopher", Host: "x"}); !stderrors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("unknown scheme error = %v", err)
	}
}

type fakeS3 struct {
	bucket, key string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = aws.ToString(in.Bucket), aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("s3 body"))}, nil
}

func TestS3Fetcher(t *testing.T) {
	api := &fakeS3{}
	m := NewMux(nil)
	m.Handle("s3", S3Fetcher{Client: api})

	u, _ := url.Parse("s3://assets/deps/widget/1.0/widget.js")
	got, err := m.Fetch(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "s3 body" || api.bucket != "assets" || api.key != "deps/widget/1.0/widget.js" {
		t.Errorf("Fetch = %q from %s/%s", got, api.bucket, api.key)
	}

	u, _ = url.Parse("s3://assets")
	if _, err := m.Fetch(context.Background(), u); err == nil {
		t.Error("Fetch without key succeeded")
	}
}
