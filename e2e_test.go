package shiny_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/olivroy/shiny"
	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
	"github.com/olivroy/shiny/pkg/shinytest"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(shinytest.Timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func textOf(doc *dom.Document, id string) string {
	var s string
	doc.Update(func() {
		if el := doc.Root.ByID(id); el != nil {
			s = el.TextContent()
		}
	})
	return s
}

func TestClientAgainstServer(t *testing.T) {
	srv := shinytest.NewServer(t)
	srv.Serve("lib.js", "text/javascript", "window.lib = true;")

	doc, err := dom.ParseDocument(`<input id="name" type="text" value="ann" data-debounce="0">
		<div id="ui" class="shiny-html-output"></div>`)
	if err != nil {
		t.Fatal(err)
	}
	cfg := shiny.DefaultConfig()
	cfg.URL = srv.URL
	cfg.HeartbeatInterval = -1
	cfg.Reconnect.InitialInterval = 10 * time.Millisecond
	cfg.Reconnect.MaxInterval = 50 * time.Millisecond
	cfg.Reconnect.GracePeriod = 0

	c, err := shiny.New(cfg,
		shiny.WithDocument(doc),
		shiny.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), shinytest.Timeout)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	sess := srv.Accept(t)
	if got := sess.Hello.Values["name"]; got != "ann" {
		t.Errorf("Hello name = %v, want ann", got)
	}
	id, err := c.SessionInitialized().Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != sess.ID {
		t.Errorf("session id = %q, want %q", id, sess.ID)
	}

	// Dynamic UI with a script dependency, rendered twice.
	lib := []any{map[string]any{
		"name":      "lib",
		"version":   "1.0",
		"resources": []any{map[string]any{"url": "deps/lib.js", "kind": "script"}},
	}}
	for _, out := range []string{"first", "second"} {
		err := sess.Send(&protocol.Values{Values: map[string]any{
			"ui": map[string]any{
				"html": `<div id="` + out + `" class="shiny-text-output"></div>`,
				"deps": lib,
			},
		}})
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Send(&protocol.Values{Values: map[string]any{out: "filled " + out}}); err != nil {
			t.Fatal(err)
		}
		waitUntil(t, out+" output", func() bool { return textOf(doc, out) == "filled "+out })
	}
	if n := srv.Hits("lib.js"); n != 1 {
		t.Errorf("lib.js fetched %d times, want 1", n)
	}
	doc.Update(func() {
		script := doc.Head.Query("script")
		if script == nil || script.AttrOr(deps.DepAttr, "") != "lib" {
			t.Error("dependency script not in head")
		}
	})

	typeName := func(v string) {
		doc.Update(func() {
			el := doc.Body.ByID("name")
			el.SetAttr("value", v)
			el.Dispatch(dom.Event{Type: dom.EventInput})
		})
	}
	typeName("bob")
	if got := sess.NextUpdate(t).Values["name"]; got != "bob" {
		t.Errorf("update name = %v, want bob", got)
	}

	// The session survives network loss and resumes under its id.
	sess.Drop()
	again := srv.Accept(t)
	if !again.Hello.Resume || again.Hello.SessionID != sess.ID {
		t.Errorf("reconnect Hello = %+v, want resume of %q", again.Hello, sess.ID)
	}
	waitUntil(t, "reopen", func() bool { return c.State() == session.StateOpen })

	typeName("cat")
	if got := again.NextUpdate(t).Values["name"]; got != "cat" {
		t.Errorf("update after reconnect = %v, want cat", got)
	}
}

func TestServerCloseEndsSession(t *testing.T) {
	srv := shinytest.NewServer(t)
	cfg := shiny.DefaultConfig()
	cfg.URL = srv.URL
	cfg.HeartbeatInterval = -1

	c, err := shiny.New(cfg, shiny.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess := srv.Accept(t)
	if err := sess.Close(protocol.CloseSessionExpired, "idle"); err != nil {
		t.Fatal(err)
	}

	select {
	case <-c.Done():
	case <-time.After(shinytest.Timeout):
		t.Fatal("client did not stop after the server closed the session")
	}
	if !errors.Is(c.Err(), session.ErrServerClosed) {
		t.Errorf("Err = %v, want ErrServerClosed", c.Err())
	}
	if n := srv.Connections(); n != 1 {
		t.Errorf("%d connections, want no reconnect", n)
	}
}
