package shinytest

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/session"
)

func TestServerSession(t *testing.T) {
	srv := NewServer(t)
	tr := session.New(session.Config{URL: srv.URL, HeartbeatInterval: -1})
	tr.Send("x", 1)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	s := srv.Accept(t)
	if s.Hello.Values["x"] != float64(1) {
		t.Errorf("Hello values = %v", s.Hello.Values)
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	id, err := tr.Initialized().Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if id != s.ID {
		t.Errorf("client session id %q, server %q", id, s.ID)
	}

	tr.Send("y", "hi")
	if upd := s.NextUpdate(t); upd.Values["y"] != "hi" {
		t.Errorf("Update = %+v", upd)
	}
}

func TestServerResume(t *testing.T) {
	srv := NewServer(t)
	tr := session.New(session.Config{
		URL:               srv.URL,
		HeartbeatInterval: -1,
		Reconnect:         session.ReconnectPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	first := srv.Accept(t)
	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	if _, err := tr.Initialized().Wait(ctx); err != nil {
		t.Fatal(err)
	}

	first.Drop()
	second := srv.Accept(t)
	if !second.Hello.Resume || second.ID != first.ID {
		t.Errorf("resumed session %q (resume=%v), want %q", second.ID, second.Hello.Resume, first.ID)
	}
	if srv.Connections() != 2 {
		t.Errorf("Connections = %d, want 2", srv.Connections())
	}
}

func TestServeDependency(t *testing.T) {
	srv := NewServer(t)
	srv.Serve("lib/1.0/lib.js", "text/javascript", "window.lib = 1")

	resp, err := http.Get(srv.DepURL("lib/1.0/lib.js"))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "window.lib = 1" || resp.Header.Get("Content-Type") != "text/javascript" {
		t.Errorf("got %q (%s)", body, resp.Header.Get("Content-Type"))
	}

	resp, err = http.Get(srv.DepURL("missing.js"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d", resp.StatusCode)
	}
	if srv.Hits("lib/1.0/lib.js") != 1 {
		t.Errorf("Hits = %d", srv.Hits("lib/1.0/lib.js"))
	}
}

func TestServerClose(t *testing.T) {
	srv := NewServer(t, WithoutReady())
	tr := session.New(session.Config{URL: srv.URL, HeartbeatInterval: -1})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := srv.Accept(t)
	s.Close(protocol.CloseSessionExpired, "expired")

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()
	if err := tr.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if tr.State() != session.StateClosed {
		t.Errorf("State = %s, want Closed", tr.State())
	}
	if tr.Initialized().Resolved() {
		t.Error("Initialized resolved without Ready")
	}
}
