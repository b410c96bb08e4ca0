package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/olivroy/shiny/pkg/protocol"
	"github.com/olivroy/shiny/pkg/shinytest"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want time.Duration
	}{
		{0, 1},
		{0.5, 5},
		{0.95, 10},
		{1, 10},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile of no samples = %v", got)
	}
}

func TestMakeToken(t *testing.T) {
	if got := makeToken(3, 7, 0); got != "c3:7:" {
		t.Errorf("short token = %q", got)
	}
	tok := makeToken(3, 7, 24)
	if len(tok) != 24 || !strings.HasPrefix(tok, "c3:7:") {
		t.Errorf("token = %q, want 24 bytes with the client prefix", tok)
	}
	if tok == makeToken(3, 7, 24) {
		t.Error("tokens should differ")
	}
}

func TestBenchConfigValidate(t *testing.T) {
	valid := benchConfig{Clients: 1, Duration: time.Second, RPS: 1, InputID: "in", OutputID: "out"}
	if err := valid.validate(); err != nil {
		t.Fatal(err)
	}
	for name, mutate := range map[string]func(*benchConfig){
		"clients":  func(c *benchConfig) { c.Clients = 0 },
		"duration": func(c *benchConfig) { c.Duration = 0 },
		"rps":      func(c *benchConfig) { c.RPS = -1 },
		"payload":  func(c *benchConfig) { c.PayloadBytes = -1 },
		"ids":      func(c *benchConfig) { c.OutputID = "" },
	} {
		cfg := valid
		mutate(&cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: want an error", name)
		}
	}
}

func TestRunBenchEchoesTokens(t *testing.T) {
	srv := shinytest.NewServer(t)
	cfg := benchConfig{
		URL:          srv.URL,
		Codec:        protocol.JSON,
		Clients:      1,
		Duration:     300 * time.Millisecond,
		RPS:          100,
		PayloadBytes: 16,
		InputID:      "token",
		OutputID:     "echo",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	type result struct {
		report *benchReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := runBench(context.Background(), cfg)
		done <- result{r, err}
	}()

	// Echo every token back until the client goes away.
	sess := srv.Accept(t)
	for {
		msg, err := sess.Next(context.Background())
		if err != nil {
			break
		}
		upd, ok := msg.(*protocol.Update)
		if !ok {
			continue
		}
		if tok, ok := upd.Values["token"]; ok {
			if err := sess.Send(&protocol.Values{Values: map[string]any{"echo": tok}}); err != nil {
				break
			}
		}
	}

	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.report.Errors != 0 {
		t.Errorf("%d client errors", res.report.Errors)
	}
	if res.report.Events == 0 || len(res.report.Latencies) != int(res.report.Events) {
		t.Errorf("events = %d with %d samples", res.report.Events, len(res.report.Latencies))
	}

	var out strings.Builder
	printReport(&out, cfg, res.report)
	if !strings.Contains(out.String(), "p99:") {
		t.Errorf("report missing percentiles:\n%s", out.String())
	}
}
