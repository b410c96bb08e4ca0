package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"runtime/metrics"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/olivroy/shiny"
	"github.com/olivroy/shiny/pkg/binding"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/protocol"
)

// benchConfig drives a round-trip load test. Each client sets InputID to a
// unique token and waits for the server to echo it into OutputID.
type benchConfig struct {
	URL          string
	Codec        protocol.Codec
	Clients      int
	Duration     time.Duration
	RPS          float64
	PayloadBytes int
	InputID      string
	OutputID     string
	Logger       *slog.Logger
}

type benchReport struct {
	Events    uint64
	Errors    uint64
	Latencies []time.Duration // Sorted
	Elapsed   time.Duration

	Alloc      uint64
	NumGC      uint32
	GCPause    time.Duration
	GCFraction float64
}

func benchCmd() *cobra.Command {
	var (
		cfg   benchConfig
		codec string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure input to output round trips under load",
		Long: `Run concurrent headless clients against a server app that copies
the input --input into the output --output.

Every client sends a unique token as an event-priority input value and
waits for the echo before sending the next one, so the reported latency
includes server queueing.

Examples:
  shiny bench --url=ws://localhost:8000/websocket
  shiny bench --clients=200 --duration=30s --rps=5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := protocol.CodecByName(codec)
			if err != nil {
				return err
			}
			cfg.Codec = c
			cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			report, err := runBench(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), cfg, report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.URL, "url", "u", shiny.DefaultConfig().URL, "Server WebSocket URL")
	cmd.Flags().StringVar(&codec, "codec", "json", "Frame codec: json or msgpack")
	cmd.Flags().IntVar(&cfg.Clients, "clients", 100, "Number of concurrent clients")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 15*time.Second, "How long to run")
	cmd.Flags().Float64Var(&cfg.RPS, "rps", 2, "Target round trips per second per client")
	cmd.Flags().IntVar(&cfg.PayloadBytes, "payload-bytes", 24, "Token size in bytes")
	cmd.Flags().StringVar(&cfg.InputID, "input", "token", "Input id the token is sent as")
	cmd.Flags().StringVar(&cfg.OutputID, "output", "echo", "Output id the server echoes into")

	return cmd
}

func (c benchConfig) validate() error {
	switch {
	case c.Clients <= 0:
		return errors.New("--clients must be > 0")
	case c.Duration <= 0:
		return errors.New("--duration must be > 0")
	case c.RPS <= 0:
		return errors.New("--rps must be > 0")
	case c.PayloadBytes < 0:
		return errors.New("--payload-bytes must be >= 0")
	case c.InputID == "" || c.OutputID == "":
		return errors.New("--input and --output are required")
	}
	return nil
}

func runBench(ctx context.Context, cfg benchConfig) (*benchReport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		events, errs atomic.Uint64
		mu           sync.Mutex
		samples      []time.Duration
	)
	record := func(rtt time.Duration) {
		events.Add(1)
		mu.Lock()
		samples = append(samples, rtt)
		mu.Unlock()
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	gcBefore := readGCCPU()
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := runBenchClient(ctx, cfg, id, record); err != nil {
				cfg.Logger.Warn("bench client failed", "client", id, "error", err)
				errs.Add(1)
			}
		}(i)
	}
	wg.Wait()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return &benchReport{
		Events:     events.Load(),
		Errors:     errs.Load(),
		Latencies:  samples,
		Elapsed:    time.Since(start),
		Alloc:      after.TotalAlloc - before.TotalAlloc,
		NumGC:      after.NumGC - before.NumGC,
		GCPause:    time.Duration(after.PauseTotalNs - before.PauseTotalNs),
		GCFraction: readGCCPU().since(gcBefore),
	}, nil
}

// echoOutput reports every value rendered into the bench output.
type echoOutput struct {
	id     string
	values chan string
}

func (o echoOutput) Match(el *dom.Node) bool { return el.ID() == o.id }
func (o echoOutput) ID(el *dom.Node) string  { return el.ID() }

func (o echoOutput) RenderValue(el *dom.Node, v any) error {
	s := fmt.Sprint(v)
	el.SetTextContent(s)
	select {
	case o.values <- s:
	default:
	}
	return nil
}

func (o echoOutput) RenderError(el *dom.Node, err error) {
	el.SetTextContent(err.Error())
}

func (o echoOutput) ShowProgress(*dom.Node, bool) {}

func runBenchClient(ctx context.Context, cfg benchConfig, id int, record func(time.Duration)) error {
	doc := dom.NewDocument()
	doc.Body.AppendChild(dom.Element("div", dom.A("id", cfg.OutputID)))

	echo := echoOutput{id: cfg.OutputID, values: make(chan string, 16)}
	c, err := shiny.New(shiny.Config{URL: cfg.URL, Codec: cfg.Codec, Logger: cfg.Logger},
		shiny.WithDocument(doc),
		shiny.WithoutBuiltinBindings())
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.OutputBindings().Register("bench.echo", echo, binding.PriorityNormal); err != nil {
		return err
	}

	if err := c.Start(ctx); err != nil {
		return err
	}
	if _, err := c.SessionInitialized().Wait(ctx); err != nil {
		return nil
	}

	period := time.Duration(float64(time.Second) / cfg.RPS)
	for seq := uint64(1); ; seq++ {
		token := makeToken(id, seq, cfg.PayloadBytes)
		start := time.Now()
		c.SetInputValue(cfg.InputID, token, shiny.InputOptions{Priority: shiny.Event})

	wait:
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-c.Done():
				return c.Err()
			case got := <-echo.values:
				if got == token {
					break wait
				}
			}
		}
		record(time.Since(start))

		// Pacing is gated on the echo to expose queueing in the tail.
		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// makeToken returns a token of n bytes that starts with the client and
// sequence number.
func makeToken(client int, seq uint64, n int) string {
	prefix := fmt.Sprintf("c%d:%d:", client, seq)
	if n <= len(prefix) {
		return prefix
	}
	raw := make([]byte, (n-len(prefix)+1)/2)
	rand.Read(raw)
	return prefix + hex.EncodeToString(raw)[:n-len(prefix)]
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

type gcCPU struct{ total, gc float64 }

func readGCCPU() gcCPU {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
	}
	metrics.Read(samples)
	var out gcCPU
	if samples[0].Value.Kind() == metrics.KindFloat64 {
		out.total = samples[0].Value.Float64()
	}
	if samples[1].Value.Kind() == metrics.KindFloat64 {
		out.gc = samples[1].Value.Float64()
	}
	return out
}

// since returns the share of CPU time spent in GC after prev.
func (s gcCPU) since(prev gcCPU) float64 {
	total := s.total - prev.total
	if total <= 0 {
		return 0
	}
	return math.Max(0, s.gc-prev.gc) / total
}

func printReport(w io.Writer, cfg benchConfig, r *benchReport) {
	secs := math.Max(0.001, r.Elapsed.Seconds())
	fmt.Fprintln(w, "=== shiny round-trip benchmark ===")
	fmt.Fprintf(w, "Clients:     %d\n", cfg.Clients)
	fmt.Fprintf(w, "Duration:    %s\n", cfg.Duration)
	fmt.Fprintf(w, "Target rate: %.2f/s per client\n", cfg.RPS)
	fmt.Fprintf(w, "Round trips: %d\n", r.Events)
	fmt.Fprintf(w, "Errors:      %d\n", r.Errors)
	fmt.Fprintf(w, "Throughput:  %.1f/s\n", float64(r.Events)/secs)
	fmt.Fprintln(w)

	if len(r.Latencies) == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintln(w, "RTT (input sent to output rendered):")
		fmt.Fprintf(w, "  min: %s\n", r.Latencies[0])
		fmt.Fprintf(w, "  p50: %s\n", percentile(r.Latencies, 0.50))
		fmt.Fprintf(w, "  p95: %s\n", percentile(r.Latencies, 0.95))
		fmt.Fprintf(w, "  p99: %s\n", percentile(r.Latencies, 0.99))
		fmt.Fprintf(w, "  max: %s\n", r.Latencies[len(r.Latencies)-1])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Go runtime:")
	fmt.Fprintf(w, "  alloc:    %.2f MB\n", float64(r.Alloc)/(1024*1024))
	fmt.Fprintf(w, "  num_gc:   %d\n", r.NumGC)
	fmt.Fprintf(w, "  gc_pause: %s\n", r.GCPause)
	fmt.Fprintf(w, "  gc_cpu:   %.2f%%\n", 100*r.GCFraction)
}
