package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func wait(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	d := New()
	rec := &recorder{}
	for _, name := range []string{"first", "second", "third"} {
		d.AddHandler("T", func(_ context.Context, p any) error {
			rec.add(name + ":" + p.(string))
			return nil
		})
	}

	ctx := context.Background()
	for _, p := range []string{"1", "2"} {
		if err := d.Dispatch(ctx, Message{Type: "T", Payload: p}); err != nil {
			t.Fatal(err)
		}
	}
	wait(t, d)

	want := []string{"first:1", "second:1", "third:1", "first:2", "second:2", "third:2"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveDuringDispatch(t *testing.T) {
	d := New()
	rec := &recorder{}
	var second Handle
	d.AddHandler("T", func(context.Context, any) error {
		rec.add("a")
		second.Remove()
		return nil
	})
	second = d.AddHandler("T", func(context.Context, any) error {
		rec.add("b")
		return nil
	})

	ctx := context.Background()
	_ = d.Dispatch(ctx, Message{Type: "T"})
	wait(t, d)
	_ = d.Dispatch(ctx, Message{Type: "T"})
	wait(t, d)

	if diff := cmp.Diff([]string{"a", "b", "a"}, rec.list()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if second.Remove() {
		t.Error("second Remove reported true")
	}
}

func TestMessagesOfOneTypeDoNotInterleave(t *testing.T) {
	d := New()
	rec := &recorder{}
	release := make(chan struct{})
	d.AddHandler("T", func(_ context.Context, p any) error {
		if p == "slow" {
			<-release
		}
		rec.add("h1:" + p.(string))
		return nil
	})
	d.AddHandler("T", func(_ context.Context, p any) error {
		rec.add("h2:" + p.(string))
		return nil
	})

	ctx := context.Background()
	_ = d.Dispatch(ctx, Message{Type: "T", Payload: "slow"})
	_ = d.Dispatch(ctx, Message{Type: "T", Payload: "fast"})
	close(release)
	wait(t, d)

	want := []string{"h1:slow", "h2:slow", "h1:fast", "h2:fast"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchDoesNotBlock(t *testing.T) {
	d := New()
	release := make(chan struct{})
	d.AddHandler("T", func(context.Context, any) error {
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- d.Dispatch(context.Background(), Message{Type: "T"}) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on handler")
	}
	close(release)
	wait(t, d)
}

func TestLegacyRunsBeforeTyped(t *testing.T) {
	d := New()
	rec := &recorder{}
	d.SetLegacy(func(_ context.Context, typ string, _ any) error {
		rec.add("legacy:" + typ)
		return nil
	})
	d.AddHandler("T", func(context.Context, any) error {
		rec.add("typed")
		return nil
	})

	ctx := context.Background()
	_ = d.Dispatch(ctx, Message{Type: "T"})
	wait(t, d)
	_ = d.Dispatch(ctx, Message{Type: "other"})
	wait(t, d)

	if diff := cmp.Diff([]string{"legacy:T", "typed", "legacy:other"}, rec.list()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFailingHandlersDoNotStopOthers(t *testing.T) {
	var mu sync.Mutex
	var failures []*HandlerError
	d := New(WithErrorHandler(func(err *HandlerError) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, err)
	}))
	rec := &recorder{}
	d.AddHandler("T", func(context.Context, any) error { return errors.New("bad") })
	d.AddHandler("T", func(context.Context, any) error { panic("worse") })
	d.AddHandler("T", func(context.Context, any) error {
		rec.add("ran")
		return nil
	})

	_ = d.Dispatch(context.Background(), Message{Type: "T"})
	wait(t, d)

	if diff := cmp.Diff([]string{"ran"}, rec.list()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 2 || failures[0].Index != 0 || failures[1].Index != 1 {
		t.Errorf("failures = %v", failures)
	}
}

func TestDispatchErrors(t *testing.T) {
	d := New()
	if err := d.Dispatch(context.Background(), Message{Type: "none"}); err == nil {
		t.Error("Dispatch without handlers succeeded")
	}
	d.AddHandler("T", func(context.Context, any) error { return nil })
	d.Close()
	if err := d.Dispatch(context.Background(), Message{Type: "T"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch after Close = %v, want ErrClosed", err)
	}
}
