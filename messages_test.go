package shiny

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/olivroy/shiny/pkg/deps"
	"github.com/olivroy/shiny/pkg/dom"
	"github.com/olivroy/shiny/pkg/present"
	"github.com/olivroy/shiny/pkg/protocol"
)

func (h *harness) waitDispatched(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := h.c.dispatcher.Wait(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestCustomMessageOrder(t *testing.T) {
	h := bound(t, "")

	var mu sync.Mutex
	var calls []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, s)
	}
	h.c.SetLegacyCustomMessageHandler(func(_ context.Context, typ string, payload any) error {
		record("legacy:" + typ)
		return nil
	})
	h.c.AddCustomMessageHandler("greet", func(_ context.Context, payload any) error {
		record("h1:" + payload.(string))
		return nil
	})
	second := h.c.AddCustomMessageHandler("greet", func(_ context.Context, payload any) error {
		record("h2:" + payload.(string))
		return nil
	})

	ctx := context.Background()
	h.c.route(ctx, &protocol.Custom{Type: "greet", Payload: "a"})
	h.c.route(ctx, &protocol.Custom{Type: "greet", Payload: "b"})
	h.waitDispatched(t)

	second.Remove()
	h.c.route(ctx, &protocol.Custom{Type: "greet", Payload: "c"})
	h.waitDispatched(t)

	want := []string{
		"legacy:greet", "h1:a", "h2:a",
		"legacy:greet", "h1:b", "h2:b",
		"legacy:greet", "h1:c",
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomMessageHandlerError(t *testing.T) {
	h := bound(t, "")
	h.c.AddCustomMessageHandler("fail", func(context.Context, any) error {
		return context.DeadlineExceeded
	})

	h.c.route(context.Background(), &protocol.Custom{Type: "fail"})
	// No handler at all is only logged.
	h.c.route(context.Background(), &protocol.Custom{Type: "nobody"})
	h.waitDispatched(t)

	if got := h.console.errors(); len(got) != 1 {
		t.Errorf("console = %v, want the handler failure", got)
	}
}

func notificationMessage(typ string, msg any) *protocol.Custom {
	return &protocol.Custom{Type: NotificationMessage, Payload: map[string]any{"type": typ, "message": msg}}
}

func TestNotificationMessages(t *testing.T) {
	h := bound(t, "")
	ctx := context.Background()

	h.c.route(ctx, notificationMessage("show", map[string]any{
		"id":          "n1",
		"html":        "<b>saved</b>",
		"type":        "warning",
		"closeButton": true,
	}))
	h.c.route(ctx, notificationMessage("show", map[string]any{
		"id":       "n2",
		"html":     "brief",
		"duration": 1000,
	}))
	h.waitDispatched(t)

	if diff := cmp.Diff([]string{"n1", "n2"}, h.c.presenter.Notifications()); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
	h.element("shiny-notification-n1", func(el *dom.Node) {
		if el == nil {
			t.Error("notification element missing")
			return
		}
		if !el.HasClass("shiny-notification-warning") {
			t.Errorf("class = %q, want the warning type", el.AttrOr("class", ""))
		}
		if el.Query(".shiny-notification-close") == nil {
			t.Error("close button missing")
		}
	})

	h.clock.Add(time.Second)
	eventually(t, func() bool { return len(h.c.presenter.Notifications()) == 1 })

	h.c.route(ctx, notificationMessage("remove", "n1"))
	h.waitDispatched(t)
	if got := h.c.presenter.Notifications(); len(got) != 0 {
		t.Errorf("notifications = %v, want none", got)
	}
}

func TestModalMessages(t *testing.T) {
	var loaded []string
	h := bound(t, "", WithLoader(deps.LoaderFunc(func(_ context.Context, dep protocol.Dependency) error {
		loaded = append(loaded, dep.Name)
		return nil
	})))
	ctx := context.Background()

	h.c.route(ctx, &protocol.Custom{Type: ModalMessage, Payload: map[string]any{
		"type": "show",
		"message": map[string]any{
			"html": `<div class="modal" id="dlg">Sure?</div>`,
			"deps": []any{map[string]any{"name": "bootstrap", "version": "5.3"}},
		},
	}})
	h.waitDispatched(t)
	if got := h.text(present.ModalWrapperID); got != "Sure?" {
		t.Errorf("modal = %q, want Sure?", got)
	}
	if diff := cmp.Diff([]string{"bootstrap"}, loaded); diff != "" {
		t.Errorf("loaded mismatch (-want +got):\n%s", diff)
	}

	h.c.route(ctx, &protocol.Custom{Type: ModalMessage, Payload: map[string]any{"type": "remove", "message": nil}})
	h.waitDispatched(t)
	h.element(present.ModalWrapperID, func(el *dom.Node) {
		if el != nil {
			t.Error("modal still shown")
		}
	})

	h.c.route(ctx, &protocol.Custom{Type: ModalMessage, Payload: map[string]any{"type": "explode"}})
	h.waitDispatched(t)
	if got := h.console.errors(); len(got) != 1 {
		t.Errorf("console = %v, want the unknown action", got)
	}
}
