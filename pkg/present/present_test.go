package present

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/olivroy/shiny/pkg/dom"
)

func TestNotifications(t *testing.T) {
	doc := dom.NewDocument()
	d := NewDocument(doc)
	n := d.Notifier()

	id := n.Show(Notification{HTML: "<b>saved</b>", Type: TypeMessage, Closable: true})
	if id == "" {
		t.Fatal("Show returned empty id")
	}
	n.Show(Notification{ID: "fixed", HTML: "first"})
	n.Show(Notification{ID: "fixed", HTML: "second", Type: TypeWarning})

	if diff := cmp.Diff([]string{id, "fixed"}, d.Notifications()); diff != "" {
		t.Errorf("Notifications mismatch (-want +got):\n%s", diff)
	}

	el := doc.Body.ByID("shiny-notification-fixed")
	if el == nil {
		t.Fatal("notification element missing")
	}
	if !el.HasClass("shiny-notification-warning") || el.TextContent() != "second" {
		t.Errorf("replaced notification = %s", el.HTML())
	}
	if doc.Body.ByID("shiny-notification-"+id).Query(".shiny-notification-close") == nil {
		t.Error("closable notification has no close control")
	}

	n.Remove(id)
	n.Remove("fixed")
	n.Remove("unknown")
	if doc.Body.ByID(NotificationPanelID) != nil {
		t.Error("empty panel not removed")
	}
}

func TestNotificationExpires(t *testing.T) {
	mock := clock.NewMock()
	doc := dom.NewDocument()
	d := NewDocument(doc, WithClock(mock))

	d.ShowNotification(Notification{ID: "tmp", HTML: "bye", Duration: 5 * time.Second})
	mock.Add(4 * time.Second)
	if len(d.Notifications()) != 1 {
		t.Fatal("notification expired early")
	}
	mock.Add(2 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for len(d.Notifications()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("notification did not expire")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestModal(t *testing.T) {
	doc := dom.NewDocument()
	m := NewDocument(doc).Modal()

	m.Show(`<div class="modal">one</div>`)
	m.Show(`<div class="modal">two</div>`)
	wrapper := doc.Body.ByID(ModalWrapperID)
	if wrapper == nil || len(wrapper.QueryAll(".modal")) != 1 || wrapper.TextContent() != "two" {
		t.Fatalf("modal = %v", doc.Body.HTML())
	}
	m.Remove()
	if doc.Body.ByID(ModalWrapperID) != nil {
		t.Error("modal not removed")
	}
}

func TestReconnectDialog(t *testing.T) {
	doc := dom.NewDocument()
	r := NewDocument(doc).ReconnectDialog()

	r.Show(ReconnectInfo{Attempt: 2, Next: time.Second})
	el := doc.Body.ByID(ReconnectDialogID)
	if el == nil || !strings.Contains(el.TextContent(), "attempt 2") {
		t.Fatalf("dialog = %v", doc.Body.HTML())
	}
	r.Hide()
	if doc.Body.ByID(ReconnectDialogID) != nil {
		t.Error("dialog not hidden")
	}

	r.Show(ReconnectInfo{Attempt: 3})
	r.ShowConnectionLost(errors.New("gone"))
	if doc.Body.ByID(ReconnectDialogID) != nil {
		t.Error("dialog left beside disconnected overlay")
	}
	if got := doc.Body.ByID(DisconnectedID); got == nil || got.AttrOr("title", "") != "gone" {
		t.Errorf("overlay = %v", doc.Body.HTML())
	}
}

func TestLogConsole(t *testing.T) {
	var buf bytes.Buffer
	c := LogConsole{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	c.Report(errors.New("boom"))
	c.Report(nil)
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("log = %q", buf.String())
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected a single record, got %q", buf.String())
	}
}
