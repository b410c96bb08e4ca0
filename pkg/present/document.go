package present

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/olivroy/shiny/pkg/dom"
)

// Element ids used by Document.
const (
	NotificationPanelID = "shiny-notification-panel"
	ModalWrapperID      = "shiny-modal-wrapper"
	ReconnectDialogID   = "shiny-reconnect-dialog"
	DisconnectedID      = "shiny-disconnected-overlay"
)

// Document renders presentation widgets into a document body. Notifier,
// Modal and ReconnectDialog expose it through the collaborator
// interfaces.
type Document struct {
	doc    *dom.Document
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*clock.Timer
}

// DocumentOption configures a Document presenter.
type DocumentOption func(*Document)

// WithClock sets the clock used for notification expiry.
func WithClock(c clock.Clock) DocumentOption {
	return func(d *Document) { d.clock = c }
}

// WithLogger sets the logger used for render failures.
func WithLogger(l *slog.Logger) DocumentOption {
	return func(d *Document) { d.logger = l }
}

// NewDocument creates a presenter rendering into doc.
func NewDocument(doc *dom.Document, opts ...DocumentOption) *Document {
	d := &Document{
		doc:    doc,
		clock:  clock.New(),
		logger: slog.Default(),
		timers: make(map[string]*clock.Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notifier returns the notification presenter.
func (d *Document) Notifier() Notifier { return documentNotifier{d} }

// Modal returns the modal presenter.
func (d *Document) Modal() Modal { return documentModal{d} }

// ReconnectDialog returns the reconnect indicator presenter.
func (d *Document) ReconnectDialog() ReconnectDialog { return documentReconnect{d} }

// ShowNotification displays a notification. Showing an id that is already visible
// replaces its content and restarts its expiry.
func (d *Document) ShowNotification(n Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Type == "" {
		n.Type = TypeDefault
	}

	body, err := d.fragment(n.HTML)
	if err != nil {
		d.logger.Warn("notification html", "id", n.ID, "error", err)
	}
	action, err := d.fragment(n.Action)
	if err != nil {
		d.logger.Warn("notification action html", "id", n.ID, "error", err)
	}

	d.doc.Update(func() {
		panel := d.doc.Body.ByID(NotificationPanelID)
		if panel == nil {
			panel = dom.Element("div", dom.A("id", NotificationPanelID))
			d.doc.Body.AppendChild(panel)
		}
		el := panel.ByID(notificationID(n.ID))
		if el == nil {
			el = dom.Element("div", dom.A("id", notificationID(n.ID)))
			panel.AppendChild(el)
		}
		el.Empty()
		el.SetAttr("class", fmt.Sprintf("shiny-notification shiny-notification-%s", n.Type))

		content := dom.Element("div", dom.A("class", "shiny-notification-content"),
			dom.Element("div", dom.A("class", "shiny-notification-content-text"), body),
			dom.Element("div", dom.A("class", "shiny-notification-content-action"), action),
		)
		el.AppendChild(content)
		if n.Closable {
			el.AppendChild(dom.Element("div", dom.A("class", "shiny-notification-close"), "×"))
		}
	})

	d.mu.Lock()
	if t, ok := d.timers[n.ID]; ok {
		t.Stop()
		delete(d.timers, n.ID)
	}
	if n.Duration > 0 {
		id := n.ID
		d.timers[id] = d.clock.AfterFunc(n.Duration, func() { d.RemoveNotification(id) })
	}
	d.mu.Unlock()

	return n.ID
}

// RemoveNotification removes a notification. Removing an unknown id is a
// no-op.
func (d *Document) RemoveNotification(id string) {
	d.mu.Lock()
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()

	d.doc.Update(func() {
		panel := d.doc.Body.ByID(NotificationPanelID)
		if panel == nil {
			return
		}
		if el := panel.ByID(notificationID(id)); el != nil {
			el.Detach()
		}
		if len(panel.Children) == 0 {
			panel.Detach()
		}
	})
}

// Notifications returns the ids of visible notifications in display order.
func (d *Document) Notifications() []string {
	var ids []string
	d.doc.Update(func() {
		panel := d.doc.Body.ByID(NotificationPanelID)
		if panel == nil {
			return
		}
		for _, c := range panel.Children {
			if c.IsElement() {
				ids = append(ids, c.ID()[len("shiny-notification-"):])
			}
		}
	})
	return ids
}

// ShowReconnecting shows the reconnect indicator.
func (d *Document) ShowReconnecting(info ReconnectInfo) {
	text := "Attempting to reconnect"
	if info.Attempt > 0 {
		text = fmt.Sprintf("Attempting to reconnect (attempt %d, in %s)", info.Attempt, info.Next)
	}
	d.doc.Update(func() {
		el := d.doc.Body.ByID(ReconnectDialogID)
		if el == nil {
			el = dom.Element("div", dom.A("id", ReconnectDialogID, "class", "shiny-reconnect-dialog"))
			d.doc.Body.AppendChild(el)
		}
		el.SetTextContent(text)
	})
}

// HideReconnecting removes the reconnect indicator.
func (d *Document) HideReconnecting() {
	d.doc.Update(func() {
		if el := d.doc.Body.ByID(ReconnectDialogID); el != nil {
			el.Detach()
		}
	})
}

// ShowConnectionLost replaces the reconnect indicator with the terminal
// disconnected overlay.
func (d *Document) ShowConnectionLost(err error) {
	d.HideReconnecting()
	d.doc.Update(func() {
		if d.doc.Body.ByID(DisconnectedID) != nil {
			return
		}
		el := dom.Element("div", dom.A("id", DisconnectedID, "class", "shiny-disconnected-overlay"))
		if err != nil {
			el.SetAttr("title", err.Error())
		}
		d.doc.Body.AppendChild(el)
	})
}

// Stop cancels pending notification expiry timers.
func (d *Document) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

func (d *Document) fragment(html string) (*dom.Node, error) {
	if html == "" {
		return nil, nil
	}
	return dom.ParseFragment(html)
}

func notificationID(id string) string {
	return "shiny-notification-" + id
}

// ShowModal replaces any open modal with html.
func (d *Document) ShowModal(html string) {
	frag, err := d.fragment(html)
	if err != nil {
		d.logger.Warn("modal html", "error", err)
	}
	d.doc.Update(func() {
		wrapper := d.doc.Body.ByID(ModalWrapperID)
		if wrapper == nil {
			wrapper = dom.Element("div", dom.A("id", ModalWrapperID))
			d.doc.Body.AppendChild(wrapper)
		}
		wrapper.Empty()
		wrapper.AppendChild(frag)
	})
}

// RemoveModal closes the open modal, if any.
func (d *Document) RemoveModal() {
	d.doc.Update(func() {
		if el := d.doc.Body.ByID(ModalWrapperID); el != nil {
			el.Detach()
		}
	})
}

type documentNotifier struct{ d *Document }

func (n documentNotifier) Show(x Notification) string { return n.d.ShowNotification(x) }
func (n documentNotifier) Remove(id string)           { n.d.RemoveNotification(id) }

type documentModal struct{ d *Document }

func (m documentModal) Show(html string) { m.d.ShowModal(html) }
func (m documentModal) Remove()          { m.d.RemoveModal() }

type documentReconnect struct{ d *Document }

func (r documentReconnect) Show(info ReconnectInfo)      { r.d.ShowReconnecting(info) }
func (r documentReconnect) Hide()                        { r.d.HideReconnecting() }
func (r documentReconnect) ShowConnectionLost(err error) { r.d.ShowConnectionLost(err) }
