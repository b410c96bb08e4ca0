package shiny

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olivroy/shiny/pkg/dispatch"
	"github.com/olivroy/shiny/pkg/present"
	"github.com/olivroy/shiny/pkg/protocol"
)

// Built-in custom message types.
const (
	NotificationMessage = "shiny-notification"
	ModalMessage        = "shiny-modal"
)

// AddCustomMessageHandler registers fn for custom messages of msgType.
// Handlers for one type run in registration order, one message at a time.
func (c *Client) AddCustomMessageHandler(msgType string, fn dispatch.Handler) dispatch.Handle {
	if c.tracer != nil {
		fn = c.tracer.TraceHandler(msgType, fn)
	}
	return c.dispatcher.AddHandler(msgType, fn)
}

// SetLegacyCustomMessageHandler installs the single handler that receives
// every custom message before the typed handlers. A nil fn removes it.
func (c *Client) SetLegacyCustomMessageHandler(fn dispatch.LegacyHandler) {
	c.dispatcher.SetLegacy(fn)
}

func (c *Client) addBuiltinHandlers() {
	c.AddCustomMessageHandler(NotificationMessage, c.handleNotification)
	c.AddCustomMessageHandler(ModalMessage, c.handleModal)
}

// decodePayload converts a decoded payload, typically a map, into v.
func decodePayload(payload any, v any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// actionMessage is the envelope shared by the notification and modal
// messages.
type actionMessage struct {
	Type    string          `json:"type"` // "show" or "remove"
	Message json.RawMessage `json:"message"`
}

type notificationShow struct {
	ID          string                `json:"id"`
	HTML        string                `json:"html"`
	Action      string                `json:"action"`
	Deps        []protocol.Dependency `json:"deps"`
	Duration    *float64              `json:"duration"` // Milliseconds; null keeps it open
	CloseButton bool                  `json:"closeButton"`
	Type        present.Type          `json:"type"`
}

func (c *Client) handleNotification(ctx context.Context, payload any) error {
	var msg actionMessage
	if err := decodePayload(payload, &msg); err != nil {
		return fmt.Errorf("shiny: notification payload: %w", err)
	}
	switch msg.Type {
	case "show":
		var show notificationShow
		if err := json.Unmarshal(msg.Message, &show); err != nil {
			return fmt.Errorf("shiny: notification payload: %w", err)
		}
		if err := c.renderer.RenderDependenciesAsync(ctx, show.Deps); err != nil {
			return err
		}
		n := present.Notification{
			ID:       show.ID,
			HTML:     show.HTML,
			Action:   show.Action,
			Type:     show.Type,
			Closable: show.CloseButton,
		}
		if show.Duration != nil {
			n.Duration = time.Duration(*show.Duration * float64(time.Millisecond))
		}
		c.notifier.Show(n)
	case "remove":
		var id string
		if err := json.Unmarshal(msg.Message, &id); err != nil {
			return fmt.Errorf("shiny: notification payload: %w", err)
		}
		c.notifier.Remove(id)
	default:
		return fmt.Errorf("shiny: unknown notification action %q", msg.Type)
	}
	return nil
}

type modalShow struct {
	HTML string                `json:"html"`
	Deps []protocol.Dependency `json:"deps"`
}

func (c *Client) handleModal(ctx context.Context, payload any) error {
	var msg actionMessage
	if err := decodePayload(payload, &msg); err != nil {
		return fmt.Errorf("shiny: modal payload: %w", err)
	}
	switch msg.Type {
	case "show":
		var show modalShow
		if err := json.Unmarshal(msg.Message, &show); err != nil {
			return fmt.Errorf("shiny: modal payload: %w", err)
		}
		if err := c.renderer.RenderDependenciesAsync(ctx, show.Deps); err != nil {
			return err
		}
		c.modal.Show(show.HTML)
	case "remove":
		c.modal.Remove()
	default:
		return fmt.Errorf("shiny: unknown modal action %q", msg.Type)
	}
	return nil
}
