// Package present defines the presentation collaborators the client drives:
// the reconnect dialog, notifications, modal dialogs and the error console.
//
// Each collaborator is a small interface. Document renders them into a
// dom.Document the way the browser client does; the Log variants only
// write to a slog.Logger and suit headless use.
package present

import (
	"log/slog"
	"time"

	"github.com/olivroy/shiny/internal/errors"
)

// ReconnectInfo describes a pending reconnection attempt.
type ReconnectInfo struct {
	// Attempt is the 1-based attempt number.
	Attempt int

	// Next is the delay before the attempt starts.
	Next time.Duration

	// Err is the failure that caused the reconnect.
	Err error
}

// ReconnectDialog is the blocking indicator shown while reconnecting.
type ReconnectDialog interface {
	Show(info ReconnectInfo)
	Hide()
	// ShowConnectionLost enters the terminal, non-retrying state.
	ShowConnectionLost(err error)
}

// Type is a notification style.
type Type string

const (
	TypeDefault Type = "default"
	TypeMessage Type = "message"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	// ID identifies the notification. Showing an existing id replaces it.
	// An empty id is assigned by Show.
	ID string

	// HTML is the notification body.
	HTML string

	// Action is optional HTML shown below the body, typically a link.
	Action string

	Type Type

	// Duration removes the notification automatically when positive.
	Duration time.Duration

	// Closable adds a close control.
	Closable bool
}

// Notifier shows and removes notifications.
type Notifier interface {
	// Show displays n and returns its id.
	Show(n Notification) string
	Remove(id string)
}

// Modal shows a single modal dialog.
type Modal interface {
	Show(html string)
	Remove()
}

// Console reports errors the page should surface.
type Console interface {
	Report(err error)
}

// LogConsole reports errors to a logger.
type LogConsole struct {
	Logger *slog.Logger
}

func (c LogConsole) Report(err error) {
	if err == nil {
		return
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if code := errors.CodeOf(err); code != "" {
		logger.Error(err.Error(), "code", code)
		return
	}
	logger.Error(err.Error())
}

// LogReconnectDialog logs reconnect state changes.
type LogReconnectDialog struct {
	Logger *slog.Logger
}

func (d LogReconnectDialog) Show(info ReconnectInfo) {
	d.logger().Warn("reconnecting", "attempt", info.Attempt, "in", info.Next, "error", info.Err)
}

func (d LogReconnectDialog) Hide() {
	d.logger().Info("reconnected")
}

func (d LogReconnectDialog) ShowConnectionLost(err error) {
	d.logger().Error("connection lost", "error", err)
}

func (d LogReconnectDialog) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
