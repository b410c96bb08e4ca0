package protocol

import (
	"fmt"
)

// Message is one member of the session message union. Every message
// belongs to exactly one frame type.
type Message interface {
	FrameType() FrameType
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8 `json:"major"`
	Minor uint8 `json:"minor"`
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// Hello is sent by the client when the socket opens. On reconnect it
// carries the previous session id so the server can resume it.
type Hello struct {
	Version   ProtocolVersion `json:"version"`
	SessionID string          `json:"session_id,omitempty"`
	Resume    bool            `json:"resume,omitempty"`
	Values    map[string]any  `json:"values,omitempty"`
}

// Update carries input changes from client to server. Order lists the
// ids of Values in the order they last changed.
type Update struct {
	Values map[string]any `json:"values"`
	Order  []string       `json:"order,omitempty"`
}

// Values carries output values keyed by output id. Invalid holds the ids
// whose value could not be decoded, so the rest are still applied.
type Values struct {
	Values  map[string]any
	Invalid map[string]error
}

// OutputError is a server-side error for one output.
type OutputError struct {
	Message string   `json:"message"`
	Call    string   `json:"call,omitempty"`
	Type    []string `json:"type,omitempty"`
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	return e.Message
}

// Errors carries output errors keyed by output id.
type Errors struct {
	Errors map[string]*OutputError `json:"errors"`
}

// Custom is an application-defined message.
type Custom struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Progress reports that an output is (or stopped) recalculating.
type Progress struct {
	ID            string `json:"id"`
	Recalculating bool   `json:"recalculating"`
}

// Resource is one file of a dependency.
type Resource struct {
	URL   string            `json:"url"`
	Kind  string            `json:"kind"` // "script" or "stylesheet"
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Dependency is a named, versioned bundle of resources.
type Dependency struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Resources []Resource `json:"resources,omitempty"`
	Head      string     `json:"head,omitempty"`
}

// Render asks the client to insert HTML after loading its dependencies.
type Render struct {
	Target       string       `json:"target"` // Element id
	Where        string       `json:"where,omitempty"`
	HTML         string       `json:"html"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Ready signals the server's reactive graph is ready to receive input.
type Ready struct {
	SessionID string         `json:"session_id"`
	Config    map[string]any `json:"config,omitempty"`
}

// InputMessage is a message for one bound input.
type InputMessage struct {
	ID      string `json:"id"`
	Message any    `json:"message"`
}

// InputMessages carries messages for input bindings.
type InputMessages struct {
	Messages []InputMessage `json:"messages"`
}

// CloseReason indicates why a session is being closed.
type CloseReason uint8

const (
	CloseNormal         CloseReason = 0x00 // Normal closure
	CloseGoingAway      CloseReason = 0x01 // Client/server going away
	CloseSessionExpired CloseReason = 0x02 // Session expired
	CloseServerShutdown CloseReason = 0x03 // Server shutting down
	CloseError          CloseReason = 0x04 // Error occurred
)

// String returns the string representation of the close reason.
func (cr CloseReason) String() string {
	switch cr {
	case CloseNormal:
		return "Normal"
	case CloseGoingAway:
		return "GoingAway"
	case CloseSessionExpired:
		return "SessionExpired"
	case CloseServerShutdown:
		return "ServerShutdown"
	case CloseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Close is a server-directed session termination.
type Close struct {
	Reason  CloseReason `json:"reason"`
	Message string      `json:"message,omitempty"`
}

// Ping is a heartbeat request.
type Ping struct {
	Timestamp uint64 `json:"ts"`
}

// Pong answers a Ping with its timestamp.
type Pong struct {
	Timestamp uint64 `json:"ts"`
}

func (*Hello) FrameType() FrameType         { return FrameHello }
func (*Update) FrameType() FrameType        { return FrameUpdate }
func (*Values) FrameType() FrameType        { return FrameValues }
func (*Errors) FrameType() FrameType        { return FrameErrors }
func (*Custom) FrameType() FrameType        { return FrameCustom }
func (*Progress) FrameType() FrameType      { return FrameProgress }
func (*Render) FrameType() FrameType        { return FrameRender }
func (*Ready) FrameType() FrameType         { return FrameReady }
func (*InputMessages) FrameType() FrameType { return FrameInputMessages }
func (*Close) FrameType() FrameType         { return FrameClose }
func (*Ping) FrameType() FrameType          { return FramePing }
func (*Pong) FrameType() FrameType          { return FramePong }

// DecodeError reports a payload that could not be decoded.
type DecodeError struct {
	Type FrameType
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
