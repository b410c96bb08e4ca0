// Package protocol implements the session wire protocol.
//
// Every message travels in a frame with a 6-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
// The frame type is the message tag; the flags select the payload codec
// (JSON by default, msgpack when FlagMsgpack is set). The payload is the
// codec encoding of the message struct.
//
// # Messages
//
// Client → Server:
//
//   - Hello: session setup, or resume after reconnect
//   - Update: input value changes, keyed by input id
//
// Server → Client:
//
//   - Values: output values keyed by output id
//   - Errors: output errors keyed by output id
//   - Custom: application-defined {type, payload}
//   - Progress: an output started or stopped recalculating
//   - Render: HTML plus the dependencies it needs
//   - Ready: the reactive graph accepts input
//   - InputMessages: messages for bound inputs
//   - Close: server-directed termination
//
// Ping and Pong flow in both directions.
//
// # Partial decoding
//
// Values, custom payloads and input messages are carried as Raw and
// decoded entry by entry, so a malformed entry is reported without
// aborting the rest of the message. Unknown frame types decode to
// ErrUnknownFrame; receivers drop them and continue.
//
// # Usage Example
//
//	data, err := protocol.Encode(protocol.JSON, &protocol.Update{
//	    Values: map[string]any{"n": 10},
//	})
//
//	msg, frame, err := protocol.Decode(data)
//	switch m := msg.(type) {
//	case *protocol.Values:
//	    // apply m.Values
//	}
package protocol
