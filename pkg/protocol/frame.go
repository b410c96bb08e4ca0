package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Frame constants.
const (
	FrameHeaderSize = 6
	MaxPayloadSize  = 16 << 20 // 16 MiB
)

// FrameType identifies the message carried by a frame.
type FrameType uint8

const (
	// Client → Server
	FrameHello  FrameType = 0x01 // Session setup / resume
	FrameUpdate FrameType = 0x02 // Input value changes

	// Server → Client
	FrameValues        FrameType = 0x10 // Output values by id
	FrameErrors        FrameType = 0x11 // Output errors by id
	FrameCustom        FrameType = 0x12 // Application-defined message
	FrameProgress      FrameType = 0x13 // Recalculation progress
	FrameRender        FrameType = 0x14 // Dynamic HTML plus dependencies
	FrameReady         FrameType = 0x15 // Server reactive graph initialized
	FrameInputMessages FrameType = 0x16 // Messages for input bindings
	FrameClose         FrameType = 0x17 // Server-directed termination

	// Either direction
	FramePing FrameType = 0x20
	FramePong FrameType = 0x21
)

func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameUpdate:
		return "Update"
	case FrameValues:
		return "Values"
	case FrameErrors:
		return "Errors"
	case FrameCustom:
		return "Custom"
	case FrameProgress:
		return "Progress"
	case FrameRender:
		return "Render"
	case FrameReady:
		return "Ready"
	case FrameInputMessages:
		return "InputMessages"
	case FrameClose:
		return "Close"
	case FramePing:
		return "Ping"
	case FramePong:
		return "Pong"
	default:
		return "Unknown"
	}
}

// FrameFlags describe how the payload is encoded.
type FrameFlags uint8

// FlagMsgpack marks a msgpack payload. Payloads without it are JSON.
const FlagMsgpack FrameFlags = 0x01

func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("protocol: frame payload too large")
	ErrUnknownFrame  = errors.New("protocol: unknown frame type")
)

// Frame is one WebSocket message: a type byte, a flags byte, a
// big-endian uint32 payload length and the payload.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// Encode returns the frame with its header.
func (f *Frame) Encode() []byte {
	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	binary.BigEndian.PutUint32(buf[2:], uint32(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame parses one complete frame. The payload is copied so data
// may be reused by the caller.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	n := binary.BigEndian.Uint32(data[2:FrameHeaderSize])
	switch {
	case n > MaxPayloadSize:
		return nil, ErrFrameTooLarge
	case uint32(len(data)-FrameHeaderSize) < n:
		return nil, io.ErrUnexpectedEOF
	}
	return &Frame{
		Type:    FrameType(data[0]),
		Flags:   FrameFlags(data[1]),
		Payload: bytes.Clone(data[FrameHeaderSize : FrameHeaderSize+int(n)]),
	}, nil
}
