package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantLen int // expected total length including header
	}{
		{
			name:    "empty_payload",
			frame:   Frame{Type: FramePing, Payload: []byte{}},
			wantLen: FrameHeaderSize,
		},
		{
			name:    "with_payload",
			frame:   Frame{Type: FrameValues, Payload: []byte{0x01, 0x02, 0x03}},
			wantLen: FrameHeaderSize + 3,
		},
		{
			name:    "with_flags",
			frame:   Frame{Type: FrameCustom, Flags: FlagMsgpack, Payload: []byte("test")},
			wantLen: FrameHeaderSize + 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Encode()
			if len(encoded) != tc.wantLen {
				t.Errorf("Encode() length = %d, want %d", len(encoded), tc.wantLen)
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if decoded.Type != tc.frame.Type {
				t.Errorf("Decoded type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if decoded.Flags != tc.frame.Flags {
				t.Errorf("Decoded flags = %v, want %v", decoded.Flags, tc.frame.Flags)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Decoded payload = %v, want %v", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	full := (&Frame{Type: FrameValues, Payload: []byte("abcdef")}).Encode()

	for _, n := range []int{0, 3, FrameHeaderSize, len(full) - 1} {
		if _, err := DecodeFrame(full[:n]); !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("DecodeFrame(%d bytes) error = %v, want ErrUnexpectedEOF", n, err)
		}
	}
}

func TestDecodeFrameLimits(t *testing.T) {
	big := (&Frame{Type: FrameValues}).Encode()
	big[2] = 0xFF // length far above MaxPayloadSize
	if _, err := DecodeFrame(big); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("DecodeFrame(oversized) error = %v, want ErrFrameTooLarge", err)
	}

	data := (&Frame{Type: FrameCustom, Payload: []byte("xy")}).Encode()
	f, err := DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	data[FrameHeaderSize] = 'z'
	if string(f.Payload) != "xy" {
		t.Errorf("payload aliases input: %q", f.Payload)
	}
}

func TestFrameTypeString(t *testing.T) {
	if FrameRender.String() != "Render" {
		t.Errorf("FrameRender.String() = %q", FrameRender.String())
	}
	if FrameType(0xEE).String() != "Unknown" {
		t.Errorf("unknown frame String() = %q", FrameType(0xEE).String())
	}
}
