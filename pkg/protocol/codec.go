package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes frame payloads.
type Codec interface {
	// Name identifies the codec in configuration ("json", "msgpack").
	Name() string
	// Flags returns the frame flags announcing this codec.
	Flags() FrameFlags
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the default codec.
var JSON Codec = jsonCodec{}

// Msgpack is the compact binary codec.
var Msgpack Codec = msgpackCodec{}

// CodecFor returns the codec announced by frame flags.
func CodecFor(flags FrameFlags) Codec {
	if flags.Has(FlagMsgpack) {
		return Msgpack
	}
	return JSON
}

// CodecByName resolves a configured codec name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return Msgpack, nil
	}
	return nil, fmt.Errorf("protocol: unknown codec %q", name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string      { return "json" }
func (jsonCodec) Flags() FrameFlags { return 0 }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string      { return "msgpack" }
func (msgpackCodec) Flags() FrameFlags { return FlagMsgpack }

// Struct fields use their json tags so both codecs share one schema.
func (msgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Raw is an encoded value kept opaque until its consumer decodes it, so one
// malformed value cannot spoil its siblings. Its bytes are in the frame's
// codec.
type Raw []byte

// NewRaw encodes v with codec.
func NewRaw(codec Codec, v any) (Raw, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Raw(b), nil
}

// Decode decodes the raw value into v.
func (r Raw) Decode(codec Codec, v any) error {
	if len(r) == 0 {
		return nil
	}
	return codec.Unmarshal(r, v)
}

// MarshalJSON implements json.Marshaler.
func (r Raw) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (r Raw) EncodeMsgpack(enc *msgpack.Encoder) error {
	if len(r) == 0 {
		return enc.EncodeNil()
	}
	return enc.Encode(msgpack.RawMessage(r))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (r *Raw) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeRaw()
	if err != nil {
		return err
	}
	*r = Raw(raw)
	return nil
}
