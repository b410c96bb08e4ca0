package protocol

import "fmt"

// Wire forms of messages whose values are decoded entry by entry.

type wireValues map[string]Raw

type wireCustom struct {
	Type    string `json:"type"`
	Payload Raw    `json:"payload,omitempty"`
}

type wireInputMessage struct {
	ID      string `json:"id"`
	Message Raw    `json:"message"`
}

type wireInputMessages struct {
	Messages []wireInputMessage `json:"messages"`
}

// Encode serializes msg into a complete frame with codec.
func Encode(codec Codec, msg Message) ([]byte, error) {
	var body any = msg

	switch m := msg.(type) {
	case *Values:
		w := make(wireValues, len(m.Values))
		for id, v := range m.Values {
			raw, err := NewRaw(codec, v)
			if err != nil {
				return nil, fmt.Errorf("protocol: encode value %q: %w", id, err)
			}
			w[id] = raw
		}
		body = w
	case *Custom:
		raw, err := NewRaw(codec, m.Payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode custom %q: %w", m.Type, err)
		}
		body = &wireCustom{Type: m.Type, Payload: raw}
	case *InputMessages:
		w := &wireInputMessages{Messages: make([]wireInputMessage, 0, len(m.Messages))}
		for _, im := range m.Messages {
			raw, err := NewRaw(codec, im.Message)
			if err != nil {
				return nil, fmt.Errorf("protocol: encode input message %q: %w", im.ID, err)
			}
			w.Messages = append(w.Messages, wireInputMessage{ID: im.ID, Message: raw})
		}
		body = w
	}

	payload, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", msg.FrameType(), err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	f := &Frame{Type: msg.FrameType(), Flags: codec.Flags(), Payload: payload}
	return f.Encode(), nil
}

// Decode parses a complete frame. Unknown frame types return
// ErrUnknownFrame together with the frame so callers can log and drop it.
func Decode(data []byte) (Message, *Frame, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, nil, err
	}
	msg, err := DecodePayload(f.Type, CodecFor(f.Flags), f.Payload)
	return msg, f, err
}

// DecodePayload decodes a frame payload of type ft.
func DecodePayload(ft FrameType, codec Codec, payload []byte) (Message, error) {
	fail := func(err error) (Message, error) {
		return nil, &DecodeError{Type: ft, Err: err}
	}

	switch ft {
	case FrameValues:
		var w wireValues
		if err := codec.Unmarshal(payload, &w); err != nil {
			return fail(err)
		}
		m := &Values{Values: make(map[string]any, len(w))}
		for id, raw := range w {
			var v any
			if err := raw.Decode(codec, &v); err != nil {
				if m.Invalid == nil {
					m.Invalid = make(map[string]error)
				}
				m.Invalid[id] = err
				continue
			}
			m.Values[id] = v
		}
		return m, nil

	case FrameCustom:
		var w wireCustom
		if err := codec.Unmarshal(payload, &w); err != nil {
			return fail(err)
		}
		if w.Type == "" {
			return fail(fmt.Errorf("missing custom message type"))
		}
		m := &Custom{Type: w.Type}
		if err := w.Payload.Decode(codec, &m.Payload); err != nil {
			return fail(err)
		}
		return m, nil

	case FrameInputMessages:
		var w wireInputMessages
		if err := codec.Unmarshal(payload, &w); err != nil {
			return fail(err)
		}
		m := &InputMessages{Messages: make([]InputMessage, 0, len(w.Messages))}
		for _, im := range w.Messages {
			var v any
			if err := im.Message.Decode(codec, &v); err != nil {
				continue
			}
			m.Messages = append(m.Messages, InputMessage{ID: im.ID, Message: v})
		}
		return m, nil
	}

	var msg Message
	switch ft {
	case FrameHello:
		msg = &Hello{}
	case FrameUpdate:
		msg = &Update{}
	case FrameErrors:
		msg = &Errors{}
	case FrameProgress:
		msg = &Progress{}
	case FrameRender:
		msg = &Render{}
	case FrameReady:
		msg = &Ready{}
	case FrameClose:
		msg = &Close{}
	case FramePing:
		msg = &Ping{}
	case FramePong:
		msg = &Pong{}
	default:
		return nil, ErrUnknownFrame
	}
	if len(payload) > 0 {
		if err := codec.Unmarshal(payload, msg); err != nil {
			return fail(err)
		}
	}
	return msg, nil
}
