package chat

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Engine.IO v4 packet types.
const (
	engineOpen    byte = '0'
	engineClose   byte = '1'
	enginePing    byte = '2'
	enginePong    byte = '3'
	engineMessage byte = '4'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	socketConnect      byte = '0'
	socketDisconnect   byte = '1'
	socketEvent        byte = '2'
	socketConnectError byte = '4'
)

var ErrMalformedFrame = errors.New("malformed socket.io frame")

// Frame is a decoded websocket text frame.
type Frame struct {
	EngineType byte
	// SocketType is set only for engine message frames.
	SocketType byte
	// Event and Args are set only for socket event frames.
	Event string
	Args  []json.RawMessage
	// Data is whatever follows the type prefix(es).
	Data []byte
}

func (f Frame) IsEvent(name string) bool {
	return f.EngineType == engineMessage && f.SocketType == socketEvent && f.Event == name
}

// Text returns the first event argument as text. JSON strings are unquoted,
// any other JSON value is returned verbatim.
func (f Frame) Text() string {
	if len(f.Args) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(f.Args[0], &s); err == nil {
		return s
	}
	return string(f.Args[0])
}

func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) == 0 {
		return Frame{}, ErrMalformedFrame
	}

	f := Frame{EngineType: raw[0], Data: raw[1:]}
	switch f.EngineType {
	case engineOpen, engineClose, enginePing, enginePong:
		return f, nil
	case engineMessage:
	default:
		return Frame{}, fmt.Errorf("%w: engine type %q", ErrMalformedFrame, f.EngineType)
	}

	if len(f.Data) == 0 {
		return Frame{}, fmt.Errorf("%w: empty message", ErrMalformedFrame)
	}
	f.SocketType = f.Data[0]
	f.Data = f.Data[1:]

	if f.SocketType != socketEvent {
		return f, nil
	}

	// events of the default namespace carry no ack id: 42["name",...args]
	var parts []json.RawMessage
	if err := json.Unmarshal(f.Data, &parts); err != nil {
		return Frame{}, fmt.Errorf("%w: %s", ErrMalformedFrame, err)
	}
	if len(parts) == 0 {
		return Frame{}, fmt.Errorf("%w: event without name", ErrMalformedFrame)
	}
	if err := json.Unmarshal(parts[0], &f.Event); err != nil {
		return Frame{}, fmt.Errorf("%w: event name: %s", ErrMalformedFrame, err)
	}
	f.Args = parts[1:]

	return f, nil
}

func EncodeEvent(name string, args ...any) ([]byte, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	payload, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", name, err)
	}
	return append([]byte{engineMessage, socketEvent}, payload...), nil
}

func connectFrame() []byte {
	return []byte{engineMessage, socketConnect}
}

func pongFrame() []byte {
	return []byte{enginePong}
}
