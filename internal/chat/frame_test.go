package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		engineType byte
		socketType byte
		event      string
		text       string
		wantErr    bool
	}{
		{name: "open", raw: `0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`, engineType: engineOpen},
		{name: "ping", raw: "2", engineType: enginePing},
		{name: "connect ack", raw: `40{"sid":"xyz"}`, engineType: engineMessage, socketType: socketConnect},
		{name: "disconnect", raw: "41", engineType: engineMessage, socketType: socketDisconnect},
		{
			name:       "string event",
			raw:        `42["enviar-mensaje-front-back","hola"]`,
			engineType: engineMessage,
			socketType: socketEvent,
			event:      EventMessage,
			text:       "hola",
		},
		{
			name:       "object event",
			raw:        `42["enviar-mensaje-front-back",{"a":1}]`,
			engineType: engineMessage,
			socketType: socketEvent,
			event:      EventMessage,
			text:       `{"a":1}`,
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "unknown engine type", raw: "9", wantErr: true},
		{name: "empty message", raw: "4", wantErr: true},
		{name: "bad event json", raw: `42["x"`, wantErr: true},
		{name: "event without name", raw: `42[]`, wantErr: true},
		{name: "numeric event name", raw: `42[1,"x"]`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(tc.raw))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.engineType, frame.EngineType)
			assert.Equal(t, tc.socketType, frame.SocketType)
			assert.Equal(t, tc.event, frame.Event)
			assert.Equal(t, tc.text, frame.Text())
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	raw, err := EncodeEvent(EventMessage, "¿hola?")
	require.NoError(t, err)
	assert.Equal(t, `42["enviar-mensaje-front-back","¿hola?"]`, string(raw))

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.True(t, frame.IsEvent(EventMessage))
	assert.Equal(t, "¿hola?", frame.Text())
}
