package websocket

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        string
		want        Frame
	}{
		{
			name:        "text",
			messageType: websocket.TextMessage,
			data:        "TEXT:hi",
			want:        TextFrame{Body: "hi"},
		},
		{
			name:        "text keeps colons in body",
			messageType: websocket.TextMessage,
			data:        "TEXT:a:b",
			want:        TextFrame{Body: "a:b"},
		},
		{
			name:        "empty text body",
			messageType: websocket.TextMessage,
			data:        "TEXT:",
			want:        TextFrame{Body: ""},
		},
		{
			name:        "attachment",
			messageType: websocket.TextMessage,
			data:        "ATTACHMENT:a.bin",
			want:        AttachmentFrame{Filename: "a.bin"},
		},
		{
			name:        "lowercase prefix is unknown",
			messageType: websocket.TextMessage,
			data:        "text:hi",
			want:        UnknownFrame{MessageType: websocket.TextMessage, Size: 7},
		},
		{
			name:        "no prefix",
			messageType: websocket.TextMessage,
			data:        "hello",
			want:        UnknownFrame{MessageType: websocket.TextMessage, Size: 5},
		},
		{
			name:        "binary frame with text prefix",
			messageType: websocket.BinaryMessage,
			data:        "TEXT:hi",
			want:        UnknownFrame{MessageType: websocket.BinaryMessage, Size: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFrame(tt.messageType, []byte(tt.data)))
		})
	}
}
