package websocket

import (
	"strings"

	"github.com/gorilla/websocket"
)

const (
	textPrefix       = "TEXT:"
	attachmentPrefix = "ATTACHMENT:"
)

// Frame is a parsed inbound frame: TextFrame, AttachmentFrame or UnknownFrame
type Frame interface {
	kind() string
}

// TextFrame carries a chat message body
type TextFrame struct {
	Body string
}

// AttachmentFrame announces that the next binary frame holds the bytes of Filename
type AttachmentFrame struct {
	Filename string
}

// UnknownFrame is anything the protocol does not recognise; it is ignored
type UnknownFrame struct {
	MessageType int
	Size        int
}

func (TextFrame) kind() string       { return "text" }
func (AttachmentFrame) kind() string { return "attachment" }
func (UnknownFrame) kind() string    { return "unknown" }

// ParseFrame classifies one WebSocket frame. Only text frames can carry a command;
// the prefixes are case-sensitive.
func ParseFrame(messageType int, data []byte) Frame {
	if messageType != websocket.TextMessage {
		return UnknownFrame{MessageType: messageType, Size: len(data)}
	}

	s := string(data)
	switch {
	case strings.HasPrefix(s, textPrefix):
		return TextFrame{Body: strings.TrimPrefix(s, textPrefix)}
	case strings.HasPrefix(s, attachmentPrefix):
		return AttachmentFrame{Filename: strings.TrimPrefix(s, attachmentPrefix)}
	default:
		return UnknownFrame{MessageType: messageType, Size: len(data)}
	}
}
