package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = 54 * time.Second // Must be less than pongWait
	persistTimeout   = 5 * time.Second
	sendBufferSize   = 256
	maxControlFrames = 4096
)

// ErrExpectedBinaryFrame is returned when an attachment announcement is not followed
// by a binary payload frame
var ErrExpectedBinaryFrame = errors.New("expected binary attachment payload")

// State is the lifecycle stage of a connection
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MessageSender persists a message and notifies the room about it
type MessageSender interface {
	SendText(ctx context.Context, chatroomID, username, body string) (*domain.Message, error)
	SendAttachment(ctx context.Context, chatroomID, username, filename string, data []byte) (*domain.Message, error)
}

// Client is one participant connection bound to a single chatroom
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	username   string
	chatroomID string
	sender     MessageSender
	readLimit  int64

	state   atomic.Int32
	sendMu  sync.Mutex
	sendEnd bool
	writeMu sync.Mutex
	closed  atomic.Bool

	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewClient creates a client for conn. maxAttachmentSize bounds every inbound frame.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, username, chatroomID string,
	sender MessageSender, maxAttachmentSize int64) *Client {
	id := uuid.NewString()
	clientCtx := observability.WithConnectionID(observability.WithChatroomID(ctx, chatroomID), id)
	clientCtx, cancel := context.WithCancel(clientCtx)

	readLimit := maxAttachmentSize
	if readLimit < maxControlFrames {
		readLimit = maxControlFrames
	}

	return &Client{
		id:         id,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		username:   username,
		chatroomID: chatroomID,
		sender:     sender,
		readLimit:  readLimit,
		ctx:        clientCtx,
		ctxCancel:  cancel,
	}
}

// ID returns the connection ID
func (c *Client) ID() string { return c.id }

// Username returns the user this connection belongs to
func (c *Client) Username() string { return c.username }

// ChatroomID returns the room this connection is bound to
func (c *Client) ChatroomID() string { return c.chatroomID }

// State returns the current lifecycle stage
func (c *Client) State() State { return State(c.state.Load()) }

// Send queues message for the write pump without blocking
func (c *Client) Send(message []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendEnd {
		return ErrClientClosed
	}

	select {
	case c.send <- message:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close ends the send queue; the write pump then closes the connection
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendEnd {
		c.sendEnd = true
		close(c.send)
	}
}

// Serve joins the room and runs the connection until it ends. Leaving the room is
// deferred inside ReadPump, so it happens on every exit path.
func (c *Client) Serve() {
	c.hub.Join(c.chatroomID, c)
	c.state.Store(int32(StateActive))

	go c.WritePump()
	c.ReadPump()
}

// ReadPump reads frames until the connection fails or a frame cannot be processed
func (c *Client) ReadPump() {
	log := observability.FromContext(c.ctx)

	defer func() {
		c.state.Store(int32(StateClosed))
		c.ctxCancel()
		c.hub.Leave(c.chatroomID, c)
		c.Close()
		c.closeConnection()
	}()

	c.conn.SetReadLimit(c.readLimit)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn("failed to set read deadline",
			slog.String("error", err.Error()),
			slog.String("user", c.username))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket error",
					slog.String("error", err.Error()),
					slog.String("user", c.username))
			}
			return
		}

		if err := c.handleFrame(messageType, data); err != nil {
			log.Error("closing connection after fault",
				slog.String("error", err.Error()),
				slog.String("user", c.username))
			return
		}
	}
}

// handleFrame processes one inbound frame. A returned error ends the connection.
func (c *Client) handleFrame(messageType int, data []byte) error {
	frame := ParseFrame(messageType, data)
	observability.WebSocketFramesReceived.WithLabelValues(frame.kind()).Inc()

	switch f := frame.(type) {
	case TextFrame:
		ctx, cancel := context.WithTimeout(c.ctx, persistTimeout)
		defer cancel()

		if _, err := c.sender.SendText(ctx, c.chatroomID, c.username, f.Body); err != nil {
			return fmt.Errorf("text message: %w", err)
		}
		return nil

	case AttachmentFrame:
		payload, err := c.readAttachmentPayload()
		if err != nil {
			return fmt.Errorf("attachment %q: %w", f.Filename, err)
		}

		ctx, cancel := context.WithTimeout(c.ctx, persistTimeout)
		defer cancel()

		if _, err := c.sender.SendAttachment(ctx, c.chatroomID, c.username, f.Filename, payload); err != nil {
			return fmt.Errorf("attachment %q: %w", f.Filename, err)
		}
		return nil

	default:
		observability.FromContext(c.ctx).Debug("ignoring unrecognised frame",
			slog.Int("message_type", messageType),
			slog.Int("size", len(data)))
		return nil
	}
}

// readAttachmentPayload blocks for the binary frame that follows an announcement
func (c *Client) readAttachmentPayload() ([]byte, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.BinaryMessage {
		return nil, ErrExpectedBinaryFrame
	}
	return data, nil
}

// WritePump pumps queued notifications to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
