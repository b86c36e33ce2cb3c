package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/Hamxay/-WhatsApp-API-server/internal/observability"
)

var (
	// ErrSendBufferFull means the participant is not draining its queue fast enough
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClientClosed means the participant's connection is already shut down
	ErrClientClosed = errors.New("client closed")
)

// Participant is a live connection that can receive room notifications
type Participant interface {
	ID() string
	Username() string
	// Send queues a message without blocking
	Send(message []byte) error
	// Close stops delivery and releases the underlying connection
	Close()
}

// room holds the participant set of one chatroom, guarded independently of other rooms
type room struct {
	mu           sync.RWMutex
	participants map[Participant]struct{}
}

func (r *room) snapshot() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Participant, 0, len(r.participants))
	for p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Hub is the process-wide registry of which connections belong to which room, and
// the fan-out point for room notifications
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	closed bool
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
	}
}

// Run blocks until ctx is cancelled, then closes every participant
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	slog.Info("hub shutting down gracefully")
	h.shutdown()
	return ctx.Err()
}

// getRoom returns the entry for chatroomID, creating it when create is set
func (h *Hub) getRoom(chatroomID string, create bool) *room {
	h.mu.RLock()
	r, ok := h.rooms[chatroomID]
	h.mu.RUnlock()
	if ok || !create {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double-check after acquiring write lock
	if r, ok = h.rooms[chatroomID]; ok {
		return r
	}
	r = &room{participants: make(map[Participant]struct{})}
	h.rooms[chatroomID] = r
	return r
}

// EnsureRoom creates an empty entry for chatroomID if none exists
func (h *Hub) EnsureRoom(chatroomID string) {
	h.getRoom(chatroomID, true)
}

// Hydrate creates one empty entry per room, used at startup with the persisted rooms
func (h *Hub) Hydrate(chatroomIDs []string) {
	for _, id := range chatroomIDs {
		h.EnsureRoom(id)
	}
	slog.Info("hub hydrated", slog.Int("rooms", len(chatroomIDs)))
}

// Join adds p to the room, creating the room entry if absent
func (h *Hub) Join(chatroomID string, p Participant) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		p.Close()
		return
	}

	r := h.getRoom(chatroomID, true)

	r.mu.Lock()
	_, already := r.participants[p]
	r.participants[p] = struct{}{}
	r.mu.Unlock()

	if already {
		return
	}

	observability.WebSocketConnectionsActive.WithLabelValues(chatroomID).Inc()
	slog.Info("client registered",
		slog.String("user", p.Username()),
		slog.String("connection_id", p.ID()),
		slog.String("chatroom_id", chatroomID))
}

// Leave removes p from the room. It is safe to call any number of times, for rooms
// that do not exist and for participants that never joined. It reports whether p was
// removed by this call.
func (h *Hub) Leave(chatroomID string, p Participant) bool {
	r := h.getRoom(chatroomID, false)
	if r == nil {
		return false
	}

	r.mu.Lock()
	_, ok := r.participants[p]
	delete(r.participants, p)
	r.mu.Unlock()

	if !ok {
		return false
	}

	observability.WebSocketConnectionsActive.WithLabelValues(chatroomID).Dec()
	slog.Info("client unregistered",
		slog.String("user", p.Username()),
		slog.String("connection_id", p.ID()),
		slog.String("chatroom_id", chatroomID))
	return true
}

// Broadcast delivers message to every participant present in the room at call time,
// except exclude (nil excludes nobody). A failed delivery is logged and skipped. It
// returns the number of participants the message was queued to.
func (h *Hub) Broadcast(chatroomID string, message []byte, exclude Participant) int {
	r := h.getRoom(chatroomID, false)
	if r == nil {
		return 0
	}

	delivered := 0
	for _, p := range r.snapshot() {
		if exclude != nil && p == exclude {
			continue
		}

		if err := p.Send(message); err != nil {
			reason := "closed"
			if errors.Is(err, ErrSendBufferFull) {
				reason = "buffer_full"
			}
			observability.WebSocketDeliveryFailures.WithLabelValues(chatroomID, reason).Inc()
			slog.Warn("failed to deliver message",
				slog.String("error", err.Error()),
				slog.String("user", p.Username()),
				slog.String("connection_id", p.ID()),
				slog.String("chatroom_id", chatroomID))
			continue
		}

		delivered++
		observability.WebSocketMessagesSent.WithLabelValues(chatroomID).Inc()
	}
	return delivered
}

// BroadcastText sends a display string to everyone in the room
func (h *Hub) BroadcastText(chatroomID, text string) int {
	return h.Broadcast(chatroomID, []byte(text), nil)
}

// ParticipantCount returns the number of live connections in a room
func (h *Hub) ParticipantCount(chatroomID string) int {
	r := h.getRoom(chatroomID, false)
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Participants returns the usernames connected to a room, sorted
func (h *Hub) Participants(chatroomID string) []string {
	r := h.getRoom(chatroomID, false)
	if r == nil {
		return []string{}
	}

	snapshot := r.snapshot()
	names := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		names = append(names, p.Username())
	}
	sort.Strings(names)
	return names
}

// Rooms returns the IDs of every room entry, sorted
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// shutdown closes every participant and refuses further joins
func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	rooms := make(map[string]*room, len(h.rooms))
	for id, r := range h.rooms {
		rooms[id] = r
	}
	h.mu.Unlock()

	for chatroomID, r := range rooms {
		for _, p := range r.snapshot() {
			p.Close()
			slog.Info("closed client connection",
				slog.String("user", p.Username()),
				slog.String("chatroom_id", chatroomID))
		}
	}

	slog.Info("hub shutdown complete")
}
