package websocket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParticipant records what it receives and can be told to fail
type fakeParticipant struct {
	id       string
	username string
	sendErr  error

	mu       sync.Mutex
	received [][]byte
	closed   bool
}

func newFakeParticipant(username string) *fakeParticipant {
	return &fakeParticipant{id: "conn-" + username, username: username}
}

func (f *fakeParticipant) ID() string       { return f.id }
func (f *fakeParticipant) Username() string { return f.username }

func (f *fakeParticipant) Send(message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, message)
	return nil
}

func (f *fakeParticipant) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeParticipant) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	for i, m := range f.received {
		out[i] = string(m)
	}
	return out
}

func (f *fakeParticipant) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHub_NewHub(t *testing.T) {
	hub := NewHub()
	require.NotNil(t, hub)
	assert.Empty(t, hub.Rooms())
}

func TestHub_JoinCreatesRoom(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")

	hub.Join("general", alice)

	assert.Equal(t, []string{"general"}, hub.Rooms())
	assert.Equal(t, 1, hub.ParticipantCount("general"))
	assert.Equal(t, []string{"alice"}, hub.Participants("general"))
}

func TestHub_JoinTwiceCountsOnce(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")

	hub.Join("general", alice)
	hub.Join("general", alice)

	assert.Equal(t, 1, hub.ParticipantCount("general"))
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")
	hub.Join("general", alice)

	assert.True(t, hub.Leave("general", alice))
	assert.False(t, hub.Leave("general", alice))
	assert.False(t, hub.Leave("missing", alice))
	assert.False(t, hub.Leave("general", newFakeParticipant("ghost")))

	assert.Equal(t, 0, hub.ParticipantCount("general"))
	assert.Equal(t, []string{"general"}, hub.Rooms(), "empty rooms are kept")
}

func TestHub_EnsureRoomAndHydrate(t *testing.T) {
	hub := NewHub()

	hub.Hydrate([]string{"b", "a"})
	hub.EnsureRoom("c")
	hub.EnsureRoom("a")

	assert.Equal(t, []string{"a", "b", "c"}, hub.Rooms())
	for _, id := range hub.Rooms() {
		assert.Equal(t, 0, hub.ParticipantCount(id))
	}
}

func TestHub_BroadcastDeliversOncePerParticipant(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")
	bob := newFakeParticipant("bob")
	carol := newFakeParticipant("carol")
	hub.Join("general", alice)
	hub.Join("general", bob)
	hub.Join("other", carol)

	delivered := hub.BroadcastText("general", "alice: hi")

	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"alice: hi"}, alice.messages())
	assert.Equal(t, []string{"alice: hi"}, bob.messages())
	assert.Empty(t, carol.messages(), "other rooms must not receive the message")
}

func TestHub_BroadcastExclude(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")
	bob := newFakeParticipant("bob")
	hub.Join("general", alice)
	hub.Join("general", bob)

	delivered := hub.Broadcast("general", []byte("alice: hi"), alice)

	assert.Equal(t, 1, delivered)
	assert.Empty(t, alice.messages())
	assert.Equal(t, []string{"alice: hi"}, bob.messages())
}

func TestHub_BroadcastFailureIsIsolated(t *testing.T) {
	hub := NewHub()
	full := newFakeParticipant("full")
	full.sendErr = ErrSendBufferFull
	gone := newFakeParticipant("gone")
	gone.sendErr = ErrClientClosed
	bob := newFakeParticipant("bob")
	hub.Join("general", full)
	hub.Join("general", gone)
	hub.Join("general", bob)

	delivered := hub.BroadcastText("general", "alice: hi")

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"alice: hi"}, bob.messages())
	assert.Equal(t, 3, hub.ParticipantCount("general"), "failed deliveries do not evict")
}

func TestHub_BroadcastUnknownOrEmptyRoom(t *testing.T) {
	hub := NewHub()
	hub.EnsureRoom("empty")

	assert.Equal(t, 0, hub.BroadcastText("empty", "x"))
	assert.Equal(t, 0, hub.BroadcastText("missing", "x"))
	assert.Equal(t, []string{"empty"}, hub.Rooms(), "broadcast must not create rooms")
}

func TestHub_ContextCancellation(t *testing.T) {
	hub := NewHub()
	alice := newFakeParticipant("alice")
	hub.Join("general", alice)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- hub.Run(ctx)
	}()

	cancel()

	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	assert.True(t, alice.isClosed())

	late := newFakeParticipant("late")
	hub.Join("general", late)
	assert.True(t, late.isClosed(), "joins after shutdown are refused")
	assert.Equal(t, 1, hub.ParticipantCount("general"))
}

func TestHub_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	hub := NewHub()
	const workers = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room := fmt.Sprintf("room-%d", i%3)
			p := newFakeParticipant(fmt.Sprintf("user-%d", i))
			hub.Join(room, p)
			hub.BroadcastText(room, "ping")
			hub.Leave(room, p)
		}(i)
	}
	wg.Wait()

	for _, id := range hub.Rooms() {
		assert.Equal(t, 0, hub.ParticipantCount(id))
	}
}
