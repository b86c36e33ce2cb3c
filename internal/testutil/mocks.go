// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the chat server.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/domain"
)

// ErrMockFailure is returned by function overrides that simulate a backend fault
var ErrMockFailure = errors.New("mock: forced failure")

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc        func(ctx context.Context, user *domain.User) error
	ExistsFunc func(ctx context.Context, username string) (bool, error)

	// In-memory storage for simple tests
	Users  map[string]*domain.User
	nextID int64
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}
	if _, ok := m.Users[user.Username]; ok {
		return domain.ErrUsernameExists
	}

	m.nextID++
	user.ID = m.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.Username] = user
	return nil
}

func (m *MockUserRepository) Exists(ctx context.Context, username string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.Users[username]
	return ok, nil
}

// MockChatroomRepository implements domain.ChatroomRepository for testing
type MockChatroomRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc      func(ctx context.Context, chatroom *domain.Chatroom) error
	GetByIDFunc     func(ctx context.Context, id string) (*domain.Chatroom, error)
	ListFunc        func(ctx context.Context) ([]*domain.Chatroom, error)
	AddMemberFunc   func(ctx context.Context, chatroomID, username string) error
	ListMembersFunc func(ctx context.Context, chatroomID string) ([]string, error)

	// In-memory storage
	Chatrooms map[string]*domain.Chatroom
	Members   map[string][]string // chatroomID -> usernames in join order
}

// NewMockChatroomRepository creates a new MockChatroomRepository with initialized maps
func NewMockChatroomRepository() *MockChatroomRepository {
	return &MockChatroomRepository{
		Chatrooms: make(map[string]*domain.Chatroom),
		Members:   make(map[string][]string),
	}
}

func (m *MockChatroomRepository) Create(ctx context.Context, chatroom *domain.Chatroom) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, chatroom)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Chatrooms[chatroom.ID]; ok {
		return domain.ErrChatroomExists
	}
	if chatroom.CreatedAt.IsZero() {
		chatroom.CreatedAt = time.Now()
	}
	m.Chatrooms[chatroom.ID] = chatroom
	return nil
}

func (m *MockChatroomRepository) GetByID(ctx context.Context, id string) (*domain.Chatroom, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if chatroom, ok := m.Chatrooms[id]; ok {
		return chatroom, nil
	}
	return nil, domain.ErrChatroomNotFound
}

func (m *MockChatroomRepository) List(ctx context.Context) ([]*domain.Chatroom, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Chatroom, 0, len(m.Chatrooms))
	for _, chatroom := range m.Chatrooms {
		result = append(result, chatroom)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockChatroomRepository) AddMember(ctx context.Context, chatroomID, username string) error {
	if m.AddMemberFunc != nil {
		return m.AddMemberFunc(ctx, chatroomID, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Members == nil {
		m.Members = make(map[string][]string)
	}
	for _, existing := range m.Members[chatroomID] {
		if existing == username {
			return nil
		}
	}
	m.Members[chatroomID] = append(m.Members[chatroomID], username)
	return nil
}

func (m *MockChatroomRepository) ListMembers(ctx context.Context, chatroomID string) ([]string, error) {
	if m.ListMembersFunc != nil {
		return m.ListMembersFunc(ctx, chatroomID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string{}, m.Members[chatroomID]...), nil
}

// MockMessageRepository implements domain.MessageRepository for testing
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc        func(ctx context.Context, message *domain.Message) error
	GetByChatroomFunc func(ctx context.Context, chatroomID string) ([]*domain.Message, error)

	// In-memory storage
	Messages []*domain.Message
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized slices
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages: make([]*domain.Message, 0),
	}
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	message.ID = int64(len(m.Messages) + 1)
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockMessageRepository) GetByChatroom(ctx context.Context, chatroomID string) ([]*domain.Message, error) {
	if m.GetByChatroomFunc != nil {
		return m.GetByChatroomFunc(ctx, chatroomID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Message, 0)
	for _, msg := range m.Messages {
		if msg.ChatroomID == chatroomID {
			result = append(result, msg)
		}
	}
	return result, nil
}

// Stored returns a copy of every stored message
func (m *MockMessageRepository) Stored() []*domain.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Message{}, m.Messages...)
}

// MockEventPublisher records message events for testing
type MockEventPublisher struct {
	mu sync.RWMutex

	PublishMessageCreatedFunc func(ctx context.Context, message *domain.Message) error

	// Call tracking
	Published []*domain.Message
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Published: make([]*domain.Message, 0),
	}
}

func (m *MockEventPublisher) PublishMessageCreated(ctx context.Context, message *domain.Message) error {
	if m.PublishMessageCreatedFunc != nil {
		return m.PublishMessageCreatedFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Published = append(m.Published, message)
	return nil
}

// GetPublished returns all recorded events
func (m *MockEventPublisher) GetPublished() []*domain.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Message{}, m.Published...)
}

// Reset clears all recorded calls
func (m *MockEventPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = make([]*domain.Message, 0)
}

// MockRoomRegistry records broadcasts for testing
type MockRoomRegistry struct {
	mu sync.RWMutex

	Rooms      map[string]bool
	Broadcasts []BroadcastCall
	Counts     map[string]int
}

// BroadcastCall records a call to BroadcastText
type BroadcastCall struct {
	ChatroomID string
	Text       string
}

// NewMockRoomRegistry creates a new MockRoomRegistry
func NewMockRoomRegistry() *MockRoomRegistry {
	return &MockRoomRegistry{
		Rooms:  make(map[string]bool),
		Counts: make(map[string]int),
	}
}

func (m *MockRoomRegistry) EnsureRoom(chatroomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rooms[chatroomID] = true
}

func (m *MockRoomRegistry) Hydrate(chatroomIDs []string) {
	for _, id := range chatroomIDs {
		m.EnsureRoom(id)
	}
}

func (m *MockRoomRegistry) BroadcastText(chatroomID, text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Broadcasts = append(m.Broadcasts, BroadcastCall{ChatroomID: chatroomID, Text: text})
	return m.Counts[chatroomID]
}

func (m *MockRoomRegistry) ParticipantCount(chatroomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Counts[chatroomID]
}

// GetBroadcasts returns all recorded broadcasts
func (m *MockRoomRegistry) GetBroadcasts() []BroadcastCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]BroadcastCall{}, m.Broadcasts...)
}

// HasRoom reports whether EnsureRoom was called for chatroomID
func (m *MockRoomRegistry) HasRoom(chatroomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Rooms[chatroomID]
}
