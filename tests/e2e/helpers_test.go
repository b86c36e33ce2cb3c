//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestClient issues HTTP requests against one chat server
type TestClient struct {
	*http.Client
	t      *testing.T
	server *chatServer
}

func NewTestClient(t *testing.T, server *chatServer) *TestClient {
	return &TestClient{
		Client: &http.Client{Timeout: 30 * time.Second},
		t:      t,
		server: server,
	}
}

// Post sends an empty POST and returns status and body
func (tc *TestClient) Post(path string) (int, []byte) {
	tc.t.Helper()
	resp, err := tc.Client.Post(tc.server.URL+path, "", nil)
	require.NoError(tc.t, err)
	return readResponse(tc.t, resp)
}

// Get sends a GET and returns status and body
func (tc *TestClient) Get(path string) (int, []byte) {
	tc.t.Helper()
	resp, err := tc.Client.Get(tc.server.URL + path)
	require.NoError(tc.t, err)
	return readResponse(tc.t, resp)
}

// PostFile uploads data as the multipart field "file"
func (tc *TestClient) PostFile(path, filename string, data []byte) (int, []byte) {
	tc.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(tc.t, err)
	_, err = part.Write(data)
	require.NoError(tc.t, err)
	require.NoError(tc.t, mw.Close())

	resp, err := tc.Client.Post(tc.server.URL+path, mw.FormDataContentType(), &buf)
	require.NoError(tc.t, err)
	return readResponse(tc.t, resp)
}

func readResponse(t *testing.T, resp *http.Response) (int, []byte) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

// GetJSON decodes a 200 response body into out
func (tc *TestClient) GetJSON(path string, out any) {
	tc.t.Helper()
	status, body := tc.Get(path)
	require.Equal(tc.t, http.StatusOK, status, string(body))
	require.NoError(tc.t, json.Unmarshal(body, out))
}

// MustCreateRoomAndUser creates a fresh room and user and returns their names
func (tc *TestClient) MustCreateRoomAndUser(prefix string) (string, string) {
	tc.t.Helper()
	room := uniqueName(prefix + "room")
	user := uniqueName(prefix + "user")
	status, body := tc.Post("/create_chatroom/" + room)
	require.Equal(tc.t, http.StatusCreated, status, string(body))
	status, body = tc.Post("/create_user/" + user)
	require.Equal(tc.t, http.StatusCreated, status, string(body))
	return room, user
}

// MustCreateUser creates a fresh user
func (tc *TestClient) MustCreateUser(prefix string) string {
	tc.t.Helper()
	user := uniqueName(prefix)
	status, body := tc.Post("/create_user/" + user)
	require.Equal(tc.t, http.StatusCreated, status, string(body))
	return user
}

// WSClient collects text frames delivered to one connection
type WSClient struct {
	t        *testing.T
	conn     *websocket.Conn
	messages chan string
	closed   chan struct{}
	mu       sync.Mutex
}

// ConnectWebSocket joins chatroomID as user
func (tc *TestClient) ConnectWebSocket(chatroomID, user string) *WSClient {
	tc.t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.Dial(tc.server.wsURL(fmt.Sprintf("/ws/%s/%s", chatroomID, user)), nil)
	require.NoError(tc.t, err)

	wsc := &WSClient{
		t:        tc.t,
		conn:     conn,
		messages: make(chan string, 100),
		closed:   make(chan struct{}),
	}
	go wsc.readLoop()
	tc.t.Cleanup(func() { wsc.Close() })

	return wsc
}

func (wsc *WSClient) readLoop() {
	defer close(wsc.closed)
	for {
		_, data, err := wsc.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case wsc.messages <- string(data):
		default:
			wsc.t.Log("message channel full, dropping message")
		}
	}
}

// SendText sends a TEXT frame
func (wsc *WSClient) SendText(body string) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	return wsc.conn.WriteMessage(websocket.TextMessage, []byte("TEXT:"+body))
}

// SendAttachment announces filename and sends data as the following binary frame
func (wsc *WSClient) SendAttachment(filename string, data []byte) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	if err := wsc.conn.WriteMessage(websocket.TextMessage, []byte("ATTACHMENT:"+filename)); err != nil {
		return err
	}
	return wsc.conn.WriteMessage(websocket.BinaryMessage, data)
}

// WriteRaw sends a frame as-is
func (wsc *WSClient) WriteRaw(messageType int, data []byte) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	return wsc.conn.WriteMessage(messageType, data)
}

// WaitFor returns the next delivered frame, skipping frames that do not match want
func (wsc *WSClient) WaitFor(want string, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-wsc.messages:
			if !ok {
				return fmt.Errorf("connection closed while waiting for %q", want)
			}
			if msg == want {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for %q", want)
		}
	}
}

// Next returns the next delivered frame
func (wsc *WSClient) Next(timeout time.Duration) (string, error) {
	select {
	case msg, ok := <-wsc.messages:
		if !ok {
			return "", fmt.Errorf("connection closed")
		}
		return msg, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("timeout waiting for message")
	}
}

// WaitClosed waits until the server ends the connection
func (wsc *WSClient) WaitClosed(timeout time.Duration) error {
	select {
	case <-wsc.closed:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("connection still open after %s", timeout)
	}
}

func (wsc *WSClient) Close() error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()
	return wsc.conn.Close()
}

// uniqueName generates a name unique within the run and valid for path segments
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
}

// waitForParticipants polls the presence endpoint until connected matches want
func waitForParticipants(t *testing.T, tc *TestClient, chatroomID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		var presence struct {
			Connected int `json:"connected"`
		}
		status, body := tc.Get("/chatrooms/" + chatroomID + "/participants")
		if status != http.StatusOK || json.Unmarshal(body, &presence) != nil {
			return false
		}
		return presence.Connected == want
	}, 5*time.Second, 20*time.Millisecond)
}
