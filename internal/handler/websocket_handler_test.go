package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hamxay/-WhatsApp-API-server/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandler_UnknownRoomOrUser(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "general", "alice")

	testutil.AssertJSONError(t, f.get("/ws/missing/alice"), http.StatusNotFound, "chatroom not found")
	testutil.AssertJSONError(t, f.get("/ws/general/bob"), http.StatusNotFound, "user not found")
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "general", "alice")
	server := httptest.NewServer(f.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/general/alice"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketHandler_ServesRoom(t *testing.T) {
	f := newHandlerFixture(t)
	f.seed(t, "general", "alice")
	require.Equal(t, http.StatusCreated, f.post("/create_user/bob").Code)
	server := httptest.NewServer(f.router)
	defer server.Close()

	alice := testutil.DialWebSocket(t, server, "/ws/general/alice")
	bob := testutil.DialWebSocket(t, server, "/ws/general/bob")
	testutil.Eventually(t, func() bool {
		return f.hub.ParticipantCount("general") == 2
	}, "both connections should join")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("TEXT:hi")))
	assert.Equal(t, "alice: hi", testutil.ReadText(t, bob, 2*time.Second))
	assert.Equal(t, "alice: hi", testutil.ReadText(t, alice, 2*time.Second))

	// Messages sent over HTTP reach live connections too
	require.Equal(t, http.StatusOK, f.post("/send_message/general/bob?message=yo").Code)
	assert.Equal(t, "bob: yo", testutil.ReadText(t, alice, 2*time.Second))

	w := f.get("/chatrooms/general/participants")
	assert.JSONEq(t, `{"chatroom_id":"general","connected":2,"members":[]}`, w.Body.String())
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"http://a"}, origin: "", want: true},
		{name: "listed origin", allowed: []string{"http://a", "http://b"}, origin: "http://b", want: true},
		{name: "unlisted origin", allowed: []string{"http://a"}, origin: "http://c", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://c", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/r/u", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
