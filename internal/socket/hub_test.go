package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pharmacy-pos-api-server/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialPair connects a real client socket to a hub-registered server socket
// so Send can be exercised over the wire.
func dialPair(t *testing.T, hub *Hub, userID, role string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	registered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(userID, role, conn)
		close(registered)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial(strings.Replace(srv.URL, "http", "ws", 1), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("server never registered the connection")
	}
	return client
}

func TestHubSendReachesRegisteredPeer(t *testing.T) {
	hub := NewHub(nil)
	client := dialPair(t, hub, "user-1", RolePhone)

	env, err := NewEnvelope(EventScanDataReceived, models.ScanPayload{BatchID: "BATCH-7"})
	require.NoError(t, err)
	require.NoError(t, hub.Send("user-1", RolePhone, env))

	client.SetReadDeadline(time.Now().Add(time.Second))
	var got Envelope
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, EventScanDataReceived, got.Event)
}

func TestHubSendToMissingPeerIsNotAnError(t *testing.T) {
	hub := NewHub(nil)
	env, err := NewEnvelope(EventScanData, nil)
	require.NoError(t, err)
	assert.NoError(t, hub.Send("nobody", RoleDesktop, env))
}

func TestHubRegisterReplacesExistingSession(t *testing.T) {
	hub := NewHub(nil)
	first := dialPair(t, hub, "user-1", RoleDesktop)
	_ = dialPair(t, hub, "user-1", RoleDesktop)

	// The replaced socket gets closed server-side; its reads must fail.
	first.SetReadDeadline(time.Now().Add(time.Second))
	var env Envelope
	assert.Error(t, first.ReadJSON(&env))
}

func TestHubUnregisterIgnoresStaleConnection(t *testing.T) {
	hub := NewHub(nil)
	stale := &websocket.Conn{}
	current := &websocket.Conn{}

	hub.Register("user-1", RoleDesktop, current)
	hub.SetStatus("user-1", models.SessionStatus{Status: models.SessionStatusReady})

	// A goroutine belonging to an already-replaced socket must not tear
	// down the live session.
	hub.Unregister("user-1", RoleDesktop, stale)
	_, ok := hub.Status("user-1")
	assert.True(t, ok)

	hub.Unregister("user-1", RoleDesktop, current)
	_, ok = hub.Status("user-1")
	assert.False(t, ok, "desktop unregister drops the stored status")
}

func TestHubStatusLastWriteWins(t *testing.T) {
	hub := NewHub(nil)

	_, ok := hub.Status("user-1")
	assert.False(t, ok)

	hub.SetStatus("user-1", models.SessionStatus{Status: models.SessionStatusNotReady})
	hub.SetStatus("user-1", models.SessionStatus{Status: models.SessionStatusReady, Location: "/documents/DOC-1/verify"})

	st, ok := hub.Status("user-1")
	require.True(t, ok)
	assert.Equal(t, models.SessionStatusReady, st.Status)
	assert.Equal(t, "/documents/DOC-1/verify", st.Location)
}
