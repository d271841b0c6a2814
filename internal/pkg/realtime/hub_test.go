package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeedServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zerolog.Nop())
	go hub.Run()

	handler := NewHandler(hub, zerolog.Nop())
	router := gin.New()
	router.GET("/ws/groups", func(c *gin.Context) {
		c.Set("userID", int64(7))
		handler.HandleConnection(c)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/groups"
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub, url := startFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Publish(EventMemberJoined, 5, 9)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventMemberJoined, event.Type)
	assert.Equal(t, int64(5), event.GroupID)
	assert.Equal(t, int64(9), event.ActorID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestHubMultipleSubscribers(t *testing.T) {
	hub, url := startFeedServer(t)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	waitForClients(t, hub, 2)

	hub.Publish(EventGroupCreated, 42, 7)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventGroupCreated, event.Type)
		assert.Equal(t, int64(42), event.GroupID)
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, url := startFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	// Nothing listening; Publish must not block the caller
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(EventGroupUpdated, int64(i), 1)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}
