package obsws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversPublishedEventToSubscriber(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(hub, w, r, []string{TasksTopic}, zap.NewNop())
		require.NoError(t, err)
		client.Run()
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ConnectedCount() == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish(Event{Type: EventTaskDone, Topic: TasksTopic, Payload: map[string]string{"task_id": "1"}})

	var evt Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&evt))
	require.Equal(t, EventTaskDone, evt.Type)
}
