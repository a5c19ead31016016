package boundary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	Text string `json:"text"`
}

func startEchoServer(t *testing.T) (*httptest.Server, *WebSocketTransport) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var serverTransport *WebSocketTransport
	ready := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverTransport = NewWebSocketTransport(conn)
		close(ready)

		_ = serverTransport.Serve(HandlerFunc(func(req Request) (Reply, error) {
			var in echoPayload
			_ = json.Unmarshal(req.Payload, &in)
			out, _ := json.Marshal(echoPayload{Text: strings.ToUpper(in.Text)})
			return Reply{Payload: out}, nil
		}))
	}))

	return server, serverTransport
}

func TestWebSocketTransportCallRoundTrip(t *testing.T) {
	server, _ := startEchoServer(t)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	client := NewWebSocketTransport(conn)
	defer client.Close()

	// The client side must also pump inbound frames so Call's waiting
	// channel receives the reply; run Serve with a handler that is never
	// invoked (the client never receives inbound Requests in this test).
	go func() {
		_ = client.Serve(HandlerFunc(func(req Request) (Reply, error) {
			return Reply{}, nil
		}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := client.Call(ctx, "echo", echoPayload{Text: "hi"})
	require.NoError(t, err)

	var out echoPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &out))
	assert.Equal(t, "HI", out.Text)
}
