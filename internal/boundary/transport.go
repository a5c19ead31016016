package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Request is one outbound call on the local RPC transport between
// cooperating processes (spec.md §1, §6: "request/reply messages over a
// local transport").
type Request struct {
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// Reply answers a Request by id.
type Reply struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Handler executes one inbound Request and produces a Reply. Modeled on the
// teacher's command-gateway Handler/Dispatch shape, generalized from a
// single session-command type to an arbitrary method name.
type Handler interface {
	HandleRequest(Request) (Reply, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(Request) (Reply, error)

func (f HandlerFunc) HandleRequest(req Request) (Reply, error) { return f(req) }

// Transport is the boundary the Coordinator and its collaborators depend on
// for process-to-process calls; spec.md §1 names it an external
// collaborator described only by this contract.
type Transport interface {
	// Call sends req and blocks for the matching Reply.
	Call(ctx context.Context, method string, payload any) (Reply, error)
	// Serve registers handler for inbound requests and begins processing
	// them; it blocks until the transport is closed.
	Serve(handler Handler) error
	Close() error
}

// WebSocketTransport is a JSON-framed Transport over a gorilla/websocket
// connection: each websocket message is one JSON-encoded Request or Reply,
// so the library's own message framing satisfies spec.md §6's
// length-prefixed framing requirement without an additional prefix.
type WebSocketTransport struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan Reply
}

// NewWebSocketTransport wraps an already-established connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{
		conn:    conn,
		pending: make(map[string]chan Reply),
	}
}

// Call sends a Request with a fresh UUID and blocks until the matching
// Reply arrives or ctx is done.
func (t *WebSocketTransport) Call(ctx context.Context, method string, payload any) (Reply, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, err
	}
	req := Request{ID: uuid.NewString(), Method: method, Payload: body}

	ch := make(chan Reply, 1)
	t.mu.Lock()
	t.pending[req.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, req.ID)
		t.mu.Unlock()
	}()

	t.mu.Lock()
	err = t.conn.WriteJSON(req)
	t.mu.Unlock()
	if err != nil {
		return Reply{}, err
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return reply, fmt.Errorf("%s", reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Serve reads frames off the connection. A frame decoding as a Reply is
// routed to its waiting Call; a frame decoding as a Request is dispatched to
// handler and the Reply written back.
func (t *WebSocketTransport) Serve(handler Handler) error {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return err
		}

		var probe struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			continue
		}

		if probe.Method == "" {
			var reply Reply
			if err := json.Unmarshal(data, &reply); err != nil {
				continue
			}
			t.mu.Lock()
			ch, ok := t.pending[reply.ID]
			t.mu.Unlock()
			if ok {
				ch <- reply
			}
			continue
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		reply, handleErr := handler.HandleRequest(req)
		reply.ID = req.ID
		if handleErr != nil {
			reply.Error = handleErr.Error()
		}
		t.mu.Lock()
		writeErr := t.conn.WriteJSON(reply)
		t.mu.Unlock()
		if writeErr != nil {
			return writeErr
		}
	}
}

// Close closes the underlying connection.
func (t *WebSocketTransport) Close() error {
	return t.conn.Close()
}
