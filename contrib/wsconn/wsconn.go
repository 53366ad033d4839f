// Package wsconn adapts a JSON-RPC-over-WebSocket session to the safeconn
// capability interfaces, using github.com/gorilla/websocket.
//
// Every operation is forwarded as a {id, method, params} request and waits
// for the response carrying the same id. The liveness probe is a "ping" RPC
// round trip.
package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tadam/safeconn/pkg/conn"
)

// Factory returns a connect function dialing url on every (re)connect.
func Factory(url string) func(ctx context.Context) (conn.Conn, error) {
	return func(ctx context.Context) (conn.Conn, error) {
		return Dial(ctx, url)
	}
}

// Dial establishes the WebSocket connection.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = true

	sock, resp, err := dialer.DialContext(ctx, url, nil) //nolint:bodyclose // gorilla hands the body to the connection on success
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wsconn: dial %s: %w (status %s)", url, err, resp.Status)
		}
		return nil, fmt.Errorf("wsconn: dial %s: %w", url, err)
	}

	return &Conn{sock: sock}, nil
}

// Conn is a physical connection backed by a single WebSocket.
//
// Requests are serialized: one RPC is in flight at a time. The proxy in
// front of it funnels operations through its own lock anyway, so there is
// nothing to pipeline.
type Conn struct {
	sock *websocket.Conn

	mu     sync.Mutex
	nextID uint64
}

var _ conn.Conn = (*Conn)(nil)

// RPCRequest is the wire format of a forwarded operation.
type RPCRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// RPCError is a failure reported by the remote end. It carries the remote
// code so callers can match on it programmatically.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wsconn: remote error %d: %s", e.Code, e.Message)
}

// RPCResponse is the wire format of an operation result.
type RPCResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Call forwards the named operation and waits for its response.
func (c *Conn) Call(ctx context.Context, method string, args ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)

	// Zero deadline means no timeout, matching a context without one.
	deadline, _ := ctx.Deadline()
	if err := c.sock.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("wsconn: %w", err)
	}
	if err := c.sock.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("wsconn: %w", err)
	}

	if err := c.sock.WriteJSON(RPCRequest{ID: id, Method: method, Params: args}); err != nil {
		return nil, fmt.Errorf("wsconn: send %s: %w", method, err)
	}

	for {
		var res RPCResponse
		if err := c.sock.ReadJSON(&res); err != nil {
			return nil, fmt.Errorf("wsconn: receive %s: %w", method, err)
		}
		if res.ID != id {
			// Response to an earlier call that timed out; drop it.
			continue
		}
		if res.Error != nil {
			return nil, res.Error
		}
		if len(res.Result) == 0 {
			return nil, nil
		}
		var out any
		if err := json.Unmarshal(res.Result, &out); err != nil {
			return nil, fmt.Errorf("wsconn: decode %s result: %w", method, err)
		}
		return out, nil
	}
}

// Ping performs a "ping" RPC round trip.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping")
	return err
}

// Close sends a normal-closure frame and tears the socket down.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.sock.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.sock.Close()
}
