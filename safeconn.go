package safeconn

import (
	"context"
	"fmt"
	"sync"

	"github.com/tadam/safeconn/pkg/conn"
)

// DB is the caller-facing logical connection. It may rebind to different
// physical connections over its lifetime; callers hold one DB and never see
// the swap except through the transaction-safety errors.
//
// A DB is safe for concurrent use, but note that ownership is tracked per
// goroutine: handing the DB to another goroutine makes the next operation
// reconnect, exactly as handing a connection to another thread would.
type DB struct {
	cfg Config

	mu    sync.Mutex
	state State

	// calls caches the forwarding binding per operation name. The cache is
	// dropped whenever the physical connection is replaced; correctness
	// never depends on it.
	calls map[string]func(context.Context, ...any) (any, error)

	// attrs stores writable local attributes (print_error, raise_error,
	// private_*). They survive reconnects by construction.
	attrs map[string]any

	closed bool
}

// Conn validates the physical connection, repairing it if necessary, and
// returns it. Use it when you need direct access to the underlying
// connection object.
func (db *DB) Conn(ctx context.Context) (conn.Conn, error) {
	return db.ensureConnected(ctx)
}

// Ping ensures a live physical connection and pings it. Unlike the internal
// liveness probe, the error from the forwarded ping is returned verbatim.
func (db *DB) Ping(ctx context.Context) error {
	c, err := db.ensureConnected(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}

// Call forwards an arbitrary named operation to the physical connection.
// It is the catch-all path for operations without a dedicated method.
func (db *DB) Call(ctx context.Context, method string, args ...any) (any, error) {
	db.mu.Lock()
	c, err := db.ensureConnectedLocked(ctx)
	if err != nil {
		db.mu.Unlock()
		return nil, err
	}
	fn := db.bindingLocked(c, method)
	db.mu.Unlock()

	return fn(ctx, args...)
}

// bindingLocked resolves the forwarding closure for method against the
// current physical connection, caching it per name.
func (db *DB) bindingLocked(c conn.Conn, method string) func(context.Context, ...any) (any, error) {
	if fn, ok := db.calls[method]; ok {
		return fn
	}
	fn := func(ctx context.Context, args ...any) (any, error) {
		return c.Call(ctx, method, args...)
	}
	if db.calls == nil {
		db.calls = make(map[string]func(context.Context, ...any) (any, error))
	}
	db.calls[method] = fn
	return fn
}

// Exec forwards a statement execution and returns the affected row count.
// Connections without native Exec support are reached through Call("exec").
func (db *DB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	c, err := db.ensureConnected(ctx)
	if err != nil {
		return 0, err
	}
	if e, ok := c.(conn.Execer); ok {
		return e.Exec(ctx, query, args...)
	}
	res, err := c.Call(ctx, "exec", append([]any{query}, args...)...)
	if err != nil {
		return 0, err
	}
	switch n := res.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("exec: connection returned %T, want a row count", res)
}

// Query forwards a result-set query. Connections without native Query
// support are reached through Call("query").
func (db *DB) Query(ctx context.Context, query string, args ...any) (conn.Rows, error) {
	c, err := db.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}
	if q, ok := c.(conn.Queryer); ok {
		return q.Query(ctx, query, args...)
	}
	res, err := c.Call(ctx, "query", append([]any{query}, args...)...)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	rows, ok := res.(conn.Rows)
	if !ok {
		return nil, fmt.Errorf("query: connection returned %T, want rows", res)
	}
	return rows, nil
}

// Close releases the proxy and its physical connection. A connection
// inherited from another process image is dropped without closing. Closing
// an already-closed DB returns ErrClosed.
func (db *DB) Close(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	db.closed = true

	c := db.state.physical
	db.state.physical = nil
	db.calls = nil

	if c == nil || db.state.noClose {
		return nil
	}
	return c.Close(ctx)
}
