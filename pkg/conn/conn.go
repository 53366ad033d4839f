// Package conn defines the capability interfaces a physical database
// connection must satisfy to be managed by safeconn.
//
// A physical connection is whatever object a connect factory produces: a
// driver-level SQL connection, a WebSocket RPC session, or a hand-written
// fake in tests. The proxy only ever talks to it through these interfaces.
package conn

import (
	"context"
	"errors"
)

// ErrNotSupported is returned when a connection does not implement the
// capability a forwarded operation requires.
var ErrNotSupported = errors.New("method not available on this connection")

// Conn is the minimal contract every physical connection must satisfy.
//
// Call is the generic forwarding entry point: it routes an arbitrary named
// operation with arguments to the connection. Connections are free to
// implement the optional capability interfaces below for typed access; the
// proxy prefers those and falls back to Call.
type Conn interface {
	// Ping performs a cheap round trip against the connection. It is used
	// as the liveness probe: any error means the connection is considered
	// dead and will be replaced.
	Ping(ctx context.Context) error

	// Call invokes the named operation with the given arguments and returns
	// its result. Unknown method names should return ErrNotSupported.
	Call(ctx context.Context, method string, args ...any) (any, error)

	// Close releases the connection.
	Close(ctx context.Context) error
}

// Execer is implemented by connections that support statement execution
// without a result set.
type Execer interface {
	// Exec runs the statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Queryer is implemented by connections that support result-set queries.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Rows is an iterator over a result set, shaped after
// database/sql/driver.Rows so driver-level adapters can wrap it directly.
type Rows interface {
	// Columns returns the names of the result columns.
	Columns() []string

	// Next populates dest with the values of the next row. It returns
	// io.EOF when there are no more rows.
	Next(dest []any) error

	Close() error
}

// Tx is implemented by connections with native transaction control. The
// proxy forwards Begin, Commit and Rollback through this interface when
// available, and through Call("begin"|"commit"|"rollback") otherwise.
type Tx interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AttrStore is implemented by connections that expose named attributes.
// Attribute reads and writes that the proxy does not handle locally are
// forwarded here.
type AttrStore interface {
	Attr(ctx context.Context, name string) (any, error)
	SetAttr(ctx context.Context, name string, value any) error
}

// Validator is implemented by connections that can report whether they are
// still usable without a round trip. The liveness probe consults it before
// pinging, mirroring database/sql/driver.Validator.
type Validator interface {
	IsValid() bool
}
