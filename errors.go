package safeconn

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrNoConnectFunc is returned by New when the configuration carries no
	// way to produce a physical connection.
	ErrNoConnectFunc = errors.New("connect function required")

	// ErrClosed is returned for any operation on a proxy after Close.
	ErrClosed = errors.New("connection is closed")

	// ErrRetryExhausted is returned when the retry policy declines another
	// connection attempt. It wraps the last underlying connect error when
	// one was observed.
	ErrRetryExhausted = errors.New("connection attempts exhausted")

	// ErrReadOnlyAttr is returned when writing a local attribute the proxy
	// computes itself.
	ErrReadOnlyAttr = errors.New("attribute is read-only")
)

// ErrTxViolation is the base error every transaction-safety failure wraps.
// Use errors.Is(err, ErrTxViolation) to catch the whole category, or match
// the specific sentinels below.
var ErrTxViolation = errors.New("transaction violation")

var (
	// ErrTxReconnect: a reconnect became necessary while a transaction was
	// open. The proxy refuses to reconnect; the caller must detect the
	// broken transaction and handle it explicitly.
	ErrTxReconnect = fmt.Errorf("%w: reconnect needed during transaction", ErrTxViolation)

	// ErrTxNested: begin was called while a transaction was already open.
	ErrTxNested = fmt.Errorf("%w: already in a transaction", ErrTxViolation)

	// ErrTxNotStarted: commit or rollback without a matching begin.
	ErrTxNotStarted = fmt.Errorf("%w: commit or rollback without begin", ErrTxViolation)

	// ErrTxDisconnected: a reconnect occurred after the transaction began,
	// so the current physical connection never saw the transaction's
	// writes and rolling it back is impossible.
	ErrTxDisconnected = fmt.Errorf("%w: disconnect occurred during transaction, rollback impossible", ErrTxViolation)
)
