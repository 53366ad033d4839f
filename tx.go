package safeconn

import (
	"context"
	"time"

	"github.com/tadam/safeconn/pkg/conn"
)

// Begin opens a transaction on the live physical connection. Nested begin
// without an intervening commit or rollback is an error, not silently
// coalesced.
func (db *DB) Begin(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, err := db.ensureConnectedLocked(ctx)
	if err != nil {
		return err
	}

	if db.state.txDepth > 0 {
		return ErrTxNested
	}

	if err := forwardTx(ctx, c, "begin"); err != nil {
		return err
	}

	db.state.txDepth++
	db.state.autocommit = false
	db.state.txStartedAt = time.Now()
	return nil
}

// Commit commits the open transaction.
func (db *DB) Commit(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.state.autocommit || db.state.txDepth == 0 {
		db.state.txDepth = 0 // clamp, never negative
		db.state.autocommit = true
		return ErrTxNotStarted
	}

	if err := forwardTx(ctx, db.state.physical, "commit"); err != nil {
		return err
	}

	db.state.txDepth--
	if db.state.txDepth == 0 {
		db.state.autocommit = true
	}
	return nil
}

// Rollback rolls back the open transaction. If the physical connection was
// replaced after the transaction began, the current connection never saw
// the transaction's writes and Rollback fails with ErrTxDisconnected
// instead of silently rolling back nothing.
func (db *DB) Rollback(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return ErrClosed
	}
	if db.state.autocommit || db.state.txDepth == 0 {
		db.state.txDepth = 0 // clamp, never negative
		db.state.autocommit = true
		return ErrTxNotStarted
	}

	if db.state.lastReconnectAt.After(db.state.txStartedAt) {
		return ErrTxDisconnected
	}

	if err := forwardTx(ctx, db.state.physical, "rollback"); err != nil {
		return err
	}

	db.state.txDepth--
	if db.state.txDepth == 0 {
		db.state.autocommit = true
	}
	return nil
}

// forwardTx routes transaction control through the connection's native Tx
// capability when present, and through the generic Call path otherwise.
func forwardTx(ctx context.Context, c conn.Conn, op string) error {
	if tx, ok := c.(conn.Tx); ok {
		switch op {
		case "begin":
			return tx.Begin(ctx)
		case "commit":
			return tx.Commit(ctx)
		case "rollback":
			return tx.Rollback(ctx)
		}
	}
	_, err := c.Call(ctx, op)
	return err
}
