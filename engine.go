package safeconn

import (
	"context"
	"fmt"
	"time"

	"github.com/tadam/safeconn/internal/ident"
	"github.com/tadam/safeconn/pkg/conn"
)

// reconnect triggers, in evaluation order.
const (
	reasonNone          = ""
	reasonNoConnection  = "no connection"
	reasonOwnerChanged  = "owner goroutine changed"
	reasonForked        = "process forked"
	reasonPingFailed    = "ping failed"
	reasonStalePolicy   = "staleness policy"
	reasonPeriodElapsed = "reconnect period elapsed"
)

// ensureConnected guarantees that on return the state holds a usable
// physical connection, or fails loudly. It is called before every forwarded
// operation.
func (db *DB) ensureConnected(ctx context.Context) (conn.Conn, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.ensureConnectedLocked(ctx)
}

func (db *DB) ensureConnectedLocked(ctx context.Context) (conn.Conn, error) {
	if db.closed {
		return nil, ErrClosed
	}

	reason := db.reconnectReason(ctx)
	if reason == reasonNone {
		return db.state.physical, nil
	}

	// Reconnecting silently underneath an open transaction would erase
	// in-flight transactional work; refuse without touching the state.
	if db.state.txDepth > 0 {
		return nil, fmt.Errorf("%w (%s)", ErrTxReconnect, reason)
	}

	return db.reconnectLocked(ctx, reason)
}

// reconnectReason decides whether the current physical connection must be
// replaced and why. As a side effect it marks connections inherited across
// a fork as non-closable, since closing them would sever the parent's
// socket.
func (db *DB) reconnectReason(ctx context.Context) string {
	st := &db.state

	if st.physical == nil {
		return reasonNoConnection
	}

	now := ident.Current()

	// Mark a connection inherited across a fork as non-closable as soon as
	// the pid mismatch is seen, regardless of which trigger wins below. The
	// owner-change check may otherwise pick the reason first and the close
	// would sever the parent's socket.
	if !now.SameProcess(st.owner) {
		st.noClose = true
	}

	if now.GID != st.owner.GID {
		return reasonOwnerChanged
	}
	if !now.SameProcess(st.owner) {
		return reasonForked
	}
	if !isAlive(ctx, st.physical) {
		return reasonPingFailed
	}
	if db.cfg.Stale != nil && db.cfg.Stale(st) {
		return reasonStalePolicy
	}
	if db.cfg.ReconnectPeriod > 0 && time.Since(st.lastConnectedAt) > db.cfg.ReconnectPeriod {
		return reasonPeriodElapsed
	}

	return reasonNone
}

// reconnectLocked drops the current physical connection, if any, and drives
// the retry loop until the factory produces a new one or the retry policy
// gives up.
func (db *DB) reconnectLocked(ctx context.Context, reason string) (conn.Conn, error) {
	st := &db.state

	if prev := st.physical; prev != nil {
		st.physical = nil
		if st.noClose {
			db.cfg.Logger.Debug("safeconn: leaving inherited connection open", "reason", reason)
		} else if err := prev.Close(ctx); err != nil {
			db.cfg.Logger.Warn("safeconn: failed to close stale connection", "error", err)
		}
		st.noClose = false
	}

	st.lastReconnectAt = time.Now()
	db.calls = nil // bindings captured the old connection

	db.cfg.Logger.Info("safeconn: reconnecting", "reason", reason)

	for attempt := 1; ; attempt++ {
		delay, ok := db.cfg.Retryer.NextDelay(attempt-1, st.lastErr)
		if !ok {
			err := fmt.Errorf("%w after %d attempt(s): %w", ErrRetryExhausted, attempt-1, errOrNone(st.lastErr))
			st.lastErr = err
			db.cfg.Logger.Error("safeconn: giving up on reconnect", "attempts", attempt-1, "error", err)
			return nil, err
		}
		if attempt > 1 && delay > 0 {
			time.Sleep(delay)
		}

		c, err := db.cfg.New(ctx)
		if err != nil {
			st.lastErr = err
			db.cfg.Logger.Debug("safeconn: connection attempt failed", "attempt", attempt, "error", err)
			continue
		}

		st.physical = c
		st.owner = ident.Current()
		st.lastConnectedAt = time.Now()
		st.reconnects++
		db.cfg.Retryer.Reset()

		db.cfg.Logger.Info("safeconn: connected", "attempt", attempt, "reconnects", st.reconnects)
		return c, nil
	}
}

// isAlive is the liveness probe: false if the connection reports itself
// invalid or the ping round trip fails. A probe failure is never propagated
// as an error, not even a panic inside the connection's Ping.
func isAlive(ctx context.Context, c conn.Conn) (alive bool) {
	defer func() {
		if recover() != nil {
			alive = false
		}
	}()

	if v, ok := c.(conn.Validator); ok && !v.IsValid() {
		return false
	}
	return c.Ping(ctx) == nil
}

type noneError struct{}

func (noneError) Error() string { return "no connection attempt was made" }

func errOrNone(err error) error {
	if err == nil {
		return noneError{}
	}
	return err
}
