package safeconn

import (
	"time"

	"github.com/tadam/safeconn/internal/ident"
	"github.com/tadam/safeconn/pkg/conn"
)

// State is the mutable record tracking the current physical connection and
// the bookkeeping around it. It is exclusively owned by one DB and mutated
// only under the proxy's lock; staleness policies receive it read-only
// through the accessor methods.
type State struct {
	physical conn.Conn

	// owner is the process/goroutine identity captured at the moment
	// physical was created, never the identity at call time.
	owner ident.Token

	lastConnectedAt time.Time
	lastReconnectAt time.Time
	txStartedAt     time.Time

	lastErr error

	// txDepth counts begin calls not yet matched by commit or rollback.
	// It never goes negative.
	txDepth    int
	autocommit bool

	// noClose marks a physical connection inherited from another process
	// image. Closing it from this side would sever the parent's socket.
	noClose bool

	reconnects int
}

func newState() State {
	return State{autocommit: true}
}

// LastConnectedAt returns the time of the last successful connect.
func (s *State) LastConnectedAt() time.Time { return s.lastConnectedAt }

// LastReconnectAt returns the time of the most recent replacement of the
// physical connection.
func (s *State) LastReconnectAt() time.Time { return s.lastReconnectAt }

// LastErr returns the most recent connection failure, for diagnostics.
func (s *State) LastErr() error { return s.lastErr }

// TxDepth returns the current transaction nesting depth.
func (s *State) TxDepth() int { return s.txDepth }

// Reconnects returns how many times the physical connection has been
// established over the life of the proxy.
func (s *State) Reconnects() int { return s.reconnects }

// Active reports whether a physical connection is currently held.
func (s *State) Active() bool { return s.physical != nil }
