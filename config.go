package safeconn

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tadam/safeconn/pkg/conn"
	"github.com/tadam/safeconn/pkg/logger"
	"github.com/tadam/safeconn/pkg/retry"
)

// Config carries everything needed to construct a DB. It is copied at
// construction time and never consulted for changes afterwards.
type Config struct {
	// New produces a live physical connection or fails. Required.
	//
	// The context passed to it is the context of the operation that
	// triggered the (re)connect.
	New func(ctx context.Context) (conn.Conn, error)

	// Retryer bounds how many connection attempts are made and how long to
	// wait between them. Defaults to retry.Once: exactly one attempt.
	Retryer retry.Retryer

	// Stale decides whether the existing physical connection must be
	// discarded and replaced even though it is still reachable. Optional.
	Stale func(*State) bool

	// ReconnectPeriod forces a reconnect whenever the physical connection
	// is older than this. Zero disables the check. It is evaluated
	// independently of Stale; either trigger alone forces a reconnect.
	ReconnectPeriod time.Duration

	// Logger receives reconnect decisions and failures. Defaults to a
	// text slog logger on stdout.
	Logger logger.Logger
}

// New constructs a DB from cfg. It returns ErrNoConnectFunc when cfg.New is
// missing; no connection attempt is made until the first real use.
func New(cfg Config) (*DB, error) {
	if cfg.New == nil {
		return nil, ErrNoConnectFunc
	}
	if cfg.Retryer == nil {
		cfg.Retryer = retry.Once{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New(slog.NewTextHandler(os.Stdout, nil))
	}
	return &DB{cfg: cfg, state: newState()}, nil
}
