package safeconn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tadam/safeconn/internal/mock"
	"github.com/tadam/safeconn/pkg/conn"
	"github.com/tadam/safeconn/pkg/logger"
	"github.com/tadam/safeconn/pkg/retry"
)

func newTestDB(t *testing.T, mutate func(*Config)) (*DB, *mock.Factory) {
	t.Helper()

	f := &mock.Factory{}
	cfg := Config{
		New:    f.New,
		Logger: logger.Nop{},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	db, err := New(cfg)
	require.NoError(t, err)
	return db, f
}

func mustConn(t *testing.T, db *DB) *mock.Conn {
	t.Helper()
	c, err := db.Conn(context.Background())
	require.NoError(t, err)
	mc, ok := c.(*mock.Conn)
	require.True(t, ok)
	return mc
}

func TestLazyConnect(t *testing.T) {
	db, f := newTestDB(t, nil)

	assert.Equal(t, 0, f.Made(), "no connection before first use")

	c := mustConn(t, db)
	assert.Equal(t, 1, c.Tag)
	assert.Equal(t, 1, f.Made())
}

func TestIdempotentLiveness(t *testing.T) {
	// While the connection stays alive and no staleness policy fires,
	// repeated use returns the identical physical connection instance.
	db, f := newTestDB(t, nil)

	first := mustConn(t, db)
	for i := 0; i < 5; i++ {
		again := mustConn(t, db)
		assert.Same(t, first, again)
	}
	assert.Equal(t, 1, f.Made())
}

func TestPingTriggeredReconnect(t *testing.T) {
	db, f := newTestDB(t, nil)

	first := mustConn(t, db)
	first.FailPing(errors.New("broken pipe"))

	second := mustConn(t, db)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, second.Tag)
	assert.Equal(t, 2, f.Made())
	assert.True(t, first.Closed(), "stale connection must be closed on replacement")
}

func TestForkIsolation(t *testing.T) {
	db, _ := newTestDB(t, nil)

	parent := mustConn(t, db)

	// Simulate running in a forked child: same goroutine, different pid.
	db.mu.Lock()
	db.state.owner.PID++
	db.mu.Unlock()

	child := mustConn(t, db)
	assert.NotSame(t, parent, child)

	// The inherited connection belongs to the parent's process image and
	// must not be closed from the child's side.
	assert.False(t, parent.Closed())

	// Subsequent operations keep the child's connection.
	assert.Same(t, child, mustConn(t, db))
}

func TestForkWithHandoffSkipsClose(t *testing.T) {
	db, _ := newTestDB(t, nil)

	parent := mustConn(t, db)

	// Fork and goroutine handoff at once: both pid and goroutine id
	// differ. The pid mismatch alone decides closability, whichever
	// trigger wins.
	db.mu.Lock()
	db.state.owner.PID++
	db.state.owner.GID++
	db.mu.Unlock()

	child := mustConn(t, db)
	assert.NotSame(t, parent, child)
	assert.False(t, parent.Closed(), "inherited connection must not be closed from the child side")

	// The replacement connection is owned by this process and closes
	// normally on the next swap.
	child.FailPing(errors.New("gone"))
	mustConn(t, db)
	assert.True(t, child.Closed())
}

func TestOwnerChangeTriggersReconnect(t *testing.T) {
	db, _ := newTestDB(t, nil)

	first := mustConn(t, db)

	db.mu.Lock()
	db.state.owner.GID++
	db.mu.Unlock()

	second := mustConn(t, db)
	assert.NotSame(t, first, second)
	assert.True(t, first.Closed(), "same-process handoff closes the old connection")
}

func TestRetryExhaustion(t *testing.T) {
	never := retry.Func(func(int, error) (time.Duration, bool) { return 0, false })
	db, f := newTestDB(t, func(cfg *Config) { cfg.Retryer = never })

	_, err := db.Conn(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, 0, f.Made(), "policy declined before any attempt")

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Error(t, db.state.lastErr)
	assert.Nil(t, db.state.physical)
}

func TestRetryExhaustionCarriesLastError(t *testing.T) {
	connectErr := errors.New("connection refused")
	db, f := newTestDB(t, func(cfg *Config) {
		cfg.Retryer = retry.NewFixedDelayRetryer(0, 3)
	})
	f.Fail(connectErr)

	_, err := db.Conn(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, connectErr)
	assert.Equal(t, 0, f.Made())
}

func TestTransientFailureRecovers(t *testing.T) {
	connectErr := errors.New("connection refused")
	f := &mock.Factory{}
	attempts := 0

	db, err := New(Config{
		New: func(ctx context.Context) (conn.Conn, error) {
			attempts++
			if attempts < 3 {
				return nil, connectErr
			}
			return f.New(ctx)
		},
		Retryer: retry.NewFixedDelayRetryer(0, 5),
		Logger:  logger.Nop{},
	})
	require.NoError(t, err)

	c := mustConn(t, db)
	assert.Equal(t, 1, c.Tag)
	assert.Equal(t, 3, attempts, "two transient failures recovered inside the loop")

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.ErrorIs(t, db.state.lastErr, connectErr)
}

func TestStalenessPolicy(t *testing.T) {
	stale := false
	db, f := newTestDB(t, func(cfg *Config) {
		cfg.Stale = func(*State) bool { return stale }
	})

	first := mustConn(t, db)
	assert.Same(t, first, mustConn(t, db))

	stale = true
	second := mustConn(t, db)
	assert.NotSame(t, first, second)

	stale = false
	assert.Same(t, second, mustConn(t, db))
	assert.Equal(t, 2, f.Made())
}

func TestReconnectPeriod(t *testing.T) {
	db, f := newTestDB(t, func(cfg *Config) {
		cfg.ReconnectPeriod = time.Hour
	})

	first := mustConn(t, db)
	assert.Same(t, first, mustConn(t, db))

	// Age the connection past the period.
	db.mu.Lock()
	db.state.lastConnectedAt = time.Now().Add(-2 * time.Hour)
	db.mu.Unlock()

	second := mustConn(t, db)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, f.Made())
}

func TestStalenessPolicySeesState(t *testing.T) {
	var seen *State
	db, _ := newTestDB(t, func(cfg *Config) {
		cfg.Stale = func(s *State) bool {
			seen = s
			return false
		}
	})

	mustConn(t, db)
	mustConn(t, db)
	require.NotNil(t, seen)
	assert.Equal(t, 1, seen.Reconnects())
	assert.False(t, seen.LastConnectedAt().IsZero())
}

func TestProbePanicMeansDead(t *testing.T) {
	db, f := newTestDB(t, nil)

	mustConn(t, db)

	// Replace the physical connection with one whose Ping panics; the
	// probe must absorb the panic and treat the connection as dead.
	db.mu.Lock()
	db.state.physical = panicConn{}
	db.mu.Unlock()

	c, err := db.Conn(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &mock.Conn{}, c)
	assert.Equal(t, 2, f.Made())
}

type panicConn struct{}

func (panicConn) Ping(context.Context) error { panic("probe blew up") }
func (panicConn) Call(context.Context, string, ...any) (any, error) {
	return nil, conn.ErrNotSupported
}
func (panicConn) Close(context.Context) error { return nil }

func TestCloseReleasesConnection(t *testing.T) {
	db, _ := newTestDB(t, nil)
	c := mustConn(t, db)

	require.NoError(t, db.Close(context.Background()))
	assert.True(t, c.Closed())

	_, err := db.Conn(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, db.Close(context.Background()), ErrClosed)
}

func TestCloseSkipsInheritedConnection(t *testing.T) {
	db, _ := newTestDB(t, nil)
	c := mustConn(t, db)

	db.mu.Lock()
	db.state.noClose = true
	db.mu.Unlock()

	require.NoError(t, db.Close(context.Background()))
	assert.False(t, c.Closed())
}

func TestCallBindingCacheInvalidatedOnReconnect(t *testing.T) {
	db, _ := newTestDB(t, nil)
	ctx := context.Background()

	res, err := db.Call(ctx, "select")
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	// Cached binding must not pin the old connection after a reconnect.
	first := mustConn(t, db)
	first.FailPing(errors.New("gone"))

	res, err = db.Call(ctx, "select")
	require.NoError(t, err)
	assert.Equal(t, 2, res)
}
