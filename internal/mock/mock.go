// Package mock provides a hand-written fake physical connection for tests.
package mock

import (
	"context"
	"sync"

	"github.com/tadam/safeconn/pkg/conn"
)

// Conn is a fake physical connection. Each Conn carries the Tag its factory
// stamped on it, so tests can tell whether a reconnect swapped the physical
// connection underneath the proxy.
type Conn struct {
	Tag int

	mu      sync.Mutex
	pingErr error
	closed  bool
	calls   []string
	attrs   map[string]any
}

var _ conn.Conn = (*Conn)(nil)
var _ conn.Tx = (*Conn)(nil)
var _ conn.AttrStore = (*Conn)(nil)

// FailPing makes every subsequent Ping return err (nil restores health).
func (c *Conn) FailPing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Calls returns the method names forwarded to this connection, in order.
func (c *Conn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Conn) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, method)
}

func (c *Conn) Ping(ctx context.Context) error {
	c.record("ping")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

func (c *Conn) Call(ctx context.Context, method string, args ...any) (any, error) {
	c.record(method)
	if method == "query" {
		// No result set to return.
		return nil, nil
	}
	return c.Tag, nil
}

func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) Begin(ctx context.Context) error {
	c.record("begin")
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	c.record("commit")
	return nil
}

func (c *Conn) Rollback(ctx context.Context) error {
	c.record("rollback")
	return nil
}

func (c *Conn) Attr(ctx context.Context, name string) (any, error) {
	c.record("attr:" + name)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attrs[name], nil
}

func (c *Conn) SetAttr(ctx context.Context, name string, value any) error {
	c.record("setattr:" + name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attrs == nil {
		c.attrs = make(map[string]any)
	}
	c.attrs[name] = value
	return nil
}

// Factory produces counter-tagged Conns: the first connection gets Tag 1,
// the second Tag 2, and so on. Set Err to make attempts fail.
type Factory struct {
	mu    sync.Mutex
	n     int
	err   error
	conns []*Conn
}

// New is the connect function handed to the proxy configuration.
func (f *Factory) New(ctx context.Context) (conn.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.n++
	c := &Conn{Tag: f.n}
	f.conns = append(f.conns, c)
	return c, nil
}

// Fail makes every subsequent connection attempt return err (nil restores).
func (f *Factory) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Made returns how many connections the factory has produced.
func (f *Factory) Made() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// Conns returns every connection produced so far.
func (f *Factory) Conns() []*Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Conn, len(f.conns))
	copy(out, f.conns)
	return out
}
