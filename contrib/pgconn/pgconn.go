// Package pgconn adapts a driver-level Postgres connection to the safeconn
// capability interfaces, using github.com/lib/pq.
//
// It is the "connect by connection string" construction path: Factory turns
// a DSN into a connect function suitable for safeconn.Config.New, managing
// one physical driver.Conn per logical proxy.
package pgconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tadam/safeconn/pkg/conn"
)

// Factory returns a connect function producing one live Postgres connection
// per call. The dsn accepts both URL ("postgres://...") and key=value forms,
// as understood by lib/pq.
func Factory(dsn string) (func(ctx context.Context) (conn.Conn, error), error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgconn: invalid dsn: %w", err)
	}
	return FromConnector(connector), nil
}

// FromConnector wraps any database/sql/driver.Connector. Use it to plug in
// drivers other than lib/pq, or a pq connector with a custom dialer.
func FromConnector(connector driver.Connector) func(ctx context.Context) (conn.Conn, error) {
	return func(ctx context.Context) (conn.Conn, error) {
		dc, err := connector.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return &Conn{dc: dc}, nil
	}
}

// Conn is a physical connection backed by a single driver.Conn.
type Conn struct {
	dc driver.Conn
	tx driver.Tx
}

var _ conn.Conn = (*Conn)(nil)
var _ conn.Execer = (*Conn)(nil)
var _ conn.Queryer = (*Conn)(nil)
var _ conn.Tx = (*Conn)(nil)
var _ conn.Validator = (*Conn)(nil)

// Driver returns the wrapped driver connection for callers that need the
// raw handle.
func (c *Conn) Driver() driver.Conn { return c.dc }

func (c *Conn) Ping(ctx context.Context) error {
	p, ok := c.dc.(driver.Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func (c *Conn) IsValid() bool {
	if v, ok := c.dc.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *Conn) Close(ctx context.Context) error {
	return c.dc.Close()
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ex, ok := c.dc.(driver.ExecerContext)
	if !ok {
		return 0, fmt.Errorf("%w: exec", conn.ErrNotSupported)
	}
	nvs, err := namedValues(args)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, query, nvs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (conn.Rows, error) {
	q, ok := c.dc.(driver.QueryerContext)
	if !ok {
		return nil, fmt.Errorf("%w: query", conn.ErrNotSupported)
	}
	nvs, err := namedValues(args)
	if err != nil {
		return nil, err
	}
	dr, err := q.QueryContext(ctx, query, nvs)
	if err != nil {
		return nil, err
	}
	return &rows{dr: dr}, nil
}

func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errors.New("pgconn: transaction already open")
	}
	bt, ok := c.dc.(driver.ConnBeginTx)
	if !ok {
		return fmt.Errorf("%w: begin", conn.ErrNotSupported)
	}
	tx, err := bt.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		return err
	}
	c.tx = tx
	return nil
}

func (c *Conn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("pgconn: no transaction open")
	}
	err := c.tx.Commit()
	c.tx = nil
	return err
}

func (c *Conn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return errors.New("pgconn: no transaction open")
	}
	err := c.tx.Rollback()
	c.tx = nil
	return err
}

// Call routes the generic operation names to their typed counterparts.
func (c *Conn) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case "ping":
		return nil, c.Ping(ctx)
	case "exec":
		query, rest, err := queryArg(method, args)
		if err != nil {
			return nil, err
		}
		return c.Exec(ctx, query, rest...)
	case "query":
		query, rest, err := queryArg(method, args)
		if err != nil {
			return nil, err
		}
		return c.Query(ctx, query, rest...)
	case "begin":
		return nil, c.Begin(ctx)
	case "commit":
		return nil, c.Commit(ctx)
	case "rollback":
		return nil, c.Rollback(ctx)
	}
	return nil, fmt.Errorf("%w: %q", conn.ErrNotSupported, method)
}

func queryArg(method string, args []any) (string, []any, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("pgconn: %s requires a query argument", method)
	}
	query, ok := args[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("pgconn: %s requires a string query, got %T", method, args[0])
	}
	return query, args[1:], nil
}

func namedValues(args []any) ([]driver.NamedValue, error) {
	nvs := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(arg)
		if err != nil {
			return nil, fmt.Errorf("pgconn: argument %d: %w", i+1, err)
		}
		nvs[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return nvs, nil
}

// rows adapts driver.Rows to conn.Rows.
type rows struct {
	dr driver.Rows
}

func (r *rows) Columns() []string { return r.dr.Columns() }

func (r *rows) Next(dest []any) error {
	vals := make([]driver.Value, len(dest))
	if err := r.dr.Next(vals); err != nil {
		return err
	}
	for i, v := range vals {
		dest[i] = v
	}
	return nil
}

func (r *rows) Close() error { return r.dr.Close() }
