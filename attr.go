package safeconn

import (
	"context"
	"fmt"
	"strings"

	"github.com/tadam/safeconn/pkg/conn"
)

// Local attribute names. Local attributes are proxy bookkeeping: they are
// read and written on the proxy itself, never forwarded, and survive
// reconnects. Reading one must not trigger a reconnect.
const (
	AttrActive          = "active"
	AttrAutocommit      = "autocommit"
	AttrPrintError      = "print_error"
	AttrRaiseError      = "raise_error"
	AttrLastError       = "last_error"
	AttrReconnectPeriod = "reconnect_period"
	AttrReconnectCount  = "private_reconnect_count"
)

// attrPrivatePrefix marks caller-defined bookkeeping attributes, always
// routed locally.
const attrPrivatePrefix = "private_"

// isLocalAttr classifies an attribute name as Local (proxy bookkeeping) or
// Remote (forwarded to the physical connection).
func isLocalAttr(name string) bool {
	switch name {
	case AttrActive, AttrAutocommit, AttrPrintError, AttrRaiseError,
		AttrLastError, AttrReconnectPeriod:
		return true
	}
	return strings.HasPrefix(name, attrPrivatePrefix)
}

// Attr reads a named attribute. Local attributes are answered from the
// proxy's own state without touching the physical connection; any other
// name ensures a live connection and reads through it.
func (db *DB) Attr(ctx context.Context, name string) (any, error) {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil, ErrClosed
	}

	if isLocalAttr(name) {
		defer db.mu.Unlock()
		return db.localAttrLocked(name), nil
	}

	c, err := db.ensureConnectedLocked(ctx)
	db.mu.Unlock()
	if err != nil {
		return nil, err
	}

	store, ok := c.(conn.AttrStore)
	if !ok {
		return nil, fmt.Errorf("%w: attribute %q", conn.ErrNotSupported, name)
	}
	return store.Attr(ctx, name)
}

// SetAttr writes a named attribute, routed the same way as Attr. Computed
// local attributes are read-only.
func (db *DB) SetAttr(ctx context.Context, name string, value any) error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrClosed
	}

	if isLocalAttr(name) {
		defer db.mu.Unlock()
		return db.setLocalAttrLocked(name, value)
	}

	c, err := db.ensureConnectedLocked(ctx)
	db.mu.Unlock()
	if err != nil {
		return err
	}

	store, ok := c.(conn.AttrStore)
	if !ok {
		return fmt.Errorf("%w: attribute %q", conn.ErrNotSupported, name)
	}
	return store.SetAttr(ctx, name, value)
}

func (db *DB) localAttrLocked(name string) any {
	switch name {
	case AttrActive:
		return db.state.Active()
	case AttrAutocommit:
		return db.state.autocommit
	case AttrLastError:
		return db.state.lastErr
	case AttrReconnectPeriod:
		return db.cfg.ReconnectPeriod
	case AttrReconnectCount:
		return db.state.reconnects
	}
	return db.attrs[name]
}

func (db *DB) setLocalAttrLocked(name string, value any) error {
	switch name {
	case AttrActive, AttrAutocommit, AttrLastError, AttrReconnectPeriod, AttrReconnectCount:
		// autocommit is owned by the transaction tracker, the rest are
		// computed from state or fixed at construction.
		return fmt.Errorf("%w: %q", ErrReadOnlyAttr, name)
	}
	if db.attrs == nil {
		db.attrs = make(map[string]any)
	}
	db.attrs[name] = value
	return nil
}
