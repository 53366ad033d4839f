// The [safeconn] package is a transparent resiliency layer in front of a
// database connection handle.
//
// A [DB] behaves like a normal connection: you ping it, run statements,
// open transactions, and forward arbitrary named operations. Internally it
// detects when the underlying physical connection has become unusable (a
// dropped socket, a process fork, an ownership handoff between goroutines,
// or an explicit staleness policy) and silently replaces it with a freshly
// established connection before forwarding your operation.
//
// # Physical connections
//
// safeconn manages exactly one physical connection at a time; it is not a
// pool. The physical connection is produced by the connect factory you
// supply in [Config.New] and must satisfy [conn.Conn]. Two adapters ship in
// contrib: a Postgres adapter built on lib/pq (contrib/pgconn) and a
// JSON-RPC-over-WebSocket adapter (contrib/wsconn).
//
// # Reconnection
//
// Before every forwarded operation the proxy validates the physical
// connection: ownership (process and goroutine identity captured at connect
// time), liveness (a cheap ping round trip), and staleness (a caller policy
// and an optional reconnect period). If any check fails, the connection is
// replaced under the retry policy from [Config.Retryer]; the default policy
// permits exactly one attempt.
//
// # Transaction safety
//
// A reconnect is never performed silently underneath an open transaction.
// If one would be required while a transaction is open, the operation fails
// with an error matching [ErrTxViolation], because reconnecting would mean
// the caller believes work is transactionally protected when it is not.
// Rollback after a reconnect that invalidated the transaction fails with
// [ErrTxDisconnected] instead of rolling back a connection that never saw
// the transaction's writes.
//
// # Errors
//
// Every failure category is a distinct sentinel error usable with
// [errors.Is]; see [ErrNoConnectFunc], [ErrTxViolation],
// [ErrRetryExhausted] and friends in errors.go.
package safeconn
