// Package provider defines the contract every database engine adapter
// implements (spec.md §4.1), plus the transient-error classification the
// Deployment Executor's retry policy (spec.md §4.6) consults. Grounded on
// core/provider.go's narrow, fixed-method interface discipline (that file's
// Provider interface is pinned at exactly four methods "to maintain the
// 4-method RPC pattern"); Adapter follows the same instinct, sized to what
// the differ/executor actually call rather than the plugin RPC surface the
// teacher's Provider exists to cross.
package provider

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Adapter is what the differ, planner, emitter, and executor need from one
// connected database engine: introspect its current structure, execute
// emitted SQL, and classify its own transient errors for the retry policy.
type Adapter interface {
	// Provider identifies which of the five engines this adapter is.
	Provider() schema.Provider

	// Connect establishes the underlying connection pool. Config is
	// engine-specific (DSN/host/port/credentials); Adapters build their
	// own connection string from it.
	Connect(ctx context.Context) error

	// Close releases the connection pool.
	Close() error

	// Ping verifies connectivity (spec.md §4.6 prerequisite validation:
	// "connection test").
	Ping(ctx context.Context) error

	// Introspect walks the connected database and returns its current
	// structure as a DatabaseSchema.
	Introspect(ctx context.Context) (*schema.DatabaseSchema, error)

	// Execute runs one forward or rollback SQL statement outside any
	// transaction (autocommit). Used for phases the executor decides
	// don't need transaction scoping (spec.md §4.6 step 3c).
	Execute(ctx context.Context, stmt string) error

	// Query runs a parameterized SELECT under the same retry policy as
	// Execute (spec.md §4.1: "Query(sql, config) → result set... same
	// retry policy"). Callers must close the returned *sql.Rows.
	Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error)

	// Begin opens a transaction scoping the statements of one phase
	// (spec.md §4.6 step 3c/3e: "own transaction" per phase and per
	// rollback sweep entry).
	Begin(ctx context.Context) (Tx, error)

	// ReservedWords reports whether name collides with this engine's
	// reserved-word list, case-insensitively (consumed by the differ's
	// naming-validation rule).
	ReservedWords(name string) bool

	// IsTransient classifies an error returned by Execute/Introspect as
	// retryable (spec.md §4.6's linear-backoff retry policy only retries
	// transient errors: deadlocks, lock timeouts, resource-pool/memory
	// pressure — never constraint violations or syntax errors).
	IsTransient(err error) bool
}

// Tx is one phase's transaction scope, opened by Adapter.Begin.
type Tx interface {
	Execute(ctx context.Context, stmt string) error
	Commit() error
	Rollback() error
}

// SQLTx adapts a *sql.Tx to the Tx interface. Every concrete adapter's
// Begin returns one of these; it exists here, once, so the five adapters
// don't each redefine the same three-method wrapper.
type SQLTx struct {
	Underlying *sql.Tx
}

func (t *SQLTx) Execute(ctx context.Context, stmt string) error {
	_, err := t.Underlying.ExecContext(ctx, stmt)
	return err
}

func (t *SQLTx) Commit() error   { return t.Underlying.Commit() }
func (t *SQLTx) Rollback() error { return t.Underlying.Rollback() }

// transientBySubstring is the shared fallback classifier for PostgreSQL and
// MySQL (spec.md §4.6): neither driver exposes a single sentinel error type
// for deadlocks/lock-timeouts the way SQL Server's error-number codes do, so
// matching against the driver's message text is the only portable option.
func transientBySubstring(err error, substrings ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range substrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// TransientSubstringsPostgres is PostgreSQL's transient-error vocabulary:
// 40P01 (deadlock_detected), 40001 (serialization_failure), and the
// connection-exception class's message text.
var TransientSubstringsPostgres = []string{
	"deadlock detected",
	"could not serialize access",
	"connection reset",
	"connection refused",
}

// TransientSubstringsMySQL covers InnoDB's deadlock/lock-wait-timeout
// errors (1213, 1205) by message text, since go-sql-driver/mysql doesn't
// surface the numeric code as a typed field on every wire version.
var TransientSubstringsMySQL = []string{
	"deadlock found",
	"lock wait timeout exceeded",
	"try restarting transaction",
}

// IsTransientPostgres/IsTransientMySQL are exported so the executor's retry
// wrapper (and tests) can classify errors without importing a specific
// adapter package.
func IsTransientPostgres(err error) bool { return transientBySubstring(err, TransientSubstringsPostgres...) }
func IsTransientMySQL(err error) bool    { return transientBySubstring(err, TransientSubstringsMySQL...) }

// SQLServerTransientErrorNumbers are the error-number codes spec.md §4.6
// names explicitly: 1205 (deadlock victim), 1222 (lock request timeout),
// 8645 (resource pool timeout), 8651 (low memory condition).
var SQLServerTransientErrorNumbers = map[int32]bool{
	1205: true,
	1222: true,
	8645: true,
	8651: true,
}

// RetryPolicy is the linear-backoff retry spec.md's retry policy applies
// uniformly to connection creation, Ping, Execute, and Query: up to
// Attempts tries, sleeping Interval*attempt between each failed attempt
// that IsTransient still classifies as worth retrying.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// Do runs fn up to p.Attempts times, returning the number of attempts
// made and the final error (nil on success). onRetry, when non-nil, is
// called once after each failed-but-retried attempt (attempt numbers
// start at 1) so callers can log the interim failure before sleeping.
func (p RetryPolicy) Do(ctx context.Context, isTransient func(error) bool, onRetry func(attempt int, err error), fn func(context.Context) error) (attempts int, err error) {
	n := p.Attempts
	if n < 1 {
		n = 1
	}
	for attempt := 1; attempt <= n; attempt++ {
		attempts = attempt
		err = fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempt == n || isTransient == nil || !isTransient(err) {
			return attempts, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		delay := p.Interval * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
			timer.Stop()
		}
	}
	return attempts, err
}
