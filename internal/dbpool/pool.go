// Package dbpool maintains a bounded pool of Postgres connections with
// liveness-validated acquisition. Connections that fail validation or
// that a caller marks invalid are closed instead of being returned to
// the pool.
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

var (
	// ErrPoolExhausted is returned by Acquire when every connection up to
	// the configured maximum is already checked out.
	ErrPoolExhausted = errors.New("dbpool: no connections available")

	// ErrPoolUnavailable is returned by AcquireValidated when no attempt
	// produced a live connection.
	ErrPoolUnavailable = errors.New("dbpool: no valid connection")

	// ErrClosed is returned once the pool has been shut down.
	ErrClosed = errors.New("dbpool: pool is closed")
)

// Conn is the connection surface the pool hands out. *pgx.Conn
// implements it; tests substitute fakes.
type Conn interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// DialFunc opens one new connection to the backing store.
type DialFunc func(ctx context.Context) (Conn, error)

// PgxDial returns a DialFunc that connects to the given Postgres URL and
// registers the pgvector types on each new connection.
func PgxDial(connString string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			conn.Close(ctx)
			return nil, fmt.Errorf("registering vector types: %w", err)
		}
		return conn, nil
	}
}

// Config bounds the pool size. MinConns connections are opened eagerly
// at construction; up to MaxConns exist at any point.
type Config struct {
	MinConns int
	MaxConns int
}

// Pool owns a set of reusable connections. A checked-out connection
// belongs to exactly one caller until released.
type Pool struct {
	dial DialFunc
	max  int

	mu     sync.Mutex
	idle   []Conn
	open   int // idle + checked out
	closed bool
}

// New builds a pool and opens cfg.MinConns connections. A dial failure
// during warm-up closes anything already opened and fails construction.
func New(ctx context.Context, cfg Config, dial DialFunc) (*Pool, error) {
	if cfg.MaxConns < 1 {
		return nil, fmt.Errorf("dbpool: max connections must be at least 1, got %d", cfg.MaxConns)
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("dbpool: invalid bounds min=%d max=%d", cfg.MinConns, cfg.MaxConns)
	}

	p := &Pool{dial: dial, max: cfg.MaxConns}
	for i := 0; i < cfg.MinConns; i++ {
		conn, err := dial(ctx)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("warming up pool: %w", err)
		}
		p.idle = append(p.idle, conn)
		p.open++
	}

	slog.Info("connection pool initialized", "min", cfg.MinConns, "max", cfg.MaxConns)
	return p, nil
}

// Acquire checks out a connection, reusing an idle one or dialing a new
// one while under the maximum. It fails fast with ErrPoolExhausted when
// the pool is at capacity.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	if p.open >= p.max {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	// Reserve the slot before dialing so concurrent acquires cannot
	// overshoot the maximum.
	p.open++
	p.mu.Unlock()

	conn, err := p.dial(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		return nil, fmt.Errorf("dialing connection: %w", err)
	}
	return conn, nil
}

// Release returns a checked-out connection. With invalidate set, or
// after the pool has been closed, the connection is closed and its slot
// freed instead.
func (p *Pool) Release(conn Conn, invalidate bool) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if invalidate || p.closed {
		p.open--
		p.mu.Unlock()
		if err := conn.Close(context.Background()); err != nil {
			slog.Warn("closing connection", "error", err)
		}
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// AcquireValidated checks out a connection and probes it with a trivial
// round trip. Dead connections are closed and the acquisition retried,
// up to maxAttempts; after the final failure it returns
// ErrPoolUnavailable wrapping the last cause. Callers never receive a
// connection that failed its probe.
func (p *Pool) AcquireValidated(ctx context.Context, maxAttempts int) (Conn, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := p.Acquire(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil, err
			}
			lastErr = err
			slog.Warn("connection acquisition failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
			continue
		}

		if err := conn.Ping(ctx); err != nil {
			lastErr = err
			slog.Warn("connection validation failed", "attempt", attempt, "max_attempts", maxAttempts, "error", err)
			p.Release(conn, true)
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrPoolUnavailable, maxAttempts, lastErr)
}

// WithConn runs fn with a validated connection, releasing it on every
// path. An error from fn marks the connection invalid so it is not
// reused.
func (p *Pool) WithConn(ctx context.Context, maxAttempts int, fn func(Conn) error) error {
	conn, err := p.AcquireValidated(ctx, maxAttempts)
	if err != nil {
		return err
	}

	err = fn(conn)
	p.Release(conn, err != nil)
	return err
}

// Close shuts the pool down, closing every idle connection. Connections
// still checked out are closed when released. Safe to call more than
// once.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	p.mu.Unlock()

	var firstErr error
	for _, conn := range idle {
		if err := conn.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	slog.Info("connection pool closed")
	return firstErr
}
