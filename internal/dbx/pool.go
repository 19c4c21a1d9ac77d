package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PoolOptions bounds connection usage.
//
// Fields:
//   - MinConns / MaxConns: fixed size of the underlying pgx pool.
//   - AcquireTimeout: how long Run waits for a free connection before failing
//     with common.ErrPoolExhausted.
//   - QueryTimeout: deadline applied to the operation once a connection is held.
//   - SlowThreshold: operations slower than this are logged at warn level (0 disables).
//   - IdleTimeout: idle connections above MinConns are closed after this long.
type PoolOptions struct {
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
	SlowThreshold  time.Duration
	IdleTimeout    time.Duration
}

// Pool is a bounded, reusable connection pool. Every Run holds exactly one
// connection for the duration of the callback.
type Pool struct {
	db     *sql.DB
	pgx    *pgxpool.Pool
	opts   PoolOptions
	logger logging.Logger
}

// OpenPool builds a pgxpool from dsn, exposes it through database/sql and
// validates connectivity.
func OpenPool(ctx context.Context, dsn string, opts PoolOptions, logger logging.Logger) (*Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns >= 0 && opts.MinConns <= pcfg.MaxConns {
		pcfg.MinConns = opts.MinConns
	}
	if opts.IdleTimeout > 0 {
		pcfg.MaxConnIdleTime = opts.IdleTimeout
	}

	pp, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pool init: %w", err)
	}

	db := stdlib.OpenDBFromPool(pp)
	db.SetMaxOpenConns(int(pcfg.MaxConns))

	p := NewPool(db, opts, logger)
	p.pgx = pp

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// NewPool wraps an already opened *sql.DB.
func NewPool(db *sql.DB, opts PoolOptions, logger logging.Logger) *Pool {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 10 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(int(opts.MaxConns))
	}
	return &Pool{db: db, opts: opts, logger: logger}
}

// DB exposes the underlying handle (used by migrations).
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Run acquires a connection, runs fn under the query timeout and releases the
// connection. In-flight work is not interrupted beyond context cancellation.
func (p *Pool) Run(ctx context.Context, op string, fn func(ctx context.Context, q DBTX) error) error {
	conn, err := p.acquire(ctx)
	if err != nil {
		return common.NewStorageError(op, err)
	}
	defer conn.Close()

	qctx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	err = fn(qctx, conn)
	elapsed := time.Since(start)

	if p.opts.SlowThreshold > 0 && elapsed > p.opts.SlowThreshold {
		p.logger.Warn(ctx, "slow store operation", "op", op, "duration", elapsed)
	}
	return err
}

func (p *Pool) acquire(ctx context.Context) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(actx)
	if err == nil {
		return conn, nil
	}
	// Only our own acquire deadline means exhaustion; a cancelled caller is not.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%w after %s: %w", common.ErrPoolExhausted, p.opts.AcquireTimeout, err)
	}
	return nil, err
}

// Ping checks that a connection can be acquired and used.
func (p *Pool) Ping(ctx context.Context) error {
	return p.Run(ctx, "dbx.Ping", func(ctx context.Context, q DBTX) error {
		var one int
		if err := q.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return common.NewStorageError("dbx.Ping", err)
		}
		return nil
	})
}

// Close shuts the pool down. It is safe to call more than once.
func (p *Pool) Close() {
	if p.db != nil {
		_ = p.db.Close()
	}
	if p.pgx != nil {
		p.pgx.Close()
	}
}
