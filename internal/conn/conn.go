// Package conn lends exclusive database connections to operations.
//
// A Provider hands out one Lease per operation. Each Lease wraps a single
// *sql.Conn taken from the pool so that statements of one operation never
// interleave with another's, and it must be released on every path.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
	"github.com/shakram02/go-mcp-mssql/internal/config"
	"github.com/shakram02/go-mcp-mssql/internal/dialect"
	"github.com/shakram02/go-mcp-mssql/internal/logging"
)

const (
	ConnectionTimeout = 10 * time.Second
	ConnMaxLifetime   = time.Hour
)

// Provider lends connections. Acquire may block; Release never does.
type Provider interface {
	Acquire(ctx context.Context) (*Lease, error)
	Release(l *Lease)
}

// Lease is one borrowed connection.
type Lease struct {
	conn     *sql.Conn
	dialect  dialect.Dialect
	released atomic.Bool
}

func (l *Lease) Dialect() dialect.Dialect { return l.dialect }

func (l *Lease) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return l.conn.QueryContext(ctx, query, args...)
}

func (l *Lease) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return l.conn.QueryRowContext(ctx, query, args...)
}

func (l *Lease) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return l.conn.ExecContext(ctx, query, args...)
}

// Stats counts leases handed out and returned.
type Stats struct {
	Acquired int64
	Released int64
	InUse    int64
}

// Pool is a Provider backed by a database/sql pool.
type Pool struct {
	db      *sql.DB
	dialect dialect.Dialect

	acquired atomic.Int64
	released atomic.Int64
}

// Open opens and pings a pool for d using dsn.
func Open(ctx context.Context, d dialect.Dialect, dsn string, settings config.Settings) (*Pool, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionError, "failed to open database", maskErr(err))
	}

	db.SetMaxIdleConns(settings.MaxIdleConns)
	db.SetMaxOpenConns(settings.MaxOpenConns)
	db.SetConnMaxLifetime(ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ConnectionError, "failed to connect to database", maskErr(err))
	}
	return New(db, d), nil
}

// New wraps an already opened pool.
func New(db *sql.DB, d dialect.Dialect) *Pool {
	return &Pool{db: db, dialect: d}
}

func (p *Pool) Dialect() dialect.Dialect { return p.dialect }

func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ConnectionError, "failed to acquire connection", maskErr(err))
	}
	p.acquired.Add(1)
	return &Lease{conn: c, dialect: p.dialect}, nil
}

// Release returns l to the pool. Releasing twice is a no-op.
func (p *Pool) Release(l *Lease) {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}
	l.conn.Close()
	p.released.Add(1)
}

func (p *Pool) Stats() Stats {
	a, r := p.acquired.Load(), p.released.Load()
	return Stats{Acquired: a, Released: r, InUse: a - r}
}

// Ping checks connectivity without taking a lease.
func (p *Pool) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()
	if err := p.db.PingContext(pingCtx); err != nil {
		return apperr.Wrap(apperr.ConnectionError, "ping failed", maskErr(err))
	}
	return nil
}

func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// maskErr strips credentials that drivers sometimes echo from the DSN.
func maskErr(err error) error {
	return fmt.Errorf("%s", logging.Mask(err.Error()))
}
