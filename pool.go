package dbrecord

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Pool is a bounded set of reusable physical connections. Checkout and return
// are delegated to database/sql, which keeps the free list consistent under
// concurrent use.
type Pool struct {
	cfg     *Config
	db      *sql.DB
	monitor *ConnectionMonitor

	mu     sync.RWMutex
	closed bool
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

// NewPool opens a pool of cfg.ConnectionLimit connections and verifies it with a ping
func NewPool(ctx context.Context, cfg *Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.clone()

	db, err := sql.Open(cfg.driverName(), cfg.FormatDSN())
	if err != nil {
		return nil, &ConnectionError{Op: "open pool", Err: err}
	}
	db.SetMaxOpenConns(cfg.poolSize())
	db.SetMaxIdleConns(cfg.poolSize())
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Op: "ping pool", Err: err}
	}

	p := &Pool{cfg: cfg, db: db}
	if cfg.MonitorInterval > 0 {
		p.monitor = newConnectionMonitor(db, cfg.Database, time.Duration(cfg.MonitorInterval))
		p.monitor.Start()
	}

	LogDebug("connection pool opened", map[string]interface{}{"size": cfg.poolSize()})
	return p, nil
}

// Get checks a connection out of the pool. The caller returns it with Release.
func (p *Pool) Get(ctx context.Context) (*Connection, error) {
	c := newConnection(p.cfg, p)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Pool) checkout(ctx context.Context) (*sql.Conn, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrConnectionClosed
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Op: "checkout", Err: err}
	}
	return conn, nil
}

// ExecTransaction runs fn on a connection checked out of the pool, or joins the
// transaction already bound to ctx when it belongs to this pool.
func (p *Pool) ExecTransaction(ctx context.Context, fn TxFunc) (*Connection, error) {
	if bound, ok := ConnectionFrom(ctx); ok && bound.pool == p && bound.Depth() > 0 {
		return bound.ExecTransaction(ctx, fn)
	}

	c, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.retire(); cerr != nil {
			LogWarn("failed to release transaction connection", map[string]interface{}{"conn": c.cid, "error": cerr.Error()})
		}
	}()
	return c, c.runTransaction(ctx, fn)
}

// Stats returns the connection pool statistics
func (p *Pool) Stats() PoolStats {
	s := p.db.Stats()
	return PoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
		MaxLifetimeClosed:  s.MaxLifetimeClosed,
	}
}

// Healthy reports the result of the last health check. Without a monitor the
// pool is assumed healthy.
func (p *Pool) Healthy() bool {
	if p.monitor == nil {
		return true
	}
	return p.monitor.Healthy()
}

// Close stops the monitor and closes every idle connection. Connections still
// checked out are closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.monitor.Stop()
	return p.db.Close()
}
