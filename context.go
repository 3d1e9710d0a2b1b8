package dbrecord

import (
	"context"
	"sync"
)

// connectionKey is the context key of the connection bound by a transaction
type connectionKey struct{}

// WithConnection returns a context in which MasterDbh resolves to c
func WithConnection(ctx context.Context, c *Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, c)
}

// ConnectionFrom returns the connection bound to ctx, if any
func ConnectionFrom(ctx context.Context) (*Connection, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(connectionKey{}).(*Connection)
	return c, ok && c != nil
}

// 进程级的主连接及其配置
var master struct {
	mu   sync.Mutex
	cfg  *Config
	pool *Pool
	dbh  *Connection
}

// MasterConfig sets the configuration of the master connection and of the
// direct connections opened for transactions.
func MasterConfig(cfg *Config) {
	master.mu.Lock()
	defer master.mu.Unlock()
	if cfg == nil {
		master.cfg = nil
		return
	}
	master.cfg = cfg.clone()
}

// SetupPool configures the master connection and opens the process-wide pool.
// From then on the master connection and every new transaction connection are
// checked out of the pool. The previous master connection and pool are closed.
func SetupPool(ctx context.Context, cfg *Config) error {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return err
	}

	master.mu.Lock()
	defer master.mu.Unlock()
	if master.dbh != nil {
		_ = master.dbh.Close()
		master.dbh = nil
	}
	if master.pool != nil {
		_ = master.pool.Close()
	}
	master.cfg = pool.cfg
	master.pool = pool
	return nil
}

// MasterDbh returns the connection bound to ctx by a running transaction. Without
// one it returns the process-wide master connection, connecting it on first use.
func MasterDbh(ctx context.Context) (*Connection, error) {
	if c, ok := ConnectionFrom(ctx); ok {
		return c, nil
	}

	master.mu.Lock()
	defer master.mu.Unlock()

	if master.dbh != nil {
		return master.dbh, nil
	}

	var dbh *Connection
	switch {
	case master.pool != nil:
		// 池化的主连接只在语句或事务期间占用物理连接
		c := newConnection(master.pool.cfg, master.pool)
		c.shortHold = true
		dbh = c
	case master.cfg != nil:
		c := newConnection(master.cfg, nil)
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		dbh = c
	default:
		return nil, ErrNotConfigured
	}

	master.dbh = dbh
	LogDebug("master connection created", map[string]interface{}{"conn": dbh.cid, "pooled": dbh.IsPooled()})
	return dbh, nil
}

// MasterPool returns the pool created by SetupPool, or nil
func MasterPool() *Pool {
	master.mu.Lock()
	defer master.mu.Unlock()
	return master.pool
}

// MasterDbhDestroy closes the master connection and the pool. The configuration
// is kept, so the next MasterDbh call connects again.
func MasterDbhDestroy() {
	master.mu.Lock()
	defer master.mu.Unlock()

	if master.dbh != nil {
		if err := master.dbh.Close(); err != nil {
			LogWarn("failed to close master connection", map[string]interface{}{"conn": master.dbh.cid, "error": err.Error()})
		}
		master.dbh = nil
	}
	if master.pool != nil {
		if err := master.pool.Close(); err != nil {
			LogWarn("failed to close pool", map[string]interface{}{"error": err.Error()})
		}
		master.pool = nil
	}
}
