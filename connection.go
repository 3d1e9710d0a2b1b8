package dbrecord

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TxFunc is the body of a transaction. ctx carries the transactional connection,
// so every record operation made with it runs inside the transaction.
// Returning ErrRollback rolls back without an error; any other error rolls back and
// is returned by ExecTransaction unchanged.
type TxFunc func(ctx context.Context, dbh *Connection) error

// executor is implemented by both *sql.Conn and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Connection owns one physical database connection and the nesting depth of the
// transaction running on it. Statements on one Connection are serialized.
//
// A Connection whose physical connection was released or destroyed stays usable:
// the next statement connects it again. The exception is the connection returned
// by ExecTransaction when it was opened for that transaction: it is retired when
// the transaction ends and every later statement fails with ErrConnectionClosed.
//
// The pooled master connection holds its physical connection only for the
// duration of a statement or a transaction, so it never pins a pool slot while
// idle.
type Connection struct {
	cid  string
	cfg  *Config
	pool *Pool   // nil 表示直连
	db   *sql.DB // 直连独占的 *sql.DB

	mu           sync.Mutex
	conn         *sql.Conn
	tx           *sql.Tx
	depth        int
	rollbackOnly bool
	shortHold    bool // 空闲时归还物理连接（池化的主连接）
	retired      bool
}

func newConnection(cfg *Config, pool *Pool) *Connection {
	return &Connection{
		cid:  uuid.NewString(),
		cfg:  cfg,
		pool: pool,
	}
}

// NewConnection creates a direct (non pooled) connection. It is not connected
// until Connect or the first statement.
func NewConnection(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newConnection(cfg.clone(), nil), nil
}

// CID returns the unique id of this connection
func (c *Connection) CID() string { return c.cid }

// IsPooled reports whether the connection was checked out of a Pool
func (c *Connection) IsPooled() bool { return c.pool != nil }

// Config returns the configuration the connection was created with
func (c *Connection) Config() *Config { return c.cfg }

// Depth returns the current transaction nesting depth
func (c *Connection) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// Connect establishes the physical connection. It is a no-op when already connected.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Connection) connectLocked(ctx context.Context) error {
	if c.retired {
		return ErrConnectionClosed
	}
	if c.conn != nil {
		return nil
	}

	if c.pool != nil {
		conn, err := c.pool.checkout(ctx)
		if err != nil {
			return err
		}
		c.conn = conn
		return nil
	}

	db, err := sql.Open(c.cfg.driverName(), c.cfg.FormatDSN())
	if err != nil {
		return &ConnectionError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return &ConnectionError{Op: "connect", Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return &ConnectionError{Op: "ping", Err: err}
	}

	c.db, c.conn = db, conn
	LogDebug("connection opened", map[string]interface{}{"conn": c.cid})
	return nil
}

// releaseIdleLocked 短持有模式下，事务之外的语句结束后把物理连接还给池
func (c *Connection) releaseIdleLocked() {
	if !c.shortHold || c.tx != nil || c.depth > 0 || c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		LogWarn("failed to return connection to pool", map[string]interface{}{"conn": c.cid, "error": err.Error()})
	}
	c.conn = nil
}

// retire closes a connection opened for one transaction; it cannot reconnect
func (c *Connection) retire() error {
	err := c.close(false)
	c.mu.Lock()
	c.retired = true
	c.mu.Unlock()
	return err
}

func (c *Connection) executorLocked(ctx context.Context) (executor, error) {
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	if c.tx != nil {
		return c.tx, nil
	}
	return c.conn, nil
}

func (c *Connection) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, time.Duration(c.cfg.QueryTimeout))
	}
	return ctx, func() {}
}

// logTrace 记录语句执行情况：失败总是记录，成功只在 DebugSQL 或调试模式下记录
func (c *Connection) logTrace(start time.Time, sql string, args []interface{}, err error) {
	duration := time.Since(start)
	if err != nil {
		LogSQLError(c.cid, sql, args, duration, err)
		return
	}
	if c.cfg.DebugSQL || IsDebugEnabled() {
		LogSQL(c.cid, sql, args, duration)
	}
}

// Query runs a parameterized statement returning rows and reads all of them
func (c *Connection) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseIdleLocked()

	ex, err := c.executorLocked(ctx)
	if err != nil {
		return nil, err
	}
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	rows, err := ex.QueryContext(qctx, query, args...)
	if err != nil {
		c.logTrace(start, query, args, err)
		return nil, newQueryError(query, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	c.logTrace(start, query, args, err)
	if err != nil {
		return nil, newQueryError(query, err)
	}
	return result, nil
}

// Exec runs a parameterized statement that returns no rows
func (c *Connection) Exec(ctx context.Context, query string, args ...interface{}) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseIdleLocked()

	ex, err := c.executorLocked(ctx)
	if err != nil {
		return Result{}, err
	}
	qctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := ex.ExecContext(qctx, query, args...)
	c.logTrace(start, query, args, err)
	if err != nil {
		return Result{}, newQueryError(query, err)
	}

	var out Result
	// 部分驱动不支持其中一项，忽略该错误
	out.LastInsertID, _ = res.LastInsertId()
	out.RowsAffected, _ = res.RowsAffected()
	return out, nil
}

// GetRow returns the first row of the result, or an empty Row when there is none
func (c *Connection) GetRow(ctx context.Context, query string, args ...interface{}) (Row, error) {
	rows, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return Row{}, nil
	}
	return rows[0], nil
}

// ExecTransaction runs fn inside a transaction.
//
// When the receiver is already inside a transaction, or its config asks for
// ReuseConnection, fn runs on the receiver and nesting is flattened: only the
// outermost call begins and commits. Otherwise a new connection is taken from the
// pool (or opened directly) and released after fn returns.
//
// The transactional connection is returned for inspection. When it was opened for
// this call it is already retired: statements on it fail with ErrConnectionClosed.
func (c *Connection) ExecTransaction(ctx context.Context, fn TxFunc) (dbh *Connection, err error) {
	c.mu.Lock()
	retired := c.retired
	c.mu.Unlock()
	if retired {
		return nil, ErrConnectionClosed
	}

	dbh = c
	if c.Depth() == 0 && !c.cfg.ReuseConnection {
		dbh, err = c.spawn(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := dbh.retire(); cerr != nil {
				LogWarn("failed to release transaction connection", map[string]interface{}{"conn": dbh.cid, "error": cerr.Error()})
			}
		}()
	}
	return dbh, dbh.runTransaction(ctx, fn)
}

// runTransaction 在当前连接上执行一层（可能是嵌套的）事务
func (c *Connection) runTransaction(ctx context.Context, fn TxFunc) error {
	if err := c.begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := c.end(false); rbErr != nil {
				LogError("rollback after panic failed", map[string]interface{}{"conn": c.cid, "error": rbErr.Error()})
			}
			LogError("transaction panicked, rolled back", map[string]interface{}{"conn": c.cid, "panic": p})
			panic(p)
		}
	}()

	fnErr := fn(WithConnection(ctx, c), c)
	switch {
	case fnErr == nil:
		return c.end(true)
	case errors.Is(fnErr, ErrRollback):
		return c.end(false)
	default:
		if rbErr := c.end(false); rbErr != nil {
			LogError("rollback failed", map[string]interface{}{"conn": c.cid, "error": rbErr.Error()})
		}
		return fnErr
	}
}

// spawn 为新事务准备连接：池化连接从池中取，直连则新建
func (c *Connection) spawn(ctx context.Context) (*Connection, error) {
	if c.pool != nil {
		return c.pool.Get(ctx)
	}
	n := newConnection(c.cfg, nil)
	if err := n.Connect(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

func (c *Connection) begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.depth++
	if c.depth > 1 {
		return nil
	}

	if err := c.connectLocked(ctx); err != nil {
		c.depth--
		return err
	}

	start := time.Now()
	tx, err := c.conn.BeginTx(ctx, nil)
	c.logTrace(start, "START TRANSACTION", nil, err)
	if err != nil {
		c.depth--
		c.releaseIdleLocked()
		return newQueryError("START TRANSACTION", err)
	}
	c.tx = tx
	c.rollbackOnly = false
	return nil
}

// end 退出一层事务；只有最外层才真正提交或回滚
func (c *Connection) end(commit bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.depth == 0 {
		return nil
	}
	if !commit {
		c.rollbackOnly = true
	}
	c.depth--
	if c.depth > 0 {
		return nil
	}

	tx := c.tx
	c.tx = nil
	aborted := c.rollbackOnly
	c.rollbackOnly = false
	if tx == nil {
		return nil
	}
	defer c.releaseIdleLocked()

	start := time.Now()
	if aborted {
		err := tx.Rollback()
		c.logTrace(start, "ROLLBACK", nil, err)
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			return newQueryError("ROLLBACK", err)
		}
		if commit {
			return ErrTransactionAborted
		}
		return nil
	}

	err := tx.Commit()
	c.logTrace(start, "COMMIT", nil, err)
	if err != nil {
		return newQueryError("COMMIT", err)
	}
	return nil
}

// Release returns a pooled connection to its pool. A direct connection has no
// pool and is destroyed.
func (c *Connection) Release() error {
	return c.close(false)
}

// Destroy closes the physical connection. A pooled connection is discarded
// instead of being returned to the pool.
func (c *Connection) Destroy() error {
	return c.close(true)
}

// Close releases pooled connections and destroys direct ones
func (c *Connection) Close() error {
	return c.close(false)
}

func (c *Connection) close(discard bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx != nil {
		// 释放时仍有未结束的事务，直接回滚
		start := time.Now()
		err := c.tx.Rollback()
		c.logTrace(start, "ROLLBACK", nil, err)
		c.tx = nil
		c.depth = 0
		c.rollbackOnly = false
	}

	var err error
	if c.conn != nil {
		if discard && c.pool != nil {
			// 返回 ErrBadConn 使 database/sql 丢弃该物理连接而不是放回池中
			_ = c.conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		}
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = cerr
		}
		c.conn = nil
	}
	if c.db != nil {
		if cerr := c.db.Close(); err == nil {
			err = cerr
		}
		c.db = nil
	}
	return err
}
