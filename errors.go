package dbrecord

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrRecordNotFound is matched by errors.Is for every RecordNotFoundError
	ErrRecordNotFound = errors.New("dbrecord: E_DB_NO_OBJECT")

	// ErrRollback can be returned from a TxFunc to roll the transaction back
	// without reporting an error to the caller of ExecTransaction.
	ErrRollback = errors.New("dbrecord: rollback requested")

	// ErrStop can be returned from a ForEach callback to end the iteration early.
	ErrStop = errors.New("dbrecord: stop iteration")

	ErrNotConfigured      = errors.New("dbrecord: master connection is not configured, call MasterConfig or SetupPool first")
	ErrConnectionClosed   = errors.New("dbrecord: connection is closed")
	ErrUncommittedChanges = errors.New("dbrecord: object has uncommitted changes before transaction")
	ErrNoLocateValue      = errors.New("dbrecord: record has no locate field value")
	ErrUnsafeSQL          = errors.New("dbrecord: unsafe SQL fragment")

	// ErrTransactionAborted is returned by the outermost ExecTransaction when an
	// inner level rolled back, so the whole transaction was rolled back.
	ErrTransactionAborted = errors.New("dbrecord: transaction rolled back by a nested call")
)

// MySQL server error numbers the package reacts to
const (
	ErCodeDupEntry   uint16 = 1062
	ErCodeParseError uint16 = 1064
	ErCodeLockWait   uint16 = 1205
	ErCodeDeadlock   uint16 = 1213
)

// ConnectionError is returned when a connection cannot be opened, checked out or pinged
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dbrecord: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a failed statement. Code holds the MySQL error number when the
// driver reported one, so constraint violations stay detectable upstream.
type QueryError struct {
	SQL  string
	Code uint16
	Err  error
}

func (e *QueryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("dbrecord: query failed (%d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("dbrecord: query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func newQueryError(sql string, err error) *QueryError {
	qe := &QueryError{SQL: sql, Err: err}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		qe.Code = me.Number
	}
	return qe
}

// IsDuplicateKey reports whether err is a unique constraint violation
func IsDuplicateKey(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe) && qe.Code == ErCodeDupEntry
}

// RecordNotFoundError is returned when a locate or key read matches no row
type RecordNotFoundError struct {
	Table string
	Where string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("dbrecord: E_DB_NO_OBJECT: no row in %s where %s", e.Table, e.Where)
}

func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// InvalidIdentifierError describes a table or column name rejected by the whitelist
type InvalidIdentifierError struct {
	Name   string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("dbrecord: invalid identifier '%s': %s", e.Name, e.Reason)
}

func (e *InvalidIdentifierError) Unwrap() error { return ErrUnsafeSQL }
