package dbrecord

import "context"

// --- Global Functions (operate on the connection resolved by MasterDbh) ---

func Query(ctx context.Context, querySQL string, args ...interface{}) ([]Row, error) {
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return nil, err
	}
	return dbh.Query(ctx, querySQL, args...)
}

func Exec(ctx context.Context, querySQL string, args ...interface{}) (Result, error) {
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return Result{}, err
	}
	return dbh.Exec(ctx, querySQL, args...)
}

// GetRow returns the first row of the result, or an empty Row when there is none
func GetRow(ctx context.Context, querySQL string, args ...interface{}) (Row, error) {
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return nil, err
	}
	return dbh.GetRow(ctx, querySQL, args...)
}

// ExecTransaction runs fn in a transaction started from the connection resolved by
// MasterDbh: inside another transaction it joins it, otherwise it opens a new
// connection unless ReuseConnection is configured.
func ExecTransaction(ctx context.Context, fn TxFunc) (*Connection, error) {
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return nil, err
	}
	return dbh.ExecTransaction(ctx, fn)
}

// Ping checks the connection resolved by MasterDbh
func Ping(ctx context.Context) error {
	_, err := GetRow(ctx, "SELECT 1")
	return err
}
