/*
Package dbrecord provides a record-oriented data access layer for MySQL.

A table row is mapped to an entity struct that embeds Record. Entities are read by
primary key or by a declared secondary key, changed through typed setters, and written
back with only the changed columns. Transactions nest: inner ExecTransaction calls join
the outermost one, and the active connection travels through context.Context so that
every record operation inside a transaction uses the transactional connection without
passing it around.

Key Features:
  - Ambient connection: MasterDbh returns the connection bound to the context, or a lazily connected process-wide one.
  - Flattened nested transactions with rollback on error, panic or ErrRollback.
  - Optional connection pool shared by the ambient connection and transactions.
  - Dirty tracking, autocommit, secondary key resolution and row locking.
  - ForEach iteration with whitelisted ORDER BY / LIMIT and parameterized filters.
  - Code generation of typed entity structs from a table description.

Basic Usage:

	dbrecord.MasterConfig(&dbrecord.Config{User: "root", Password: "pass", Host: "127.0.0.1:3306", Database: "tests"})
	defer dbrecord.MasterDbhDestroy()

	_, err := dbrecord.ExecTransaction(ctx, func(ctx context.Context, dbh *dbrecord.Connection) error {
		user, err := dbrecord.Locate[models.User](ctx, dbrecord.Fields{"id": 10}, dbrecord.ForUpdate())
		if err != nil {
			return err
		}
		return user.SetName(ctx, "John")
	})

Entities are produced by cmd/dbrecord-gen or GenerateEntity.
*/
package dbrecord
