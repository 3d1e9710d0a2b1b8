package dbrecord

import (
	"context"
	"errors"
	"sort"
)

// Entity is satisfied by a pointer to a struct that embeds Record and declares
// its table with a Table method. Generated entity types satisfy it.
type Entity[T any] interface {
	*T
	Table() *Table
	record() *Record
}

type locateOptions struct {
	forUpdate bool
}

// LocateOption adjusts how Locate reads the row
type LocateOption func(*locateOptions)

// ForUpdate locks the located row until the surrounding transaction ends
func ForUpdate() LocateOption {
	return func(o *locateOptions) { o.forUpdate = true }
}

type newRecordOptions struct {
	noCommit bool
}

// NewRecordOption adjusts NewRecord
type NewRecordOption func(*newRecordOptions)

// NoCommit leaves the new record uncommitted
func NoCommit() NewRecordOption {
	return func(o *newRecordOptions) { o.noCommit = true }
}

// bind 创建实体并绑定到 MasterDbh(ctx)
func bind[T any, PT Entity[T]](ctx context.Context) (PT, *Record, error) {
	p := PT(new(T))
	t := p.Table()
	if t == nil {
		return nil, nil, ErrNotBound
	}
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return nil, nil, err
	}
	r := p.record()
	r.bind(t, dbh)
	return p, r, nil
}

// New returns an empty record with every column set to nil and autocommit off.
// The record stays on the connection MasterDbh(ctx) resolves to.
func New[T any, PT Entity[T]](ctx context.Context) (PT, error) {
	p, r, err := bind[T, PT](ctx)
	if err != nil {
		return nil, err
	}
	if err := r.initEmpty(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Locate reads one row. When by carries the locate field the row is read by it,
// otherwise by the most specific secondary key whose columns are all in by.
// If no key applies the record is empty, as returned by New.
// A missing row is reported as *RecordNotFoundError.
//
//	user, err := dbrecord.Locate[models.User](ctx, dbrecord.Fields{"id": 7})
func Locate[T any, PT Entity[T]](ctx context.Context, by Fields, opts ...LocateOption) (PT, error) {
	var o locateOptions
	for _, opt := range opts {
		opt(&o)
	}

	p, r, err := bind[T, PT](ctx)
	if err != nil {
		return nil, err
	}

	t := r.table
	var cols []string
	if _, ok := by[t.LocateField]; ok {
		cols = []string{t.LocateField}
	} else {
		cols = t.matchKey(by)
	}

	if cols == nil {
		if err := r.initEmpty(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}

	if err := r.read(ctx, cols, by, o.forUpdate); err != nil {
		return nil, err
	}
	return p, nil
}

// TryLocate is Locate that returns (nil, nil) when the row does not exist
func TryLocate[T any, PT Entity[T]](ctx context.Context, by Fields, opts ...LocateOption) (PT, error) {
	p, err := Locate[T, PT](ctx, by, opts...)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return p, err
}

// NewRecord creates a record from fields and commits it, filling in the generated
// locate value. Fields go through the table hooks like any Set.
func NewRecord[T any, PT Entity[T]](ctx context.Context, fields Fields, opts ...NewRecordOption) (PT, error) {
	var o newRecordOptions
	for _, opt := range opts {
		opt(&o)
	}

	p, err := New[T, PT](ctx)
	if err != nil {
		return nil, err
	}
	r := p.record()

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := r.Set(ctx, k, fields[k]); err != nil {
			return nil, err
		}
	}

	if o.noCommit {
		return p, nil
	}
	if err := r.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// TransactionWithMe runs fn in a transaction on MasterDbh(ctx), passing a copy of
// rec re-read on the transaction connection. Afterwards rec is always re-read, so
// it reflects whatever the transaction left behind. rec must have no uncommitted
// changes.
func TransactionWithMe[T any, PT Entity[T]](ctx context.Context, rec PT, fn func(ctx context.Context, me PT) error) error {
	r := rec.record()
	if r.table == nil {
		return ErrNotBound
	}
	if r.IsDirty() {
		return ErrUncommittedChanges
	}

	r.mu.RLock()
	locateVal := r.locateVal
	r.mu.RUnlock()
	if locateVal == nil {
		return ErrNoLocateValue
	}

	dbh, err := MasterDbh(ctx)
	if err != nil {
		return err
	}

	_, txErr := dbh.ExecTransaction(ctx, func(ctx context.Context, _ *Connection) error {
		me, err := Locate[T, PT](ctx, Fields{r.table.LocateField: locateVal})
		if err != nil {
			return err
		}
		return fn(ctx, me)
	})

	// 无论事务结果如何都要重新读取
	if err := rec.record().Reload(ctx); err != nil {
		return errors.Join(txErr, err)
	}
	return txErr
}
