package dbrecord

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ForEachOptions selects and orders the rows visited by ForEach. Total and
// Counter are filled in while iterating and can be read from the callback.
type ForEachOptions struct {
	// Where holds equality filters; a nil value matches NULL.
	Where Fields
	// WhereCond holds raw conditions ("age > ?"), joined with AND.
	WhereCond []string
	// WhereParam holds the parameters of WhereCond, in order.
	WhereParam []interface{}
	// OrderBy is a comma list of columns with optional ASC or DESC.
	OrderBy string
	// Limit is "count" or "offset,count".
	Limit string
	// ForUpdate locks the selected rows until the surrounding transaction ends.
	ForUpdate bool

	Total   int
	Counter int
}

// buildSelect 校验选项并生成只查询主键的 SELECT
func (o *ForEachOptions) buildSelect(t *Table) (string, []interface{}, error) {
	var (
		where []string
		args  []interface{}
	)

	cols := make([]string, 0, len(o.Where))
	for c := range o.Where {
		if err := validateColumn(c); err != nil {
			return "", nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		v := derefPointer(o.Where[c])
		if v == nil {
			where = append(where, quoteIdentifier(c)+" IS NULL")
			continue
		}
		where = append(where, quoteIdentifier(c)+"=?")
		args = append(args, v)
	}

	for _, cond := range o.WhereCond {
		if err := validateSafeSQL(cond); err != nil {
			return "", nil, err
		}
		where = append(where, "("+cond+")")
	}
	args = append(args, o.WhereParam...)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(quoteIdentifier(t.LocateField))
	sb.WriteString(" FROM ")
	sb.WriteString(t.quotedName())
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	if o.OrderBy != "" {
		if err := validateOrderBy(o.OrderBy); err != nil {
			return "", nil, err
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.TrimSpace(o.OrderBy))
	}
	if o.Limit != "" {
		if err := validateLimit(o.Limit); err != nil {
			return "", nil, err
		}
		sb.WriteString(" LIMIT ")
		sb.WriteString(strings.TrimSpace(o.Limit))
	}
	if o.ForUpdate {
		sb.WriteString(" FOR UPDATE")
	}
	return sb.String(), args, nil
}

// ForEach selects the ids of the matching rows once, then locates each record
// and passes it to cb. Returning ErrStop from cb ends the iteration without an
// error. With a nil cb the rows are only counted.
// The number of rows processed is returned.
//
//	n, err := dbrecord.ForEach(ctx, &dbrecord.ForEachOptions{OrderBy: "id DESC"},
//		func(ctx context.Context, u *models.User, o *dbrecord.ForEachOptions) error {
//			return nil
//		})
func ForEach[T any, PT Entity[T]](ctx context.Context, opts *ForEachOptions, cb func(ctx context.Context, rec PT, opts *ForEachOptions) error) (int, error) {
	if opts == nil {
		opts = &ForEachOptions{}
	}

	t := PT(new(T)).Table()
	if t == nil {
		return 0, ErrNotBound
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}

	query, args, err := opts.buildSelect(t)
	if err != nil {
		return 0, err
	}

	dbh, err := MasterDbh(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := dbh.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	opts.Total = len(rows)
	if cb == nil {
		opts.Counter = opts.Total
		return opts.Counter, nil
	}

	opts.Counter = 0
	for _, row := range rows {
		rec, err := Locate[T, PT](ctx, Fields{t.LocateField: row[t.LocateField]})
		if err != nil {
			return opts.Counter, err
		}
		opts.Counter++

		if err := cb(ctx, rec, opts); err != nil {
			if errors.Is(err, ErrStop) {
				return opts.Counter, nil
			}
			return opts.Counter, err
		}
	}
	return opts.Counter, nil
}
