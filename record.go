package dbrecord

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fields maps column names to values, used to locate records and to fill new ones
type Fields map[string]interface{}

// ErrNotBound is returned by Record methods called on a record that was not
// created through New, Locate, TryLocate or NewRecord.
var ErrNotBound = errors.New("dbrecord: record is not bound to a table")

// Record is the base of every entity. It is embedded by value in generated entity
// structs and holds the raw column values, the set of changed columns and the
// connection the record was created on.
//
// columns 保留数据库返回的原始列名，lowerKeyMap 用于大小写不敏感的查找
type Record struct {
	table       *Table
	dbh         *Connection
	columns     map[string]interface{}
	lowerKeyMap map[string]string
	keys        []string

	changes    []string        // 按首次修改顺序
	changed    map[string]bool // 与 changes 对应
	autocommit bool
	stored     bool        // 行已存在于数据库（读取或插入成功）
	locateVal  interface{} // 用于 UPDATE/DELETE 的主键值

	mu sync.RWMutex
}

func (r *Record) record() *Record { return r }

// bind 初始化记录并绑定到当前连接
func (r *Record) bind(t *Table, dbh *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = t
	r.dbh = dbh
	r.columns = make(map[string]interface{})
	r.lowerKeyMap = make(map[string]string)
	r.keys = nil
	r.changes = nil
	r.changed = make(map[string]bool)
	r.autocommit = false
	r.stored = false
	r.locateVal = nil
}

// initEmpty fills the raw values with every column of the table set to nil
func (r *Record) initEmpty(ctx context.Context) error {
	cols, err := r.dbh.Describe(ctx, r.table.Name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cols {
		r.setDirect(c.Name, nil)
	}
	r.autocommit = false
	return nil
}

// read 按给定列读取一行，成功后打开自动提交
func (r *Record) read(ctx context.Context, cols []string, by Fields, forUpdate bool) error {
	where := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		where[i] = quoteIdentifier(c) + "=?"
		args[i] = by[c]
	}

	query := "SELECT * FROM " + r.table.quotedName() + " WHERE " + strings.Join(where, " AND ") + " LIMIT 1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := r.dbh.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &RecordNotFoundError{Table: r.table.Name, Where: describeWhere(cols, args)}
	}
	r.load(rows[0])
	return nil
}

func (r *Record) load(row Row) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.columns = make(map[string]interface{}, len(row))
	r.lowerKeyMap = make(map[string]string, len(row))
	r.keys = nil
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		r.setDirect(k, row[k])
	}

	r.changes = nil
	r.changed = make(map[string]bool)
	r.stored = true
	r.locateVal = r.getLocked(r.table.LocateField)
	r.autocommit = true
}

func describeWhere(cols []string, args []interface{}) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=%v", c, args[i])
	}
	return strings.Join(parts, " AND ")
}

// setDirect 直接设置列值，调用方持有写锁
func (r *Record) setDirect(column string, value interface{}) {
	lowerKey := strings.ToLower(column)
	if existing, ok := r.lowerKeyMap[lowerKey]; ok {
		r.columns[existing] = value
		return
	}
	r.columns[column] = value
	r.lowerKeyMap[lowerKey] = column
	r.keys = append(r.keys, column)
}

func (r *Record) getLocked(column string) interface{} {
	if actual, ok := r.lowerKeyMap[strings.ToLower(column)]; ok {
		return r.columns[actual]
	}
	return nil
}

// Get returns the current value of column, nil when it is NULL or unknown
func (r *Record) Get(column string) interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(column)
}

// Has reports whether the record carries column
func (r *Record) Has(column string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.lowerKeyMap[strings.ToLower(column)]
	return ok
}

// IsNull reports whether column is NULL or unknown
func (r *Record) IsNull(column string) bool {
	return r.Get(column) == nil
}

func (r *Record) GetString(column string) string {
	return Convert.ToString(r.Get(column))
}

func (r *Record) GetInt64(column string) int64 {
	return Convert.ToInt64(r.Get(column))
}

func (r *Record) GetFloat64(column string) float64 {
	return Convert.ToFloat64(r.Get(column))
}

func (r *Record) GetBool(column string) bool {
	return Convert.ToBool(r.Get(column))
}

func (r *Record) GetTime(column string) time.Time {
	return Convert.ToTime(r.Get(column))
}

// GetStringPtr returns nil for NULL
func (r *Record) GetStringPtr(column string) *string {
	v := r.Get(column)
	if v == nil {
		return nil
	}
	s := Convert.ToString(v)
	return &s
}

// GetInt64Ptr returns nil for NULL
func (r *Record) GetInt64Ptr(column string) *int64 {
	v := r.Get(column)
	if v == nil {
		return nil
	}
	n := Convert.ToInt64(v)
	return &n
}

// GetFloat64Ptr returns nil for NULL
func (r *Record) GetFloat64Ptr(column string) *float64 {
	v := r.Get(column)
	if v == nil {
		return nil
	}
	f := Convert.ToFloat64(v)
	return &f
}

// GetBoolPtr returns nil for NULL
func (r *Record) GetBoolPtr(column string) *bool {
	v := r.Get(column)
	if v == nil {
		return nil
	}
	b := Convert.ToBool(v)
	return &b
}

// GetTimePtr returns nil for NULL
func (r *Record) GetTimePtr(column string) *time.Time {
	v := r.Get(column)
	if v == nil {
		return nil
	}
	t := Convert.ToTime(v)
	return &t
}

// Set stores value for column and marks it changed. A nil value (or nil pointer)
// writes SQL NULL. The table's hooks run first and may replace or reject the value.
// With autocommit on, the change is committed immediately.
func (r *Record) Set(ctx context.Context, column string, value interface{}) error {
	if r.table == nil {
		return ErrNotBound
	}
	if err := validateColumn(column); err != nil {
		return err
	}

	value = derefPointer(value)
	for _, hook := range r.table.Hooks {
		v, err := hook(column, value)
		if err != nil {
			return err
		}
		value = v
	}

	r.mu.Lock()
	r.setDirect(column, value)
	key := r.lowerKeyMap[strings.ToLower(column)]
	if !r.changed[key] {
		r.changed[key] = true
		r.changes = append(r.changes, key)
	}
	auto := r.autocommit
	r.mu.Unlock()

	if auto {
		return r.Commit(ctx)
	}
	return nil
}

// Autocommit switches autocommit. Turning it on first commits pending changes.
func (r *Record) Autocommit(ctx context.Context, on bool) error {
	if r.table == nil {
		return ErrNotBound
	}
	r.mu.RLock()
	was := r.autocommit
	r.mu.RUnlock()

	if on && !was {
		if err := r.Commit(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.autocommit = on
	r.mu.Unlock()
	return nil
}

// IsAutocommit reports whether changes are committed as they are set
func (r *Record) IsAutocommit() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.autocommit
}

// Commit writes the changed columns. A record that has never been stored is
// inserted and receives the generated id; a stored one is updated by its locate
// field. The changed set is cleared only when the statement succeeds.
func (r *Record) Commit(ctx context.Context) error {
	if r.table == nil {
		return ErrNotBound
	}

	r.mu.RLock()
	changes := append([]string(nil), r.changes...)
	values := make([]interface{}, len(changes))
	for i, c := range changes {
		values[i] = r.columns[c]
	}
	stored := r.stored
	locateVal := r.locateVal
	r.mu.RUnlock()

	if len(changes) == 0 {
		return nil
	}

	t := r.table
	quoted := make([]string, len(changes))
	for i, c := range changes {
		quoted[i] = quoteIdentifier(c)
	}

	if !stored {
		query := "INSERT INTO " + t.quotedName() + " (" + strings.Join(quoted, ",") + ") VALUES (" +
			strings.TrimSuffix(strings.Repeat("?,", len(changes)), ",") + ")"
		res, err := r.dbh.Exec(ctx, query, values...)
		if err != nil {
			return err
		}

		r.mu.Lock()
		if !r.changed[r.lowerKeyMap[strings.ToLower(t.LocateField)]] && res.LastInsertID != 0 {
			r.setDirect(t.LocateField, res.LastInsertID)
		}
		r.locateVal = r.getLocked(t.LocateField)
		r.stored = true
		r.clearChangesLocked(changes)
		r.mu.Unlock()
		return nil
	}

	sets := make([]string, len(quoted))
	for i, q := range quoted {
		sets[i] = q + "=?"
	}
	query := "UPDATE " + t.quotedName() + " SET " + strings.Join(sets, ",") + " WHERE " + quoteIdentifier(t.LocateField) + "=?"
	if _, err := r.dbh.Exec(ctx, query, append(values, locateVal)...); err != nil {
		return err
	}

	r.mu.Lock()
	r.locateVal = r.getLocked(t.LocateField)
	r.clearChangesLocked(changes)
	r.mu.Unlock()
	return nil
}

// clearChangesLocked 只清除本次提交的字段，提交期间新修改的字段保留
func (r *Record) clearChangesLocked(committed []string) {
	done := make(map[string]bool, len(committed))
	for _, c := range committed {
		done[c] = true
	}
	remaining := r.changes[:0]
	for _, c := range r.changes {
		if done[c] && r.changed[c] {
			delete(r.changed, c)
			continue
		}
		remaining = append(remaining, c)
	}
	r.changes = remaining
}

// Delete removes the row by its locate field. Nothing is checked beforehand.
func (r *Record) Delete(ctx context.Context) error {
	if r.table == nil {
		return ErrNotBound
	}
	r.mu.RLock()
	stored, locateVal := r.stored, r.locateVal
	r.mu.RUnlock()
	if !stored || locateVal == nil {
		return ErrNoLocateValue
	}

	query := "DELETE FROM " + r.table.quotedName() + " WHERE " + quoteIdentifier(r.table.LocateField) + "=?"
	if _, err := r.dbh.Exec(ctx, query, locateVal); err != nil {
		return err
	}

	r.mu.Lock()
	r.stored = false
	r.autocommit = false
	r.mu.Unlock()
	return nil
}

// Reload re-reads the row by its locate field on the connection MasterDbh(ctx)
// resolves to, and binds the record to that connection. Pending changes are dropped.
func (r *Record) Reload(ctx context.Context) error {
	if r.table == nil {
		return ErrNotBound
	}
	r.mu.RLock()
	stored, locateVal := r.stored, r.locateVal
	r.mu.RUnlock()
	if !stored || locateVal == nil {
		return ErrNoLocateValue
	}

	dbh, err := MasterDbh(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.dbh = dbh
	r.mu.Unlock()

	return r.read(ctx, []string{r.table.LocateField}, Fields{r.table.LocateField: locateVal}, false)
}

// Changes returns the changed columns in the order they were first set
func (r *Record) Changes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.changes...)
}

// IsDirty reports whether there are uncommitted changes
func (r *Record) IsDirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.changes) > 0
}

// IsStored reports whether the row exists in the database as far as the record knows
func (r *Record) IsStored() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stored
}

// Columns returns the column names carried by the record
func (r *Record) Columns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.keys...)
}

// ToMap returns a copy of the raw values
func (r *Record) ToMap() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]interface{}, len(r.columns))
	for k, v := range r.columns {
		m[k] = v
	}
	return m
}

// ToJson converts the raw values to a JSON string
func (r *Record) ToJson() string {
	return ToJson(r.ToMap())
}

// Dbh returns the connection the record is bound to
func (r *Record) Dbh() *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dbh
}

// TableInfo returns the table the record is bound to
func (r *Record) TableInfo() *Table {
	return r.table
}
