package dbrecord

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ColumnInfo represents column metadata
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	IsPK       bool   `json:"is_pk"`
	IsAutoIncr bool   `json:"is_auto_incr"`
	Comment    string `json:"comment,omitempty"`
}

// Describe returns the columns of table in table order. Results are cached per
// data source and table in the schema cache.
func (c *Connection) Describe(ctx context.Context, table string) ([]ColumnInfo, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	key := c.schemaKey(table)
	cache := GetSchemaCache()
	if v, ok := cache.CacheGet(SchemaCacheRepository, key); ok {
		if cols, ok := decodeColumns(v); ok {
			return cols, nil
		}
	}

	var (
		cols []ColumnInfo
		err  error
	)
	if c.cfg.driverName() == DriverMySQL {
		cols, err = c.showColumns(ctx, table)
	} else {
		cols, err = c.columnTypes(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("dbrecord: no columns found for table '%s'", table)
	}

	cacheMu.RLock()
	ttl := schemaTTL
	cacheMu.RUnlock()
	cache.CacheSet(SchemaCacheRepository, key, cols, ttl)
	return cols, nil
}

// ForgetTable removes the cached description of table
func (c *Connection) ForgetTable(table string) {
	GetSchemaCache().CacheDelete(SchemaCacheRepository, c.schemaKey(table))
}

func (c *Connection) showColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := c.Query(ctx, "SHOW FULL COLUMNS FROM "+quoteIdentifier(table))
	if err != nil {
		return nil, err
	}
	cols := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		cols = append(cols, ColumnInfo{
			Name:       r.GetString("Field"),
			Type:       r.GetString("Type"),
			Nullable:   r.GetString("Null") == "YES",
			IsPK:       r.GetString("Key") == "PRI",
			IsAutoIncr: strings.Contains(strings.ToLower(r.GetString("Extra")), "auto_increment"),
			Comment:    r.GetString("Comment"),
		})
	}
	return cols, nil
}

// columnTypes 通过空结果集的列类型获取表结构，用于非 MySQL 驱动
func (c *Connection) columnTypes(ctx context.Context, table string) ([]ColumnInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ex, err := c.executorLocked(ctx)
	if err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + quoteIdentifier(table) + " LIMIT 0"
	start := time.Now()
	rows, err := ex.QueryContext(ctx, query)
	if err != nil {
		c.logTrace(start, query, nil, err)
		return nil, newQueryError(query, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	c.logTrace(start, query, nil, err)
	if err != nil {
		return nil, newQueryError(query, err)
	}

	cols := make([]ColumnInfo, 0, len(types))
	for _, t := range types {
		nullable, ok := t.Nullable()
		cols = append(cols, ColumnInfo{
			Name:     t.Name(),
			Type:     strings.ToLower(t.DatabaseTypeName()),
			Nullable: nullable || !ok,
		})
	}
	return cols, nil
}

func (c *Connection) schemaKey(table string) string {
	sum := md5.Sum([]byte(c.cfg.driverName() + "|" + c.cfg.FormatDSN()))
	return hex.EncodeToString(sum[:8]) + ":" + table
}

// decodeColumns 兼容本地缓存（原始切片）与远程缓存（JSON 解码后的通用结构）
func decodeColumns(v interface{}) ([]ColumnInfo, bool) {
	switch val := v.(type) {
	case []ColumnInfo:
		return val, true
	case nil:
		return nil, false
	}

	var raw []byte
	switch val := v.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, false
		}
		raw = b
	}

	var cols []ColumnInfo
	if err := json.Unmarshal(raw, &cols); err != nil || len(cols) == 0 {
		return nil, false
	}
	return cols, true
}
