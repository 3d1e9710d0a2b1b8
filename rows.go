package dbrecord

import (
	"database/sql"
	"strings"
)

// Row is one result row keyed by column name
type Row map[string]interface{}

// Result carries the metadata of a non-SELECT statement
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// GetString returns the column converted to string, "" for NULL or missing
func (r Row) GetString(column string) string {
	return Convert.ToString(r[column])
}

// GetInt64 returns the column converted to int64, 0 when not convertible
func (r Row) GetInt64(column string) int64 {
	return Convert.ToInt64(r[column])
}

// scanRows 读取全部结果行，[]byte 按列类型转换为 string 或复制
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	dbTypes := make([]string, len(columns))
	for i, ct := range columnTypes {
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var results []Row
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = processDBValue(values[i], dbTypes[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func processDBValue(val interface{}, dbType string) interface{} {
	b, ok := val.([]byte)
	if !ok {
		return val
	}
	if isBinaryType(dbType) {
		// 驱动可能复用底层缓冲区
		cp := make([]byte, len(b))
		copy(cp, b)
		return cp
	}
	return string(b)
}

func isBinaryType(dbType string) bool {
	for _, t := range []string{"BLOB", "BINARY", "VARBINARY"} {
		if strings.Contains(dbType, t) {
			return true
		}
	}
	return false
}
