package dbrecord

import (
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for better performance
var (
	// tablePattern matches table_name and schema.table_name
	tablePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

	// columnPattern matches a bare column name; filter columns are interpolated, so nothing else is allowed
	columnPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	// orderByPattern: "col", "col DESC", "a ASC, b desc"
	orderByPattern = regexp.MustCompile(`(?i)^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?(\s+(ASC|DESC))?(\s*,\s*[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?(\s+(ASC|DESC))?)*$`)

	// limitPattern: "10" or "offset,count"
	limitPattern = regexp.MustCompile(`^\d+(\s*,\s*\d+)?$`)
)

const (
	// Maximum identifier length (MySQL limits names to 64 characters per part)
	maxIdentifierLength = 128
)

// ValidateTableName validates if table name is valid (public interface)
func ValidateTableName(table string) error {
	return validateTable(table)
}

func validateTable(name string) error {
	if name == "" {
		return &InvalidIdentifierError{Name: name, Reason: "name cannot be empty"}
	}
	if len(name) > maxIdentifierLength {
		return &InvalidIdentifierError{Name: name, Reason: fmt.Sprintf("name exceeds maximum length of %d characters", maxIdentifierLength)}
	}
	if !tablePattern.MatchString(name) {
		return &InvalidIdentifierError{Name: name, Reason: "only letters, numbers, underscores and an optional schema prefix are allowed"}
	}
	return nil
}

func validateColumn(name string) error {
	if len(name) > maxIdentifierLength || !columnPattern.MatchString(name) {
		return &InvalidIdentifierError{Name: name, Reason: "column names may only contain letters, numbers and underscores"}
	}
	return nil
}

func validateOrderBy(orderBy string) error {
	if !orderByPattern.MatchString(strings.TrimSpace(orderBy)) {
		return fmt.Errorf("%w: ORDER BY %q", ErrUnsafeSQL, orderBy)
	}
	return nil
}

func validateLimit(limit string) error {
	if !limitPattern.MatchString(strings.TrimSpace(limit)) {
		return fmt.Errorf("%w: LIMIT %q", ErrUnsafeSQL, limit)
	}
	return nil
}

// validateSafeSQL 检查直接拼接的 SQL 片段中是否包含分号或注释符
func validateSafeSQL(sqlPart string) error {
	if strings.Contains(sqlPart, ";") {
		return fmt.Errorf("%w: semicolon not allowed in %q", ErrUnsafeSQL, sqlPart)
	}
	if strings.Contains(sqlPart, "--") || strings.Contains(sqlPart, "/*") || strings.Contains(sqlPart, "#") {
		return fmt.Errorf("%w: comments not allowed in %q", ErrUnsafeSQL, sqlPart)
	}
	return nil
}

// quoteIdentifier 为已校验的标识符加反引号，schema.table 分别加
func quoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + p + "`"
	}
	return strings.Join(parts, ".")
}
