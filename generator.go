package dbrecord

import (
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"strings"
)

// 与 Record 方法同名的列需要改名，否则会遮蔽嵌入的方法
var reservedAccessors = map[string]bool{
	"Table": true, "TableInfo": true, "Get": true, "Set": true, "Has": true, "IsNull": true,
	"GetString": true, "GetInt64": true, "GetFloat64": true, "GetBool": true, "GetTime": true,
	"GetStringPtr": true, "GetInt64Ptr": true, "GetFloat64Ptr": true, "GetBoolPtr": true, "GetTimePtr": true,
	"Autocommit": true, "IsAutocommit": true, "Commit": true, "Delete": true, "Reload": true,
	"Changes": true, "IsDirty": true, "IsStored": true, "Columns": true, "ToMap": true, "ToJson": true, "Dbh": true,
}

// GenerateEntity describes table through MasterDbh(ctx) and writes an entity
// type for it. outPath may be a directory or a .go file; when empty the file goes
// to models/<table>.go. keys lists the secondary keys, each a comma-joined
// column list.
func GenerateEntity(ctx context.Context, table, outPath, structName string, keys ...string) error {
	if err := validateTable(table); err != nil {
		return err
	}
	dbh, err := MasterDbh(ctx)
	if err != nil {
		return err
	}
	cols, err := dbh.Describe(ctx, table)
	if err != nil {
		return err
	}

	pkgName, finalPath := entityPath(table, outPath)
	code, err := RenderEntity(pkgName, structName, table, cols, keys)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(finalPath, []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	LogInfo("entity generated", map[string]interface{}{"table": table, "file": finalPath})
	return nil
}

// entityPath 根据输出路径推导包名和文件路径
func entityPath(table, outPath string) (pkgName, finalPath string) {
	fileBase := strings.ReplaceAll(strings.ToLower(table), ".", "_") + ".go"
	switch {
	case outPath == "":
		return "models", filepath.Join("models", fileBase)
	case strings.HasSuffix(outPath, ".go"):
		dir := filepath.Dir(outPath)
		if dir == "." || dir == "/" {
			return "models", outPath
		}
		return filepath.Base(dir), outPath
	default:
		pkgName = filepath.Base(outPath)
		if pkgName == "." || pkgName == "/" {
			pkgName = "models"
		}
		return pkgName, filepath.Join(outPath, fileBase)
	}
}

// RenderEntity returns the Go source of an entity type for table: a struct
// embedding Record, the table description variable and one getter and setter
// per column. Nullable columns use pointer types.
func RenderEntity(pkg, structName, table string, cols []ColumnInfo, keys []string) (string, error) {
	if err := validateTable(table); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("dbrecord: no columns found for table '%s'", table)
	}
	if pkg == "" {
		pkg = "models"
	}
	if structName == "" {
		structName = SnakeToCamel(strings.ReplaceAll(table, ".", "_"))
	}

	locate := locateColumn(cols)
	if locate == "" {
		return "", fmt.Errorf("dbrecord: table '%s' has no primary key", table)
	}
	t := &Table{Name: table, LocateField: locate, Keys: keys}
	if err := t.Validate(); err != nil {
		return "", err
	}

	hasTime := false
	for _, c := range cols {
		if strings.Contains(dbTypeToGoType(c.Type, c.Nullable, c.IsPK), "time.Time") {
			hasTime = true
			break
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "// Code generated by dbrecord-gen. DO NOT EDIT.\n\npackage %s\n\n", pkg)
	sb.WriteString("import (\n\t\"context\"\n")
	if hasTime {
		sb.WriteString("\t\"time\"\n")
	}
	sb.WriteString("\n\t\"github.com/zzguang83325/dbrecord\"\n)\n\n")

	tableVar := structName + "Table"
	fmt.Fprintf(&sb, "// %s describes the %s table\n", tableVar, table)
	fmt.Fprintf(&sb, "var %s = &dbrecord.Table{\n\tName: %q,\n\tLocateField: %q,\n", tableVar, table, locate)
	if len(keys) > 0 {
		sb.WriteString("\tKeys: []string{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", k)
		}
		sb.WriteString("},\n")
	}
	sb.WriteString("}\n\n")

	fmt.Fprintf(&sb, "// %s represents the %s table\n", structName, table)
	fmt.Fprintf(&sb, "type %s struct {\n\tdbrecord.Record\n}\n\n", structName)

	fmt.Fprintf(&sb, "// Table returns the table description of %s\n", structName)
	fmt.Fprintf(&sb, "func (m *%s) Table() *dbrecord.Table {\n\treturn %s\n}\n\n", structName, tableVar)

	for _, c := range cols {
		name := SnakeToCamel(c.Name)
		if name == "" {
			continue
		}
		if reservedAccessors[name] || reservedAccessors["Set"+name] {
			name += "Field"
		}
		goType := dbTypeToGoType(c.Type, c.Nullable, c.IsPK)

		comment := c.Comment
		if comment == "" {
			comment = "the " + c.Name + " column"
		}
		fmt.Fprintf(&sb, "// %s returns %s\n", name, comment)
		fmt.Fprintf(&sb, "func (m *%s) %s() %s {\n\t%s\n}\n\n", structName, name, goType, getterBody(c.Name, goType))

		fmt.Fprintf(&sb, "// Set%s sets %s\n", name, comment)
		fmt.Fprintf(&sb, "func (m *%s) Set%s(ctx context.Context, v %s) error {\n\treturn m.Set(ctx, %q, v)\n}\n\n", structName, name, goType, c.Name)
	}

	src := []byte(sb.String())
	formatted, err := format.Source(src)
	if err != nil {
		return string(src), fmt.Errorf("dbrecord: generated code for '%s' does not parse: %w", table, err)
	}
	return string(formatted), nil
}

// locateColumn 取第一个主键列，没有主键时退回到 id 列
func locateColumn(cols []ColumnInfo) string {
	for _, c := range cols {
		if c.IsPK {
			return c.Name
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, "id") {
			return c.Name
		}
	}
	return ""
}

func getterBody(column, goType string) string {
	switch goType {
	case "int64":
		return fmt.Sprintf("return m.GetInt64(%q)", column)
	case "*int64":
		return fmt.Sprintf("return m.GetInt64Ptr(%q)", column)
	case "string":
		return fmt.Sprintf("return m.GetString(%q)", column)
	case "*string":
		return fmt.Sprintf("return m.GetStringPtr(%q)", column)
	case "float64":
		return fmt.Sprintf("return m.GetFloat64(%q)", column)
	case "*float64":
		return fmt.Sprintf("return m.GetFloat64Ptr(%q)", column)
	case "bool":
		return fmt.Sprintf("return m.GetBool(%q)", column)
	case "*bool":
		return fmt.Sprintf("return m.GetBoolPtr(%q)", column)
	case "time.Time":
		return fmt.Sprintf("return m.GetTime(%q)", column)
	case "*time.Time":
		return fmt.Sprintf("return m.GetTimePtr(%q)", column)
	case "[]byte":
		return fmt.Sprintf("b, _ := m.Get(%q).([]byte)\n\treturn b", column)
	default:
		return fmt.Sprintf("return m.Get(%q)", column)
	}
}

// SnakeToCamel converts snake_case to CamelCase, keeping "id" as "ID"
func SnakeToCamel(s string) string {
	s = strings.ToLower(s)
	parts := strings.Split(s, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			if parts[i] == "id" {
				parts[i] = "ID"
			} else {
				parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
			}
		}
	}
	return strings.Join(parts, "")
}

// dbTypeToGoType 将数据库类型转换为 Go 类型，可空的非主键列使用指针
func dbTypeToGoType(dbType string, nullable bool, isPK bool) string {
	dbType = strings.ToLower(dbType)
	ptr := nullable && !isPK

	var goType string
	switch {
	case strings.HasPrefix(dbType, "tinyint(1)") || strings.Contains(dbType, "bool"):
		goType = "bool"
	case strings.Contains(dbType, "int"):
		goType = "int64"
	case strings.Contains(dbType, "char") || strings.Contains(dbType, "text") || strings.Contains(dbType, "json") ||
		strings.HasPrefix(dbType, "enum") || strings.HasPrefix(dbType, "set"):
		goType = "string"
	case strings.Contains(dbType, "float") || strings.Contains(dbType, "double") || strings.Contains(dbType, "decimal") ||
		strings.Contains(dbType, "numeric") || strings.Contains(dbType, "real"):
		goType = "float64"
	case strings.Contains(dbType, "date") || strings.Contains(dbType, "time"):
		goType = "time.Time"
	case strings.Contains(dbType, "blob") || strings.Contains(dbType, "binary"):
		// 二进制数据不使用指针，nil 切片即 NULL
		return "[]byte"
	default:
		return "interface{}"
	}

	if ptr {
		return "*" + goType
	}
	return goType
}
