package dbrecord

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []ColumnInfo{
	{Name: "id", Type: "int(11) unsigned", IsPK: true, IsAutoIncr: true},
	{Name: "customer_name", Type: "varchar(64)", Comment: "who placed the order"},
	{Name: "amount", Type: "decimal(10,2)", Nullable: true},
	{Name: "paid", Type: "tinyint(1)"},
	{Name: "tags", Type: "set('a','b')", Nullable: true},
	{Name: "created_at", Type: "datetime", Nullable: true},
	{Name: "payload", Type: "blob", Nullable: true},
	{Name: "changes", Type: "text"},
}

func TestRenderEntity(t *testing.T) {
	code, err := RenderEntity("models", "", "shop_order", orderColumns, []string{"customer_name"})
	require.NoError(t, err)

	assert.Contains(t, code, "// Code generated by dbrecord-gen. DO NOT EDIT.")
	assert.Contains(t, code, "package models")
	assert.Contains(t, code, `"time"`)
	assert.Contains(t, code, "var ShopOrderTable = &dbrecord.Table{")
	assert.Contains(t, code, `LocateField: "id"`)
	assert.Contains(t, code, `Keys:        []string{"customer_name"}`)
	assert.Contains(t, code, "type ShopOrder struct {\n\tdbrecord.Record\n}")
	assert.Contains(t, code, "func (m *ShopOrder) ID() int64 {")
	assert.Contains(t, code, "// CustomerName returns who placed the order")
	assert.Contains(t, code, "func (m *ShopOrder) Amount() *float64 {\n\treturn m.GetFloat64Ptr(\"amount\")\n}")
	assert.Contains(t, code, "func (m *ShopOrder) SetCreatedAt(ctx context.Context, v *time.Time) error {")
	assert.Contains(t, code, "func (m *ShopOrder) Paid() bool {")
	assert.Contains(t, code, "func (m *ShopOrder) Payload() []byte {")
	assert.Contains(t, code, "func (m *ShopOrder) ChangesField() string {", "reserved accessor names get a suffix")
	assert.Contains(t, code, `return m.Set(ctx, "changes", v)`)
}

func TestRenderEntity_Errors(t *testing.T) {
	_, err := RenderEntity("models", "X", "t", nil, nil)
	assert.Error(t, err)

	_, err = RenderEntity("models", "X", "t", []ColumnInfo{{Name: "code", Type: "varchar(8)"}}, nil)
	assert.ErrorContains(t, err, "no primary key")

	_, err = RenderEntity("models", "X", "t; drop", orderColumns, nil)
	assert.ErrorIs(t, err, ErrUnsafeSQL)

	_, err = RenderEntity("models", "X", "t", orderColumns, []string{"missing column!"})
	assert.Error(t, err)
}

func TestRenderEntity_FallsBackToIDColumn(t *testing.T) {
	code, err := RenderEntity("", "Legacy", "legacy", []ColumnInfo{{Name: "ID", Type: "bigint"}, {Name: "v", Type: "json", Nullable: true}}, nil)
	require.NoError(t, err)
	assert.Contains(t, code, "package models")
	assert.Contains(t, code, `LocateField: "ID"`)
	assert.NotContains(t, code, `"time"`)
	assert.Contains(t, code, "func (m *Legacy) V() *string {")
}

func TestEntityPath(t *testing.T) {
	pkg, path := entityPath("shop.order", "")
	assert.Equal(t, "models", pkg)
	assert.Equal(t, filepath.Join("models", "shop_order.go"), path)

	pkg, path = entityPath("users", filepath.Join("internal", "entity"))
	assert.Equal(t, "entity", pkg)
	assert.Equal(t, filepath.Join("internal", "entity", "users.go"), path)

	pkg, path = entityPath("users", filepath.Join("db", "user_gen.go"))
	assert.Equal(t, "db", pkg)
	assert.Equal(t, filepath.Join("db", "user_gen.go"), path)

	pkg, _ = entityPath("users", "user.go")
	assert.Equal(t, "models", pkg)
}

func TestSnakeToCamel(t *testing.T) {
	assert.Equal(t, "ID", SnakeToCamel("id"))
	assert.Equal(t, "UserID", SnakeToCamel("user_id"))
	assert.Equal(t, "ManagedField", SnakeToCamel("MANAGED_FIELD"))
	assert.Equal(t, "Field2", SnakeToCamel("field2"))
}

func TestDbTypeToGoType(t *testing.T) {
	cases := []struct {
		dbType   string
		nullable bool
		isPK     bool
		want     string
	}{
		{"int(11)", false, true, "int64"},
		{"int(11)", true, true, "int64"},
		{"bigint", true, false, "*int64"},
		{"tinyint(1)", false, false, "bool"},
		{"tinyint(4)", false, false, "int64"},
		{"VARCHAR(255)", true, false, "*string"},
		{"enum('x','y')", false, false, "string"},
		{"double", false, false, "float64"},
		{"timestamp", true, false, "*time.Time"},
		{"longblob", true, false, "[]byte"},
		{"varbinary(16)", false, false, "[]byte"},
		{"geometry", false, false, "interface{}"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, dbTypeToGoType(c.dbType, c.nullable, c.isPK), c.dbType)
	}
}
