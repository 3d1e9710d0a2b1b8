package dbrecord_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zzguang83325/dbrecord"

	_ "modernc.org/sqlite"
)

// DbrecordTestTable describes the dbrecord_test table
var DbrecordTestTable = &dbrecord.Table{
	Name:        "dbrecord_test",
	LocateField: "id",
	Keys:        []string{"field2", "field2,field3", "name,field2,field3"},
}

// DbrecordTest represents the dbrecord_test table
type DbrecordTest struct {
	dbrecord.Record
}

func (m *DbrecordTest) Table() *dbrecord.Table {
	return DbrecordTestTable
}

func (m *DbrecordTest) ID() int64 {
	return m.GetInt64("id")
}

func (m *DbrecordTest) SetID(ctx context.Context, v int64) error {
	return m.Set(ctx, "id", v)
}

func (m *DbrecordTest) Name() string {
	return m.GetString("name")
}

func (m *DbrecordTest) SetName(ctx context.Context, v string) error {
	return m.Set(ctx, "name", v)
}

func (m *DbrecordTest) Field2() *int64 {
	return m.GetInt64Ptr("field2")
}

func (m *DbrecordTest) SetField2(ctx context.Context, v *int64) error {
	return m.Set(ctx, "field2", v)
}

func (m *DbrecordTest) Field3() *string {
	return m.GetStringPtr("field3")
}

func (m *DbrecordTest) SetField3(ctx context.Context, v *string) error {
	return m.Set(ctx, "field3", v)
}

func (m *DbrecordTest) ManagedField() *string {
	return m.GetStringPtr("managed_field")
}

func (m *DbrecordTest) SetManagedField(ctx context.Context, v *string) error {
	return m.Set(ctx, "managed_field", v)
}

func (m *DbrecordTest) UniqueField() *string {
	return m.GetStringPtr("unique_field")
}

func (m *DbrecordTest) SetUniqueField(ctx context.Context, v *string) error {
	return m.Set(ctx, "unique_field", v)
}

// TestRecord extends the generated entity and overrides one setter
type TestRecord struct {
	DbrecordTest

	managedCalled bool
}

func (r *TestRecord) SetManagedField(ctx context.Context, v *string) error {
	r.managedCalled = true
	return r.DbrecordTest.SetManagedField(ctx, v)
}

const createTestTable = `CREATE TABLE dbrecord_test (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name VARCHAR(255) NOT NULL DEFAULT '',
	field2 INT,
	field3 VARCHAR(255) DEFAULT NULL,
	managed_field VARCHAR(255) DEFAULT NULL,
	unique_field VARCHAR(255) DEFAULT NULL UNIQUE
)`

// capturedEntry is one log call
type capturedEntry struct {
	level  dbrecord.LogLevel
	msg    string
	fields map[string]interface{}
}

// captureLogger keeps every log entry for assertions
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

func (l *captureLogger) Log(level dbrecord.LogLevel, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// statements returns the logged SQL statements in order
func (l *captureLogger) statements() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if s, ok := e.fields["sql"].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// count returns how many logged statements start with prefix
func (l *captureLogger) count(prefix string) int {
	n := 0
	for _, s := range l.statements() {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

func testConfig(t *testing.T) *dbrecord.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbrecord.db")
	return &dbrecord.Config{
		Driver:   "sqlite",
		DSN:      path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		DebugSQL: true,
	}
}

// setupDB points the master connection at a fresh database holding the test
// table and installs a capturing logger.
func setupDB(t *testing.T) (context.Context, *captureLogger) {
	t.Helper()
	return setupDBWith(t, testConfig(t))
}

func setupDBWith(t *testing.T, cfg *dbrecord.Config) (context.Context, *captureLogger) {
	t.Helper()
	ctx := context.Background()

	dbrecord.MasterDbhDestroy()
	dbrecord.MasterConfig(cfg)

	logger := &captureLogger{}
	dbrecord.SetLogger(logger)
	t.Cleanup(func() {
		dbrecord.MasterDbhDestroy()
		dbrecord.SetLogger(nil)
	})

	_, err := dbrecord.Exec(ctx, createTestTable)
	require.NoError(t, err)
	logger.reset()
	return ctx, logger
}

func countRows(t *testing.T, ctx context.Context) int64 {
	t.Helper()
	row, err := dbrecord.GetRow(ctx, "SELECT COUNT(*) AS n FROM dbrecord_test")
	require.NoError(t, err)
	return row.GetInt64("n")
}

func ptr[T any](v T) *T {
	return &v
}
