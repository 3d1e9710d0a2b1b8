package dbrecord

import (
	"sort"
	"strings"
	"sync"
)

// SetHook transforms or rejects a value before it is stored by Record.Set.
// Hooks run in declaration order, each receiving the previous hook's output.
type SetHook func(field string, value interface{}) (interface{}, error)

// Table is the static description an entity type supplies about its table
type Table struct {
	// Name is the table name, optionally schema qualified ("tests.dbrecord_test").
	Name string
	// LocateField is the primary key column used to locate and update rows.
	LocateField string
	// Keys lists secondary keys, each a comma-joined list of columns
	// ("field2,field3"). A key must identify at most one row.
	Keys []string
	// Hooks run on every Set, in order.
	Hooks []SetHook

	once      sync.Once
	ranked    [][]string
	rankedErr error
}

// Validate checks the table and column names against the identifier whitelist
func (t *Table) Validate() error {
	t.prepare()
	return t.rankedErr
}

// RankedKeys returns the secondary keys split into columns, most specific first.
// Keys with the same number of columns keep their declaration order.
func (t *Table) RankedKeys() [][]string {
	t.prepare()
	return t.ranked
}

func (t *Table) prepare() {
	t.once.Do(func() {
		if err := validateTable(t.Name); err != nil {
			t.rankedErr = err
			return
		}
		if err := validateColumn(t.LocateField); err != nil {
			t.rankedErr = err
			return
		}

		keys := make([][]string, 0, len(t.Keys))
		for _, k := range t.Keys {
			var cols []string
			for _, c := range strings.Split(k, ",") {
				c = strings.TrimSpace(c)
				if err := validateColumn(c); err != nil {
					t.rankedErr = err
					return
				}
				cols = append(cols, c)
			}
			keys = append(keys, cols)
		}
		sort.SliceStable(keys, func(i, j int) bool {
			return len(keys[i]) > len(keys[j])
		})
		t.ranked = keys
	})
}

// matchKey 返回第一个所有字段都出现在 by 中的键（按优先级）
func (t *Table) matchKey(by Fields) []string {
	for _, cols := range t.RankedKeys() {
		matched := true
		for _, c := range cols {
			if _, ok := by[c]; !ok {
				matched = false
				break
			}
		}
		if matched {
			return cols
		}
	}
	return nil
}

func (t *Table) quotedName() string {
	return quoteIdentifier(t.Name)
}
