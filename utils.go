package dbrecord

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// ToJson converts any entity, Row or value to a JSON string.
// nil and typed nil pointers return "{}", as do values that cannot be marshaled.
// HTML escaping is disabled.
func ToJson(v interface{}) string {
	if isNil(v) {
		return "{}"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// isNil checks if an interface is truly nil, including typed nil pointers.
func isNil(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Ptr, reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// SetFieldAdd appends value to a MySQL SET column value ("a,b")
func SetFieldAdd(current, value string) string {
	if current == "" {
		return value
	}
	return current + "," + value
}

// SetFieldRemove removes every occurrence of value from a SET column value
func SetFieldRemove(current, value string) string {
	if current == "" {
		return ""
	}
	parts := strings.Split(current, ",")
	kept := parts[:0]
	for _, p := range parts {
		if p != value {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}

// SetFieldCheck reports whether a SET column value contains value
func SetFieldCheck(current, value string) bool {
	if current == "" {
		return false
	}
	for _, p := range strings.Split(current, ",") {
		if p == value {
			return true
		}
	}
	return false
}
