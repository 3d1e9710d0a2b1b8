package dbrecord

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// derefPointer 解引用指针，nil 指针返回 nil
func derefPointer(a any) any {
	if a == nil {
		return nil
	}
	v := reflect.ValueOf(a)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.CanInterface() {
		return v.Interface()
	}
	return nil
}

// convertStruct 类型转换函数命名空间
type convertStruct struct{}

// Convert converts raw column values (as returned by the driver) to Go types.
// Generated entity getters go through it.
var Convert = convertStruct{}

// ToBoolWithError converts numbers, bools and strings such as "1", "true", "yes", "on"
func (convertStruct) ToBoolWithError(a any) (bool, error) {
	a = derefPointer(a)
	if a == nil {
		return false, fmt.Errorf("cannot convert nil to bool")
	}
	switch v := a.(type) {
	case bool:
		return v, nil
	case int, int8, int16, int32, int64:
		return reflect.ValueOf(v).Int() != 0, nil
	case uint, uint8, uint16, uint32, uint64:
		return reflect.ValueOf(v).Uint() != 0, nil
	case float32, float64:
		return reflect.ValueOf(v).Float() != 0, nil
	case []byte:
		return Convert.ToBoolWithError(string(v))
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on":
			return true, nil
		case "no", "off":
			return false, nil
		}
		return false, fmt.Errorf("cannot parse %q as bool", v)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", a)
	}
}

// ToBool 转换失败返回默认值
func (convertStruct) ToBool(a any, defaultValue ...bool) bool {
	v, err := Convert.ToBoolWithError(a)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return false
	}
	return v
}

// ToInt64WithError converts numbers, bools and decimal strings to int64
func (convertStruct) ToInt64WithError(a any) (int64, error) {
	a = derefPointer(a)
	if a == nil {
		return 0, fmt.Errorf("cannot convert nil to int64")
	}
	switch v := a.(type) {
	case int64:
		return v, nil
	case int, int8, int16, int32:
		return reflect.ValueOf(v).Int(), nil
	case uint, uint8, uint16, uint32, uint64:
		return int64(reflect.ValueOf(v).Uint()), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return Convert.ToInt64WithError(string(v))
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// DECIMAL 列以字符串返回，如 "12.00"
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int64", v)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", a)
	}
}

// ToInt64 转换失败返回默认值
func (convertStruct) ToInt64(a any, defaultValue ...int64) int64 {
	v, err := Convert.ToInt64WithError(a)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return 0
	}
	return v
}

// ToFloat64WithError converts numbers, bools and numeric strings to float64
func (convertStruct) ToFloat64WithError(a any) (float64, error) {
	a = derefPointer(a)
	if a == nil {
		return 0, fmt.Errorf("cannot convert nil to float64")
	}
	switch v := a.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(v).Uint()), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", a)
	}
}

// ToFloat64 转换失败返回默认值
func (convertStruct) ToFloat64(a any, defaultValue ...float64) float64 {
	v, err := Convert.ToFloat64WithError(a)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return 0
	}
	return v
}

// ToStringWithError converts any value to string; nil becomes ""
func (convertStruct) ToStringWithError(a any) (string, error) {
	a = derefPointer(a)
	if a == nil {
		return "", nil
	}
	switch v := a.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format("2006-01-02 15:04:05"), nil
	default:
		bs, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to string: %w", a, err)
		}
		return string(bs), nil
	}
}

// ToString 转换失败返回默认值
func (convertStruct) ToString(a any, defaultValue ...string) string {
	v, err := Convert.ToStringWithError(a)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return ""
	}
	return v
}

// 数据库常见的时间字符串格式，按出现频率排序
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
	"15:04:05",
}

// ToTimeWithError converts time.Time, database time strings and unix seconds
func (convertStruct) ToTimeWithError(a any) (time.Time, error) {
	a = derefPointer(a)
	if a == nil {
		return time.Time{}, fmt.Errorf("cannot convert nil to time.Time")
	}
	switch v := a.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return Convert.ToTimeWithError(string(v))
	case string:
		if v == "" || strings.HasPrefix(v, "0000-00-00") {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse string %q to time.Time", v)
	case int64:
		return time.Unix(v, 0), nil
	case int:
		return time.Unix(int64(v), 0), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", a)
	}
}

// ToTime 转换失败返回默认值
func (convertStruct) ToTime(a any, defaultValue ...time.Time) time.Time {
	v, err := Convert.ToTimeWithError(a)
	if err != nil {
		if len(defaultValue) > 0 {
			return defaultValue[0]
		}
		return time.Time{}
	}
	return v
}
