package dbrecord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_Int64(t *testing.T) {
	assert.Equal(t, int64(42), Convert.ToInt64([]byte("42")))
	assert.Equal(t, int64(12), Convert.ToInt64("12.00"))
	assert.Equal(t, int64(7), Convert.ToInt64(uint8(7)))
	assert.Equal(t, int64(1), Convert.ToInt64(true))

	n := int32(9)
	assert.Equal(t, int64(9), Convert.ToInt64(&n))
	assert.Equal(t, int64(-1), Convert.ToInt64(nil, -1))
	assert.Equal(t, int64(-1), Convert.ToInt64("abc", -1))

	_, err := Convert.ToInt64WithError(struct{}{})
	assert.Error(t, err)
}

func TestConvert_Bool(t *testing.T) {
	for _, v := range []any{true, 1, int64(3), "1", "true", "YES", "on", []byte("1")} {
		assert.True(t, Convert.ToBool(v), "%v", v)
	}
	for _, v := range []any{false, 0, "0", "false", "no", "off"} {
		assert.False(t, Convert.ToBool(v, true), "%v", v)
	}
	assert.True(t, Convert.ToBool("maybe", true))
}

func TestConvert_Float64AndString(t *testing.T) {
	assert.Equal(t, 1.5, Convert.ToFloat64([]byte(" 1.5 ")))
	assert.Equal(t, 3.0, Convert.ToFloat64(int16(3)))
	assert.Equal(t, 2.5, Convert.ToFloat64("x", 2.5))

	assert.Equal(t, "", Convert.ToString(nil))
	assert.Equal(t, "abc", Convert.ToString([]byte("abc")))
	assert.Equal(t, "12", Convert.ToString(uint(12)))
	assert.Equal(t, "0.25", Convert.ToString(0.25))
	assert.Equal(t, `{"a":1}`, Convert.ToString(map[string]int{"a": 1}))
	assert.Equal(t, "2024-03-01 10:20:30", Convert.ToString(time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC)))
}

func TestConvert_Time(t *testing.T) {
	tm, err := Convert.ToTimeWithError([]byte("2024-03-01 10:20:30"))
	require.NoError(t, err)
	assert.Equal(t, 2024, tm.Year())
	assert.Equal(t, 30, tm.Second())

	tm, err = Convert.ToTimeWithError("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.March, tm.Month())

	tm, err = Convert.ToTimeWithError("0000-00-00 00:00:00")
	require.NoError(t, err)
	assert.True(t, tm.IsZero())

	assert.Equal(t, int64(1700000000), Convert.ToTime(int64(1700000000)).Unix())

	_, err = Convert.ToTimeWithError("yesterday")
	assert.Error(t, err)
}

func TestDerefPointer(t *testing.T) {
	var nilPtr *string
	assert.Nil(t, derefPointer(nilPtr))
	assert.Nil(t, derefPointer(nil))

	s := "x"
	ps := &s
	assert.Equal(t, "x", derefPointer(&ps))
	assert.Equal(t, 5, derefPointer(5))
}
