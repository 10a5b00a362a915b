// Package util provides the loose value conversions used when rendering
// caller values into SQL text.
package util

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the literal format used for time.Time values.
const TimeLayout = "2006-01-02 15:04:05"

var (
	leadingInt   = regexp.MustCompile(`^\s*[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// ToString casts v to its SQL literal text. nil becomes "", booleans "1"/"0".
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		return val.Format(TimeLayout)
	case fmt.Stringer:
		return val.String()
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.String:
		return rv.String()
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return ToString(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// ToInt64 converts v permissively: numbers are truncated, strings contribute
// their leading integer, booleans are 1/0 and anything else is 0.
func ToInt64(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		return parseLeadingInt(val)
	case []byte:
		return parseLeadingInt(string(val))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
			return 0
		}
		return int64(f)
	case reflect.String:
		return parseLeadingInt(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return 0
		}
		return ToInt64(rv.Elem().Interface())
	}
	return 0
}

// ToFloat64 converts v permissively, like ToInt64.
func ToFloat64(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		return parseLeadingFloat(val)
	case []byte:
		return parseLeadingFloat(string(val))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	case reflect.String:
		return parseLeadingFloat(rv.String())
	case reflect.Pointer:
		if rv.IsNil() {
			return 0
		}
		return ToFloat64(rv.Elem().Interface())
	}
	return 0
}

// ToSlice returns the elements of a slice or array. Byte slices are values,
// not lists, and report false.
func ToSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

func parseLeadingInt(s string) int64 {
	match := strings.TrimSpace(leadingInt.FindString(s))
	if match == "" {
		return 0
	}
	n, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		// Out of range: saturate like the numeric cast would.
		if strings.HasPrefix(match, "-") {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

func parseLeadingFloat(s string) float64 {
	match := strings.TrimSpace(leadingFloat.FindString(s))
	if match == "" {
		return 0
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0
	}
	return f
}
