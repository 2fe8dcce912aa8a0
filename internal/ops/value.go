package ops

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// elementwise applies f to value, or to each element when value is a
// sequence. Missing values pass through untouched.
func elementwise(value any, f func(any) (any, error)) (any, error) {
	seq, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil, nil
		}
		return f(value)
	}
	out := make([]any, len(seq))
	for i, v := range seq {
		if v == nil {
			continue
		}
		r, err := f(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// numeric converts int64 and float64 values to float64.
// Booleans and strings are not numeric.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64, int:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "sequence"
	}
	return fmt.Sprintf("%T", v)
}

// FormatValue renders a value the way harmonized CSV output and text casts
// present it: integral floats keep a trailing ".0", booleans print as
// True/False and missing values print empty.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// NormalizeJSON converts values produced by a json.Decoder with UseNumber
// into the value model: json.Number becomes int64 or float64, recursively
// through arrays and objects.
func NormalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil && !strings.ContainsAny(string(x), ".eE") {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			return string(x)
		}
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = NormalizeJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = NormalizeJSON(e)
		}
		return out
	}
	return v
}

// jsonValue prepares a value for JSON encoding so integral floats are
// written with a fractional part and decode back as floats.
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		return Float(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
