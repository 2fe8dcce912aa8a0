package ops

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Number is a numeric parameter that remembers whether it was written as an
// integer or a float. Threshold, Offset and Scale choose integer or float
// arithmetic from it, so the distinction must survive a JSON round trip.
type Number struct {
	i       int64
	f       float64
	isFloat bool
}

// Int returns an integer Number.
func Int(i int64) Number { return Number{i: i, f: float64(i)} }

// Float returns a floating-point Number.
func Float(f float64) Number { return Number{i: int64(f), f: f, isFloat: true} }

// NumberOf converts an int64, int or float64 value to a Number.
func NumberOf(v any) (Number, bool) {
	switch n := v.(type) {
	case int64:
		return Int(n), true
	case int:
		return Int(int64(n)), true
	case float64:
		return Float(n), true
	case Number:
		return n, true
	}
	return Number{}, false
}

// IsFloat reports whether the number was written as a float.
func (n Number) IsFloat() bool { return n.isFloat }

// Float64 returns the number as a float64.
func (n Number) Float64() float64 { return n.f }

// Value returns the number as an int64 or float64 value.
func (n Number) Value() any {
	if n.isFloat {
		return n.f
	}
	return n.i
}

func (n Number) String() string {
	if n.isFloat {
		return formatFloat(n.f)
	}
	return strconv.FormatInt(n.i, 10)
}

// MarshalJSON writes integers bare and floats with a fractional part.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.isFloat && (math.IsNaN(n.f) || math.IsInf(n.f, 0)) {
		return nil, fmt.Errorf("number %v is not representable in JSON", n.f)
	}
	return []byte(n.String()), nil
}

// UnmarshalJSON accepts JSON numbers only. Strings, booleans and null are
// rejected so non-numeric parameters fail at decode time.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || data[0] == 't' || data[0] == 'f' || data[0] == 'n' ||
		data[0] == '[' || data[0] == '{' {
		return fmt.Errorf("expected a number, got %s", data)
	}
	s := string(data)
	if !bytes.ContainsAny(data, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			*n = Int(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*n = Float(f)
	return nil
}
