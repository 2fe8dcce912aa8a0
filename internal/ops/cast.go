package ops

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cast targets.
const (
	CastText    = "text"
	CastInteger = "integer"
	CastBoolean = "boolean"
	CastDecimal = "decimal"
	CastFloat   = "float"
)

var castTargets = map[string]bool{
	CastText: true, CastInteger: true, CastBoolean: true, CastDecimal: true, CastFloat: true,
}

var (
	trueTokens  = map[string]bool{"true": true, "t": true, "yes": true, "y": true, "1": true}
	falseTokens = map[string]bool{"false": true, "f": true, "no": true, "n": true, "0": true, "": true}
)

// Cast converts values between types. The source type is descriptive only;
// the target decides the conversion.
type Cast struct {
	source string
	target string
}

// NewCast creates a Cast. The target must be one of text, integer,
// boolean, decimal or float.
func NewCast(source, target string) (*Cast, error) {
	if !castTargets[target] {
		return nil, validationError(TagCast, "unsupported target type %q", target)
	}
	return &Cast{source: source, target: target}, nil
}

func (c *Cast) operation()  {}
func (c *Cast) Tag() string { return TagCast }

func (c *Cast) String() string {
	return fmt.Sprintf("Convert type from %s to %s", c.source, c.target)
}

func (c *Cast) Transform(value any) (any, error) {
	return elementwise(value, c.cast)
}

func (c *Cast) cast(v any) (any, error) {
	switch c.target {
	case CastText:
		return FormatValue(v), nil
	case CastInteger:
		return c.toInteger(v)
	case CastDecimal, CastFloat:
		return c.toFloat(v)
	case CastBoolean:
		return c.toBoolean(v)
	}
	return v, nil
}

func (c *Cast) toInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, valueError(TagCast, "cannot convert %v to integer", x)
		}
		if x >= math.MaxInt64 || x < math.MinInt64 {
			return nil, valueError(TagCast, "cannot convert %v to integer: out of range", x)
		}
		return int64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, valueError(TagCast, "invalid literal for integer: %q", x)
		}
		return i, nil
	}
	return nil, typeError(TagCast, v, "integer, float, boolean or string")
}

func (c *Cast) toFloat(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, valueError(TagCast, "could not convert string to %s: %q", c.target, x)
		}
		return f, nil
	}
	return nil, typeError(TagCast, v, "integer, float, boolean or string")
}

func (c *Cast) toBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case string:
		token := strings.ToLower(strings.TrimSpace(x))
		if trueTokens[token] {
			return true, nil
		}
		if falseTokens[token] {
			return false, nil
		}
	default:
		return nil, typeError(TagCast, v, "boolean, number or string")
	}
	return nil, valueError(TagCast, "cannot interpret %q as boolean", FormatValue(v))
}

type castWire struct {
	Operation string  `json:"operation"`
	Source    *string `json:"source"`
	Target    *string `json:"target"`
}

func (c *Cast) MarshalJSON() ([]byte, error) {
	return json.Marshal(castWire{Operation: TagCast, Source: &c.source, Target: &c.target})
}

func decodeCast(data []byte) (Operation, error) {
	var w castWire
	if err := decodeParams(TagCast, data, &w); err != nil {
		return nil, err
	}
	if w.Source == nil {
		return nil, missing(TagCast, "source")
	}
	if w.Target == nil {
		return nil, missing(TagCast, "target")
	}
	return NewCast(*w.Source, *w.Target)
}
