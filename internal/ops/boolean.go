package ops

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Default boolean tokens.
var (
	DefaultTruthy = []any{"true", "t", "yes", "y", "1", int64(1), true, "on"}
	DefaultFalsy  = []any{"false", "f", "no", "n", "0", int64(0), false, "off", ""}
)

// NormalizeBoolean maps boolean-like values to true or false.
//
// Strings are matched after trimming and lower-casing. Numbers and booleans
// are matched by value, with true equal to 1 and false equal to 0. Unknown
// values are a VALUE_ERROR when strict, otherwise they map to the default.
type NormalizeBoolean struct {
	truthy []any
	falsy  []any
	strict bool
	def    any

	truthySet map[string]bool
	falsySet  map[string]bool
}

// NewNormalizeBoolean creates a NormalizeBoolean. Nil token lists select the
// defaults. def must be nil or a bool.
func NewNormalizeBoolean(truthy, falsy []any, strict bool, def any) (*NormalizeBoolean, error) {
	if truthy == nil {
		truthy = DefaultTruthy
	}
	if falsy == nil {
		falsy = DefaultFalsy
	}
	if _, ok := def.(bool); def != nil && !ok {
		return nil, validationError(TagNormalizeBoolean, "default must be a boolean, got %s", typeName(def))
	}
	n := &NormalizeBoolean{
		truthy:    append([]any(nil), truthy...),
		falsy:     append([]any(nil), falsy...),
		strict:    strict,
		def:       def,
		truthySet: make(map[string]bool, len(truthy)),
		falsySet:  make(map[string]bool, len(falsy)),
	}
	for _, v := range truthy {
		key, ok := booleanToken(v)
		if !ok {
			return nil, validationError(TagNormalizeBoolean, "unsupported truthy token %v", v)
		}
		n.truthySet[key] = true
	}
	for _, v := range falsy {
		key, ok := booleanToken(v)
		if !ok {
			return nil, validationError(TagNormalizeBoolean, "unsupported falsy token %v", v)
		}
		n.falsySet[key] = true
	}
	return n, nil
}

// booleanToken returns the lookup key for a value.
func booleanToken(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return "s:" + strings.ToLower(strings.TrimSpace(x)), true
	case bool:
		return "n:" + strconv.FormatInt(boolInt(x), 10), true
	case int64, float64, int:
		f, _ := numeric(x)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
	return "", false
}

func (n *NormalizeBoolean) operation()  {}
func (n *NormalizeBoolean) Tag() string { return TagNormalizeBoolean }

func (n *NormalizeBoolean) String() string { return "Normalize boolean-like values" }

func (n *NormalizeBoolean) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		key, ok := booleanToken(v)
		if ok && n.truthySet[key] {
			return true, nil
		}
		if ok && n.falsySet[key] {
			return false, nil
		}
		if n.strict {
			return nil, valueError(TagNormalizeBoolean, "unknown boolean-like value: %q", FormatValue(v))
		}
		return n.def, nil
	})
}

type booleanWire struct {
	Operation string `json:"operation"`
	Truthy    []any  `json:"truthy"`
	Falsy     []any  `json:"falsy"`
	Strict    *bool  `json:"strict"`
	Default   any    `json:"default,omitempty"`
}

func (n *NormalizeBoolean) MarshalJSON() ([]byte, error) {
	return json.Marshal(booleanWire{
		Operation: TagNormalizeBoolean,
		Truthy:    jsonValue(n.truthy).([]any),
		Falsy:     jsonValue(n.falsy).([]any),
		Strict:    &n.strict,
		Default:   n.def,
	})
}

func decodeNormalizeBoolean(data []byte) (Operation, error) {
	var w booleanWire
	if err := decodeParams(TagNormalizeBoolean, data, &w); err != nil {
		return nil, err
	}
	strict := true
	if w.Strict != nil {
		strict = *w.Strict
	}
	var truthy, falsy []any
	if w.Truthy != nil {
		truthy = NormalizeJSON(w.Truthy).([]any)
	}
	if w.Falsy != nil {
		falsy = NormalizeJSON(w.Falsy).([]any)
	}
	return NewNormalizeBoolean(truthy, falsy, strict, w.Default)
}
