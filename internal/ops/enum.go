package ops

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// EnumToEnum maps values through a lookup table.
//
// With strict set, a value missing from the table is a KEY_NOT_FOUND error.
// Otherwise the configured default (possibly nil) is returned and a warning
// is logged.
type EnumToEnum struct {
	mapping map[any]any
	def     any
	strict  bool
}

// NewEnumToEnum creates an EnumToEnum. Keys must be integer or string values.
func NewEnumToEnum(mapping map[any]any, def any, strict bool) (*EnumToEnum, error) {
	m := make(map[any]any, len(mapping))
	for k, v := range mapping {
		switch key := k.(type) {
		case int64, string:
			m[key] = v
		case int:
			m[int64(key)] = v
		default:
			return nil, validationError(TagEnumToEnum, "mapping key %v must be an integer or string", k)
		}
	}
	return &EnumToEnum{mapping: m, def: def, strict: strict}, nil
}

func (e *EnumToEnum) operation()  {}
func (e *EnumToEnum) Tag() string { return TagEnumToEnum }

func (e *EnumToEnum) String() string {
	keys := e.sortedKeys()
	lines := make([]string, 0, len(keys)+1)
	lines = append(lines, "Mapping:")
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %s->%s", FormatValue(k), FormatValue(e.mapping[k])))
	}
	return strings.Join(lines, "\n")
}

func (e *EnumToEnum) Transform(value any) (any, error) {
	return elementwise(value, e.lookup)
}

func (e *EnumToEnum) lookup(v any) (any, error) {
	key := v
	if f, ok := v.(float64); ok && isIntegral(f) {
		key = int64(f)
	}
	if out, ok := e.mapping[key]; ok {
		return out, nil
	}
	if e.strict {
		return nil, &Error{
			Code:    ErrCodeKeyNotFound,
			Op:      TagEnumToEnum,
			Message: fmt.Sprintf("missing mapping for value: %s", FormatValue(v)),
		}
	}
	slog.Warn("value does not have a defined mapping", "value", v)
	return e.def, nil
}

func (e *EnumToEnum) sortedKeys() []any {
	keys := make([]any, 0, len(e.mapping))
	for k := range e.mapping {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aInt := keys[i].(int64)
		b, bInt := keys[j].(int64)
		if aInt && bInt {
			return a < b
		}
		return FormatValue(keys[i]) < FormatValue(keys[j])
	})
	return keys
}

type enumWire struct {
	Operation string          `json:"operation"`
	Mapping   *map[string]any `json:"mapping"`
	Strict    bool            `json:"strict"`
	Default   any             `json:"default,omitempty"`
}

func (e *EnumToEnum) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.mapping))
	for k, v := range e.mapping {
		m[FormatValue(k)] = jsonValue(v)
	}
	return json.Marshal(enumWire{Operation: TagEnumToEnum, Mapping: &m, Strict: e.strict, Default: jsonValue(e.def)})
}

// isIntLike reports whether v is an integer or a string of decimal digits
// with an optional leading minus sign. Booleans are never int-like.
func isIntLike(v any) bool {
	switch x := v.(type) {
	case int64:
		return true
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimLeft(s, "-")
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func decodeEnumToEnum(data []byte) (Operation, error) {
	var w enumWire
	if err := decodeParams(TagEnumToEnum, data, &w); err != nil {
		return nil, err
	}
	if w.Mapping == nil {
		return nil, missing(TagEnumToEnum, "mapping")
	}
	raw := make(map[string]any, len(*w.Mapping))
	for k, v := range *w.Mapping {
		raw[k] = NormalizeJSON(v)
	}

	// Rule files written before typed mappings existed store integer codes as
	// strings. When every key and value is int-like, the table is integer-typed.
	allInt := len(raw) > 0
	for k, v := range raw {
		if !isIntLike(k) || !isIntLike(v) {
			allInt = false
			break
		}
	}

	mapping := make(map[any]any, len(raw))
	for k, v := range raw {
		if !allInt {
			mapping[k] = v
			continue
		}
		ik, err := toInt64(k)
		if err != nil {
			return nil, validationError(TagEnumToEnum, "mapping key %q: %v", k, err)
		}
		iv, err := toInt64(v)
		if err != nil {
			return nil, validationError(TagEnumToEnum, "mapping value for %q: %v", k, err)
		}
		mapping[ik] = iv
	}
	return NewEnumToEnum(mapping, NormalizeJSON(w.Default), w.Strict)
}
