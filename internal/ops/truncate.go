package ops

import (
	"encoding/json"
	"fmt"
)

// Truncate keeps the first length characters of a string.
type Truncate struct {
	length int
}

// NewTruncate creates a Truncate. length must be non-negative.
func NewTruncate(length int) (*Truncate, error) {
	if length < 0 {
		return nil, validationError(TagTruncate, "length must be non-negative, got %d", length)
	}
	return &Truncate{length: length}, nil
}

func (t *Truncate) operation()  {}
func (t *Truncate) Tag() string { return TagTruncate }

func (t *Truncate) String() string {
	return fmt.Sprintf("Truncate text to length %d", t.length)
}

func (t *Truncate) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, typeError(TagTruncate, v, "string")
		}
		runes := []rune(s)
		if len(runes) <= t.length {
			return s, nil
		}
		return string(runes[:t.length]), nil
	})
}

type truncateWire struct {
	Operation string  `json:"operation"`
	Length    *Number `json:"length"`
}

func (t *Truncate) MarshalJSON() ([]byte, error) {
	n := Int(int64(t.length))
	return json.Marshal(truncateWire{Operation: TagTruncate, Length: &n})
}

func decodeTruncate(data []byte) (Operation, error) {
	var w truncateWire
	if err := decodeParams(TagTruncate, data, &w); err != nil {
		return nil, err
	}
	if w.Length == nil {
		return nil, missing(TagTruncate, "length")
	}
	n, err := integerParam(TagTruncate, "length", *w.Length)
	if err != nil {
		return nil, err
	}
	return NewTruncate(n)
}

// DoNothing is the identity transform.
type DoNothing struct{}

// NewDoNothing creates a DoNothing.
func NewDoNothing() *DoNothing { return &DoNothing{} }

func (d *DoNothing) operation()                       {}
func (d *DoNothing) Tag() string                      { return TagDoNothing }
func (d *DoNothing) String() string                   { return "Do nothing" }
func (d *DoNothing) Transform(value any) (any, error) { return value, nil }

func (d *DoNothing) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Operation string `json:"operation"`
	}{TagDoNothing})
}

func decodeDoNothing([]byte) (Operation, error) {
	return NewDoNothing(), nil
}
