package ops

import (
	"encoding/json"
	"fmt"
)

// Offset adds a constant. Integer inputs with an integer offset stay integers.
type Offset struct {
	offset Number
}

// NewOffset creates an Offset.
func NewOffset(offset Number) *Offset { return &Offset{offset: offset} }

func (o *Offset) operation()  {}
func (o *Offset) Tag() string { return TagOffset }

func (o *Offset) String() string {
	return fmt.Sprintf("Offset value by %s", o.offset)
}

func (o *Offset) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		return arith(TagOffset, v, o.offset,
			func(a, b int64) int64 { return a + b },
			func(a, b float64) float64 { return a + b })
	})
}

// Scale multiplies by a constant. Integer inputs with an integer factor stay
// integers.
type Scale struct {
	factor Number
}

// NewScale creates a Scale.
func NewScale(factor Number) *Scale { return &Scale{factor: factor} }

func (s *Scale) operation()  {}
func (s *Scale) Tag() string { return TagScale }

func (s *Scale) String() string {
	return fmt.Sprintf("Scale value by %s", s.factor)
}

func (s *Scale) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		return arith(TagScale, v, s.factor,
			func(a, b int64) int64 { return a * b },
			func(a, b float64) float64 { return a * b })
	})
}

func arith(op string, v any, n Number, ints func(a, b int64) int64, floats func(a, b float64) float64) (any, error) {
	switch x := v.(type) {
	case int64:
		if !n.IsFloat() {
			return ints(x, n.Value().(int64)), nil
		}
		return floats(float64(x), n.Float64()), nil
	case float64:
		return floats(x, n.Float64()), nil
	}
	return nil, typeError(op, v, "number")
}

type offsetWire struct {
	Operation string  `json:"operation"`
	Offset    *Number `json:"offset"`
}

func (o *Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal(offsetWire{Operation: TagOffset, Offset: &o.offset})
}

func decodeOffset(data []byte) (Operation, error) {
	var w offsetWire
	if err := decodeParams(TagOffset, data, &w); err != nil {
		return nil, err
	}
	if w.Offset == nil {
		return nil, missing(TagOffset, "offset")
	}
	return NewOffset(*w.Offset), nil
}

type scaleWire struct {
	Operation     string  `json:"operation"`
	ScalingFactor *Number `json:"scaling_factor"`
}

func (s *Scale) MarshalJSON() ([]byte, error) {
	return json.Marshal(scaleWire{Operation: TagScale, ScalingFactor: &s.factor})
}

func decodeScale(data []byte) (Operation, error) {
	var w scaleWire
	if err := decodeParams(TagScale, data, &w); err != nil {
		return nil, err
	}
	if w.ScalingFactor == nil {
		return nil, missing(TagScale, "scaling_factor")
	}
	return NewScale(*w.ScalingFactor), nil
}
