package ops

import (
	"encoding/json"
	"fmt"
	"math"
)

// Threshold clamps numbers into [lower, upper].
//
// When either bound is a float the result is a float. With integer bounds an
// integer input stays an integer, and a float input that falls inside the
// range is returned unchanged. NaN compares false against both bounds and
// clamps to upper.
type Threshold struct {
	lower Number
	upper Number
}

// NewThreshold creates a Threshold. lower must not exceed upper.
func NewThreshold(lower, upper Number) (*Threshold, error) {
	if lower.Float64() > upper.Float64() {
		return nil, validationError(TagThreshold, "lower bound %s exceeds upper bound %s", lower, upper)
	}
	return &Threshold{lower: lower, upper: upper}, nil
}

func (t *Threshold) operation()  {}
func (t *Threshold) Tag() string { return TagThreshold }

func (t *Threshold) String() string {
	return fmt.Sprintf("Threshold values to [%s, %s]", t.lower, t.upper)
}

func (t *Threshold) Transform(value any) (any, error) {
	return elementwise(value, t.clamp)
}

func (t *Threshold) clamp(v any) (any, error) {
	if _, ok := v.(bool); ok {
		return nil, typeError(TagThreshold, v, "number")
	}
	f, ok := numeric(v)
	if !ok {
		return nil, typeError(TagThreshold, v, "number")
	}
	if math.IsNaN(f) {
		if t.lower.IsFloat() || t.upper.IsFloat() {
			return t.upper.Float64(), nil
		}
		return t.upper.Value(), nil
	}
	if t.lower.IsFloat() || t.upper.IsFloat() {
		switch {
		case f < t.lower.Float64():
			return t.lower.Float64(), nil
		case f > t.upper.Float64():
			return t.upper.Float64(), nil
		}
		return f, nil
	}
	switch {
	case f < t.lower.Float64():
		return t.lower.Value(), nil
	case f > t.upper.Float64():
		return t.upper.Value(), nil
	}
	return v, nil
}

type thresholdWire struct {
	Operation string  `json:"operation"`
	Lower     *Number `json:"lower"`
	Upper     *Number `json:"upper"`
}

func (t *Threshold) MarshalJSON() ([]byte, error) {
	return json.Marshal(thresholdWire{Operation: TagThreshold, Lower: &t.lower, Upper: &t.upper})
}

func decodeThreshold(data []byte) (Operation, error) {
	var w thresholdWire
	if err := decodeParams(TagThreshold, data, &w); err != nil {
		return nil, err
	}
	if w.Lower == nil {
		return nil, missing(TagThreshold, "lower")
	}
	if w.Upper == nil {
		return nil, missing(TagThreshold, "upper")
	}
	return NewThreshold(*w.Lower, *w.Upper)
}
