package ops

import (
	"encoding/json"
	"fmt"
)

// Reductions.
const (
	ReduceAny    = "any"
	ReduceNone   = "none"
	ReduceAll    = "all"
	ReduceSum    = "sum"
	ReduceOneHot = "one-hot"
)

var reductions = map[string]bool{
	ReduceAny: true, ReduceNone: true, ReduceAll: true, ReduceSum: true, ReduceOneHot: true,
}

// Reduce collapses a non-empty sequence to one value. A sequence whose
// elements are all sequences is reduced element by element.
//
// any, none and all aggregate truthiness and return 0 or 1. sum adds the
// values. one-hot returns the index of the single 1 in a sequence of 0/1
// flags.
type Reduce struct {
	reduction string
}

// NewReduce creates a Reduce for one of the supported reductions.
func NewReduce(reduction string) (*Reduce, error) {
	if !reductions[reduction] {
		return nil, validationError(TagReduce, "unknown reduction %q", reduction)
	}
	return &Reduce{reduction: reduction}, nil
}

func (r *Reduce) operation()  {}
func (r *Reduce) Tag() string { return TagReduce }

func (r *Reduce) String() string {
	return fmt.Sprintf("Apply %s reduction", r.reduction)
}

func (r *Reduce) Transform(value any) (any, error) {
	seq, ok := value.([]any)
	if !ok {
		return nil, typeError(TagReduce, value, "sequence")
	}
	if len(seq) > 0 && allSequences(seq) {
		out := make([]any, len(seq))
		for i, inner := range seq {
			v, err := r.reduce(inner.([]any))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return r.reduce(seq)
}

func allSequences(seq []any) bool {
	for _, v := range seq {
		if _, ok := v.([]any); !ok {
			return false
		}
	}
	return true
}

func (r *Reduce) reduce(seq []any) (any, error) {
	if len(seq) == 0 {
		return nil, valueError(TagReduce, "%s reduction requires a non-empty sequence", r.reduction)
	}
	switch r.reduction {
	case ReduceAny:
		return boolInt(countTruthy(seq) > 0), nil
	case ReduceNone:
		return boolInt(countTruthy(seq) == 0), nil
	case ReduceAll:
		return boolInt(countTruthy(seq) == len(seq)), nil
	case ReduceSum:
		return sum(seq)
	case ReduceOneHot:
		return oneHot(seq)
	}
	return nil, validationError(TagReduce, "unknown reduction %q", r.reduction)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	}
	return true
}

func countTruthy(seq []any) int {
	n := 0
	for _, v := range seq {
		if truthy(v) {
			n++
		}
	}
	return n
}

func sum(seq []any) (any, error) {
	var ints int64
	var floats float64
	isFloat := false
	for _, v := range seq {
		switch x := v.(type) {
		case int64:
			ints += x
		case float64:
			floats += x
			isFloat = true
		default:
			return nil, typeError(TagReduce, v, "number")
		}
	}
	if isFloat {
		return floats + float64(ints), nil
	}
	return ints, nil
}

func oneHot(seq []any) (any, error) {
	index := -1
	for i, v := range seq {
		f, ok := numeric(v)
		if b, isBool := v.(bool); isBool {
			f, ok = float64(boolInt(b)), true
		}
		if !ok || (f != 0 && f != 1) {
			return nil, valueError(TagReduce, "one-hot values must be 0 or 1, got %s at index %d", FormatValue(v), i)
		}
		if f == 1 {
			if index >= 0 {
				return nil, valueError(TagReduce, "one-hot sequence has more than one flipped bit")
			}
			index = i
		}
	}
	if index < 0 {
		return nil, valueError(TagReduce, "one-hot sequence has no flipped bit")
	}
	return int64(index), nil
}

type reduceWire struct {
	Operation string  `json:"operation"`
	Reduction *string `json:"reduction"`
}

func (r *Reduce) MarshalJSON() ([]byte, error) {
	return json.Marshal(reduceWire{Operation: TagReduce, Reduction: &r.reduction})
}

func decodeReduce(data []byte) (Operation, error) {
	var w reduceWire
	if err := decodeParams(TagReduce, data, &w); err != nil {
		return nil, err
	}
	if w.Reduction == nil {
		return nil, missing(TagReduce, "reduction")
	}
	return NewReduce(*w.Reduction)
}
