package ops

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Round rounds floats to a number of decimal places using round-half-to-even.
// Integers are already exact and pass through.
type Round struct {
	precision int
}

// NewRound creates a Round. precision must be non-negative.
func NewRound(precision int) (*Round, error) {
	if precision < 0 {
		return nil, validationError(TagRound, "precision must be non-negative, got %d", precision)
	}
	return &Round{precision: precision}, nil
}

func (r *Round) operation()  {}
func (r *Round) Tag() string { return TagRound }

func (r *Round) String() string {
	return fmt.Sprintf("Round number to %d decimal precision", r.precision)
}

func (r *Round) Transform(value any) (any, error) {
	return elementwise(value, r.round)
}

func (r *Round) round(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return x, nil
		}
		return roundHalfEven(x, r.precision)
	}
	return nil, typeError(TagRound, v, "number")
}

// exactDigits is the number of fractional digits in the longest exact
// decimal expansion of a float64 (the smallest subnormal, 2^-1074).
const exactDigits = 1074

// roundHalfEven quantizes the exact binary value of f, so 2.675 (stored as
// 2.67499999...) rounds down to 2.67.
func roundHalfEven(f float64, precision int) (float64, error) {
	if math.Abs(f) >= 1<<53 || precision >= exactDigits {
		return f, nil
	}
	d, _, err := apd.NewFromString(new(big.Float).SetFloat64(f).Text('f', exactDigits))
	if err != nil {
		return 0, valueError(TagRound, "cannot round %v: %v", f, err)
	}
	ctx := apd.BaseContext.WithPrecision(exactDigits + 32)
	ctx.Rounding = apd.RoundHalfEven
	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, -int32(precision)); err != nil {
		return 0, valueError(TagRound, "cannot round %v: %v", f, err)
	}
	return out.Float64()
}

// FormatNumber renders numbers as strings with a fixed number of decimals.
type FormatNumber struct {
	precision int
}

// NewFormatNumber creates a FormatNumber. precision must be non-negative.
func NewFormatNumber(precision int) (*FormatNumber, error) {
	if precision < 0 {
		return nil, validationError(TagFormatNumber, "precision must be non-negative, got %d", precision)
	}
	return &FormatNumber{precision: precision}, nil
}

func (f *FormatNumber) operation()  {}
func (f *FormatNumber) Tag() string { return TagFormatNumber }

func (f *FormatNumber) String() string {
	return fmt.Sprintf("Format number to %d decimal places", f.precision)
}

func (f *FormatNumber) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		if _, ok := v.(bool); ok {
			return nil, typeError(TagFormatNumber, v, "number")
		}
		n, ok := numeric(v)
		if !ok {
			return nil, typeError(TagFormatNumber, v, "number")
		}
		return strconv.FormatFloat(n, 'f', f.precision, 64), nil
	})
}

type precisionWire struct {
	Operation string  `json:"operation"`
	Precision *Number `json:"precision"`
}

func (r *Round) MarshalJSON() ([]byte, error) {
	p := Int(int64(r.precision))
	return json.Marshal(precisionWire{Operation: TagRound, Precision: &p})
}

func (f *FormatNumber) MarshalJSON() ([]byte, error) {
	p := Int(int64(f.precision))
	return json.Marshal(precisionWire{Operation: TagFormatNumber, Precision: &p})
}

func decodePrecision(op string, data []byte) (int, error) {
	var w precisionWire
	if err := decodeParams(op, data, &w); err != nil {
		return 0, err
	}
	if w.Precision == nil {
		return 0, missing(op, "precision")
	}
	return integerParam(op, "precision", *w.Precision)
}

// integerParam checks that n is an integer that fits in an int.
func integerParam(op, name string, n Number) (int, error) {
	if n.IsFloat() && !isIntegral(n.Float64()) {
		return 0, validationError(op, "%s must be an integer, got %s", name, n)
	}
	if n.Float64() > math.MaxInt32 || n.Float64() < math.MinInt32 {
		return 0, validationError(op, "%s out of range: %s", name, n)
	}
	return int(n.Float64()), nil
}

func decodeRound(data []byte) (Operation, error) {
	p, err := decodePrecision(TagRound, data)
	if err != nil {
		return nil, err
	}
	return NewRound(p)
}

func decodeFormatNumber(data []byte) (Operation, error) {
	p, err := decodePrecision(TagFormatNumber, data)
	if err != nil {
		return nil, err
	}
	return NewFormatNumber(p)
}
