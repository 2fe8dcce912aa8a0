package ops

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Wire tags. Published tags never change.
const (
	TagCast             = "cast"
	TagThreshold        = "threshold"
	TagBin              = "bin"
	TagEnumToEnum       = "enum_to_enum"
	TagConvertUnits     = "convert_units"
	TagConvertDate      = "convert_date"
	TagNormalizeText    = "normalize_text"
	TagNormalizeBoolean = "normalize_boolean"
	TagSubstitute       = "substitute"
	TagOffset           = "offset"
	TagScale            = "scale"
	TagReduce           = "reduce"
	TagRound            = "round"
	TagFormatNumber     = "format_number"
	TagTruncate         = "truncate"
	TagDoNothing        = "do_nothing"
)

// Operation is a primitive value transform.
//
// Transform is pure and deterministic; the only side effects are warning
// log records. MarshalJSON produces the tagged wire form, and
// Decode(MarshalJSON()) yields an Operation that transforms identically.
//
// The interface is sealed: all implementations live in this package.
type Operation interface {
	json.Marshaler

	// Tag returns the wire tag.
	Tag() string

	// Transform applies the operation to a value.
	Transform(value any) (any, error)

	// String describes the operation for humans.
	String() string

	operation()
}

type decodeFunc func(data []byte) (Operation, error)

// decoders maps each wire tag to its constructor.
var decoders = map[string]decodeFunc{
	TagCast:             decodeCast,
	TagThreshold:        decodeThreshold,
	TagBin:              decodeBin,
	TagEnumToEnum:       decodeEnumToEnum,
	TagConvertUnits:     decodeConvertUnits,
	TagConvertDate:      decodeConvertDate,
	TagNormalizeText:    decodeNormalizeText,
	TagNormalizeBoolean: decodeNormalizeBoolean,
	TagSubstitute:       decodeSubstitute,
	TagOffset:           decodeOffset,
	TagScale:            decodeScale,
	TagReduce:           decodeReduce,
	TagRound:            decodeRound,
	TagFormatNumber:     decodeFormatNumber,
	TagTruncate:         decodeTruncate,
	TagDoNothing:        decodeDoNothing,
}

// Decode builds an Operation from its tagged JSON form.
// Unknown tags fail with an UNKNOWN_OPERATION error; bad parameters fail
// with a VALIDATION_ERROR.
func Decode(data []byte) (Operation, error) {
	var head struct {
		Operation *string `json:"operation"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &Error{Code: ErrCodeValidation, Message: "malformed operation", Err: err}
	}
	if head.Operation == nil {
		return nil, validationError("", "missing \"operation\" field")
	}
	decode, ok := decoders[*head.Operation]
	if !ok {
		return nil, NewUnknownOperationError(*head.Operation)
	}
	return decode(data)
}

// Tags returns every supported wire tag in sorted order.
func Tags() []string {
	tags := make([]string, 0, len(decoders))
	for tag := range decoders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// decodeParams unmarshals operation parameters with numbers preserved.
func decodeParams(op string, data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &Error{Code: ErrCodeValidation, Op: op, Message: "invalid parameters", Err: err}
	}
	return nil
}

func missing(op, field string) *Error {
	return validationError(op, "missing required parameter %q", field)
}
