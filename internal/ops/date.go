package ops

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/timefmt-go"
)

// ConvertDate re-formats date/time strings. Formats use strftime directives
// such as %Y-%m-%d.
type ConvertDate struct {
	sourceFormat string
	targetFormat string
}

// NewConvertDate creates a ConvertDate. Both formats must be non-empty.
func NewConvertDate(sourceFormat, targetFormat string) (*ConvertDate, error) {
	if sourceFormat == "" {
		return nil, validationError(TagConvertDate, "source_format must not be empty")
	}
	if targetFormat == "" {
		return nil, validationError(TagConvertDate, "target_format must not be empty")
	}
	return &ConvertDate{sourceFormat: sourceFormat, targetFormat: targetFormat}, nil
}

func (c *ConvertDate) operation()  {}
func (c *ConvertDate) Tag() string { return TagConvertDate }

func (c *ConvertDate) String() string {
	return fmt.Sprintf("Convert date time format from %s to %s", c.sourceFormat, c.targetFormat)
}

func (c *ConvertDate) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, typeError(TagConvertDate, v, "string")
		}
		t, err := timefmt.Parse(s, c.sourceFormat)
		if err != nil {
			return nil, &Error{
				Code:    ErrCodeValue,
				Op:      TagConvertDate,
				Message: fmt.Sprintf("failed to parse date/time value %q with source_format=%q", s, c.sourceFormat),
				Err:     err,
			}
		}
		return timefmt.Format(t, c.targetFormat), nil
	})
}

type dateWire struct {
	Operation    string  `json:"operation"`
	SourceFormat *string `json:"source_format"`
	TargetFormat *string `json:"target_format"`
}

func (c *ConvertDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateWire{Operation: TagConvertDate, SourceFormat: &c.sourceFormat, TargetFormat: &c.targetFormat})
}

func decodeConvertDate(data []byte) (Operation, error) {
	var w dateWire
	if err := decodeParams(TagConvertDate, data, &w); err != nil {
		return nil, err
	}
	if w.SourceFormat == nil {
		return nil, missing(TagConvertDate, "source_format")
	}
	if w.TargetFormat == nil {
		return nil, missing(TagConvertDate, "target_format")
	}
	return NewConvertDate(*w.SourceFormat, *w.TargetFormat)
}
