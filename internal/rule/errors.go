package rule

import (
	"errors"
	"fmt"
)

// NotFoundError reports a (source, target) pair with no rule.
type NotFoundError struct {
	Source string
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("rule not found for source=%s target=%s", e.Source, e.Target)
}

// IsNotFound reports whether err is a NotFoundError.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// SchemaError reports a rule file that does not match the rule file schema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("rule file does not match schema: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
