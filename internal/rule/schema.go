package rule

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

// ValidateSchema checks the structure of a rule file document: an object of
// objects of rules, each with string source and target and a list of
// operations carrying a non-empty "operation" tag. Operation parameters are
// checked later, when the operations are decoded.
func ValidateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile rule schema: %w", err)
	}

	expr, err := cuejson.Extract("rules.json", data)
	if err != nil {
		return &SchemaError{Err: err}
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return &SchemaError{Err: err}
	}

	def := schema.LookupPath(cue.ParsePath("#RuleFile"))
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Err: err}
	}
	return nil
}
