package ops

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text normalization modes.
const (
	NormalizeStrip             = "strip"
	NormalizeLower             = "lower"
	NormalizeUpper             = "upper"
	NormalizeAccents           = "remove_accents"
	NormalizePunctuation       = "remove_punctuation"
	NormalizeSpecialCharacters = "remove_special_characters"
)

var (
	// punctuation matches anything that is not a word character or whitespace.
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	// special matches anything that is not a decimal digit, ASCII letter or whitespace.
	special = regexp.MustCompile(`[^\p{Nd}a-zA-Z\s]`)
)

var normalizations = map[string]func(string) string{
	NormalizeStrip:             strings.TrimSpace,
	NormalizeLower:             func(s string) string { return cases.Lower(language.Und).String(s) },
	NormalizeUpper:             func(s string) string { return cases.Upper(language.Und).String(s) },
	NormalizeAccents:           removeAccents,
	NormalizePunctuation:       func(s string) string { return punctuation.ReplaceAllString(s, "") },
	NormalizeSpecialCharacters: func(s string) string { return special.ReplaceAllString(s, "") },
}

// removeAccents decomposes s, drops combining marks and recomposes the rest.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeText applies one text normalization to strings.
type NormalizeText struct {
	mode string
	fn   func(string) string
}

// NewNormalizeText creates a NormalizeText for one of the supported modes.
func NewNormalizeText(mode string) (*NormalizeText, error) {
	fn, ok := normalizations[mode]
	if !ok {
		return nil, validationError(TagNormalizeText, "unknown normalization %q", mode)
	}
	return &NormalizeText{mode: mode, fn: fn}, nil
}

func (n *NormalizeText) operation()  {}
func (n *NormalizeText) Tag() string { return TagNormalizeText }

func (n *NormalizeText) String() string {
	return fmt.Sprintf("Apply %s normalization", n.mode)
}

func (n *NormalizeText) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, typeError(TagNormalizeText, v, "string")
		}
		return n.fn(s), nil
	})
}

type normalizeTextWire struct {
	Operation     string  `json:"operation"`
	Normalization *string `json:"normalization"`
}

func (n *NormalizeText) MarshalJSON() ([]byte, error) {
	return json.Marshal(normalizeTextWire{Operation: TagNormalizeText, Normalization: &n.mode})
}

func decodeNormalizeText(data []byte) (Operation, error) {
	var w normalizeTextWire
	if err := decodeParams(TagNormalizeText, data, &w); err != nil {
		return nil, err
	}
	if w.Normalization == nil {
		return nil, missing(TagNormalizeText, "normalization")
	}
	return NewNormalizeText(*w.Normalization)
}

// Substitute replaces every match of a regular expression.
//
// Substitutions may use \1 or \g<name> group references; they are
// translated to the ${1} and ${name} forms of regexp.Expand.
type Substitute struct {
	expression   string
	substitution string
	re           *regexp.Regexp
	template     string
}

// NewSubstitute creates a Substitute. The expression must compile.
func NewSubstitute(expression, substitution string) (*Substitute, error) {
	re, err := regexp.Compile(expression)
	if err != nil {
		return nil, &Error{Code: ErrCodeValidation, Op: TagSubstitute, Message: fmt.Sprintf("invalid expression %q", expression), Err: err}
	}
	return &Substitute{
		expression:   expression,
		substitution: substitution,
		re:           re,
		template:     expandTemplate(substitution),
	}, nil
}

var (
	numberedGroup = regexp.MustCompile(`\\(\d+)`)
	namedGroup    = regexp.MustCompile(`\\g<(\w+)>`)
)

// expandTemplate rewrites backslash group references into regexp.Expand syntax
// and escapes literal dollar signs.
func expandTemplate(s string) string {
	s = strings.ReplaceAll(s, "$", "$$")
	s = namedGroup.ReplaceAllString(s, "$${$1}")
	return numberedGroup.ReplaceAllString(s, "$${$1}")
}

func (s *Substitute) operation()  {}
func (s *Substitute) Tag() string { return TagSubstitute }

func (s *Substitute) String() string {
	return fmt.Sprintf("Substitute %q with %q", s.expression, s.substitution)
}

func (s *Substitute) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		str, ok := v.(string)
		if !ok {
			return nil, typeError(TagSubstitute, v, "string")
		}
		return s.re.ReplaceAllString(str, s.template), nil
	})
}

type substituteWire struct {
	Operation    string  `json:"operation"`
	Expression   *string `json:"expression"`
	Substitution *string `json:"substitution"`
}

func (s *Substitute) MarshalJSON() ([]byte, error) {
	return json.Marshal(substituteWire{Operation: TagSubstitute, Expression: &s.expression, Substitution: &s.substitution})
}

func decodeSubstitute(data []byte) (Operation, error) {
	var w substituteWire
	if err := decodeParams(TagSubstitute, data, &w); err != nil {
		return nil, err
	}
	if w.Expression == nil {
		return nil, missing(TagSubstitute, "expression")
	}
	if w.Substitution == nil {
		return nil, missing(TagSubstitute, "substitution")
	}
	return NewSubstitute(*w.Expression, *w.Substitution)
}
