package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ParseFile decodes a rule file: a JSON object keyed by source, then target,
// whose leaves are serialized rules. The document is checked against the
// rule file schema first. Rules are returned in document order.
func ParseFile(data []byte) ([]*Rule, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var rules []*Rule
	for dec.More() {
		source, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("rules for source %q: %w", source, err)
		}
		for dec.More() {
			target, err := stringToken(dec)
			if err != nil {
				return nil, err
			}
			var r Rule
			if err := dec.Decode(&r); err != nil {
				return nil, fmt.Errorf("rule %s -> %s: %w", source, target, err)
			}
			rules = append(rules, &r)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return rules, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("unexpected end of rule file")
		}
		return fmt.Errorf("malformed rule file: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("malformed rule file: expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("malformed rule file: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("malformed rule file: expected key, got %v", tok)
	}
	return s, nil
}

// EncodeFile writes rules as a rule file, grouped by source in first-seen
// order and indented with two spaces.
func EncodeFile(rules []*Rule) ([]byte, error) {
	var sources []string
	grouped := make(map[string][]*Rule)
	for _, r := range rules {
		if _, ok := grouped[r.Source]; !ok {
			sources = append(sources, r.Source)
		}
		grouped[r.Source] = append(grouped[r.Source], r)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, source := range sources {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, source); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, r := range grouped[source] {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, r.Target); err != nil {
				return nil, err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.Pair(), err)
			}
			buf.Write(data)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent rule file: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte(':')
	return nil
}
