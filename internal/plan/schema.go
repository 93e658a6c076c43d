package plan

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/training_plan_v1.json
var schemaJSON []byte

const schemaURL = "mem://schemas/training_plan_v1.json"

// Schema validates plan trees against the embedded v1 contract. It is built once and
// is safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
	raw      map[string]any
}

// LoadSchema compiles the embedded schema.
func LoadSchema() (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add plan schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(schemaJSON, &raw); err != nil {
		return nil, fmt.Errorf("decode plan schema: %w", err)
	}
	return &Schema{compiled: compiled, raw: raw}, nil
}

// MustLoadSchema panics when the embedded schema does not compile.
func MustLoadSchema() *Schema {
	s, err := LoadSchema()
	if err != nil {
		panic(err)
	}
	return s
}

// Definition returns the schema as a JSON tree, for embedding in provider requests.
// Callers must not mutate it.
func (s *Schema) Definition() map[string]any {
	return s.raw
}

// Validate returns the sorted list of violations; an empty list means the tree is valid.
// The tree is expected to come from ParseJSON (numbers as json.Number) or from
// marshalling a Document.
func (s *Schema) Validate(tree any) []string {
	err := s.compiled.Validate(tree)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	seen := map[string]struct{}{}
	var out []string
	collectLeaves(verr, seen, &out)
	sort.Strings(out)
	return out
}

// ValidateDocument validates a typed document by round-tripping it through JSON.
func (s *Schema) ValidateDocument(doc *Document) []string {
	tree, err := ToTree(doc)
	if err != nil {
		return []string{err.Error()}
	}
	return s.Validate(tree)
}

func collectLeaves(e *jsonschema.ValidationError, seen map[string]struct{}, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msg := loc + ": " + strings.TrimSpace(e.Message)
		if _, ok := seen[msg]; !ok {
			seen[msg] = struct{}{}
			*out = append(*out, msg)
		}
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, seen, out)
	}
}

// ToTree converts a typed document into the generic tree form used by Validate.
func ToTree(doc *Document) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return decodeTree(b)
}

// Decode converts a validated tree into a typed Document. Integral numbers spelled
// with a fraction or exponent, such as 120.0, decode as integers.
func Decode(tree any) (*Document, error) {
	b, err := json.Marshal(integralNumbers(tree))
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	return &doc, nil
}

// integralNumbers returns a copy of tree where every json.Number holding an integral
// value is rewritten in plain integer form.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = integralNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = integralNumbers(e)
		}
		return out
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		r, ok := new(big.Rat).SetString(string(t))
		if !ok || !r.IsInt() {
			return t
		}
		return json.Number(r.Num().String())
	default:
		return v
	}
}
