package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrUnparseable is returned when no JSON object can be recovered from model output.
var ErrUnparseable = errors.New("plan: output is not a JSON object")

// ParseJSON decodes model output into a generic tree. Output wrapped in prose or code
// fences is recovered by slicing from the first '{' to the last '}'. Numbers are kept
// as json.Number so integer checks in the schema stay exact.
func ParseJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrUnparseable
	}
	if tree, err := decodeObject([]byte(trimmed)); err == nil {
		return tree, nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, ErrUnparseable
	}
	tree, err := decodeObject([]byte(trimmed[start : end+1]))
	if err != nil {
		return nil, ErrUnparseable
	}
	return tree, nil
}

func decodeObject(b []byte) (map[string]any, error) {
	v, err := decodeTree(b)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrUnparseable
	}
	return obj, nil
}

func decodeTree(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// trailing garbage after the first value is not a single document
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrUnparseable
	}
	return v, nil
}
