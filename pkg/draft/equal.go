package draft

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Canonical returns the deterministic serialization used for every
// comparison in this package. Object keys are emitted in sorted order, so two
// trees compare equal regardless of map iteration order. An absent key and a
// key holding null produce different output.
func Canonical(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Equal reports whether a and b have byte-identical canonical forms.
// Values that cannot be serialized are never equal.
func Equal(a, b any) bool {
	ab, err := Canonical(a)
	if err != nil {
		return false
	}
	bb, err := Canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// normalize converts an arbitrary Go value into the JSON tree shape stored in
// a Document: map[string]any for objects, []any for arrays, json.Number for
// numbers, plus strings, bools and nil.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// clone deep copies a normalized tree.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = clone(val)
		}
		return m
	case Record:
		return Record(clone(map[string]any(t)).(map[string]any))
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = clone(val)
		}
		return s
	case []Record:
		s := make([]Record, len(t))
		for i, r := range t {
			s[i] = r.Clone()
		}
		return s
	default:
		return t
	}
}
