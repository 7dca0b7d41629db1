package draft

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// IDField is the identifier field every collection record carries.
const IDField = "id"

// Record is one entity of a section: a flat object whose values are JSON
// trees. Collection records carry an integer IDField.
type Record map[string]any

// ID returns the record id. The second result is false when the record has
// no id or the id is not an integer.
func (r Record) ID() (int64, bool) {
	return r.Int(IDField)
}

// SetID replaces the record id.
func (r Record) SetID(id int64) {
	r[IDField] = id
}

// Int reads an integer field.
func (r Record) Int(field string) (int64, bool) {
	v, ok := r[field]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}

// Clone deep copies the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = clone(v)
	}
	return out
}

// Without returns a copy of r with the named fields removed.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Document is a full working copy: section name to either a Record (object
// sections) or a []Record (collection sections).
type Document map[string]any

// Clone deep copies the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = clone(v)
	}
	return out
}

// Position is one entry of a reorder request.
type Position struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func asRecord(v any) (Record, error) {
	switch t := v.(type) {
	case Record:
		return t, nil
	case map[string]any:
		return Record(t), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
}

func asRecords(v any) ([]Record, error) {
	switch t := v.(type) {
	case []Record:
		return t, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			r, err := asRecord(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, r)
		}
		return out, nil
	case nil:
		return []Record{}, nil
	default:
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
}
