package draft

import (
	"fmt"
	"sort"
)

// Kind tells whether a section holds one record or an ordered collection.
type Kind int

const (
	KindObject Kind = iota
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindCollection:
		return "collection"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// SectionSpec declares one section of a Document.
type SectionSpec struct {
	Name string
	Kind Kind
	// ForeignKeys maps a field of this section's records to the name of the
	// collection section whose ids it references.
	ForeignKeys map[string]string
	// Default is the value of an object section in an empty Document.
	Default Record
}

// Schema is the fixed shape of a Document.
type Schema struct {
	Sections []SectionSpec
}

// Lookup returns the spec for the named section.
func (s Schema) Lookup(name string) (SectionSpec, bool) {
	for _, sec := range s.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return SectionSpec{}, false
}

// Empty returns the Document an uninitialized store exposes.
func (s Schema) Empty() Document {
	doc := make(Document, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.Kind == KindObject {
			if sec.Default != nil {
				doc[sec.Name] = sec.Default.Clone()
			} else {
				doc[sec.Name] = Record{}
			}
			continue
		}
		doc[sec.Name] = []Record{}
	}
	return doc
}

// Validate checks that section names are unique and that every foreign key
// points at a declared collection section.
func (s Schema) Validate() error {
	seen := make(map[string]Kind, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.Name == "" {
			return fmt.Errorf("section with empty name")
		}
		if _, ok := seen[sec.Name]; ok {
			return fmt.Errorf("section %q declared twice", sec.Name)
		}
		seen[sec.Name] = sec.Kind
	}
	for _, sec := range s.Sections {
		for field, parent := range sec.ForeignKeys {
			kind, ok := seen[parent]
			if !ok {
				return fmt.Errorf("section %q field %q: %w: %q", sec.Name, field, ErrUnknownSection, parent)
			}
			if kind != KindCollection {
				return fmt.Errorf("section %q field %q references object section %q: %w", sec.Name, field, parent, ErrWrongKind)
			}
		}
	}
	_, err := s.PublishOrder()
	return err
}

// PublishOrder lists object sections first, in declaration order, followed
// by collection sections ordered so that every parent precedes the sections
// whose foreign keys reference it.
func (s Schema) PublishOrder() ([]SectionSpec, error) {
	var objects, collections []SectionSpec
	for _, sec := range s.Sections {
		if sec.Kind == KindObject {
			objects = append(objects, sec)
		} else {
			collections = append(collections, sec)
		}
	}

	index := make(map[string]int, len(collections))
	for i, sec := range collections {
		index[sec.Name] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(collections))
	ordered := make([]SectionSpec, 0, len(collections))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrSchemaCycle, collections[i].Name)
		}
		state[i] = visiting
		for _, parent := range sortedParents(collections[i]) {
			if parent == collections[i].Name {
				continue
			}
			if j, ok := index[parent]; ok {
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		state[i] = done
		ordered = append(ordered, collections[i])
		return nil
	}
	for i := range collections {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return append(objects, ordered...), nil
}

// children lists the (section, field) pairs whose foreign key references
// parent.
func (s Schema) children(parent string) []foreignKey {
	var out []foreignKey
	for _, sec := range s.Sections {
		for field, target := range sec.ForeignKeys {
			if target == parent {
				out = append(out, foreignKey{section: sec.Name, field: field})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].section != out[j].section {
			return out[i].section < out[j].section
		}
		return out[i].field < out[j].field
	})
	return out
}

type foreignKey struct {
	section string
	field   string
}

func sortedParents(sec SectionSpec) []string {
	parents := make([]string, 0, len(sec.ForeignKeys))
	for _, p := range sec.ForeignKeys {
		parents = append(parents, p)
	}
	sort.Strings(parents)
	return parents
}
