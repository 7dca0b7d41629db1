package draft

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Command is one mutation of the working copy.
type Command interface {
	// Type is the name used in the JSON envelope accepted by DecodeCommand.
	Type() string
	apply(s *Store) (ApplyResult, error)
}

// ApplyResult reports the effect of an applied command.
type ApplyResult struct {
	// ID is the temporary id assigned by AddRecord.
	ID int64 `json:"id,omitempty"`
	// Removed lists, per section, the ids dropped by RemoveRecord including
	// records removed through foreign key cascades.
	Removed map[string][]int64 `json:"removed,omitempty"`
	Dirty   bool               `json:"dirty"`
}

// SetField sets one field of a record. ID is ignored for object sections.
type SetField struct {
	Section string `json:"section"`
	ID      int64  `json:"id,omitempty"`
	Field   string `json:"field"`
	Value   any    `json:"value"`
}

// AddRecord inserts a new record into a collection at Index. A negative or
// out of range Index appends. The record always receives a fresh temporary
// id; any id it carries is replaced.
type AddRecord struct {
	Section string `json:"section"`
	Record  Record `json:"record"`
	Index   int    `json:"index"`
}

// RemoveRecord removes a record from a collection, together with every
// record of a child section whose foreign key references it.
type RemoveRecord struct {
	Section string `json:"section"`
	ID      int64  `json:"id"`
}

// Reorder rearranges a collection. IDs must be a permutation of the ids the
// section currently holds.
type Reorder struct {
	Section string  `json:"section"`
	IDs     []int64 `json:"ids"`
}

// ReplaceObject replaces the whole record of an object section.
type ReplaceObject struct {
	Section string `json:"section"`
	Record  Record `json:"record"`
}

func (SetField) Type() string      { return "setField" }
func (AddRecord) Type() string     { return "addRecord" }
func (RemoveRecord) Type() string  { return "removeRecord" }
func (Reorder) Type() string       { return "reorder" }
func (ReplaceObject) Type() string { return "replaceObject" }

// Apply validates cmd against the working copy and applies it. A command
// that fails validation leaves the working copy untouched. Commands are
// rejected with ErrSaveInProgress while a save is running.
func (s *Store) Apply(cmd Command) (ApplyResult, error) {
	if cmd == nil {
		return ApplyResult{}, ErrUnknownCommand
	}
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ApplyResult{}, ErrUninitialized
	}
	if s.saving {
		s.mu.Unlock()
		return ApplyResult{}, ErrSaveInProgress
	}
	res, err := cmd.apply(s)
	if err != nil {
		s.mu.Unlock()
		return ApplyResult{}, fmt.Errorf("%s: %w", cmd.Type(), err)
	}
	res.Dirty = s.dirtyLocked()
	ev := s.eventLocked(EventChanged, commandSection(cmd))
	s.mu.Unlock()

	s.emit(ev)
	return res, nil
}

func commandSection(cmd Command) string {
	switch c := cmd.(type) {
	case SetField:
		return c.Section
	case *SetField:
		return c.Section
	case AddRecord:
		return c.Section
	case *AddRecord:
		return c.Section
	case RemoveRecord:
		return c.Section
	case *RemoveRecord:
		return c.Section
	case Reorder:
		return c.Section
	case *Reorder:
		return c.Section
	case ReplaceObject:
		return c.Section
	case *ReplaceObject:
		return c.Section
	}
	return ""
}

func (c SetField) apply(s *Store) (ApplyResult, error) {
	sec, err := s.sectionLocked(c.Section)
	if err != nil {
		return ApplyResult{}, err
	}
	if c.Field == "" {
		return ApplyResult{}, fmt.Errorf("empty field name")
	}
	value, err := normalize(c.Value)
	if err != nil {
		return ApplyResult{}, err
	}

	if sec.Kind == KindObject {
		rec, err := asRecord(s.working[c.Section])
		if err != nil {
			return ApplyResult{}, err
		}
		if rec == nil {
			rec = Record{}
			s.working[c.Section] = rec
		}
		rec[c.Field] = value
		return ApplyResult{}, nil
	}

	if c.Field == IDField {
		return ApplyResult{}, fmt.Errorf("%w: %q", ErrImmutableField, IDField)
	}
	recs, err := asRecords(s.working[c.Section])
	if err != nil {
		return ApplyResult{}, err
	}
	i := indexOf(recs, c.ID)
	if i < 0 {
		return ApplyResult{}, fmt.Errorf("%w: %s %d", ErrRecordNotFound, c.Section, c.ID)
	}
	if parent, isFK := sec.ForeignKeys[c.Field]; isFK {
		ref, ok := toInt64(value)
		if !ok {
			return ApplyResult{}, fmt.Errorf("field %q must be an integer id", c.Field)
		}
		if err := s.requireRecordLocked(parent, ref); err != nil {
			return ApplyResult{}, err
		}
		value = ref
	}
	recs[i][c.Field] = value
	return ApplyResult{}, nil
}

func (c AddRecord) apply(s *Store) (ApplyResult, error) {
	sec, err := s.sectionLocked(c.Section)
	if err != nil {
		return ApplyResult{}, err
	}
	if sec.Kind != KindCollection {
		return ApplyResult{}, fmt.Errorf("%w: %q is a %s", ErrWrongKind, c.Section, sec.Kind)
	}
	norm, err := normalize(c.Record)
	if err != nil {
		return ApplyResult{}, err
	}
	rec, err := asRecord(norm)
	if err != nil {
		return ApplyResult{}, err
	}
	if rec == nil {
		rec = Record{}
	}
	for field, parent := range sec.ForeignKeys {
		if _, present := rec[field]; !present {
			continue
		}
		ref, ok := rec.Int(field)
		if !ok {
			return ApplyResult{}, fmt.Errorf("field %q must be an integer id", field)
		}
		if err := s.requireRecordLocked(parent, ref); err != nil {
			return ApplyResult{}, err
		}
		rec[field] = ref
	}

	recs, err := asRecords(s.working[c.Section])
	if err != nil {
		return ApplyResult{}, err
	}
	id := s.tempIDs.Next()
	rec.SetID(id)

	if c.Index < 0 || c.Index >= len(recs) {
		recs = append(recs, rec)
	} else {
		recs = append(recs, nil)
		copy(recs[c.Index+1:], recs[c.Index:])
		recs[c.Index] = rec
	}
	s.working[c.Section] = recs
	return ApplyResult{ID: id}, nil
}

func (c RemoveRecord) apply(s *Store) (ApplyResult, error) {
	sec, err := s.sectionLocked(c.Section)
	if err != nil {
		return ApplyResult{}, err
	}
	if sec.Kind != KindCollection {
		return ApplyResult{}, fmt.Errorf("%w: %q is a %s", ErrWrongKind, c.Section, sec.Kind)
	}
	recs, err := asRecords(s.working[c.Section])
	if err != nil {
		return ApplyResult{}, err
	}
	if indexOf(recs, c.ID) < 0 {
		return ApplyResult{}, fmt.Errorf("%w: %s %d", ErrRecordNotFound, c.Section, c.ID)
	}

	removed := map[string][]int64{}
	s.removeLocked(c.Section, []int64{c.ID}, removed)
	return ApplyResult{Removed: removed}, nil
}

// removeLocked drops ids from section and cascades through child sections.
func (s *Store) removeLocked(section string, ids []int64, removed map[string][]int64) {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	recs, _ := asRecords(s.working[section])
	kept := recs[:0:0]
	for _, r := range recs {
		id, _ := r.ID()
		if _, ok := drop[id]; ok {
			removed[section] = append(removed[section], id)
			continue
		}
		kept = append(kept, r)
	}
	s.working[section] = kept

	for _, fk := range s.schema.children(section) {
		children, _ := asRecords(s.working[fk.section])
		var orphans []int64
		for _, r := range children {
			ref, ok := r.Int(fk.field)
			if !ok {
				continue
			}
			if _, gone := drop[ref]; gone {
				id, _ := r.ID()
				orphans = append(orphans, id)
			}
		}
		if len(orphans) > 0 {
			s.removeLocked(fk.section, orphans, removed)
		}
	}
}

func (c Reorder) apply(s *Store) (ApplyResult, error) {
	sec, err := s.sectionLocked(c.Section)
	if err != nil {
		return ApplyResult{}, err
	}
	if sec.Kind != KindCollection {
		return ApplyResult{}, fmt.Errorf("%w: %q is a %s", ErrWrongKind, c.Section, sec.Kind)
	}
	recs, err := asRecords(s.working[c.Section])
	if err != nil {
		return ApplyResult{}, err
	}
	if len(c.IDs) != len(recs) {
		return ApplyResult{}, fmt.Errorf("%w: got %d ids for %d records", ErrBadPermutation, len(c.IDs), len(recs))
	}
	byID := make(map[int64]Record, len(recs))
	for _, r := range recs {
		id, _ := r.ID()
		byID[id] = r
	}
	ordered := make([]Record, 0, len(recs))
	for _, id := range c.IDs {
		r, ok := byID[id]
		if !ok {
			return ApplyResult{}, fmt.Errorf("%w: id %d", ErrBadPermutation, id)
		}
		delete(byID, id)
		ordered = append(ordered, r)
	}
	s.working[c.Section] = ordered
	return ApplyResult{}, nil
}

func (c ReplaceObject) apply(s *Store) (ApplyResult, error) {
	sec, err := s.sectionLocked(c.Section)
	if err != nil {
		return ApplyResult{}, err
	}
	if sec.Kind != KindObject {
		return ApplyResult{}, fmt.Errorf("%w: %q is a %s", ErrWrongKind, c.Section, sec.Kind)
	}
	norm, err := normalize(c.Record)
	if err != nil {
		return ApplyResult{}, err
	}
	rec, err := asRecord(norm)
	if err != nil {
		return ApplyResult{}, err
	}
	if rec == nil {
		rec = Record{}
	}
	s.working[c.Section] = rec
	return ApplyResult{}, nil
}

func (s *Store) requireRecordLocked(section string, id int64) error {
	recs, err := asRecords(s.working[section])
	if err != nil {
		return err
	}
	if indexOf(recs, id) < 0 {
		return fmt.Errorf("%w: %s %d", ErrRecordNotFound, section, id)
	}
	return nil
}

func indexOf(recs []Record, id int64) int {
	for i, r := range recs {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

type envelope struct {
	Type string `json:"type"`
}

// DecodeCommand parses a JSON command such as
//
//	{"type": "setField", "section": "profile", "field": "bio", "value": "hi"}
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	var cmd Command
	var err error
	switch env.Type {
	case SetField{}.Type():
		var c SetField
		err = decodeNumbers(raw, &c)
		cmd = c
	case AddRecord{}.Type():
		c := AddRecord{Index: -1}
		err = decodeNumbers(raw, &c)
		cmd = c
	case RemoveRecord{}.Type():
		var c RemoveRecord
		err = decodeNumbers(raw, &c)
		cmd = c
	case Reorder{}.Type():
		var c Reorder
		err = decodeNumbers(raw, &c)
		cmd = c
	case ReplaceObject{}.Type():
		var c ReplaceObject
		err = decodeNumbers(raw, &c)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return cmd, nil
}

// EncodeCommand is the inverse of DecodeCommand.
func EncodeCommand(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(cmd.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}

func decodeNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
