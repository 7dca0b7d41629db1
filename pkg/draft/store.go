package draft

import (
	"fmt"
	"sync"
)

// State is the dirty/clean state of a Store. Saving is tracked separately.
type State int

const (
	StateUninitialized State = iota
	StateClean
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store owns the working copy of a page and the snapshot it was loaded from
// or last published as.
//
// All methods are safe for concurrent use. The Document returned by Data is
// the live working copy and is only safe to read from the goroutine that
// applies commands; any other reader uses View.
type Store struct {
	mu       sync.Mutex
	schema   Schema
	working  Document
	snapshot Document
	tempIDs  *TempIDs
	ready    bool
	saving   bool
	obs      observers
}

// New returns an uninitialized store for schema. Until Initialize is called
// the working copy holds the schema's empty defaults.
func New(schema Schema) *Store {
	return &Store{
		schema:   schema,
		working:  schema.Empty(),
		snapshot: schema.Empty(),
		tempIDs:  NewTempIDs(),
	}
}

// Schema returns the schema the store was created with.
func (s *Store) Schema() Schema {
	return s.schema
}

// Initialize loads doc as both the working copy and the snapshot. Sections
// missing from doc get their empty default. The temp id sequence restarts at
// -1 and the container returned by Data keeps its identity.
func (s *Store) Initialize(doc Document) error {
	loaded, err := s.load(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	replaceContents(s.working, loaded)
	s.snapshot = loaded.Clone()
	s.tempIDs.Reset()
	s.ready = true
	s.saving = false
	ev := s.eventLocked(EventInitialized, "")
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

func (s *Store) load(doc Document) (Document, error) {
	for name := range doc {
		if _, ok := s.schema.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
		}
	}
	out := s.schema.Empty()
	for _, sec := range s.schema.Sections {
		raw, ok := doc[sec.Name]
		if !ok {
			continue
		}
		norm, err := normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name, err)
		}
		if sec.Kind == KindObject {
			rec, err := asRecord(norm)
			if err != nil {
				return nil, fmt.Errorf("section %q: %w", sec.Name, err)
			}
			if rec == nil {
				rec = Record{}
			}
			out[sec.Name] = rec
			continue
		}
		recs, err := asRecords(norm)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name, err)
		}
		seen := make(map[int64]struct{}, len(recs))
		for i, r := range recs {
			if r == nil {
				return nil, fmt.Errorf("section %q item %d: %w", sec.Name, i, ErrRecordNotFound)
			}
			id, ok := r.ID()
			if !ok {
				return nil, fmt.Errorf("section %q item %d: record has no integer id", sec.Name, i)
			}
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("section %q: %w: %d", sec.Name, ErrDuplicateID, id)
			}
			seen[id] = struct{}{}
			r.SetID(id)
		}
		out[sec.Name] = recs
	}
	return out, nil
}

// Data returns the live working copy.
func (s *Store) Data() Document {
	return s.working
}

// View returns a deep copy of the working copy.
func (s *Store) View() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// Section returns a deep copy of the named section of the working copy:
// a Record for object sections, a []Record for collections.
func (s *Store) Section(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sectionLocked(name); err != nil {
		return nil, err
	}
	return clone(s.working[name]), nil
}

// Object returns a copy of an object section.
func (s *Store) Object(name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.objectLocked(s.working, name)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Collection returns a copy of a collection section.
func (s *Store) Collection(name string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, err := s.collectionLocked(s.working, name)
	if err != nil {
		return nil, err
	}
	return clone(recs).([]Record), nil
}

// Snapshot returns a deep copy of the named section of the snapshot.
func (s *Store) Snapshot(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sectionLocked(name); err != nil {
		return nil, err
	}
	return clone(s.snapshot[name]), nil
}

// NextTempID allocates a temporary id for a record that is not persisted.
func (s *Store) NextTempID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempIDs.Next()
}

// HasChanges reports whether the named section differs from the snapshot.
// It is false for unknown sections and on an uninitialized store.
func (s *Store) HasChanges(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasChangesLocked(name)
}

func (s *Store) hasChangesLocked(name string) bool {
	sec, err := s.sectionLocked(name)
	if err != nil {
		return false
	}
	if sec.Kind == KindObject {
		cur, _ := asRecord(s.working[name])
		saved, _ := asRecord(s.snapshot[name])
		return !Equal(cur, saved)
	}
	cur, _ := asRecords(s.working[name])
	saved, _ := asRecords(s.snapshot[name])
	return !DiffCollection(cur, saved).Empty()
}

// ObjectDiff returns the changed fields of an object section, or nil.
func (s *Store) ObjectDiff(name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.objectLocked(s.working, name)
	if err != nil {
		return nil, err
	}
	saved, err := s.objectLocked(s.snapshot, name)
	if err != nil {
		return nil, err
	}
	return DiffObject(cur, saved), nil
}

// CollectionDiff returns the diff of a collection section against the
// snapshot.
func (s *Store) CollectionDiff(name string) (CollectionDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.collectionLocked(s.working, name)
	if err != nil {
		return CollectionDiff{}, err
	}
	saved, err := s.collectionLocked(s.snapshot, name)
	if err != nil {
		return CollectionDiff{}, err
	}
	return DiffCollection(cur, saved), nil
}

// IsDirty reports whether the working copy differs from the snapshot as a
// whole.
func (s *Store) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Store) dirtyLocked() bool {
	if !s.ready {
		return false
	}
	return !Equal(s.working, s.snapshot)
}

// IsSaving reports whether a save is in progress.
func (s *Store) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// State returns the current dirty/clean state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.ready:
		return StateUninitialized
	case s.dirtyLocked():
		return StateDirty
	default:
		return StateClean
	}
}

// BeginSave sets the Saving flag. It returns false, and changes nothing,
// when a save is already in progress.
func (s *Store) BeginSave() bool {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return false
	}
	s.saving = true
	ev := s.eventLocked(EventSaving, "")
	s.mu.Unlock()

	s.emit(ev)
	return true
}

// EndSave clears the Saving flag without touching the snapshot.
func (s *Store) EndSave() {
	s.mu.Lock()
	if !s.saving {
		s.mu.Unlock()
		return
	}
	s.saving = false
	ev := s.eventLocked(EventSaving, "")
	s.mu.Unlock()

	s.emit(ev)
}

// beginPublish sets Saving and returns private copies of the working copy
// and the snapshot.
func (s *Store) beginPublish() (working, snapshot Document, err error) {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil, nil, ErrUninitialized
	}
	if s.saving {
		s.mu.Unlock()
		return nil, nil, ErrSaveInProgress
	}
	s.saving = true
	working, snapshot = s.working.Clone(), s.snapshot.Clone()
	ev := s.eventLocked(EventSaving, "")
	s.mu.Unlock()

	s.emit(ev)
	return working, snapshot, nil
}

// CommitSave makes the working copy the new snapshot and clears Saving.
func (s *Store) CommitSave() error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrUninitialized
	}
	s.snapshot = s.working.Clone()
	s.saving = false
	ev := s.eventLocked(EventSaved, "")
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Undo discards every edit made since the last Initialize or CommitSave.
// It fails with ErrSaveInProgress while a save is running, since the save
// commits the working copy it was started from.
func (s *Store) Undo() error {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return ErrUninitialized
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	replaceContents(s.working, s.snapshot.Clone())
	ev := s.eventLocked(EventReverted, "")
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Reset clears both the working copy and the snapshot back to the schema's
// empty defaults and returns the store to the uninitialized state.
func (s *Store) Reset() {
	s.mu.Lock()
	ev := s.resetLocked()
	s.mu.Unlock()

	s.emit(ev)
}

// TryReset is Reset unless a save is in progress, in which case it returns
// ErrSaveInProgress and changes nothing.
func (s *Store) TryReset() error {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	ev := s.resetLocked()
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

func (s *Store) resetLocked() Event {
	replaceContents(s.working, s.schema.Empty())
	s.snapshot = s.schema.Empty()
	s.tempIDs.Reset()
	s.ready = false
	s.saving = false
	return s.eventLocked(EventReset, "")
}

// ApplyIDMap replaces temporary ids with the server ids in idMap, both as
// record ids and as foreign key values, throughout the working copy.
func (s *Store) ApplyIDMap(idMap map[int64]int64) {
	if len(idMap) == 0 {
		return
	}
	s.mu.Lock()
	for _, sec := range s.schema.Sections {
		if sec.Kind != KindCollection {
			continue
		}
		recs, err := asRecords(s.working[sec.Name])
		if err != nil {
			continue
		}
		for _, r := range recs {
			remapRecord(r, sec, idMap)
		}
	}
	ev := s.eventLocked(EventChanged, "")
	s.mu.Unlock()

	s.emit(ev)
}

// Subscribe registers fn for every subsequent event. The returned function
// removes the registration.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.mu.Lock()
	id := s.obs.add(fn)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.obs.remove(id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) eventLocked(kind EventKind, section string) Event {
	return Event{
		Kind:    kind,
		Section: section,
		Dirty:   s.dirtyLocked(),
		Saving:  s.saving,
	}
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	fns := s.obs.snapshot()
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) sectionLocked(name string) (SectionSpec, error) {
	sec, ok := s.schema.Lookup(name)
	if !ok {
		return SectionSpec{}, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
	if !s.ready {
		return SectionSpec{}, ErrUninitialized
	}
	return sec, nil
}

func (s *Store) objectLocked(doc Document, name string) (Record, error) {
	sec, err := s.sectionLocked(name)
	if err != nil {
		return nil, err
	}
	if sec.Kind != KindObject {
		return nil, fmt.Errorf("%w: %q is a %s", ErrWrongKind, name, sec.Kind)
	}
	return asRecord(doc[name])
}

func (s *Store) collectionLocked(doc Document, name string) ([]Record, error) {
	sec, err := s.sectionLocked(name)
	if err != nil {
		return nil, err
	}
	if sec.Kind != KindCollection {
		return nil, fmt.Errorf("%w: %q is a %s", ErrWrongKind, name, sec.Kind)
	}
	return asRecords(doc[name])
}

// remapRecord rewrites the id and foreign keys of r in place.
func remapRecord(r Record, sec SectionSpec, idMap map[int64]int64) {
	if id, ok := r.ID(); ok {
		if realID, found := idMap[id]; found {
			r.SetID(realID)
		}
	}
	for field := range sec.ForeignKeys {
		if ref, ok := r.Int(field); ok {
			if realID, found := idMap[ref]; found {
				r[field] = realID
			}
		}
	}
}

// replaceContents swaps the contents of dst for those of src, keeping dst's
// map identity.
func replaceContents(dst, src Document) {
	for k := range dst {
		delete(dst, k)
	}
	for k, v := range src {
		dst[k] = v
	}
}
