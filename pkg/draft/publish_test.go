package draft

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Section string
	Op      Op
	ID      int64
	Fields  Record
	Order   []Position
}

type recorder struct {
	calls  []call
	nextID int64
	failOn func(c call) error
}

func (r *recorder) record(c call) error {
	if r.failOn != nil {
		if err := r.failOn(c); err != nil {
			return err
		}
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *recorder) ops() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, fmt.Sprintf("%s:%s", c.Section, c.Op))
	}
	return out
}

type fakeObject struct {
	section string
	rec     *recorder
}

func (f fakeObject) UpdateFields(_ context.Context, changes, _ Record) error {
	return f.rec.record(call{Section: f.section, Op: OpUpdate, Fields: changes})
}

type fakeCollection struct {
	section string
	rec     *recorder
}

func (f fakeCollection) Create(_ context.Context, fields Record) (int64, error) {
	f.rec.nextID++
	id := f.rec.nextID
	if err := f.rec.record(call{Section: f.section, Op: OpCreate, ID: id, Fields: fields}); err != nil {
		return 0, err
	}
	return id, nil
}

func (f fakeCollection) UpdateFields(_ context.Context, id int64, changes Record) error {
	return f.rec.record(call{Section: f.section, Op: OpUpdate, ID: id, Fields: changes})
}

func (f fakeCollection) Delete(_ context.Context, id int64) error {
	return f.rec.record(call{Section: f.section, Op: OpDelete, ID: id})
}

func (f fakeCollection) Reorder(_ context.Context, positions []Position) error {
	return f.rec.record(call{Section: f.section, Op: OpReorder, Order: positions})
}

func newPublisher(rec *recorder) *Publisher {
	w := Writers{
		Objects:     map[string]ObjectWriter{},
		Collections: map[string]CollectionWriter{},
	}
	for _, sec := range testSchema().Sections {
		if sec.Kind == KindObject {
			w.Objects[sec.Name] = fakeObject{section: sec.Name, rec: rec}
		} else {
			w.Collections[sec.Name] = fakeCollection{section: sec.Name, rec: rec}
		}
	}
	return NewPublisher(w, zerolog.Nop())
}

func save(t *testing.T, p *Publisher, s *Store) *Result {
	t.Helper()
	res, err := p.Publish(context.Background(), s)
	require.NoError(t, err)
	s.ApplyIDMap(res.IDMap)
	require.NoError(t, s.CommitSave())
	return res
}

func TestPublishNothing(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := newTestStore(t)
	res := save(t, newPublisher(rec), s)
	assert.Empty(t, rec.calls)
	assert.Empty(t, res.Sections)
	assert.False(t, s.IsDirty())
}

func TestPublishRemapsForeignKeys(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := New(testSchema())
	require.NoError(t, s.Initialize(Document{}))

	block, err := s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "links"}, Index: -1})
	require.NoError(t, err)
	require.Equal(t, int64(-1), block.ID)
	link, err := s.Apply(AddRecord{Section: "links", Record: Record{"blockId": block.ID, "url": "x"}, Index: -1})
	require.NoError(t, err)
	require.Equal(t, int64(-2), link.ID)

	res := save(t, newPublisher(rec), s)

	require.Equal(t, []string{"blocks:create", "blocks:reorder", "links:create", "links:reorder"}, rec.ops())
	blockID := rec.calls[0].ID
	assert.Equal(t, int64(101), blockID)
	assert.NotContains(t, rec.calls[0].Fields, IDField)
	requireJSON(t, `{"blockId":101,"url":"x"}`, rec.calls[2].Fields)
	assert.Equal(t, map[int64]int64{-1: 101, -2: 102}, res.IDMap)
	assert.Equal(t, []Position{{ID: 101, Position: 0}}, rec.calls[1].Order)

	assert.False(t, s.IsDirty())
	links, err := s.Collection("links")
	require.NoError(t, err)
	requireJSON(t, `[{"id":102,"blockId":101,"url":"x"}]`, links)
}

func TestPublishOrderOfOperations(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := newTestStore(t)

	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)
	_, err = s.Apply(SetField{Section: "appearance", Field: "accentColor", Value: "#000000"})
	require.NoError(t, err)
	_, err = s.Apply(RemoveRecord{Section: "links", ID: 10})
	require.NoError(t, err)
	_, err = s.Apply(SetField{Section: "links", ID: 11, Field: "url", Value: "https://b2.example"})
	require.NoError(t, err)
	_, err = s.Apply(AddRecord{Section: "links", Record: Record{"blockId": 1, "url": "https://c.example"}, Index: 0})
	require.NoError(t, err)
	_, err = s.Apply(SetField{Section: "tourDates", ID: 20, Field: "title", Value: "Hamburg"})
	require.NoError(t, err)

	res := save(t, newPublisher(rec), s)

	assert.Equal(t, []string{
		"profile:update",
		"appearance:update",
		"links:delete",
		"links:create",
		"links:update",
		"links:reorder",
		"tourDates:update",
	}, rec.ops())
	assert.Equal(t, Record{"bio": "y"}, rec.calls[0].Fields)
	assert.Equal(t, int64(10), rec.calls[2].ID)
	assert.Equal(t, []Position{{ID: 101, Position: 0}, {ID: 11, Position: 1}}, rec.calls[5].Order)
	assert.Equal(t, []string{"profile", "appearance", "links", "tourDates"}, res.Sections)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.Reordered)
	assert.False(t, s.IsDirty())

	rec.calls = nil
	save(t, newPublisher(rec), s)
	assert.Empty(t, rec.calls)
}

func TestPublishFailureKeepsDraft(t *testing.T) {
	boom := errors.New("connection reset")
	rec := &recorder{nextID: 100, failOn: func(c call) error {
		if c.Section == "links" && c.Op == OpCreate {
			return boom
		}
		return nil
	}}
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "blocks", ID: 1, Field: "label", Value: "More"})
	require.NoError(t, err)
	_, err = s.Apply(AddRecord{Section: "links", Record: Record{"blockId": 1, "url": "y"}, Index: -1})
	require.NoError(t, err)
	before := s.View()

	p := newPublisher(rec)
	res, err := p.Publish(context.Background(), s)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "links", perr.Section)
	assert.Equal(t, OpCreate, perr.Op)
	assert.Equal(t, int64(-1), perr.ID)

	assert.True(t, s.IsDirty())
	assert.False(t, s.IsSaving())
	assert.True(t, Equal(before, s.View()))
	assert.Equal(t, []string{"blocks:update"}, rec.ops())

	// A retry re-attempts the same diff.
	rec.failOn = nil
	rec.calls = nil
	save(t, p, s)
	assert.Equal(t, []string{"blocks:update", "links:create", "links:reorder"}, rec.ops())
	assert.False(t, s.IsDirty())
}

func TestPublishReentrancy(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)

	require.True(t, s.BeginSave())
	_, err = newPublisher(rec).Publish(context.Background(), s)
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.Empty(t, rec.calls)
	assert.True(t, s.IsSaving())
	assert.True(t, s.IsDirty())
}

func TestPublishUninitialized(t *testing.T) {
	_, err := newPublisher(&recorder{}).Publish(context.Background(), New(testSchema()))
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestPublishMissingWriter(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)

	p := NewPublisher(Writers{}, zerolog.Nop())
	_, err = p.Publish(context.Background(), s)
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.False(t, s.IsSaving())
}

func TestPublishBlockDeleteBeforeChildDeletes(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := newTestStore(t)
	_, err := s.Apply(RemoveRecord{Section: "blocks", ID: 1})
	require.NoError(t, err)

	save(t, newPublisher(rec), s)
	assert.Equal(t, []string{"blocks:delete", "blocks:reorder", "links:delete", "links:delete", "links:reorder"}, rec.ops())
}

func TestPublishObjectWithRemovedField(t *testing.T) {
	rec := &recorder{nextID: 100}
	s := newTestStore(t)
	_, err := s.Apply(ReplaceObject{Section: "appearance", Record: Record{}})
	require.NoError(t, err)

	res := save(t, newPublisher(rec), s)
	assert.Equal(t, []string{"appearance:update"}, rec.ops())
	assert.Empty(t, rec.calls[0].Fields)
	assert.Equal(t, []string{"appearance"}, res.Sections)
	assert.False(t, s.HasChanges("appearance"))
}
