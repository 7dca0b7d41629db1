package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{Sections: []SectionSpec{
		{Name: "links", Kind: KindCollection, ForeignKeys: map[string]string{"blockId": "blocks"}},
		{Name: "profile", Kind: KindObject, Default: Record{"name": ""}},
		{Name: "blocks", Kind: KindCollection},
		{Name: "tourDates", Kind: KindCollection, ForeignKeys: map[string]string{"blockId": "blocks"}},
		{Name: "appearance", Kind: KindObject},
	}}
}

func testDocument() Document {
	return Document{
		"profile": map[string]any{"name": "A", "bio": "x"},
		"blocks": []any{
			map[string]any{"id": 1, "type": "links", "label": "Links"},
			map[string]any{"id": 2, "type": "tour_dates", "label": "Tour"},
		},
		"links": []any{
			map[string]any{"id": 10, "blockId": 1, "url": "https://a.example"},
			map[string]any{"id": 11, "blockId": 1, "url": "https://b.example"},
		},
		"tourDates": []any{
			map[string]any{"id": 20, "blockId": 2, "title": "Berlin"},
		},
		"appearance": map[string]any{"accentColor": "#ff0000"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(testSchema())
	require.NoError(t, s.Initialize(testDocument()))
	return s
}

func TestStoreUninitialized(t *testing.T) {
	s := New(testSchema())
	assert.Equal(t, StateUninitialized, s.State())
	assert.False(t, s.IsDirty())
	assert.False(t, s.HasChanges("profile"))

	_, err := s.Section("profile")
	assert.ErrorIs(t, err, ErrUninitialized)
	_, err = s.Collection("links")
	assert.ErrorIs(t, err, ErrUninitialized)
	_, err = s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	assert.ErrorIs(t, err, ErrUninitialized)
	assert.ErrorIs(t, s.Undo(), ErrUninitialized)
	assert.ErrorIs(t, s.CommitSave(), ErrUninitialized)

	requireJSON(t, `{"profile":{"name":""},"appearance":{},"blocks":[],"links":[],"tourDates":[]}`, s.Data())
}

func TestStoreInitialize(t *testing.T) {
	s := newTestStore(t)
	assert.Equal(t, StateClean, s.State())
	assert.False(t, s.IsDirty())
	for _, sec := range testSchema().Sections {
		assert.False(t, s.HasChanges(sec.Name), sec.Name)
	}
	links, err := s.Collection("links")
	require.NoError(t, err)
	require.Len(t, links, 2)
	id, ok := links[0].ID()
	require.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestStoreInitializeFillsMissingSections(t *testing.T) {
	s := New(testSchema())
	require.NoError(t, s.Initialize(Document{"profile": map[string]any{"name": "A"}}))
	blocks, err := s.Collection("blocks")
	require.NoError(t, err)
	assert.Empty(t, blocks)
	appearance, err := s.Object("appearance")
	require.NoError(t, err)
	assert.Empty(t, appearance)
}

func TestStoreInitializeRejectsBadDocuments(t *testing.T) {
	s := New(testSchema())
	assert.ErrorIs(t, s.Initialize(Document{"unknown": []any{}}), ErrUnknownSection)
	assert.ErrorIs(t, s.Initialize(Document{"blocks": []any{
		map[string]any{"id": 1}, map[string]any{"id": 1},
	}}), ErrDuplicateID)
	assert.Error(t, s.Initialize(Document{"blocks": []any{map[string]any{"type": "links"}}}))
	assert.Error(t, s.Initialize(Document{"profile": []any{}}))
	assert.Equal(t, StateUninitialized, s.State())
}

func TestStoreInitializeCopiesInput(t *testing.T) {
	doc := testDocument()
	s := New(testSchema())
	require.NoError(t, s.Initialize(doc))
	doc["profile"].(map[string]any)["bio"] = "mutated"
	profile, err := s.Object("profile")
	require.NoError(t, err)
	assert.Equal(t, "x", profile["bio"])
}

func TestStoreDataIdentity(t *testing.T) {
	s := New(testSchema())
	data := s.Data()

	require.NoError(t, s.Initialize(testDocument()))
	assert.Equal(t, "A", data["profile"].(Record)["name"])

	_, err := s.Apply(SetField{Section: "profile", Field: "name", Value: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", data["profile"].(Record)["name"])

	require.NoError(t, s.Undo())
	assert.Equal(t, "A", data["profile"].(Record)["name"])

	require.NoError(t, s.Initialize(Document{"profile": map[string]any{"name": "C"}}))
	assert.Equal(t, "C", data["profile"].(Record)["name"])

	s.Reset()
	assert.Equal(t, "", data["profile"].(Record)["name"])
}

func TestStoreRoundTripCommit(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CommitSave())
	assert.False(t, s.IsDirty())
	assert.Equal(t, StateClean, s.State())
}

func TestStoreUndoRestoresBaseline(t *testing.T) {
	s := newTestStore(t)
	baseline := s.View()

	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)
	_, err = s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "image"}, Index: 0})
	require.NoError(t, err)
	_, err = s.Apply(RemoveRecord{Section: "links", ID: 10})
	require.NoError(t, err)
	_, err = s.Apply(Reorder{Section: "blocks", IDs: []int64{2, 1, -1}})
	require.NoError(t, err)
	assert.True(t, s.IsDirty())
	assert.Equal(t, StateDirty, s.State())

	require.NoError(t, s.Undo())
	assert.False(t, s.IsDirty())
	assert.True(t, Equal(baseline, s.View()))
	assert.True(t, Equal(baseline, s.Data()))
}

func TestStoreDirtyFollowsEquality(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)
	assert.True(t, s.IsDirty())
	assert.True(t, s.HasChanges("profile"))
	assert.False(t, s.HasChanges("blocks"))

	res, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "x"})
	require.NoError(t, err)
	assert.False(t, res.Dirty)
	assert.False(t, s.IsDirty())
	assert.False(t, s.HasChanges("profile"))
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "links", ID: 10, Field: "url", Value: "https://c.example"})
	require.NoError(t, err)

	saved, err := s.Snapshot("links")
	require.NoError(t, err)
	requireJSON(t, `[{"id":10,"blockId":1,"url":"https://a.example"},{"id":11,"blockId":1,"url":"https://b.example"}]`, saved)

	saved.([]Record)[0]["url"] = "changed"
	again, err := s.Snapshot("links")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", again.([]Record)[0]["url"])
}

func TestStoreDiffAccessors(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)
	_, err = s.Apply(RemoveRecord{Section: "links", ID: 11})
	require.NoError(t, err)

	changes, err := s.ObjectDiff("profile")
	require.NoError(t, err)
	assert.Equal(t, Record{"bio": "y"}, changes)

	diff, err := s.CollectionDiff("links")
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, diff.Deleted)

	_, err = s.ObjectDiff("links")
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = s.CollectionDiff("profile")
	assert.ErrorIs(t, err, ErrWrongKind)
	_, err = s.CollectionDiff("nope")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestStoreTempIDsNeverReused(t *testing.T) {
	s := newTestStore(t)
	first, err := s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "image"}, Index: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), first.ID)

	_, err = s.Apply(RemoveRecord{Section: "blocks", ID: first.ID})
	require.NoError(t, err)

	second, err := s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "image"}, Index: -1})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), second.ID)
	assert.Equal(t, int64(-3), s.NextTempID())

	require.NoError(t, s.Initialize(testDocument()))
	assert.Equal(t, int64(-1), s.NextTempID())
}

func TestStoreSaveFlag(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.BeginSave())
	assert.True(t, s.IsSaving())
	assert.False(t, s.BeginSave())
	s.EndSave()
	assert.False(t, s.IsSaving())

	assert.True(t, s.BeginSave())
	require.NoError(t, s.CommitSave())
	assert.False(t, s.IsSaving())
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "image"}, Index: -1})
	require.NoError(t, err)

	s.Reset()
	assert.Equal(t, StateUninitialized, s.State())
	assert.False(t, s.IsSaving())
	assert.Equal(t, int64(-1), s.NextTempID())
	requireJSON(t, `{"profile":{"name":""},"appearance":{},"blocks":[],"links":[],"tourDates":[]}`, s.Data())
}

func TestStoreApplyIDMap(t *testing.T) {
	s := newTestStore(t)
	block, err := s.Apply(AddRecord{Section: "blocks", Record: Record{"type": "links"}, Index: -1})
	require.NoError(t, err)
	link, err := s.Apply(AddRecord{Section: "links", Record: Record{"blockId": block.ID, "url": "x"}, Index: -1})
	require.NoError(t, err)

	s.ApplyIDMap(map[int64]int64{block.ID: 3, link.ID: 12})

	blocks, err := s.Collection("blocks")
	require.NoError(t, err)
	id, _ := blocks[2].ID()
	assert.Equal(t, int64(3), id)

	links, err := s.Collection("links")
	require.NoError(t, err)
	requireJSON(t, `{"id":12,"blockId":3,"url":"x"}`, links[2])
}

func TestStoreObservers(t *testing.T) {
	s := New(testSchema())
	var events []Event
	cancel := s.Subscribe(func(ev Event) {
		// Observers run outside the lock and may read the store.
		_ = s.IsDirty()
		events = append(events, ev)
	})

	require.NoError(t, s.Initialize(testDocument()))
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "y"})
	require.NoError(t, err)
	require.NoError(t, s.Undo())
	cancel()
	cancel()
	s.Reset()

	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventInitialized}, events[0])
	assert.Equal(t, Event{Kind: EventChanged, Section: "profile", Dirty: true}, events[1])
	assert.Equal(t, Event{Kind: EventReverted}, events[2])
}

func TestStoreRejectsEditsWhileSaving(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(SetField{Section: "profile", Field: "bio", Value: "draft"})
	require.NoError(t, err)
	require.True(t, s.BeginSave())

	_, err = s.Apply(SetField{Section: "profile", Field: "bio", Value: "late"})
	assert.ErrorIs(t, err, ErrSaveInProgress)
	assert.ErrorIs(t, s.Undo(), ErrSaveInProgress)

	profile, err := s.Object("profile")
	require.NoError(t, err)
	assert.Equal(t, "draft", profile["bio"])
	assert.True(t, s.IsDirty())

	s.EndSave()
	require.NoError(t, s.Undo())
	assert.False(t, s.IsDirty())
}

func TestHasChangesAfterFieldRemoved(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Apply(ReplaceObject{Section: "profile", Record: Record{"name": "A"}})
	require.NoError(t, err)

	profile, err := s.Object("profile")
	require.NoError(t, err)
	assert.NotContains(t, profile, "bio")
	assert.True(t, s.IsDirty())
	assert.True(t, s.HasChanges("profile"))
	assert.False(t, s.HasChanges("appearance"))
}

func TestStoreTryReset(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.BeginSave())
	assert.ErrorIs(t, s.TryReset(), ErrSaveInProgress)
	assert.Equal(t, StateClean, s.State())

	s.EndSave()
	require.NoError(t, s.TryReset())
	assert.Equal(t, StateUninitialized, s.State())
}
