package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionNames(secs []SectionSpec) []string {
	names := make([]string, 0, len(secs))
	for _, s := range secs {
		names = append(names, s.Name)
	}
	return names
}

func TestPublishOrder(t *testing.T) {
	order, err := testSchema().PublishOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"profile", "appearance", "blocks", "links", "tourDates"}, sectionNames(order))
}

func TestPublishOrderChain(t *testing.T) {
	s := Schema{Sections: []SectionSpec{
		{Name: "c", Kind: KindCollection, ForeignKeys: map[string]string{"bId": "b"}},
		{Name: "b", Kind: KindCollection, ForeignKeys: map[string]string{"aId": "a"}},
		{Name: "a", Kind: KindCollection},
	}}
	order, err := s.PublishOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, sectionNames(order))
	require.NoError(t, s.Validate())
}

func TestPublishOrderCycle(t *testing.T) {
	s := Schema{Sections: []SectionSpec{
		{Name: "a", Kind: KindCollection, ForeignKeys: map[string]string{"bId": "b"}},
		{Name: "b", Kind: KindCollection, ForeignKeys: map[string]string{"aId": "a"}},
	}}
	_, err := s.PublishOrder()
	assert.ErrorIs(t, err, ErrSchemaCycle)
	assert.ErrorIs(t, s.Validate(), ErrSchemaCycle)
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, testSchema().Validate())

	dup := Schema{Sections: []SectionSpec{{Name: "a"}, {Name: "a"}}}
	assert.Error(t, dup.Validate())

	dangling := Schema{Sections: []SectionSpec{
		{Name: "links", Kind: KindCollection, ForeignKeys: map[string]string{"blockId": "blocks"}},
	}}
	assert.ErrorIs(t, dangling.Validate(), ErrUnknownSection)

	toObject := Schema{Sections: []SectionSpec{
		{Name: "profile", Kind: KindObject},
		{Name: "links", Kind: KindCollection, ForeignKeys: map[string]string{"profileId": "profile"}},
	}}
	assert.ErrorIs(t, toObject.Validate(), ErrWrongKind)
}

func TestSchemaEmpty(t *testing.T) {
	doc := testSchema().Empty()
	requireJSON(t, `{"profile":{"name":""},"appearance":{},"blocks":[],"links":[],"tourDates":[]}`, doc)

	// Defaults are copied, not shared.
	doc["profile"].(Record)["name"] = "changed"
	assert.Equal(t, "", testSchema().Empty()["profile"].(Record)["name"])
}
