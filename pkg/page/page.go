// Package page binds the draft engine to the stagepage data model: the
// section layout of an editor draft, the mapping from stored rows to a
// draft document, and the writers a publish goes through.
package page

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/models"
)

// Section names of an editor draft.
const (
	SectionProfile    = "profile"
	SectionAppearance = "appearance"
	SectionBlocks     = "blocks"
	SectionLinks      = "links"
	SectionTourDates  = "tourDates"
)

// Schema is the layout of an editor draft. Links and tour dates reference
// their block through blockId.
var Schema = draft.Schema{Sections: []draft.SectionSpec{
	{Name: SectionProfile, Kind: draft.KindObject, Default: draft.Record{"id": int64(1), "name": models.DefaultProfileName}},
	{Name: SectionAppearance, Kind: draft.KindObject},
	{Name: SectionBlocks, Kind: draft.KindCollection},
	{Name: SectionLinks, Kind: draft.KindCollection, ForeignKeys: map[string]string{"blockId": SectionBlocks}},
	{Name: SectionTourDates, Kind: draft.KindCollection, ForeignKeys: map[string]string{"blockId": SectionBlocks}},
}}

// BuildDocument maps a loaded page to the draft document the editor starts
// from. A missing profile becomes a placeholder with id 1, missing settings
// become the default appearance.
func BuildDocument(p *models.Page) (draft.Document, error) {
	profile := p.Profile
	if profile == nil {
		profile = models.NewProfile("")
		profile.ID = 1
	}
	settings := p.Settings
	if settings == nil {
		settings = models.NewSettings()
	}

	doc := draft.Document{}
	var err error
	if doc[SectionProfile], err = toRecord(profile); err != nil {
		return nil, err
	}
	appearance, err := toRecord(settings)
	if err != nil {
		return nil, err
	}
	doc[SectionAppearance] = appearance.Without(draft.IDField)
	if doc[SectionBlocks], err = toRecords(models.SortBlocks(p.Blocks)); err != nil {
		return nil, err
	}
	if doc[SectionLinks], err = toRecords(models.SortLinks(p.Links)); err != nil {
		return nil, err
	}
	if doc[SectionTourDates], err = toRecords(models.SortTourDates(p.TourDates)); err != nil {
		return nil, err
	}
	return doc, nil
}

func toRecord(v any) (draft.Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec draft.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to convert %T: %w", v, err)
	}
	return rec, nil
}

func toRecords[T any](rows []T) ([]draft.Record, error) {
	out := make([]draft.Record, 0, len(rows))
	for i := range rows {
		rec, err := toRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
