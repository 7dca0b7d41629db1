package page

import (
	"context"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

// Writers adapts s to the writers a publish of Schema goes through. Only
// fields the entity's allowlist accepts are sent, and an update left with
// no such field is skipped.
func Writers(s store.Store) draft.Writers {
	return draft.Writers{
		Objects: map[string]draft.ObjectWriter{
			SectionProfile:    profileWriter{s},
			SectionAppearance: appearanceWriter{s},
		},
		Collections: map[string]draft.CollectionWriter{
			SectionBlocks:    blockWriter{s},
			SectionLinks:     linkWriter{s},
			SectionTourDates: tourDateWriter{s},
		},
	}
}

type profileWriter struct{ s store.Store }

func (w profileWriter) UpdateFields(ctx context.Context, changes, _ draft.Record) error {
	fields := store.Allowed(store.ProfileColumns, changes)
	if len(fields) == 0 {
		return nil
	}
	if name, ok := fields["name"].(string); ok && name == "" {
		fields["name"] = models.DefaultProfileName
	}
	return w.s.UpdateProfileFields(ctx, fields)
}

// appearanceWriter always sends the whole record.
type appearanceWriter struct{ s store.Store }

func (w appearanceWriter) UpdateFields(ctx context.Context, _, current draft.Record) error {
	fields := store.Allowed(store.SettingsColumns, current)
	if len(fields) == 0 {
		return nil
	}
	return w.s.UpdateSettingsFields(ctx, fields)
}

type blockWriter struct{ s store.Store }

func (w blockWriter) Create(ctx context.Context, fields draft.Record) (int64, error) {
	block := &models.Block{Visible: true}
	allowed := store.Allowed(store.BlockColumns, fields)
	if t, ok := fields["type"]; ok {
		allowed["type"] = t
	}
	if err := store.DecodeOnto(block, allowed); err != nil {
		return 0, err
	}
	if block.Config == nil {
		block.Config = models.DefaultBlockConfig(block.Type)
	}
	if err := w.s.CreateBlock(ctx, block); err != nil {
		return 0, err
	}
	return block.ID, nil
}

func (w blockWriter) UpdateFields(ctx context.Context, id int64, changes draft.Record) error {
	fields := store.Allowed(store.BlockColumns, changes)
	if len(fields) == 0 {
		return nil
	}
	return w.s.UpdateBlockFields(ctx, id, fields)
}

func (w blockWriter) Delete(ctx context.Context, id int64) error {
	return w.s.DeleteBlock(ctx, id)
}

func (w blockWriter) Reorder(ctx context.Context, positions []draft.Position) error {
	return w.s.ReorderBlocks(ctx, storePositions(positions))
}

type linkWriter struct{ s store.Store }

func (w linkWriter) Create(ctx context.Context, fields draft.Record) (int64, error) {
	link := &models.Link{Visible: true}
	if err := store.DecodeOnto(link, store.Allowed(store.LinkColumns, fields)); err != nil {
		return 0, err
	}
	if err := w.s.CreateLink(ctx, link); err != nil {
		return 0, err
	}
	return link.ID, nil
}

func (w linkWriter) UpdateFields(ctx context.Context, id int64, changes draft.Record) error {
	fields := store.Allowed(store.LinkColumns, changes)
	if len(fields) == 0 {
		return nil
	}
	return w.s.UpdateLinkFields(ctx, id, fields)
}

func (w linkWriter) Delete(ctx context.Context, id int64) error {
	return w.s.DeleteLink(ctx, id)
}

func (w linkWriter) Reorder(ctx context.Context, positions []draft.Position) error {
	return w.s.ReorderLinks(ctx, storePositions(positions))
}

type tourDateWriter struct{ s store.Store }

func (w tourDateWriter) Create(ctx context.Context, fields draft.Record) (int64, error) {
	td := &models.TourDate{}
	if err := store.DecodeOnto(td, store.Allowed(store.TourDateColumns, fields)); err != nil {
		return 0, err
	}
	if err := w.s.CreateTourDate(ctx, td); err != nil {
		return 0, err
	}
	return td.ID, nil
}

func (w tourDateWriter) UpdateFields(ctx context.Context, id int64, changes draft.Record) error {
	fields := store.Allowed(store.TourDateColumns, changes)
	if len(fields) == 0 {
		return nil
	}
	return w.s.UpdateTourDateFields(ctx, id, fields)
}

func (w tourDateWriter) Delete(ctx context.Context, id int64) error {
	return w.s.DeleteTourDate(ctx, id)
}

func (w tourDateWriter) Reorder(ctx context.Context, positions []draft.Position) error {
	return w.s.ReorderTourDates(ctx, storePositions(positions))
}

func storePositions(positions []draft.Position) []store.Position {
	out := make([]store.Position, len(positions))
	for i, p := range positions {
		out[i] = store.Position{ID: p.ID, Position: p.Position}
	}
	return out
}
