package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

func (s *Store) LoadPage(ctx context.Context) (*models.Page, error) {
	page := &models.Page{}
	var err error
	if page.Profile, err = s.GetProfile(ctx); err != nil {
		return nil, err
	}
	if page.Settings, err = s.GetSettings(ctx); err != nil {
		return nil, err
	}
	if page.Blocks, err = list[models.Block](ctx, s, tableBlock, blockFields); err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	if page.Links, err = list[models.Link](ctx, s, tableLink, linkFields); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	if page.TourDates, err = list[models.TourDate](ctx, s, tableTourDate, tourDateFields); err != nil {
		return nil, fmt.Errorf("failed to list tour dates: %w", err)
	}
	return page, nil
}

// Profile operations
func (s *Store) GetProfile(ctx context.Context) (*models.Profile, error) {
	return getOne[models.Profile](ctx, s, tableProfile, profileFields, singletonID)
}

func (s *Store) UpdateProfileFields(ctx context.Context, fields store.Fields) error {
	if _, err := store.Columns(store.ProfileColumns, fields); err != nil {
		return err
	}
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		profile = models.NewProfile("")
		profile.ID = singletonID
		if err := s.create(ctx, tableProfile, singletonID, profile); err != nil {
			return err
		}
	}
	return s.merge(ctx, tableProfile, profile, singletonID, fields)
}

// Settings operations
func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	return getOne[models.Settings](ctx, s, tableSettings, settingsFields, singletonID)
}

func (s *Store) UpdateSettingsFields(ctx context.Context, fields store.Fields) error {
	if _, err := store.Columns(store.SettingsColumns, fields); err != nil {
		return err
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings == nil {
		settings = models.NewSettings()
		settings.ID = singletonID
		if err := s.create(ctx, tableSettings, singletonID, settings); err != nil {
			return err
		}
	}
	return s.merge(ctx, tableSettings, settings, singletonID, fields)
}

// Block operations
func (s *Store) CreateBlock(ctx context.Context, block *models.Block) error {
	if err := block.Validate(); err != nil {
		return err
	}
	return s.insert(ctx, tableBlock, &block.ID, &block.Position, block)
}

func (s *Store) UpdateBlockFields(ctx context.Context, id int64, fields store.Fields) error {
	if _, err := store.Columns(store.BlockColumns, fields); err != nil {
		return err
	}
	block, err := getOne[models.Block](ctx, s, tableBlock, blockFields, id)
	if err != nil {
		return err
	}
	if block == nil {
		return fmt.Errorf("%w: block %d", store.ErrNotFound, id)
	}
	return s.merge(ctx, tableBlock, block, id, fields)
}

func (s *Store) DeleteBlock(ctx context.Context, id int64) error {
	return s.exec(ctx, `BEGIN TRANSACTION;
DELETE link WHERE blockId = $id;
DELETE tour_date WHERE blockId = $id;
DELETE type::thing('block', $id);
COMMIT TRANSACTION;`, map[string]any{"id": id})
}

func (s *Store) ReorderBlocks(ctx context.Context, positions []store.Position) error {
	return s.reorder(ctx, tableBlock, positions)
}

// Link operations
func (s *Store) GetLink(ctx context.Context, id int64) (*models.Link, error) {
	return getOne[models.Link](ctx, s, tableLink, linkFields, id)
}

func (s *Store) CreateLink(ctx context.Context, link *models.Link) error {
	link.FillDefaults()
	if err := link.Validate(); err != nil {
		return err
	}
	if err := s.requireBlock(ctx, link.BlockID); err != nil {
		return err
	}
	return s.insert(ctx, tableLink, &link.ID, &link.Position, link)
}

func (s *Store) UpdateLinkFields(ctx context.Context, id int64, fields store.Fields) error {
	if _, err := store.Columns(store.LinkColumns, fields); err != nil {
		return err
	}
	if ref, ok := fields["blockId"]; ok {
		if err := s.requireBlockRef(ctx, ref); err != nil {
			return err
		}
	}
	link, err := s.GetLink(ctx, id)
	if err != nil {
		return err
	}
	if link == nil {
		return fmt.Errorf("%w: link %d", store.ErrNotFound, id)
	}
	return s.merge(ctx, tableLink, link, id, fields)
}

func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	return s.exec(ctx, "DELETE type::thing('link', $id)", map[string]any{"id": id})
}

func (s *Store) ReorderLinks(ctx context.Context, positions []store.Position) error {
	return s.reorder(ctx, tableLink, positions)
}

// Tour date operations
func (s *Store) CreateTourDate(ctx context.Context, td *models.TourDate) error {
	if err := td.Validate(); err != nil {
		return err
	}
	if err := s.requireBlock(ctx, td.BlockID); err != nil {
		return err
	}
	return s.insert(ctx, tableTourDate, &td.ID, &td.Position, td)
}

func (s *Store) UpdateTourDateFields(ctx context.Context, id int64, fields store.Fields) error {
	if _, err := store.Columns(store.TourDateColumns, fields); err != nil {
		return err
	}
	if ref, ok := fields["blockId"]; ok {
		if err := s.requireBlockRef(ctx, ref); err != nil {
			return err
		}
	}
	td, err := getOne[models.TourDate](ctx, s, tableTourDate, tourDateFields, id)
	if err != nil {
		return err
	}
	if td == nil {
		return fmt.Errorf("%w: tour date %d", store.ErrNotFound, id)
	}
	return s.merge(ctx, tableTourDate, td, id, fields)
}

func (s *Store) DeleteTourDate(ctx context.Context, id int64) error {
	return s.exec(ctx, "DELETE type::thing('tour_date', $id)", map[string]any{"id": id})
}

func (s *Store) ReorderTourDates(ctx context.Context, positions []store.Position) error {
	return s.reorder(ctx, tableTourDate, positions)
}

// insert allocates an id and the next position, then creates the record.
func (s *Store) insert(ctx context.Context, tb string, id *int64, position *int, v any) error {
	pos, err := s.nextPosition(ctx, tb)
	if err != nil {
		return err
	}
	newID, err := s.nextID(ctx, tb)
	if err != nil {
		return err
	}
	*id = newID
	*position = pos
	return s.create(ctx, tb, newID, v)
}

func (s *Store) create(ctx context.Context, tb string, id int64, v any) error {
	data, err := content(v, nil)
	if err != nil {
		return err
	}
	err = s.exec(ctx, "CREATE type::thing($tb, $id) CONTENT $data", map[string]any{
		"tb":   tb,
		"id":   id,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tb, err)
	}
	return nil
}

type validator interface {
	Validate() error
}

// merge applies fields to the loaded row, validates it and writes back the
// changed fields, keyed by their JSON names.
func (s *Store) merge(ctx context.Context, tb string, row validator, id int64, fields store.Fields) error {
	if err := store.DecodeOnto(row, fields); err != nil {
		return err
	}
	if err := row.Validate(); err != nil {
		return err
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	data, err := content(row, names)
	if err != nil {
		return err
	}
	err = s.exec(ctx, "UPDATE type::thing($tb, $id) MERGE $data", map[string]any{
		"tb":   tb,
		"id":   id,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("failed to update %s %d: %w", tb, id, err)
	}
	return nil
}

func (s *Store) reorder(ctx context.Context, tb string, positions []store.Position) error {
	if len(positions) == 0 {
		return nil
	}
	var b strings.Builder
	vars := map[string]any{"tb": tb}
	b.WriteString("BEGIN TRANSACTION;\n")
	for i, p := range positions {
		fmt.Fprintf(&b, "UPDATE type::thing($tb, $id%d) SET position = $pos%d;\n", i, i)
		vars[fmt.Sprintf("id%d", i)] = p.ID
		vars[fmt.Sprintf("pos%d", i)] = p.Position
	}
	b.WriteString("COMMIT TRANSACTION;")
	if err := s.exec(ctx, b.String(), vars); err != nil {
		return fmt.Errorf("failed to reorder %s: %w", tb, err)
	}
	return nil
}

func (s *Store) requireBlock(ctx context.Context, id int64) error {
	block, err := getOne[models.Block](ctx, s, tableBlock, blockFields, id)
	if err != nil {
		return err
	}
	if block == nil {
		return &models.ValidationError{Entity: "block", Field: "id", Message: "block does not exist"}
	}
	return nil
}

func (s *Store) requireBlockRef(ctx context.Context, ref any) error {
	id, ok := store.AsID(ref)
	if !ok {
		return &models.ValidationError{Entity: "block", Field: "id", Message: "block id must be an integer"}
	}
	return s.requireBlock(ctx, id)
}
