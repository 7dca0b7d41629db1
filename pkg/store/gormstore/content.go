package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

// LoadPage reads every row of the page, collections ordered by position.
func (s *Store) LoadPage(ctx context.Context) (*models.Page, error) {
	page := &models.Page{}
	var err error
	if page.Profile, err = s.GetProfile(ctx); err != nil {
		return nil, err
	}
	if page.Settings, err = s.GetSettings(ctx); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	if err := db.Order("position, id").Find(&page.Blocks).Error; err != nil {
		return nil, err
	}
	if err := db.Order("position, id").Find(&page.Links).Error; err != nil {
		return nil, err
	}
	if err := db.Order("position, id").Find(&page.TourDates).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// Profile operations
func (s *Store) GetProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Order("id").First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
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
		if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
			return err
		}
	}
	return updateFields[models.Profile](ctx, s.db, profile.ID, store.ProfileColumns, fields)
}

// Settings operations
func (s *Store) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := s.db.WithContext(ctx).Order("id").First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
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
		if err := s.db.WithContext(ctx).Create(settings).Error; err != nil {
			return err
		}
	}
	return updateFields[models.Settings](ctx, s.db, settings.ID, store.SettingsColumns, fields)
}

// Block operations
func (s *Store) CreateBlock(ctx context.Context, block *models.Block) error {
	if err := block.Validate(); err != nil {
		return err
	}
	pos, err := nextPosition(ctx, s.db, &models.Block{})
	if err != nil {
		return err
	}
	block.ID = 0
	block.Position = pos
	return s.db.WithContext(ctx).Create(block).Error
}

func (s *Store) UpdateBlockFields(ctx context.Context, id int64, fields store.Fields) error {
	return updateFields[models.Block](ctx, s.db, id, store.BlockColumns, fields)
}

func (s *Store) DeleteBlock(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Link{}, "block_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.TourDate{}, "block_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Block{}, "id = ?", id).Error
	})
}

func (s *Store) ReorderBlocks(ctx context.Context, positions []store.Position) error {
	return reorder(ctx, s.db, &models.Block{}, positions)
}

// Link operations
func (s *Store) GetLink(ctx context.Context, id int64) (*models.Link, error) {
	return first[models.Link](ctx, s.db, id)
}

func (s *Store) CreateLink(ctx context.Context, link *models.Link) error {
	link.FillDefaults()
	if err := link.Validate(); err != nil {
		return err
	}
	if err := s.requireBlock(ctx, link.BlockID); err != nil {
		return err
	}
	pos, err := nextPosition(ctx, s.db, &models.Link{})
	if err != nil {
		return err
	}
	link.ID = 0
	link.Position = pos
	return s.db.WithContext(ctx).Create(link).Error
}

func (s *Store) UpdateLinkFields(ctx context.Context, id int64, fields store.Fields) error {
	if ref, ok := fields["blockId"]; ok {
		if err := s.requireBlockRef(ctx, ref); err != nil {
			return err
		}
	}
	return updateFields[models.Link](ctx, s.db, id, store.LinkColumns, fields)
}

func (s *Store) DeleteLink(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.Link{}, "id = ?", id).Error
}

func (s *Store) ReorderLinks(ctx context.Context, positions []store.Position) error {
	return reorder(ctx, s.db, &models.Link{}, positions)
}

// Tour date operations
func (s *Store) CreateTourDate(ctx context.Context, td *models.TourDate) error {
	if err := td.Validate(); err != nil {
		return err
	}
	if err := s.requireBlock(ctx, td.BlockID); err != nil {
		return err
	}
	pos, err := nextPosition(ctx, s.db, &models.TourDate{})
	if err != nil {
		return err
	}
	td.ID = 0
	td.Position = pos
	return s.db.WithContext(ctx).Create(td).Error
}

func (s *Store) UpdateTourDateFields(ctx context.Context, id int64, fields store.Fields) error {
	if ref, ok := fields["blockId"]; ok {
		if err := s.requireBlockRef(ctx, ref); err != nil {
			return err
		}
	}
	return updateFields[models.TourDate](ctx, s.db, id, store.TourDateColumns, fields)
}

func (s *Store) DeleteTourDate(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.TourDate{}, "id = ?", id).Error
}

func (s *Store) ReorderTourDates(ctx context.Context, positions []store.Position) error {
	return reorder(ctx, s.db, &models.TourDate{}, positions)
}

func (s *Store) requireBlock(ctx context.Context, id int64) error {
	block, err := first[models.Block](ctx, s.db, id)
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
