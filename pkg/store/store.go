// Package store provides the persistence layer abstraction for stagepage.
//
// The [Store] interface is implemented twice:
//
//   - [github.com/stagepage/stagepage/pkg/store/gormstore.Store]: GORM over
//     PostgreSQL or SQLite, with transactions for cascades and reorders
//   - [github.com/stagepage/stagepage/pkg/store/surrealdb.Store]: native
//     SurrealQL over the surrealdb.go SDK, with integer ids allocated from a
//     counter record so the draft engine sees the same id space on both
//
// Both are driven by the editor's publish step through per-entity
// Create / Update*Fields / Delete / Reorder calls, one call per operation of
// the computed diff, and by the public page through LoadPage and the
// analytics methods.
package store

import (
	"context"
	"time"

	"github.com/stagepage/stagepage/pkg/models"
)

// Position is the new position of one record in a reorder.
type Position struct {
	ID       int64 `json:"id"`
	Position int   `json:"position"`
}

// Fields is a partial update keyed by the entity's JSON field names.
type Fields map[string]any

// Store defines the complete persistence interface of the page service.
//
// Get methods return nil without error for missing rows. Update*Fields
// methods apply a partial update: only the named fields are written, and a
// field outside the entity's allowlist fails with ErrUnknownField. Updating a
// missing row fails with ErrNotFound. Delete methods are idempotent: deleting
// a missing row succeeds, which lets a block deletion cascade to its links
// before the links' own deletes run. Create methods set the generated id on
// the passed entity.
//
// Entities are validated before they are written; invalid input fails with
// an error matching models.ErrValidation.
type Store interface {
	// LoadPage returns every row the editor and the public page need.
	LoadPage(ctx context.Context) (*models.Page, error)

	GetProfile(ctx context.Context) (*models.Profile, error)
	// UpdateProfileFields creates the profile row first when none exists.
	UpdateProfileFields(ctx context.Context, fields Fields) error

	GetSettings(ctx context.Context) (*models.Settings, error)
	// UpdateSettingsFields creates the settings row first when none exists.
	UpdateSettingsFields(ctx context.Context, fields Fields) error

	CreateBlock(ctx context.Context, block *models.Block) error
	UpdateBlockFields(ctx context.Context, id int64, fields Fields) error
	// DeleteBlock removes the block together with its links and tour dates.
	DeleteBlock(ctx context.Context, id int64) error
	ReorderBlocks(ctx context.Context, positions []Position) error

	GetLink(ctx context.Context, id int64) (*models.Link, error)
	CreateLink(ctx context.Context, link *models.Link) error
	UpdateLinkFields(ctx context.Context, id int64, fields Fields) error
	DeleteLink(ctx context.Context, id int64) error
	ReorderLinks(ctx context.Context, positions []Position) error

	CreateTourDate(ctx context.Context, td *models.TourDate) error
	UpdateTourDateFields(ctx context.Context, id int64, fields Fields) error
	DeleteTourDate(ctx context.Context, id int64) error
	ReorderTourDates(ctx context.Context, positions []Position) error

	RecordPageView(ctx context.Context, view *models.PageView) error
	RecordLinkClick(ctx context.Context, click *models.LinkClick) error
	// Stats aggregates analytics recorded at or after since. limit caps the
	// top-N lists.
	Stats(ctx context.Context, since time.Time, limit int) (*models.Stats, error)

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error
	Close() error
}
