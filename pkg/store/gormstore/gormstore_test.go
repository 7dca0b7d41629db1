package gormstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "file::memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func ptr[T any](v T) *T { return &v }

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "x", zerolog.Nop())
	assert.Error(t, err)
}

func TestMigrateJSONColumns(t *testing.T) {
	s := newTestStore(t)
	m := s.db.Migrator()
	assert.True(t, m.HasColumn(&models.Block{}, "config"))
	assert.True(t, m.HasColumn(&models.Link{}, "embed_data"))
	assert.True(t, m.HasColumn(&models.TourDate{}, "venue"))

	// Migrating an up to date schema is a no-op.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestEmptyPage(t *testing.T) {
	s := newTestStore(t)
	page, err := s.LoadPage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page.Profile)
	assert.Nil(t, page.Settings)
	assert.Empty(t, page.Blocks)
	assert.Empty(t, page.Links)
}

func TestProfileGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpdateProfileFields(ctx, store.Fields{"name": "Band", "bio": "hello"}))
	profile, err := s.GetProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Band", profile.Name)
	assert.Equal(t, "hello", *profile.Bio)
	assert.Equal(t, "circle", profile.LogoShape)

	// false is a zero value but must still be written
	require.NoError(t, s.UpdateProfileFields(ctx, store.Fields{"showBio": false}))
	profile, err = s.GetProfile(ctx)
	require.NoError(t, err)
	assert.False(t, profile.ShowBio)
	assert.Equal(t, "Band", profile.Name)

	err = s.UpdateProfileFields(ctx, store.Fields{"name": ""})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = s.UpdateProfileFields(ctx, store.Fields{"id": 7})
	assert.ErrorIs(t, err, store.ErrUnknownField)
}

func TestSettingsUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.UpdateSettingsFields(ctx, store.Fields{"colorAccent": "#ff0000", "showShareButton": false}))
	settings, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", settings.ColorAccent)
	assert.Equal(t, "#0c0a14", settings.ColorBg)
	assert.False(t, settings.ShowShareButton)

	err = s.UpdateSettingsFields(ctx, store.Fields{"colorBg": "red"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestBlockLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &models.Block{Type: models.BlockTypeLinks, Visible: true, Config: models.JSONMap{"displayAs": "rows"}}
	b := &models.Block{Type: models.BlockTypeTourDates, Visible: true}
	require.NoError(t, s.CreateBlock(ctx, a))
	require.NoError(t, s.CreateBlock(ctx, b))
	assert.NotZero(t, a.ID)
	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)

	err := s.CreateBlock(ctx, &models.Block{Type: "video"})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, s.UpdateBlockFields(ctx, a.ID, store.Fields{"config": map[string]any{"displayAs": "grid"}, "visible": false}))
	got, err := first[models.Block](ctx, s.db, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JSONMap{"displayAs": "grid"}, got.Config)
	assert.False(t, got.Visible)

	err = s.UpdateBlockFields(ctx, 999, store.Fields{"visible": true})
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.ReorderBlocks(ctx, []store.Position{{ID: a.ID, Position: 1}, {ID: b.ID, Position: 0}}))
	page, err := s.LoadPage(ctx)
	require.NoError(t, err)
	require.Len(t, page.Blocks, 2)
	assert.Equal(t, b.ID, page.Blocks[0].ID)
	assert.Equal(t, a.ID, page.Blocks[1].ID)
}

func TestLinkLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	block := &models.Block{Type: models.BlockTypeLinks, Visible: true}
	require.NoError(t, s.CreateBlock(ctx, block))

	link := &models.Link{BlockID: block.ID, URL: "https://open.spotify.com/artist/1", Visible: true}
	require.NoError(t, s.CreateLink(ctx, link))
	assert.Equal(t, "spotify", link.Platform)
	assert.Equal(t, models.CategoryStreaming, link.Category)

	err := s.CreateLink(ctx, &models.Link{BlockID: 999, URL: "https://example.com"})
	assert.ErrorIs(t, err, models.ErrValidation)
	err = s.CreateLink(ctx, &models.Link{BlockID: block.ID, URL: "not a url"})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, s.UpdateLinkFields(ctx, link.ID, store.Fields{"label": "Listen"}))
	got, err := s.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, "Listen", *got.Label)

	err = s.UpdateLinkFields(ctx, link.ID, store.Fields{"blockId": 12345})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, s.DeleteLink(ctx, link.ID))
	require.NoError(t, s.DeleteLink(ctx, link.ID))
	got, err = s.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteBlockCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	links := &models.Block{Type: models.BlockTypeLinks, Visible: true}
	tour := &models.Block{Type: models.BlockTypeTourDates, Visible: true}
	require.NoError(t, s.CreateBlock(ctx, links))
	require.NoError(t, s.CreateBlock(ctx, tour))
	require.NoError(t, s.CreateLink(ctx, &models.Link{BlockID: links.ID, URL: "https://example.com"}))
	require.NoError(t, s.CreateTourDate(ctx, &models.TourDate{
		BlockID: tour.ID,
		Date:    "2026-11-01",
		Venue:   models.Venue{Name: "Rockefeller", City: "Oslo"},
	}))

	require.NoError(t, s.DeleteBlock(ctx, links.ID))
	require.NoError(t, s.DeleteBlock(ctx, tour.ID))
	page, err := s.LoadPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, page.Blocks)
	assert.Empty(t, page.Links)
	assert.Empty(t, page.TourDates)
}

func TestTourDateUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	block := &models.Block{Type: models.BlockTypeTourDates, Visible: true}
	require.NoError(t, s.CreateBlock(ctx, block))
	td := &models.TourDate{BlockID: block.ID, Date: "2026-11-01", Venue: models.Venue{Name: "Blå", City: "Oslo", Lat: ptr(59.9)}}
	require.NoError(t, s.CreateTourDate(ctx, td))

	require.NoError(t, s.UpdateTourDateFields(ctx, td.ID, store.Fields{
		"venue":   map[string]any{"name": "Sentrum Scene", "city": "Oslo"},
		"soldOut": true,
	}))
	page, err := s.LoadPage(ctx)
	require.NoError(t, err)
	require.Len(t, page.TourDates, 1)
	got := page.TourDates[0]
	assert.Equal(t, "Sentrum Scene", got.Venue.Name)
	assert.Nil(t, got.Venue.Lat)
	assert.True(t, got.SoldOut)

	err = s.UpdateTourDateFields(ctx, td.ID, store.Fields{"date": ""})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	block := &models.Block{Type: models.BlockTypeLinks, Visible: true}
	require.NoError(t, s.CreateBlock(ctx, block))
	link := &models.Link{BlockID: block.ID, URL: "https://instagram.com/band"}
	require.NoError(t, s.CreateLink(ctx, link))

	day1 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	for _, v := range []models.PageView{
		{Path: "/", Referrer: "google.com", CreatedAt: day1},
		{Path: "/", Referrer: "google.com", CreatedAt: day2},
		{Path: "/press", Referrer: "direct", CreatedAt: day2},
		{Path: "/", Referrer: "old.example", CreatedAt: day1.AddDate(0, -1, 0)},
	} {
		v := v
		require.NoError(t, s.RecordPageView(ctx, &v))
	}
	require.NoError(t, s.RecordLinkClick(ctx, &models.LinkClick{LinkID: link.ID, CreatedAt: day2}))

	stats, err := s.Stats(ctx, day1.Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalViews)
	assert.EqualValues(t, 1, stats.TotalClicks)
	assert.Equal(t, []models.DayCount{{Date: "2026-10-01", Count: 1}, {Date: "2026-10-02", Count: 2}}, stats.ViewsByDay)
	assert.Equal(t, []models.NameCount{{Name: "google.com", Count: 2}}, stats.TopReferrers)
	assert.Equal(t, []models.NameCount{{Name: "/", Count: 2}, {Name: "/press", Count: 1}}, stats.TopPaths)
	require.Len(t, stats.TopLinks, 1)
	assert.Equal(t, link.ID, stats.TopLinks[0].LinkID)
	assert.Equal(t, "instagram", stats.TopLinks[0].Platform)
}
