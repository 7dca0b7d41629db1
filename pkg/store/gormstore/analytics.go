package gormstore

import (
	"context"
	"time"

	"github.com/stagepage/stagepage/pkg/models"
)

// DefaultStatsLimit caps the top-N lists when Stats is given no limit.
const DefaultStatsLimit = 10

func (s *Store) RecordPageView(ctx context.Context, view *models.PageView) error {
	view.ID = 0
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(view).Error
}

func (s *Store) RecordLinkClick(ctx context.Context, click *models.LinkClick) error {
	click.ID = 0
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(click).Error
}

func (s *Store) Stats(ctx context.Context, since time.Time, limit int) (*models.Stats, error) {
	if limit <= 0 {
		limit = DefaultStatsLimit
	}
	db := s.db.WithContext(ctx)
	stats := &models.Stats{
		Since:        since,
		ViewsByDay:   []models.DayCount{},
		TopReferrers: []models.NameCount{},
		TopPaths:     []models.NameCount{},
		TopLinks:     []models.LinkCount{},
	}

	views := db.Model(&models.PageView{}).Where("created_at >= ?", since)
	if err := views.Count(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.LinkClick{}).Where("created_at >= ?", since).Count(&stats.TotalClicks).Error; err != nil {
		return nil, err
	}

	// Day bucketing happens here rather than in SQL, date functions differ
	// between SQLite and PostgreSQL.
	var times []time.Time
	if err := db.Model(&models.PageView{}).Where("created_at >= ?", since).Pluck("created_at", &times).Error; err != nil {
		return nil, err
	}
	stats.ViewsByDay = models.CountByDay(times)

	err := db.Model(&models.PageView{}).
		Select("referrer AS name, count(*) AS count").
		Where("created_at >= ? AND referrer <> '' AND referrer <> ?", since, "direct").
		Group("referrer").
		Order("count DESC, name").
		Limit(limit).
		Scan(&stats.TopReferrers).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.PageView{}).
		Select("path AS name, count(*) AS count").
		Where("created_at >= ?", since).
		Group("path").
		Order("count DESC, name").
		Limit(limit).
		Scan(&stats.TopPaths).Error
	if err != nil {
		return nil, err
	}

	err = db.Table("link_clicks").
		Select("link_clicks.link_id AS link_id, links.label AS label, links.platform AS platform, links.url AS url, count(*) AS count").
		Joins("JOIN links ON links.id = link_clicks.link_id").
		Where("link_clicks.created_at >= ?", since).
		Group("link_clicks.link_id, links.label, links.platform, links.url").
		Order("count DESC, link_id").
		Limit(limit).
		Scan(&stats.TopLinks).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
