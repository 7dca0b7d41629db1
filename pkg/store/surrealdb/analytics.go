package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/stagepage/stagepage/pkg/models"
)

// DefaultStatsLimit caps the top-N lists when Stats is given no limit.
const DefaultStatsLimit = 10

// Timestamps travel as RFC 3339 strings and are cast with <datetime> in the
// query.
func (s *Store) RecordPageView(ctx context.Context, view *models.PageView) error {
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now().UTC()
	}
	id, err := s.nextID(ctx, tablePageView)
	if err != nil {
		return err
	}
	view.ID = id
	return s.exec(ctx, `CREATE type::thing('page_view', $id) CONTENT {
	path: $path,
	referrer: $referrer,
	country: $country,
	userAgent: $userAgent,
	createdAt: <datetime>$at
}`, map[string]any{
		"id":        id,
		"path":      view.Path,
		"referrer":  view.Referrer,
		"country":   view.Country,
		"userAgent": view.UserAgent,
		"at":        view.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (s *Store) RecordLinkClick(ctx context.Context, click *models.LinkClick) error {
	if click.CreatedAt.IsZero() {
		click.CreatedAt = time.Now().UTC()
	}
	id, err := s.nextID(ctx, tableLinkClick)
	if err != nil {
		return err
	}
	click.ID = id
	return s.exec(ctx, `CREATE type::thing('link_click', $id) CONTENT {
	linkId: $linkId,
	referrer: $referrer,
	country: $country,
	createdAt: <datetime>$at
}`, map[string]any{
		"id":       id,
		"linkId":   click.LinkID,
		"referrer": click.Referrer,
		"country":  click.Country,
		"at":       click.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

type countRow struct {
	Count int64 `json:"count"`
}

func (s *Store) count(ctx context.Context, tb string, vars map[string]any) (int64, error) {
	rows, err := query[[]countRow](ctx, s.db,
		"SELECT count() AS count FROM type::table($tb) WHERE createdAt >= <datetime>$since GROUP ALL",
		withTable(vars, tb))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

func withTable(vars map[string]any, tb string) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out["tb"] = tb
	return out
}

func (s *Store) Stats(ctx context.Context, since time.Time, limit int) (*models.Stats, error) {
	if limit <= 0 {
		limit = DefaultStatsLimit
	}
	vars := map[string]any{
		"since": since.UTC().Format(time.RFC3339Nano),
		"limit": limit,
	}
	stats := &models.Stats{
		Since:        since,
		ViewsByDay:   []models.DayCount{},
		TopReferrers: []models.NameCount{},
		TopPaths:     []models.NameCount{},
		TopLinks:     []models.LinkCount{},
	}

	var err error
	if stats.TotalViews, err = s.count(ctx, tablePageView, vars); err != nil {
		return nil, fmt.Errorf("failed to count views: %w", err)
	}
	if stats.TotalClicks, err = s.count(ctx, tableLinkClick, vars); err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}

	days, err := query[[]models.DayCount](ctx, s.db, `SELECT date, count() AS count FROM (
	SELECT time::format(createdAt, '%Y-%m-%d') AS date FROM page_view WHERE createdAt >= <datetime>$since
) GROUP BY date ORDER BY date`, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket views: %w", err)
	}
	if days != nil {
		stats.ViewsByDay = days
	}

	type referrerRow struct {
		Referrer string `json:"referrer"`
		Count    int64  `json:"count"`
	}
	refs, err := query[[]referrerRow](ctx, s.db, `SELECT referrer, count() AS count FROM page_view
WHERE createdAt >= <datetime>$since AND referrer != '' AND referrer != 'direct'
GROUP BY referrer ORDER BY count DESC, referrer LIMIT $limit`, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to rank referrers: %w", err)
	}
	for _, r := range refs {
		stats.TopReferrers = append(stats.TopReferrers, models.NameCount{Name: r.Referrer, Count: r.Count})
	}

	type pathRow struct {
		Path  string `json:"path"`
		Count int64  `json:"count"`
	}
	paths, err := query[[]pathRow](ctx, s.db, `SELECT path, count() AS count FROM page_view
WHERE createdAt >= <datetime>$since
GROUP BY path ORDER BY count DESC, path LIMIT $limit`, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to rank paths: %w", err)
	}
	for _, p := range paths {
		stats.TopPaths = append(stats.TopPaths, models.NameCount{Name: p.Path, Count: p.Count})
	}

	type clickRow struct {
		LinkID int64 `json:"linkId"`
		Count  int64 `json:"count"`
	}
	clicks, err := query[[]clickRow](ctx, s.db, `SELECT linkId, count() AS count FROM link_click
WHERE createdAt >= <datetime>$since
GROUP BY linkId ORDER BY count DESC, linkId LIMIT $limit`, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to rank links: %w", err)
	}
	for _, c := range clicks {
		link, err := s.GetLink(ctx, c.LinkID)
		if err != nil {
			return nil, err
		}
		if link == nil {
			continue
		}
		stats.TopLinks = append(stats.TopLinks, models.LinkCount{
			LinkID:   c.LinkID,
			Label:    link.Label,
			Platform: link.Platform,
			URL:      link.URL,
			Count:    c.Count,
		})
	}
	return stats, nil
}
