// Package surrealdb implements [github.com/stagepage/stagepage/pkg/store.Store]
// on SurrealDB with native SurrealQL.
//
// Records keep integer ids so the draft engine sees the same id space as on
// the SQL backend: each table draws its next id from a counter record
// (counter:block, counter:link, ...) with an atomic UPSERT. Fields are stored
// under their JSON names and read back with record::id(id) AS id, so results
// decode straight into the models.
//
// Multi-statement changes (block deletion with its children, reorders) are
// sent as one BEGIN/COMMIT query.
package surrealdb

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"

	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
)

// Tables
const (
	tableProfile   = "profile"
	tableSettings  = "settings"
	tableBlock     = "block"
	tableLink      = "link"
	tableTourDate  = "tour_date"
	tablePageView  = "page_view"
	tableLinkClick = "link_click"
)

// singletonID is the record id of the profile and settings rows.
const singletonID int64 = 1

// Config holds the connection parameters.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements store.Store over a SurrealDB connection.
type Store struct {
	db  *surrealdb.DB
	log zerolog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects, signs in when credentials are given and selects the
// namespace and database.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Store, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &Store{db: db, log: log.With().Str("component", "surrealdb").Logger()}, nil
}

// Migrate defines the tables and the indexes the queries filter on.
// Tables stay schemaless.
func (s *Store) Migrate(ctx context.Context) error {
	var b strings.Builder
	for _, tb := range []string{tableProfile, tableSettings, tableBlock, tableLink, tableTourDate, tablePageView, tableLinkClick, "counter"} {
		fmt.Fprintf(&b, "DEFINE TABLE IF NOT EXISTS %s SCHEMALESS;\n", tb)
	}
	b.WriteString("DEFINE INDEX IF NOT EXISTS link_block ON link FIELDS blockId;\n")
	b.WriteString("DEFINE INDEX IF NOT EXISTS tour_date_block ON tour_date FIELDS blockId;\n")
	b.WriteString("DEFINE INDEX IF NOT EXISTS page_view_created ON page_view FIELDS createdAt;\n")
	b.WriteString("DEFINE INDEX IF NOT EXISTS link_click_created ON link_click FIELDS createdAt;\n")
	return s.exec(ctx, b.String(), nil)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// query runs a single statement and returns its result.
func query[T any](ctx context.Context, db *surrealdb.DB, sql string, vars map[string]any) (T, error) {
	var zero T
	res, err := surrealdb.Query[T](ctx, db, sql, vars)
	if err != nil {
		return zero, err
	}
	if res == nil || len(*res) == 0 {
		return zero, nil
	}
	r := (*res)[len(*res)-1]
	if r.Status != "OK" {
		return zero, fmt.Errorf("query failed with status %s", r.Status)
	}
	return r.Result, nil
}

// exec runs statements whose results are not needed.
func (s *Store) exec(ctx context.Context, sql string, vars map[string]any) error {
	res, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		return err
	}
	if res != nil {
		for i, r := range *res {
			if r.Status != "OK" {
				return fmt.Errorf("statement %d failed with status %s", i, r.Status)
			}
		}
	}
	return nil
}

// nextID allocates the next integer id of tb.
func (s *Store) nextID(ctx context.Context, tb string) (int64, error) {
	ids, err := query[[]int64](ctx, s.db,
		"UPSERT type::thing('counter', $tb) SET value = (value ?? 0) + 1 RETURN VALUE value",
		map[string]any{"tb": tb})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", tb, err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("failed to allocate %s id: empty result", tb)
	}
	return ids[0], nil
}

// nextPosition returns one past the highest position in tb.
func (s *Store) nextPosition(ctx context.Context, tb string) (int, error) {
	positions, err := query[[]int](ctx, s.db,
		"SELECT VALUE position FROM type::table($tb) ORDER BY position DESC LIMIT 1",
		map[string]any{"tb": tb})
	if err != nil {
		return 0, err
	}
	if len(positions) == 0 {
		return 0, nil
	}
	return positions[0] + 1, nil
}

// selectList renders the projection of a table: the integer id followed by
// the given fields.
func selectList(fields []string) string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, "record::id(id) AS id")
	for _, f := range fields {
		cols = append(cols, "`"+f+"`")
	}
	return strings.Join(cols, ", ")
}

func keys(allow map[string]string, extra ...string) []string {
	out := make([]string, 0, len(allow)+len(extra))
	for k := range allow {
		out = append(out, k)
	}
	out = append(out, extra...)
	return out
}

var (
	profileFields  = keys(store.ProfileColumns)
	settingsFields = keys(store.SettingsColumns)
	blockFields    = keys(store.BlockColumns, "type", "position")
	linkFields     = keys(store.LinkColumns, "position")
	tourDateFields = keys(store.TourDateColumns, "position")
)

// getOne reads the record tb:id, or returns nil when it does not exist.
func getOne[T any](ctx context.Context, s *Store, tb string, fields []string, id int64) (*T, error) {
	rows, err := query[[]T](ctx, s.db,
		"SELECT "+selectList(fields)+" FROM type::thing($tb, $id)",
		map[string]any{"tb": tb, "id": id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// list reads every record of tb ordered by position.
func list[T any](ctx context.Context, s *Store, tb string, fields []string) ([]T, error) {
	rows, err := query[[]T](ctx, s.db,
		"SELECT "+selectList(fields)+" FROM type::table($tb) ORDER BY position, id",
		map[string]any{"tb": tb})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// content converts a model into the map stored as the record body. The id
// lives in the record id and is left out. Numbers are typed so SurrealDB
// keeps integers as integers.
func content(v any, only []string) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	delete(m, "id")
	if only != nil {
		keep := make(map[string]any, len(only))
		for _, k := range only {
			if v, ok := m[k]; ok {
				keep[k] = v
			}
		}
		m = keep
	}
	return typed(m).(map[string]any), nil
}

func typed(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = typed(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = typed(e)
		}
		return t
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil || math.IsInf(f, 0) {
			return string(t)
		}
		return f
	default:
		return v
	}
}
