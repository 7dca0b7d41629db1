package models

import (
	"database/sql/driver"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONMap is a free-form JSON object column, used for block config and link
// embed data. A nil map is stored as NULL.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, j)
}

// UnmarshalJSON replaces the map instead of merging into it, so a partial
// update carrying config sets the whole object.
func (j *JSONMap) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// GormDataType returns the general data type of the column.
func (JSONMap) GormDataType() string {
	return "json"
}

// GormDBDataType picks JSONB on PostgreSQL and TEXT elsewhere.
func (JSONMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

// Venue is where a tour date takes place.
type Venue struct {
	Name    string   `json:"name"`
	City    string   `json:"city"`
	Address string   `json:"address,omitempty"`
	PlaceID string   `json:"placeId,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Value implements the driver.Valuer interface for database storage
func (v Venue) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (v *Venue) Scan(value any) error {
	if value == nil {
		*v = Venue{}
		return nil
	}
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// UnmarshalJSON resets v before decoding so omitted fields are cleared.
func (v *Venue) UnmarshalJSON(b []byte) error {
	type plain Venue
	var out plain
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*v = Venue(out)
	return nil
}

// GormDataType returns the general data type of the column.
func (Venue) GormDataType() string {
	return "json"
}

// GormDBDataType picks JSONB on PostgreSQL and TEXT elsewhere.
func (Venue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

func jsonColumnType(db *gorm.DB) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column value %T", value)
	}
}

// SortBlocks returns a copy of blocks ordered by position, then id.
func SortBlocks(blocks []Block) []Block {
	out := append([]Block(nil), blocks...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortLinks returns a copy of links ordered by position, then id.
func SortLinks(links []Link) []Link {
	out := append([]Link(nil), links...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortTourDates returns a copy of tour dates ordered by position, then id.
func SortTourDates(dates []TourDate) []TourDate {
	out := append([]TourDate(nil), dates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}
