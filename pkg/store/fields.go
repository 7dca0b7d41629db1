package store

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/stagepage/stagepage/pkg/models"
)

// Errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrUnknownField = errors.New("field cannot be updated")
	ErrReadOnly     = errors.New("operation denied: application is in read-only mode")
)

// Allowlists map the JSON field names an update may carry to their columns.
var (
	ProfileColumns = map[string]string{
		"name":          "name",
		"siteTitle":     "site_title",
		"bio":           "bio",
		"email":         "email",
		"logoUrl":       "logo_url",
		"logoShape":     "logo_shape",
		"photoUrl":      "photo_url",
		"photoShape":    "photo_shape",
		"backgroundUrl": "background_url",
		"showName":      "show_name",
		"showLogo":      "show_logo",
		"showPhoto":     "show_photo",
		"showBio":       "show_bio",
		"showStreaming": "show_streaming",
		"showSocial":    "show_social",
		"showTourDates": "show_tour_dates",
		"locale":        "locale",
	}
	SettingsColumns = map[string]string{
		"colorBg":         "color_bg",
		"colorCard":       "color_card",
		"colorAccent":     "color_accent",
		"colorText":       "color_text",
		"colorTextMuted":  "color_text_muted",
		"layout":          "layout",
		"showShareButton": "show_share_button",
		"showPressKit":    "show_press_kit",
	}
	BlockColumns = map[string]string{
		"label":   "label",
		"config":  "config",
		"visible": "visible",
	}
	LinkColumns = map[string]string{
		"blockId":      "block_id",
		"category":     "category",
		"platform":     "platform",
		"url":          "url",
		"label":        "label",
		"thumbnailUrl": "thumbnail_url",
		"embedData":    "embed_data",
		"visible":      "visible",
	}
	TourDateColumns = map[string]string{
		"blockId":   "block_id",
		"date":      "date",
		"time":      "time",
		"title":     "title",
		"venue":     "venue",
		"lineup":    "lineup",
		"ticketUrl": "ticket_url",
		"eventUrl":  "event_url",
		"soldOut":   "sold_out",
	}
)

// Columns resolves the fields of an update against an allowlist and returns
// the column names in sorted order.
func Columns(allow map[string]string, fields Fields) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	cols := make([]string, 0, len(fields))
	for name := range fields {
		col, ok := allow[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// Allowed returns the subset of fields present in allow.
func Allowed(allow map[string]string, fields map[string]any) Fields {
	out := Fields{}
	for name, v := range fields {
		if _, ok := allow[name]; ok {
			out[name] = v
		}
	}
	return out
}

// AsID converts a decoded id value (an integer, an integral float or a
// json.Number) to int64.
func AsID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// DecodeOnto overwrites the fields of dst named in fields, converting the
// values through dst's JSON tags. A value of the wrong type fails with an
// error matching models.ErrValidation.
func DecodeOnto(dst any, fields Fields) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}
