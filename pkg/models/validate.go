package models

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports one invalid field.
type ValidationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

var (
	logoShapes     = []string{"circle", "rounded", "square"}
	photoShapes    = []string{"circle", "rounded", "square", "wide", "wide-rounded"}
	layouts        = []string{"default", "minimal", "card"}
	categories     = []LinkCategory{CategoryStreaming, CategorySocial, CategoryMerch, CategoryOther}
	embedPlatforms = []string{"bandcamp", "spotify", "youtube"}
)

// ValidURL accepts absolute http and https URLs.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Validate checks the profile fields the editor can change.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{"profile", "name", "Name is required"}
	}
	if p.Email != nil && *p.Email != "" {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return &ValidationError{"profile", "email", "Please enter a valid email"}
		}
	}
	if p.LogoShape != "" && !slices.Contains(logoShapes, p.LogoShape) {
		return &ValidationError{"profile", "logoShape", "unknown shape " + p.LogoShape}
	}
	if p.PhotoShape != "" && !slices.Contains(photoShapes, p.PhotoShape) {
		return &ValidationError{"profile", "photoShape", "unknown shape " + p.PhotoShape}
	}
	return nil
}

// Validate checks the block type.
func (b *Block) Validate() error {
	if !slices.Contains(BlockTypes, b.Type) {
		return &ValidationError{"block", "type", fmt.Sprintf("unknown block type %q", b.Type)}
	}
	return nil
}

// Validate checks the link url, category and embed data.
func (l *Link) Validate() error {
	if !ValidURL(l.URL) {
		return &ValidationError{"link", "url", "Please enter a valid URL"}
	}
	if l.Category != "" && !slices.Contains(categories, l.Category) {
		return &ValidationError{"link", "category", fmt.Sprintf("unknown category %q", l.Category)}
	}
	if l.EmbedData != nil {
		platform, _ := l.EmbedData["platform"].(string)
		if !slices.Contains(embedPlatforms, platform) {
			return &ValidationError{"link", "embedData", fmt.Sprintf("unsupported embed platform %q", platform)}
		}
		if id, _ := l.EmbedData["id"].(string); id == "" {
			return &ValidationError{"link", "embedData", "embed id is required"}
		}
	}
	return nil
}

// Validate checks the required tour date fields.
func (td *TourDate) Validate() error {
	if strings.TrimSpace(td.Date) == "" {
		return &ValidationError{"tourDate", "date", "Date is required"}
	}
	if strings.TrimSpace(td.Venue.Name) == "" {
		return &ValidationError{"tourDate", "venue", "Venue is required"}
	}
	if strings.TrimSpace(td.Venue.City) == "" {
		return &ValidationError{"tourDate", "city", "City is required"}
	}
	if td.TicketURL != nil && *td.TicketURL != "" && !ValidURL(*td.TicketURL) {
		return &ValidationError{"tourDate", "ticketUrl", "Please enter a valid URL"}
	}
	return nil
}

// Validate checks colors and layout.
func (s *Settings) Validate() error {
	colors := []struct {
		field, value string
	}{
		{"colorBg", s.ColorBg},
		{"colorCard", s.ColorCard},
		{"colorAccent", s.ColorAccent},
		{"colorText", s.ColorText},
		{"colorTextMuted", s.ColorTextMuted},
	}
	for _, c := range colors {
		if !hexColor.MatchString(c.value) {
			return &ValidationError{"appearance", c.field, fmt.Sprintf("invalid color %q", c.value)}
		}
	}
	if !slices.Contains(layouts, s.Layout) {
		return &ValidationError{"appearance", "layout", fmt.Sprintf("unknown layout %q", s.Layout)}
	}
	return nil
}
