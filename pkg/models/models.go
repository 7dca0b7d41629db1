package models

import (
	"sort"
	"time"
)

// BlockType represents the type of a page block
type BlockType string

const (
	BlockTypeProfile   BlockType = "profile"
	BlockTypeLinks     BlockType = "links"
	BlockTypeTourDates BlockType = "tour_dates"
	BlockTypeImage     BlockType = "image"
	BlockTypeGallery   BlockType = "gallery"
	BlockTypeProducts  BlockType = "products"
)

// BlockTypes lists every supported block type in registry order.
var BlockTypes = []BlockType{
	BlockTypeProfile,
	BlockTypeLinks,
	BlockTypeTourDates,
	BlockTypeImage,
	BlockTypeGallery,
	BlockTypeProducts,
}

// LinkCategory groups links on the public page
type LinkCategory string

const (
	CategoryStreaming LinkCategory = "streaming"
	CategorySocial    LinkCategory = "social"
	CategoryMerch     LinkCategory = "merch"
	CategoryOther     LinkCategory = "other"
)

// Profile is the single artist profile row.
type Profile struct {
	ID            int64   `gorm:"primaryKey" json:"id"`
	Name          string  `gorm:"not null" json:"name"`
	SiteTitle     *string `json:"siteTitle"`
	Bio           *string `json:"bio"`
	Email         *string `json:"email"`
	LogoURL       *string `gorm:"column:logo_url" json:"logoUrl"`
	LogoShape     string  `json:"logoShape"`
	PhotoURL      *string `gorm:"column:photo_url" json:"photoUrl"`
	PhotoShape    string  `json:"photoShape"`
	BackgroundURL *string `gorm:"column:background_url" json:"backgroundUrl"`
	ShowName      bool    `json:"showName"`
	ShowLogo      bool    `json:"showLogo"`
	ShowPhoto     bool    `json:"showPhoto"`
	ShowBio       bool    `json:"showBio"`
	ShowStreaming bool    `json:"showStreaming"`
	ShowSocial    bool    `json:"showSocial"`
	ShowTourDates bool    `json:"showTourDates"`
	Locale        string  `json:"locale"`
}

// DefaultProfileName is used when no profile row exists yet.
const DefaultProfileName = "Artist Name"

// NewProfile returns a profile carrying the column defaults.
func NewProfile(name string) *Profile {
	if name == "" {
		name = DefaultProfileName
	}
	return &Profile{
		Name:          name,
		LogoShape:     "circle",
		PhotoShape:    "wide-rounded",
		ShowName:      true,
		ShowLogo:      true,
		ShowPhoto:     true,
		ShowBio:       true,
		ShowStreaming: true,
		ShowSocial:    true,
		ShowTourDates: true,
		Locale:        "nb-NO",
	}
}

// Block is one reorderable section of the public page.
type Block struct {
	ID       int64     `gorm:"primaryKey" json:"id"`
	Type     BlockType `gorm:"not null" json:"type"`
	Label    *string   `json:"label"`
	Config   JSONMap   `json:"config"`
	Visible  bool      `json:"visible"`
	Position int       `gorm:"index" json:"position"`
}

// Link belongs to a links block.
type Link struct {
	ID           int64        `gorm:"primaryKey" json:"id"`
	BlockID      int64        `gorm:"index;not null" json:"blockId"`
	Category     LinkCategory `gorm:"not null" json:"category"`
	Platform     string       `gorm:"not null" json:"platform"`
	URL          string       `gorm:"column:url;not null" json:"url"`
	Label        *string      `json:"label"`
	ThumbnailURL *string      `gorm:"column:thumbnail_url" json:"thumbnailUrl"`
	EmbedData    JSONMap      `json:"embedData"`
	Position     int          `json:"position"`
	Visible      bool         `json:"visible"`
}

// TourDate belongs to a tour dates block.
type TourDate struct {
	ID        int64   `gorm:"primaryKey" json:"id"`
	BlockID   int64   `gorm:"index;not null" json:"blockId"`
	Date      string  `gorm:"not null" json:"date"`
	Time      *string `json:"time"`
	Title     *string `json:"title"`
	Venue     Venue   `gorm:"not null" json:"venue"`
	Lineup    *string `json:"lineup"`
	TicketURL *string `gorm:"column:ticket_url" json:"ticketUrl"`
	EventURL  *string `gorm:"column:event_url" json:"eventUrl"`
	SoldOut   bool    `json:"soldOut"`
	Position  int     `json:"position"`
}

// Settings holds the appearance of the public page.
type Settings struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	ColorBg         string `json:"colorBg"`
	ColorCard       string `json:"colorCard"`
	ColorAccent     string `json:"colorAccent"`
	ColorText       string `json:"colorText"`
	ColorTextMuted  string `json:"colorTextMuted"`
	Layout          string `json:"layout"`
	ShowShareButton bool   `json:"showShareButton"`
	ShowPressKit    bool   `json:"showPressKit"`
}

// NewSettings returns the default appearance.
func NewSettings() *Settings {
	return &Settings{
		ColorBg:         "#0c0a14",
		ColorCard:       "#14101f",
		ColorAccent:     "#8b5cf6",
		ColorText:       "#f4f4f5",
		ColorTextMuted:  "#a1a1aa",
		Layout:          "default",
		ShowShareButton: true,
	}
}

// PageView is one tracked visit. No personal data is stored.
type PageView struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Path      string    `gorm:"not null" json:"path"`
	Referrer  string    `json:"referrer"`
	Country   *string   `json:"country"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// LinkClick is one tracked outbound click.
type LinkClick struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	LinkID    int64     `gorm:"index;not null" json:"linkId"`
	Referrer  string    `json:"referrer"`
	Country   *string   `json:"country"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Page is everything one page load needs. Profile and Settings are nil when
// their row does not exist yet.
type Page struct {
	Profile   *Profile   `json:"profile"`
	Blocks    []Block    `json:"blocks"`
	Links     []Link     `json:"links"`
	TourDates []TourDate `json:"tourDates"`
	Settings  *Settings  `json:"settings"`
}

// Published returns the public view of p: hidden blocks are dropped along
// with their children, hidden links are dropped, and every collection is
// sorted by position.
func (p *Page) Published() *Page {
	out := &Page{
		Profile:   p.Profile,
		Settings:  p.Settings,
		Blocks:    []Block{},
		Links:     []Link{},
		TourDates: []TourDate{},
	}
	visible := map[int64]bool{}
	for _, b := range SortBlocks(p.Blocks) {
		if !b.Visible {
			continue
		}
		visible[b.ID] = true
		out.Blocks = append(out.Blocks, b)
	}
	for _, l := range SortLinks(p.Links) {
		if l.Visible && visible[l.BlockID] {
			out.Links = append(out.Links, l)
		}
	}
	for _, td := range SortTourDates(p.TourDates) {
		if visible[td.BlockID] {
			out.TourDates = append(out.TourDates, td)
		}
	}
	return out
}

// Stats summarizes analytics since a point in time.
type Stats struct {
	Since        time.Time   `json:"since"`
	TotalViews   int64       `json:"totalViews"`
	TotalClicks  int64       `json:"totalClicks"`
	ViewsByDay   []DayCount  `json:"viewsByDay"`
	TopReferrers []NameCount `json:"topReferrers"`
	TopPaths     []NameCount `json:"topPaths"`
	TopLinks     []LinkCount `json:"topLinks"`
}

// DayCount is a count for one calendar day (YYYY-MM-DD, UTC).
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// NameCount is a count grouped by a string key.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// LinkCount is the click count of one link.
type LinkCount struct {
	LinkID   int64   `json:"linkId"`
	Label    *string `json:"label"`
	Platform string  `json:"platform"`
	URL      string  `json:"url"`
	Count    int64   `json:"count"`
}

// CountByDay buckets timestamps into UTC calendar days, oldest first.
func CountByDay(times []time.Time) []DayCount {
	counts := map[string]int64{}
	for _, t := range times {
		counts[t.UTC().Format(time.DateOnly)]++
	}
	days := make([]DayCount, 0, len(counts))
	for d, n := range counts {
		days = append(days, DayCount{Date: d, Count: n})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// DefaultBlockConfig returns the config a new block of type t starts with.
func DefaultBlockConfig(t BlockType) JSONMap {
	switch t {
	case BlockTypeProfile:
		return JSONMap{"showName": true, "showBio": true}
	case BlockTypeLinks:
		return JSONMap{"displayAs": "rows"}
	case BlockTypeTourDates:
		return JSONMap{"showPastShows": true}
	case BlockTypeImage:
		return JSONMap{"shape": "rounded", "alignment": "center", "size": "medium", "showGlow": false}
	case BlockTypeGallery:
		return JSONMap{"mediaIds": []any{}, "displayAs": "grid"}
	default:
		return JSONMap{}
	}
}
