package stagepage

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/models"
)

// aiCrawlers are kept off the whole site by robots.txt.
var aiCrawlers = []string{
	"GPTBot",
	"ChatGPT-User",
	"Google-Extended",
	"CCBot",
	"anthropic-ai",
	"Claude-Web",
	"Bytespider",
	"Amazonbot",
	"FacebookBot",
}

const (
	manifestDescriptionMax = 160
	manifestShortNameMax   = 12
)

type sitemapURL struct {
	Loc        string `xml:"loc"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type manifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

// Manifest is the web app manifest of the public page.
type Manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Icons           []manifestIcon `json:"icons"`
}

// siteOrigin is the scheme and host the public page is served from. A
// configured site host wins over the request host.
func (a *App) siteOrigin(r *http.Request) string {
	if host := a.config.SiteHost; host != "" {
		if strings.Contains(host, "://") {
			return strings.TrimRight(host, "/")
		}
		return "https://" + host
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (a *App) handleRobots(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("# Standard crawlers\nUser-agent: *\nAllow: /\nDisallow: /admin\nDisallow: /api/admin\n\n# AI crawlers\n")
	for _, bot := range aiCrawlers {
		fmt.Fprintf(&b, "User-agent: %s\nDisallow: /\n\n", bot)
	}
	fmt.Fprintf(&b, "Sitemap: %s/sitemap.xml\n", a.siteOrigin(r))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write([]byte(b.String()))
}

func (a *App) handleSitemap(w http.ResponseWriter, r *http.Request) {
	body := sitemap{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{
			{Loc: a.siteOrigin(r) + "/", ChangeFreq: "weekly", Priority: "1.0"},
		},
	}
	out, err := xml.MarshalIndent(body, "", "  ")
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func (a *App) handleManifest(w http.ResponseWriter, r *http.Request) {
	p, err := a.store.LoadPage(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out, err := json.Marshal(newManifest(p.Profile, p.Settings))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode manifest")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/manifest+json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(out)
}

// newManifest builds the manifest from the profile and appearance. Either may
// be nil before the first publish.
func newManifest(profile *models.Profile, settings *models.Settings) Manifest {
	if profile == nil {
		profile = models.NewProfile("")
	}
	if settings == nil {
		settings = models.NewSettings()
	}
	defaults := models.NewSettings()

	name := profile.Name
	if name == "" {
		name = models.DefaultProfileName
	}
	description := name + "'s official page"
	if profile.Bio != nil && *profile.Bio != "" {
		description = truncateRunes(*profile.Bio, manifestDescriptionMax)
	}
	bg := settings.ColorBg
	if bg == "" {
		bg = defaults.ColorBg
	}
	theme := settings.ColorAccent
	if theme == "" {
		theme = defaults.ColorAccent
	}

	return Manifest{
		Name:            name,
		ShortName:       truncateRunes(name, manifestShortNameMax),
		Description:     description,
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: bg,
		ThemeColor:      theme,
		Icons: []manifestIcon{
			{Src: "/icon-192.png", Sizes: "192x192", Type: "image/png", Purpose: "any maskable"},
			{Src: "/icon-512.png", Sizes: "512x512", Type: "image/png", Purpose: "any maskable"},
		},
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
