package models

import (
	"net/url"
	"strings"
)

type platformRule struct {
	hosts    []string
	platform string
	category LinkCategory
}

// Order matters: music.youtube.com must win over youtube.com.
var platformRules = []platformRule{
	{[]string{"open.spotify.com"}, "spotify", CategoryStreaming},
	{[]string{"music.apple.com"}, "apple_music", CategoryStreaming},
	{[]string{"music.youtube.com"}, "youtube_music", CategoryStreaming},
	{[]string{"soundcloud.com"}, "soundcloud", CategoryStreaming},
	{[]string{"bandcamp.com"}, "bandcamp", CategoryStreaming},
	{[]string{"deezer.com"}, "deezer", CategoryStreaming},
	{[]string{"tidal.com"}, "tidal", CategoryStreaming},
	{[]string{"instagram.com"}, "instagram", CategorySocial},
	{[]string{"tiktok.com"}, "tiktok", CategorySocial},
	{[]string{"twitter.com", "x.com"}, "twitter", CategorySocial},
	{[]string{"facebook.com"}, "facebook", CategorySocial},
	{[]string{"youtube.com", "youtu.be"}, "youtube", CategorySocial},
}

// DetectPlatform maps a link url to a known platform and its category. For
// unknown hosts the platform is the first label of the host name and the
// category is other.
func DetectPlatform(raw string) (platform string, category LinkCategory) {
	lower := strings.ToLower(raw)
	u, err := url.Parse(lower)
	host := ""
	if err == nil {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}
	for _, rule := range platformRules {
		for _, h := range rule.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return rule.platform, rule.category
			}
		}
	}
	if host == "" {
		return "link", CategoryOther
	}
	return strings.Split(host, ".")[0], CategoryOther
}

// FillDefaults sets the platform and category of l from its url when they
// are empty.
func (l *Link) FillDefaults() {
	platform, category := DetectPlatform(l.URL)
	if l.Platform == "" {
		l.Platform = platform
	}
	if l.Category == "" {
		l.Category = category
	}
}
