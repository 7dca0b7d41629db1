package tracking

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBot(t *testing.T) {
	bots := []string{
		"",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		"facebookexternalhit/1.1",
		"curl/8.4.0",
		"Go-http-client/1.1",
		"Mozilla/5.0",
		"Mozilla/5.0 HeadlessChrome/120.0",
	}
	for _, ua := range bots {
		assert.True(t, IsBot(ua), ua)
	}
	humans := []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
	}
	for _, ua := range humans {
		assert.False(t, IsBot(ua), ua)
	}
}

func TestParseReferrer(t *testing.T) {
	tests := []struct {
		referrer, site, want string
	}{
		{"", "", Direct},
		{"::not a url", "", Direct},
		{"https://www.google.com/", "", "google.com"},
		{"https://github.com/band/site/", "", "github.com/band/site"},
		{"https://www.stage.page/about", "stage.page", Direct},
		{"http://stage.page:8080/", "stage.page:8080", Direct},
		{"https://l.instagram.com/?u=x", "stage.page", "l.instagram.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseReferrer(tt.referrer, tt.site), tt.referrer)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	r.Header.Set("X-Real-IP", "127.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	r.Header.Set("CF-Connecting-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(r))
}
