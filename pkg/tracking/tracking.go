// Package tracking holds the request helpers shared by page view and link
// click recording: bot detection, referrer normalization and client IP
// extraction.
package tracking

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Direct is the referrer recorded for visits without a foreign referrer.
const Direct = "direct"

var botPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bot`),
	regexp.MustCompile(`(?i)crawler`),
	regexp.MustCompile(`(?i)spider`),
	regexp.MustCompile(`(?i)slurp`),
	regexp.MustCompile(`(?i)yandex`),
	regexp.MustCompile(`(?i)baidu`),
	regexp.MustCompile(`(?i)facebookexternalhit`),
	regexp.MustCompile(`(?i)embedly`),
	regexp.MustCompile(`(?i)quora link preview`),
	regexp.MustCompile(`(?i)outbrain`),
	regexp.MustCompile(`(?i)pinterest`),
	regexp.MustCompile(`(?i)archive\.org_bot`),
	regexp.MustCompile(`(?i)ia_archiver`),
	regexp.MustCompile(`(?i)headlesschrome`),
	regexp.MustCompile(`(?i)lighthouse`),
	regexp.MustCompile(`(?i)pagespeed`),
	regexp.MustCompile(`(?i)gtmetrix`),
	regexp.MustCompile(`(?i)uptime-kuma`),
	regexp.MustCompile(`(?i)pingdom`),
	regexp.MustCompile(`(?i)curl/`),
	regexp.MustCompile(`(?i)go-http-client`),
	regexp.MustCompile(`(?i)python/`),
	regexp.MustCompile(`(?i)aiohttp`),
	regexp.MustCompile(`(?i)axios`),
	regexp.MustCompile(`(?i)node-fetch`),
	regexp.MustCompile(`(?i)wget`),
	regexp.MustCompile(`(?i)httpie`),
	regexp.MustCompile(`(?i)palo alto`),
	regexp.MustCompile(`(?i)cortex`),
	regexp.MustCompile(`(?i)scaninfo`),
	regexp.MustCompile(`(?i)masscan`),
	regexp.MustCompile(`(?i)zgrab`),
	regexp.MustCompile(`(?i)censys`),
	regexp.MustCompile(`(?i)shodan`),
	regexp.MustCompile(`(?i)nmap`),
	regexp.MustCompile(`(?i)\{USER_AGENT\}`),
	regexp.MustCompile(`(?i)air\.ai`),
	regexp.MustCompile(`(?i)req/v\d`),
	regexp.MustCompile(`(?i)googleother`),
	regexp.MustCompile(`^Mozilla/5\.0$`),
}

// IsBot reports whether userAgent looks automated. An empty user agent
// counts as a bot.
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return true
	}
	for _, p := range botPatterns {
		if p.MatchString(userAgent) {
			return true
		}
	}
	return false
}

// ParseReferrer reduces a referrer URL to host and path without "www." and
// trailing slash, e.g. "github.com/band/site". Empty or unparseable
// referrers and referrals from siteHost itself yield Direct.
func ParseReferrer(referrer, siteHost string) string {
	if referrer == "" {
		return Direct
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return Direct
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if siteHost != "" {
		site := siteHost
		if h, _, ok := strings.Cut(site, ":"); ok {
			site = h
		}
		if host == strings.TrimPrefix(site, "www.") {
			return Direct
		}
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		return host
	}
	return host + path
}

var ipHeaders = []string{
	"CF-Connecting-IP",
	"X-Real-IP",
	"X-Forwarded-For",
	"X-Client-IP",
	"True-Client-IP",
}

// ClientIP returns the first client address found in the proxy headers, or
// "" when there is none. Loopback addresses are skipped.
func ClientIP(r *http.Request) string {
	for _, h := range ipHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		ip, _, _ := strings.Cut(v, ",")
		ip = strings.TrimSpace(ip)
		if ip != "" && ip != "::1" && ip != "127.0.0.1" {
			return ip
		}
	}
	return ""
}
