package prerender

import "strings"

// EscapedFragment is the query key crawlers use to ask for a static snapshot.
const EscapedFragment = "_escaped_fragment_"

const (
	HeaderToken          = "X-Prerender-Token"
	HeaderForwardedProto = "X-Forwarded-Proto"
)

// Built-in lists. Configured entries are appended to copies of these,
// never to the arrays themselves.
var (
	defaultCrawlerUserAgents = [...]string{
		"googlebot", "yahoo", "bingbot", "yandex", "baiduspider", "facebookexternalhit", "twitterbot", "rogerbot", "linkedinbot",
		"embedly", "quora link preview", "showyoubot", "outbrain", "pinterest/0.",
		"developers.google.com/+/web/snippet", "slackbot", "vkShare", "W3C_Validator",
		"redditbot", "Applebot", "WhatsApp", "flipboard", "tumblr", "bitlybot",
		"SkypeUriPreview", "nuzzel", "Discordbot", "Google Page Speed", "x-bufferbot",
	}

	defaultExtensionsToIgnore = [...]string{
		".js", ".css", ".less", ".png", ".jpg", ".jpeg", ".gif", ".pdf", ".doc", ".txt",
		".zip", ".mp3", ".rar", ".exe", ".wmv", ".avi", ".ppt", ".mpg", ".mpeg", ".tif",
		".wav", ".mov", ".psd", ".ai", ".xls", ".mp4", ".m4a", ".swf", ".dat", ".dmg",
		".iso", ".flv", ".m4v", ".torrent",
	}
)

// DefaultCrawlerUserAgents returns a copy of the built-in crawler identifiers.
func DefaultCrawlerUserAgents() []string {
	return append([]string(nil), defaultCrawlerUserAgents[:]...)
}

// DefaultExtensionsToIgnore returns a copy of the built-in static extensions.
func DefaultExtensionsToIgnore() []string {
	return append([]string(nil), defaultExtensionsToIgnore[:]...)
}

// mergeLower returns defaults followed by extra, lowercased, without
// duplicates or blanks.
func mergeLower(defaults []string, extra []string) []string {
	out := make([]string, 0, len(defaults)+len(extra))
	seen := make(map[string]struct{}, len(defaults)+len(extra))
	for _, list := range [][]string{defaults, extra} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
