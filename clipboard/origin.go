package clipboard

import "net/url"

// Origin returns scheme://host[:port] of rawURL, or "" for URLs without a
// network origin (about:blank, data:, file:).
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "http", "https":
		return u.Scheme + "://" + u.Host
	}
	return ""
}
