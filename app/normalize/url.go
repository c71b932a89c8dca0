package normalize

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrEmptyLink    = errors.New("missing link")
	ErrRelativeLink = errors.New("link is not an absolute http(s) URL")
)

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"yclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_hsenc":  {},
	"_hsmi":   {},
	"ref":     {},
	"ref_src": {},
}

// CanonicalLink lowercases scheme and host, drops default ports, fragments and
// tracking parameters, sorts the remaining query and trims a trailing slash.
// Two links pointing at the same article compare equal afterwards.
func CanonicalLink(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyLink
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrRelativeLink
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return "", ErrRelativeLink
	}

	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			host += ":" + port
		}
	}
	parsed.Host = host
	parsed.User = nil
	parsed.Fragment = ""
	parsed.RawFragment = ""

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
		parsed.RawPath = strings.TrimRight(parsed.RawPath, "/")
	}
	if parsed.Path == "/" {
		parsed.Path = ""
	}

	parsed.RawQuery = cleanQuery(parsed.Query())

	return parsed.String(), nil
}

func cleanQuery(q url.Values) string {
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) == 0 {
		return ""
	}

	for _, values := range q {
		sort.Strings(values)
	}
	// Encode sorts by key.
	return q.Encode()
}
