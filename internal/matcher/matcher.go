// Package matcher decides which fetched candidates are new for a story.
// The source already scopes results to the story's keyword, so matching
// here is purely deduplication by canonical URL.
package matcher

import (
	"net/url"
	"strings"

	"story_tracker/internal/domain"
)

// FilterNew returns the candidates whose canonical URL is not in
// existingURLs and has not appeared earlier in the same batch. Output
// keeps the source's order; existingURLs must hold canonical forms.
func FilterNew(candidates []domain.Article, existingURLs map[string]struct{}) []domain.Article {
	seen := make(map[string]struct{}, len(candidates))

	var fresh []domain.Article
	for _, c := range candidates {
		key := Canonicalize(c.URL)
		if key == "" {
			continue
		}
		if _, ok := existingURLs[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, c)
	}

	return fresh
}

// Canonicalize normalizes a URL so that variants of the same article
// collapse to one identity: scheme and host are lower-cased, default
// ports, fragments, trailing slashes and common tracking parameters are
// dropped. Returns "" for unparseable input.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Fragment = ""

	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "fbclid" || param == "gclid" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
