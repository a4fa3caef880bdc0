package util

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ParseLinks returns the href of every <a> element whose target ends with
// suffix, compared case-insensitively, in document order.
func ParseLinks(n *html.Node, suffix string) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(nd *html.Node) {
		if nd.Type == html.ElementNode && nd.Data == "a" {
			for _, a := range nd.Attr {
				if a.Key != "href" {
					continue
				}
				if target := hrefPath(a.Val); a.Val != "/" && strings.HasSuffix(strings.ToLower(target), strings.ToLower(suffix)) {
					out = append(out, a.Val)
				}
				break
			}
		}
		for c := nd.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// hrefPath drops any query or fragment, so "x.zip?sig=1" still matches.
func hrefPath(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// ResolveLinks makes links absolute against base, dropping duplicates and
// links that fail to parse. The result is sorted.
func ResolveLinks(base *url.URL, links []string) (resolved []string, bad []string) {
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		u, err := base.Parse(l)
		if err != nil {
			bad = append(bad, l)
			continue
		}
		abs := u.String()
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		resolved = append(resolved, abs)
	}
	sort.Strings(resolved)
	return resolved, bad
}
