package detect

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Scripts is what a page exposes to the marker search.
type Scripts struct {
	// Sources are the resolved absolute URLs of <script src> elements, in
	// document order and without duplicates.
	Sources []string

	// Inline is the concatenated text of inline <script> elements.
	Inline string
}

// parseScripts walks an HTML document and collects its scripts.
// Relative sources are resolved against base.
func parseScripts(base *url.URL, content io.Reader) (*Scripts, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &Scripts{Sources: make([]string, 0)}
	seen := make(map[string]bool)
	var inline strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			if src := getAttr(n, "src"); src != "" {
				if resolved := resolveURL(base, src); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					result.Sources = append(result.Sources, resolved)
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					inline.WriteString(c.Data)
					inline.WriteString("\n")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	result.Inline = inline.String()
	return result, nil
}

// resolveURL resolves href against base. Non-fetchable references such as
// data: URIs resolve to an empty string.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "data:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// sameSite reports whether target is served from the same registrable host as
// base, treating subdomains of base's host (and vice versa) as the same site.
func sameSite(base *url.URL, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	a := strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")
	b := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}

// getAttr returns the value of the named attribute, or "" when absent.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
