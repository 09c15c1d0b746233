package probe

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxDescriptionRunes truncates repository descriptions stored in the catalog.
const maxDescriptionRunes = 60

// NormalizeHomepage returns the homepage as an absolute URL without a trailing
// slash, defaulting the scheme to https. It returns an empty string when the
// homepage has no usable host.
func NormalizeHomepage(homepage string) string {
	raw := strings.TrimSpace(homepage)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}

// DomainOf derives the dedup key of a homepage: the lowercased hostname with
// any leading "www." removed. It returns an empty string for unusable homepages.
func DomainOf(homepage string) string {
	normalized := NormalizeHomepage(homepage)
	if normalized == "" {
		return ""
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Variants returns the URLs probed for a homepage, in order: the homepage
// itself, its /docs path, and the docs subdomain of its domain.
// Duplicates are removed, so a homepage that already is the docs site is
// probed once.
func Variants(homepage string) []string {
	base := NormalizeHomepage(homepage)
	if base == "" {
		return nil
	}
	domain := DomainOf(homepage)

	candidates := []string{base}
	if !strings.HasSuffix(base, "/docs") {
		candidates = append(candidates, base+"/docs")
	}
	if !strings.HasPrefix(domain, "docs.") {
		candidates = append(candidates, "https://docs."+domain)
	}

	seen := make(map[string]bool, len(candidates))
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		variants = append(variants, c)
	}
	return variants
}

// Alias derives the catalog key for a repository name: lowercase, with every
// run of characters outside [a-z0-9] collapsed into a single hyphen.
func Alias(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// Describe returns the catalog description for a repository: its description
// truncated to 60 runes, or a generic fallback naming the alias.
func Describe(alias, description string) string {
	d := strings.Join(strings.Fields(description), " ")
	if d == "" {
		return "Documentation for " + alias
	}
	if utf8.RuneCountInString(d) <= maxDescriptionRunes {
		return d
	}
	return string([]rune(d)[:maxDescriptionRunes])
}
