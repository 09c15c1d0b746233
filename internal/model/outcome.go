package model

// ProbeOutcome is the result of probing one candidate domain.
// The domain is always considered scanned, whether or not anything was found.
type ProbeOutcome struct {
	// Domain is the dedup key derived from the candidate homepage.
	Domain string

	// VerifiedURL is the page on which a live marker was confirmed.
	// Empty when nothing was found or verification failed.
	VerifiedURL string

	// Alias is the catalog key for a verified site.
	Alias string

	// Description is the catalog description for a verified site.
	Description string
}

// Verified reports whether the outcome carries a confirmed site.
func (o ProbeOutcome) Verified() bool {
	return o.VerifiedURL != ""
}

// Entry converts a verified outcome into a catalog entry.
func (o ProbeOutcome) Entry() CatalogEntry {
	return CatalogEntry{
		Alias:       o.Alias,
		URL:         o.VerifiedURL,
		Description: o.Description,
	}
}

// CatalogEntry is a confirmed site in the shared catalog.
// Alias is the unique key; an existing alias is never overwritten.
type CatalogEntry struct {
	Alias       string `json:"-"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
