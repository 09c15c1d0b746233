package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/nao1215/starsweep/internal/atomicfile"
	"github.com/nao1215/starsweep/internal/model"
)

// document is the on-disk layout.
type document struct {
	Ceiling        int      `json:"ceiling"`
	Gradient       int      `json:"gradient"`
	ScannedDomains []string `json:"scannedDomains"`
	FoundSites     []string `json:"foundSites"`
}

// CrawlState is the resumable progress of a crawl.
// It is not safe for concurrent use; the crawl loop is its only writer.
type CrawlState struct {
	position model.Position
	scanned  map[string]struct{}
	found    []string
	foundSet map[string]struct{}
}

// New returns an empty state positioned at pos.
func New(pos model.Position) *CrawlState {
	return &CrawlState{
		position: pos,
		scanned:  make(map[string]struct{}),
		found:    make([]string, 0),
		foundSet: make(map[string]struct{}),
	}
}

// Position returns the current scheduler position.
func (s *CrawlState) Position() model.Position {
	return s.position
}

// SetPosition replaces the scheduler position.
func (s *CrawlState) SetPosition(pos model.Position) {
	s.position = pos
}

// IsScanned reports whether domain was probed before.
func (s *CrawlState) IsScanned(domain string) bool {
	_, ok := s.scanned[domain]
	return ok
}

// MarkScanned records domain as probed. The set only grows.
func (s *CrawlState) MarkScanned(domain string) {
	if domain == "" {
		return
	}
	s.scanned[domain] = struct{}{}
}

// ScannedCount returns the number of probed domains.
func (s *CrawlState) ScannedCount() int {
	return len(s.scanned)
}

// AddFound records a verified site URL. It returns false when the URL was
// already recorded.
func (s *CrawlState) AddFound(siteURL string) bool {
	if siteURL == "" {
		return false
	}
	if _, ok := s.foundSet[siteURL]; ok {
		return false
	}
	s.foundSet[siteURL] = struct{}{}
	s.found = append(s.found, siteURL)
	return true
}

// Found returns the verified site URLs in discovery order.
func (s *CrawlState) Found() []string {
	out := make([]string, len(s.found))
	copy(out, s.found)
	return out
}

// Reset moves the position back to the top of the rank space. The dedup set
// and the found sites are kept.
func (s *CrawlState) Reset(pos model.Position) {
	s.position = pos
}

// Load reads the state at path.
//
// A missing file yields New(defaults) and no error. A file that cannot be
// decoded, or that holds an impossible position, yields New(defaults) and
// ErrStateCorrupt. Any other read failure is returned with a nil state.
func Load(path string, defaults model.Position) (*CrawlState, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(defaults), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return New(defaults), fmt.Errorf("%w: %s: %w", ErrStateCorrupt, path, err)
	}
	if doc.Gradient <= 0 || doc.Ceiling < 0 {
		return New(defaults), fmt.Errorf("%w: %s: ceiling=%d gradient=%d",
			ErrStateCorrupt, path, doc.Ceiling, doc.Gradient)
	}

	s := New(model.Position{Ceiling: doc.Ceiling, Gradient: doc.Gradient})
	for _, d := range doc.ScannedDomains {
		s.MarkScanned(d)
	}
	for _, u := range doc.FoundSites {
		s.AddFound(u)
	}
	return s, nil
}

// Save writes the state to path, replacing any previous file atomically.
func (s *CrawlState) Save(path string) error {
	scanned := make([]string, 0, len(s.scanned))
	for d := range s.scanned {
		scanned = append(scanned, d)
	}
	sort.Strings(scanned)

	doc := document{
		Ceiling:        s.position.Ceiling,
		Gradient:       s.position.Gradient,
		ScannedDomains: scanned,
		FoundSites:     s.Found(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	if err := atomicfile.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}
