package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nao1215/starsweep/internal/atomicfile"
	"github.com/nao1215/starsweep/internal/model"
)

// Catalog is the lock-guarded mutator of the site catalog.
// It is safe for concurrent use.
type Catalog struct {
	path   string
	mirror *Mirror
	locker Locker
	logger *slog.Logger

	// mu serializes mutations within the process and guards entries.
	mu      sync.Mutex
	entries map[string]model.CatalogEntry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithMirror mirrors every mutation into a SQLite database.
func WithMirror(m *Mirror) Option {
	return func(c *Catalog) {
		c.mirror = m
	}
}

// WithLocker adds a cross-process lock around every mutation.
func WithLocker(l Locker) Option {
	return func(c *Catalog) {
		c.locker = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// Open loads the catalog stored at path. A missing file is an empty catalog.
func Open(path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		path:    path,
		entries: make(map[string]model.CatalogEntry),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Path returns the location of the primary store.
func (c *Catalog) Path() string {
	return c.path
}

// Reload re-reads the primary store from disk.
func (c *Catalog) Reload() error {
	entries, err := readPrimary(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// List returns the entries seen by the last Reload or mutation, sorted by alias.
func (c *Catalog) List() []model.CatalogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// Len returns the number of entries seen by the last Reload or mutation.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Append adds entry unless its alias is already present.
// It reports whether the entry was added to the primary store.
func (c *Catalog) Append(ctx context.Context, entry model.CatalogEntry) (added bool, err error) {
	if entry.Alias == "" {
		return false, ErrEmptyAlias
	}
	if entry.URL == "" {
		return false, ErrEmptyURL
	}

	err = c.withLock(ctx, func() error {
		entries, err := readPrimary(c.path)
		if err != nil {
			return err
		}

		if _, exists := entries[entry.Alias]; !exists {
			entries[entry.Alias] = entry
			if err := writePrimary(c.path, entries); err != nil {
				return err
			}
			added = true
		}

		if c.mirror != nil {
			current := entries[entry.Alias]
			if _, err := c.mirror.Insert(ctx, current); err != nil {
				return fmt.Errorf("failed to mirror %q: %w", entry.Alias, err)
			}
		}

		c.entries = entries
		return nil
	})
	if err != nil {
		return false, err
	}

	if added {
		c.logger.Info("catalog entry added", "alias", entry.Alias, "url", entry.URL)
	} else {
		c.logger.Debug("catalog alias already present", "alias", entry.Alias)
	}
	return added, nil
}

// Remove deletes alias from both stores. It reports whether the alias was
// present in the primary store.
func (c *Catalog) Remove(ctx context.Context, alias string) (removed bool, err error) {
	if alias == "" {
		return false, ErrEmptyAlias
	}

	err = c.withLock(ctx, func() error {
		entries, err := readPrimary(c.path)
		if err != nil {
			return err
		}

		if _, exists := entries[alias]; exists {
			delete(entries, alias)
			if err := writePrimary(c.path, entries); err != nil {
				return err
			}
			removed = true
		}

		if c.mirror != nil {
			if _, err := c.mirror.Delete(ctx, alias); err != nil {
				return fmt.Errorf("failed to remove %q from mirror: %w", alias, err)
			}
		}

		c.entries = entries
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// withLock runs fn inside the in-process mutex and, when configured, the
// distributed lock.
func (c *Catalog) withLock(ctx context.Context, fn func() error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx)
		if err != nil {
			return err
		}
		defer func() {
			// Release with a fresh context so a cancelled run still frees the lock.
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				c.logger.Warn("failed to release catalog lock", "error", uerr)
			}
		}()
	}

	return fn()
}

// readPrimary decodes the primary store. A missing or empty file is an empty catalog.
func readPrimary(path string) (map[string]model.CatalogEntry, error) {
	entries := make(map[string]model.CatalogEntry)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	var doc map[string]model.CatalogEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptCatalog, path, err)
	}
	for alias, e := range doc {
		e.Alias = alias
		entries[alias] = e
	}
	return entries, nil
}

// writePrimary replaces the primary store with entries.
// Keys are written in sorted order.
func writePrimary(path string, entries map[string]model.CatalogEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	data = append(data, '\n')

	if err := atomicfile.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // The catalog is a shared, non-secret document
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}
