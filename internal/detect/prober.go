package detect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default MarkerProber limits.
const (
	// DefaultMaxScripts is the number of same-site scripts fetched per page.
	DefaultMaxScripts = 5

	// DefaultMaxBodySize caps every page or script body read (2 MiB).
	DefaultMaxBodySize int64 = 2 << 20

	// DefaultCacheSize is the number of URLs whose verdict is remembered.
	DefaultCacheSize = 4096
)

// MarkerProber reports pages that load a script containing a marker.
// It is safe for concurrent use.
type MarkerProber struct {
	client      *http.Client
	marker      string
	maxScripts  int
	maxBodySize int64
	cacheSize   int
	cache       *lru.Cache[string, string]
	logger      *slog.Logger
}

// MarkerOption configures a MarkerProber.
type MarkerOption func(*MarkerProber)

// WithMaxScripts sets how many same-site scripts are fetched per page.
// Zero disables script fetching.
func WithMaxScripts(n int) MarkerOption {
	return func(p *MarkerProber) {
		if n >= 0 {
			p.maxScripts = n
		}
	}
}

// WithMaxBodySize sets the maximum number of bytes read from any response.
func WithMaxBodySize(size int64) MarkerOption {
	return func(p *MarkerProber) {
		if size > 0 {
			p.maxBodySize = size
		}
	}
}

// WithCacheSize sets the number of cached URL verdicts.
func WithCacheSize(n int) MarkerOption {
	return func(p *MarkerProber) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// WithProberLogger sets the logger.
func WithProberLogger(logger *slog.Logger) MarkerOption {
	return func(p *MarkerProber) {
		p.logger = logger
	}
}

// NewMarkerProber creates a MarkerProber that searches for marker using client.
func NewMarkerProber(client *http.Client, marker string, opts ...MarkerOption) (*MarkerProber, error) {
	if strings.TrimSpace(marker) == "" {
		return nil, ErrEmptyMarker
	}

	p := &MarkerProber{
		client:      client,
		marker:      marker,
		maxScripts:  DefaultMaxScripts,
		maxBodySize: DefaultMaxBodySize,
		cacheSize:   DefaultCacheSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	cache, err := lru.New[string, string](p.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}
	p.cache = cache

	return p, nil
}

// Scan fetches target and returns the evidence of the marker: the URL of the
// matching script, or target itself for an inline match. It returns an empty
// string when the marker is absent.
func (p *MarkerProber) Scan(ctx context.Context, target string) (string, error) {
	if evidence, ok := p.cache.Get(target); ok {
		return evidence, nil
	}

	evidence, err := p.scan(ctx, target)
	if err != nil {
		return "", err
	}

	p.cache.Add(target, evidence)
	return evidence, nil
}

func (p *MarkerProber) scan(ctx context.Context, target string) (string, error) {
	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}

	// Scripts resolve against the page that was served, after redirects.
	body, base, err := p.fetch(ctx, target, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}

	scripts, err := parseScripts(base, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", target, err)
	}

	for _, src := range scripts.Sources {
		if strings.Contains(src, p.marker) {
			return src, nil
		}
	}
	if strings.Contains(scripts.Inline, p.marker) {
		return target, nil
	}

	fetched := 0
	for _, src := range scripts.Sources {
		if fetched >= p.maxScripts {
			break
		}
		if !sameSite(base, src) {
			continue
		}
		fetched++

		script, _, err := p.fetch(ctx, src, "*/*")
		if err != nil {
			p.logger.Debug("script fetch failed", "script", src, "error", err)
			continue
		}
		if bytes.Contains(script, []byte(p.marker)) {
			return src, nil
		}
	}

	return "", nil
}

// fetch GETs target and returns at most maxBodySize bytes of a 2xx body
// together with the URL that served it once redirects are followed.
func (p *MarkerProber) fetch(ctx context.Context, target, accept string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBodySize)) //nolint:errcheck // Drain for connection reuse
		return nil, nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, target, resp.StatusCode)
	}

	final := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, nil, err
	}
	return body, final, nil
}
