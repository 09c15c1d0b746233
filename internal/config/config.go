package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/starsweep/internal/crawl"
	"github.com/nao1215/starsweep/internal/detect"
	"github.com/nao1215/starsweep/internal/probe"
	"github.com/nao1215/starsweep/internal/scheduler"
	"github.com/nao1215/starsweep/internal/search"
	"github.com/nao1215/starsweep/internal/transport"
)

// Default configuration values that are not owned by another package.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "starsweep"

	// DefaultBudget keeps a run inside a six-hour CI job with room to checkpoint.
	DefaultBudget = 5*time.Hour + 30*time.Minute

	// DefaultTimeout bounds each probe and search request.
	DefaultTimeout = 15 * time.Second

	// DefaultUserAgent identifies starsweep in HTTP requests.
	DefaultUserAgent = "starsweep/1.0 (+https://github.com/nao1215/starsweep)"

	// DefaultLockKey is the Redis key of the shared catalog lock.
	DefaultLockKey = "starsweep:catalog:lock"

	// DefaultLockTTL bounds how long a crashed holder blocks other crawlers.
	DefaultLockTTL = 30 * time.Second

	// Default file names inside the data directory.
	StateFileName   = "state.json"
	CatalogFileName = "catalog.json"
	MirrorFileName  = "catalog.db"
	ListingFileName = "SITES.md"
)

// Config holds all configuration options for starsweep.
// It is populated from defaults, the config file, the environment and CLI
// flags, then passed to the components that need it.
type Config struct {
	// Token authenticates search requests. Without it the search quota is
	// much smaller.
	Token string

	// SearchBaseURL is the root of the search API.
	SearchBaseURL string

	// Query holds the search qualifiers appended to the star-range filter.
	Query string

	// MaxRetries bounds attempts on rate-limited search responses.
	MaxRetries int

	// Top is the highest star count swept; the sweep restarts here.
	Top int

	// Gradient is the initial window width.
	Gradient int

	// Floor ends the sweep once the window ceiling falls below it.
	Floor int

	// MinGradient is the narrowest window chosen after a full page.
	MinGradient int

	// Budget is the wall-clock limit of a run. Zero disables it.
	Budget time.Duration

	// RetryPause is the wait after a rate-limited or transient search failure.
	RetryPause time.Duration

	// Workers is the number of concurrent probe tasks.
	Workers int

	// Marker is the substring whose presence in a page's scripts is a hit.
	Marker string

	// MaxScripts is how many same-site scripts are fetched per page.
	MaxScripts int

	// MaxBodySize caps every page or script read, in bytes.
	MaxBodySize int64

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// ProxyAddress routes all traffic through a SOCKS5 proxy when set.
	ProxyAddress string

	// StatePath is the crawl state document.
	StatePath string

	// CatalogPath is the primary catalog document.
	CatalogPath string

	// MirrorPath is the SQLite mirror of the catalog. Empty disables it.
	MirrorPath string

	// ListingPath is the generated Markdown listing. Empty disables it.
	ListingPath string

	// RedisAddress enables the cross-process catalog lock when set.
	RedisAddress string

	// LockKey is the Redis key of the catalog lock.
	LockKey string

	// LockTTL is the expiry of the catalog lock.
	LockTTL time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .starsweep in the current directory
	// and then in the user's home directory.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// Storage paths default to the XDG data directory.
func NewConfig() *Config {
	dataDir := XDGDataDir()

	return &Config{
		SearchBaseURL: search.DefaultBaseURL,
		Query:         search.DefaultQuery,
		MaxRetries:    search.DefaultMaxRetries,
		Top:           scheduler.DefaultTop,
		Gradient:      scheduler.DefaultGradient,
		Floor:         scheduler.DefaultFloor,
		MinGradient:   scheduler.DefaultMinGradient,
		Budget:        DefaultBudget,
		RetryPause:    crawl.DefaultRetryPause,
		Workers:       probe.DefaultWorkers,
		MaxScripts:    detect.DefaultMaxScripts,
		MaxBodySize:   detect.DefaultMaxBodySize,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		StatePath:     filepath.Join(dataDir, StateFileName),
		CatalogPath:   filepath.Join(dataDir, CatalogFileName),
		MirrorPath:    filepath.Join(dataDir, MirrorFileName),
		ListingPath:   filepath.Join(dataDir, ListingFileName),
		LockKey:       DefaultLockKey,
		LockTTL:       DefaultLockTTL,
	}
}

// XDGDataDir returns the XDG data directory for starsweep.
// On Linux: ~/.local/share/starsweep
// On macOS: ~/Library/Application Support/starsweep
// On Windows: %LOCALAPPDATA%\starsweep
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for starsweep.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings every command needs.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.StatePath == "" || c.CatalogPath == "" {
		return ErrMissingPath
	}
	if c.Top <= 0 || c.Gradient <= 0 || c.MinGradient <= 0 || c.Floor < 1 || c.Floor >= c.Top {
		return ErrInvalidRange
	}
	return nil
}

// ValidateCrawl checks the settings a crawl run needs in addition to Validate.
func (c *Config) ValidateCrawl() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Marker == "" {
		return ErrNoMarker
	}
	if c.Budget < 0 {
		return ErrInvalidBudget
	}
	if c.RetryPause < 0 {
		return ErrInvalidRetryPause
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ProxyAddress != "" && !transport.IsValidProxyAddress(c.ProxyAddress) {
		return ErrInvalidProxyAddress
	}
	return nil
}
