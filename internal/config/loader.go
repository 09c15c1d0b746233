package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".starsweep"

// Environment variables read by ApplyEnv.
const (
	// EnvToken is the preferred token variable.
	EnvToken = "STARSWEEP_TOKEN"

	// EnvGitHubToken is the fallback token variable.
	EnvGitHubToken = "GITHUB_TOKEN"

	// EnvRedisAddress enables the shared catalog lock.
	EnvRedisAddress = "STARSWEEP_REDIS_ADDR"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .starsweep configuration file.
// Zero values leave the corresponding default untouched.
type File struct {
	Search  SearchFile  `yaml:"search,omitempty"`
	Sweep   SweepFile   `yaml:"sweep,omitempty"`
	Probe   ProbeFile   `yaml:"probe,omitempty"`
	Storage StorageFile `yaml:"storage,omitempty"`
	Lock    LockFile    `yaml:"lock,omitempty"`
}

// SearchFile configures the search API.
type SearchFile struct {
	BaseURL    string `yaml:"baseURL,omitempty"`
	Query      string `yaml:"query,omitempty"`
	MaxRetries int    `yaml:"maxRetries,omitempty"`
}

// SweepFile configures the window schedule and the run budget.
type SweepFile struct {
	Top         int           `yaml:"top,omitempty"`
	Gradient    int           `yaml:"gradient,omitempty"`
	Floor       int           `yaml:"floor,omitempty"`
	MinGradient int           `yaml:"minGradient,omitempty"`
	Budget      time.Duration `yaml:"budget,omitempty"`
	RetryPause  time.Duration `yaml:"retryPause,omitempty"`
}

// ProbeFile configures probing.
type ProbeFile struct {
	Marker       string        `yaml:"marker,omitempty"`
	Workers      int           `yaml:"workers,omitempty"`
	MaxScripts   int           `yaml:"maxScripts,omitempty"`
	MaxBodySize  int64         `yaml:"maxBodySize,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	UserAgent    string        `yaml:"userAgent,omitempty"`
	ProxyAddress string        `yaml:"proxy,omitempty"`
}

// StorageFile configures where state and catalog live.
type StorageFile struct {
	DataDir string `yaml:"dataDir,omitempty"`
	State   string `yaml:"state,omitempty"`
	Catalog string `yaml:"catalog,omitempty"`
	Mirror  string `yaml:"mirror,omitempty"`
	Listing string `yaml:"listing,omitempty"`
}

// LockFile configures the shared catalog lock.
type LockFile struct {
	RedisAddress string        `yaml:"redis,omitempty"`
	Key          string        `yaml:"key,omitempty"`
	TTL          time.Duration `yaml:"ttl,omitempty"`
}

// LoadConfigFile loads a configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .starsweep in the current directory
// 3. Look for .starsweep in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// ApplyFile overrides c with every non-zero value of f.
// A data directory relocates the storage paths that f does not set itself.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	setString(&c.SearchBaseURL, f.Search.BaseURL)
	setString(&c.Query, f.Search.Query)
	setInt(&c.MaxRetries, f.Search.MaxRetries)

	setInt(&c.Top, f.Sweep.Top)
	setInt(&c.Gradient, f.Sweep.Gradient)
	setInt(&c.Floor, f.Sweep.Floor)
	setInt(&c.MinGradient, f.Sweep.MinGradient)
	setDuration(&c.Budget, f.Sweep.Budget)
	setDuration(&c.RetryPause, f.Sweep.RetryPause)

	setString(&c.Marker, f.Probe.Marker)
	setInt(&c.Workers, f.Probe.Workers)
	setInt(&c.MaxScripts, f.Probe.MaxScripts)
	if f.Probe.MaxBodySize != 0 {
		c.MaxBodySize = f.Probe.MaxBodySize
	}
	setDuration(&c.Timeout, f.Probe.Timeout)
	setString(&c.UserAgent, f.Probe.UserAgent)
	setString(&c.ProxyAddress, f.Probe.ProxyAddress)

	if dir := f.Storage.DataDir; dir != "" {
		c.SetDataDir(dir)
	}
	setString(&c.StatePath, f.Storage.State)
	setString(&c.CatalogPath, f.Storage.Catalog)
	setString(&c.MirrorPath, f.Storage.Mirror)
	setString(&c.ListingPath, f.Storage.Listing)

	setString(&c.RedisAddress, f.Lock.RedisAddress)
	setString(&c.LockKey, f.Lock.Key)
	setDuration(&c.LockTTL, f.Lock.TTL)
}

// SetDataDir points the state, catalog, mirror and listing paths at dir.
// The mirror and listing stay disabled if they already are.
func (c *Config) SetDataDir(dir string) {
	c.StatePath = filepath.Join(dir, StateFileName)
	c.CatalogPath = filepath.Join(dir, CatalogFileName)
	if c.MirrorPath != "" {
		c.MirrorPath = filepath.Join(dir, MirrorFileName)
	}
	if c.ListingPath != "" {
		c.ListingPath = filepath.Join(dir, ListingFileName)
	}
}

// LoadDotEnv reads a .env file in the working directory into the process
// environment. Variables that are already set are kept. A missing file is
// not an error.
func LoadDotEnv() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional
}

// ApplyEnv reads credentials from the environment through lookup, which is
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Token = v
	} else if v, ok := lookup(EnvGitHubToken); ok && v != "" {
		c.Token = v
	}
	if v, ok := lookup(EnvRedisAddress); ok && v != "" {
		c.RedisAddress = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
