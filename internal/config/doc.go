// Package config provides the configuration of a starsweep crawl: search and
// scheduling parameters, probe settings, storage locations and credentials.
//
// Values are layered: NewConfig supplies defaults, a YAML file (.starsweep)
// overrides them, the environment (optionally seeded from a .env file)
// supplies the API token, and explicitly set CLI flags win last.
package config
