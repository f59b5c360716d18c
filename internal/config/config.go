// Package config loads fatshell.toml: heap size, disk image path, and
// log level. Grounded on dsmmcken-dh-cli/go_src/internal/config's
// find-then-read-a-small-file shape, using
// github.com/pelletier/go-toml/v2 in place of that package's bare
// string format since spec.md §3 calls for a structured config file
// with several independent fields.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Defaults mirror the constants spec.md §6 names for the allocator.
const (
	DefaultHeapSize = 16 * 1024 * 1024 // 16MiB
	DefaultLogLevel = "info"
)

// Config is the shape of fatshell.toml. Every field is optional; zero
// values fall back to the Default* constants above.
type Config struct {
	DiskImage string `toml:"disk_image"`
	HeapSize  uint32 `toml:"heap_size"`
	LogLevel  string `toml:"log_level"`
}

// Load reads and parses path. A missing file is not an error: Load
// returns the defaults, since fatshell is expected to run from the
// command line with no config file present in many invocations.
func Load(path string) (Config, error) {
	cfg := Config{HeapSize: DefaultHeapSize, LogLevel: DefaultLogLevel}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "config: reading %q", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %q", path)
	}

	if cfg.HeapSize == 0 {
		cfg.HeapSize = DefaultHeapSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	return cfg, nil
}
