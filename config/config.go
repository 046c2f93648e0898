/*
Package config loads server configuration.

PURPOSE:
  Central place for everything tunable at deploy time. Configuration
  comes from a TOML file; command-line flags in cmd/server override the
  file for the common cases (port, db path).

EXAMPLE FILE:

  port = 8080
  db_path = "./data/reservations.db"

  [sweep]
  enabled = true
  interval = "5m"
  hold_ttl = "48h"

SEE ALSO:
  - cmd/server/main.go: Flag overrides and wiring
*/
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Port   int    `toml:"port"`
	DBPath string `toml:"db_path"`
	Sweep  Sweep  `toml:"sweep"`
}

// Sweep configures the stale-hold sweeper. When disabled, pending
// reservations hold capacity until explicitly decided.
type Sweep struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	HoldTTL  Duration `toml:"hold_ttl"`
}

// Duration parses "5m" / "48h" style TOML strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:   8080,
		DBPath: "reservations.db",
		Sweep: Sweep{
			Enabled:  false,
			Interval: Duration{5 * time.Minute},
			HoldTTL:  Duration{48 * time.Hour},
		},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration ranges. Callers that override fields
// after Load (command-line flags) must validate again afterwards.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Sweep.Enabled && c.Sweep.Interval.Duration <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	return nil
}
