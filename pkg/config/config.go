// Package config decodes the optional TOML overlay accepted by
// "costbound analyze --config". It exists because a real analysis run
// against a benchmark suite typically fixes the same time budgets and
// preprocessing toggles across many invocations, and repeating them as
// flags on every call is the sort of thing a config file is for
// (spec.md §6, "Configuration file").
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config mirrors the flags accepted by the analyze command. Every field
// is a pointer so a decoded file can distinguish "not set" (nil) from
// an explicit zero/false, matching the "flags always override file
// values" rule: a flag only overrides a field the file actually set.
type Config struct {
	Preprocess         *bool `toml:"preprocess"`
	EliminateCost      *bool `toml:"eliminate_cost"`
	SoftTimeoutSeconds *uint `toml:"soft_timeout_seconds"`
	HardTimeoutSeconds *uint `toml:"hard_timeout_seconds"`
}

// Load decodes path as TOML into a Config. A malformed file is a fatal
// error, wrapped with the offending path for the CLI to report.
func Load(path string) (Config, error) {
	var cfg Config

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	return cfg, nil
}
