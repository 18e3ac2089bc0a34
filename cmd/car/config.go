package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultThreshold is the default of the threshold setting, a member
// compression threshold in bytes. No car command reads the setting.
const defaultThreshold = 4096

// Config carries car's tunable defaults, read from an optional car.toml.
type Config struct {
	OutputDir string `toml:"output_dir"`
	Threshold int    `toml:"threshold"`
	Debug     bool   `toml:"debug"`
}

func defaultConfig() Config {
	return Config{
		OutputDir: ".",
		Threshold: defaultThreshold,
	}
}

// loadConfig reads path when given, otherwise looks for car.toml in the
// working directory. A missing car.toml yields the defaults; a missing
// explicit path is an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if path == "" {
		path = "car.toml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = defaultThreshold
	}
	return cfg, nil
}
