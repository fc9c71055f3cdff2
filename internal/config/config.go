// Package config resolves extern's settings from files, the environment
// and command-line flags.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/goplus/extern/internal/env"
)

// LocalConfigFile is the project-local, uncommitted config filename.
const LocalConfigFile = "extern.local.toml"

// EnvPrefix prefixes environment overrides, e.g. EXTERN_CMAKE.
const EnvPrefix = "EXTERN"

// Config holds the resolved settings. Precedence, lowest first: defaults,
// global config.toml, extern.local.toml, EXTERN_* environment, flags.
type Config struct {
	// Root is the project root extern/ and .venv/ live under. Empty means
	// the current directory.
	Root string `mapstructure:"root"`
	// Manifest overrides manifest discovery under Root.
	Manifest string `mapstructure:"manifest"`
	// Git and CMake override PATH lookup of the tools.
	Git   string `mapstructure:"git"`
	CMake string `mapstructure:"cmake"`
	// Generator is passed to cmake -G.
	Generator string `mapstructure:"generator"`
	// Toolchain is a CMake toolchain file used for every dependency, e.g.
	// for cross-compiling.
	Toolchain string `mapstructure:"toolchain"`
	Verbose   bool   `mapstructure:"verbose"`
}

var keys = []string{"root", "manifest", "git", "cmake", "generator", "toolchain", "verbose"}

// Load resolves configuration. overrides holds flag values the user set
// explicitly, keyed like the mapstructure tags.
func Load(overrides map[string]any) (*Config, error) {
	globalPath := ""
	if dir, err := env.WorkDir(); err == nil {
		globalPath = filepath.Join(dir, "config.toml")
	}
	return load(overrides, globalPath, LocalConfigFile)
}

// load accepts explicit paths so tests never touch the real home directory.
func load(overrides map[string]any, globalPath, localPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	for _, k := range keys {
		v.SetDefault(k, "")
	}
	v.SetDefault("verbose", false)

	if globalPath != "" && env.Exists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}
	if localPath != "" && env.Exists(localPath) {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	for k, val := range overrides {
		v.Set(k, val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}
