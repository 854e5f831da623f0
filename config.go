// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pakfs

package pakfs

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Checksum algorithm names accepted in configuration.
const (
	ChecksumMD4    = "md4"
	ChecksumBlake3 = "blake3"
)

// Config is the YAML configuration document of a filesystem.
type Config struct {
	// Roots are the physical roots.
	Roots Roots `json:"roots" yaml:"roots"`
	// BaseGame is the mod directory mounted first. Default is DefaultBaseGame.
	BaseGame string `json:"base_game,omitempty" yaml:"base_game,omitempty"`
	// GameBase is an optional mod directory mounted over BaseGame.
	GameBase string `json:"game_base,omitempty" yaml:"game_base,omitempty"`
	// Game is an optional mod directory with the highest priority.
	Game string `json:"game,omitempty" yaml:"game,omitempty"`
	// Checksum names the archive checksum algorithm: md4 (default) or blake3.
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	// Stores lists archive extensions in preference order. Default is ".pbo", ".pk4".
	Stores []string `json:"stores,omitempty" yaml:"stores,omitempty"`
	// Log configures the command line logger.
	Log LogConfig `json:"log" yaml:"log"`
	// PBO configures the PBO archive store.
	PBO PBOStore `json:"pbo" yaml:"pbo"`
	// Build holds defaults for the archive builder.
	Build BuildOptions `json:"build" yaml:"build"`
	// CopyPolicy selects copy-on-demand behavior (0 to 4).
	CopyPolicy CopyPolicy `json:"copy_policy,omitempty" yaml:"copy_policy,omitempty"`
	// SearchAllAddons enables every addon without dependency resolution.
	SearchAllAddons bool `json:"search_all_addons,omitempty" yaml:"search_all_addons,omitempty"`
}

// LogConfig selects logger level, encoding and output.
type LogConfig struct {
	// Level is debug, info, warn or error. Default is info.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is json or console. Default is console.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// Output is stdout, stderr or a file path. Default is stderr.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// LoadConfig reads and validates a YAML configuration file from fsys.
// Unknown keys are rejected. A missing file is an error.
func LoadConfig(fsys afero.Fs, path string) (*Config, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeConfig(f)
}

// DecodeConfig decodes and validates a YAML configuration document.
// An empty document yields the zero Config.
func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field values without touching the filesystem.
func (c *Config) Validate() error {
	if err := c.CopyPolicy.Validate(); err != nil {
		return err
	}

	for _, game := range []string{c.BaseGame, c.GameBase, c.Game} {
		if strings.Contains(game, "..") || strings.ContainsAny(game, `/\`) {
			return fmt.Errorf("%w: mod directory %q", ErrInvalidConfig, game)
		}
	}

	switch strings.ToLower(c.Checksum) {
	case "", ChecksumMD4, ChecksumBlake3:
	default:
		return fmt.Errorf("%w: checksum %q", ErrInvalidConfig, c.Checksum)
	}

	if _, err := c.stores(); err != nil {
		return err
	}

	switch c.PBO.OffsetMode {
	case "", OffsetModeSequential, OffsetModeStoredCompat:
	default:
		return fmt.Errorf("%w: offset mode %q", ErrInvalidConfig, c.PBO.OffsetMode)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// Options maps the document onto engine options. Fs, Logger, Metrics and
// Decls are left for the caller.
func (c *Config) Options() (Options, error) {
	stores, err := c.stores()
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Roots:           c.Roots,
		BaseGame:        c.BaseGame,
		GameBase:        c.GameBase,
		Game:            c.Game,
		CopyPolicy:      c.CopyPolicy,
		SearchAllAddons: c.SearchAllAddons,
		Stores:          stores,
		Checksum:        MD4BlockChecksum,
	}

	if strings.EqualFold(c.Checksum, ChecksumBlake3) {
		opts.Checksum = Blake3Checksum
	}

	return opts, nil
}

// stores resolves configured extensions to archive stores.
func (c *Config) stores() ([]ArchiveStore, error) {
	if len(c.Stores) == 0 {
		return []ArchiveStore{c.PBO, ZipStore{}}, nil
	}

	out := make([]ArchiveStore, 0, len(c.Stores))
	for _, ext := range c.Stores {
		switch strings.ToLower(ext) {
		case ".pbo":
			out = append(out, c.PBO)
		case ".pk4":
			out = append(out, ZipStore{})
		default:
			return nil, fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnknownStore, ext)
		}
	}

	return out, nil
}
