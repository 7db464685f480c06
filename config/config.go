// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines node-level configuration: the data directory
// layout, sync driver timing, and heat kernel parameters, assembled via
// a fluent Builder so cmd/indra and embedding applications can override
// only what they care about.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/luxfi/indra/vault"
)

// Preset names a built-in starting point for Builder.FromPreset.
type Preset string

const (
	PresetDefault Preset = "default"
	PresetLocal   Preset = "local"
)

const envDataDir = "INDRA_DATA_DIR"

// Config holds everything a running node needs beyond identity keys,
// which are handled separately under the key file layout.
type Config struct {
	DataDir        string
	SyncInterval   time.Duration
	SyncJitter     time.Duration
	HeatHalfLife   time.Duration
	HeatWindow     time.Duration
	AttentionTTL   time.Duration
}

var (
	ErrInvalidSyncInterval = errors.New("config: sync interval must be positive")
	ErrInvalidHeatHalfLife = errors.New("config: heat half-life must be positive")
	ErrEmptyDataDir        = errors.New("config: data directory must not be empty")
)

var defaultConfig = Config{
	DataDir:      "",
	SyncInterval: 5 * time.Second,
	SyncJitter:   2 * time.Second,
	HeatHalfLife: 30 * time.Minute,
	HeatWindow:   24 * time.Hour,
	AttentionTTL: 90 * 24 * time.Hour,
}

var localConfig = Config{
	DataDir:      "",
	SyncInterval: 500 * time.Millisecond,
	SyncJitter:   100 * time.Millisecond,
	HeatHalfLife: time.Minute,
	HeatWindow:   time.Hour,
	AttentionTTL: 24 * time.Hour,
}

// Builder provides a fluent interface for constructing a Config.
type Builder struct {
	cfg *Config
	err error
}

// NewBuilder creates a Builder seeded with PresetDefault.
func NewBuilder() *Builder {
	cfg := defaultConfig
	return &Builder{cfg: &cfg}
}

// FromPreset replaces the builder's working config with a named preset.
func (b *Builder) FromPreset(p Preset) *Builder {
	if b.err != nil {
		return b
	}
	switch p {
	case PresetDefault:
		cfg := defaultConfig
		b.cfg = &cfg
	case PresetLocal:
		cfg := localConfig
		b.cfg = &cfg
	default:
		b.err = fmt.Errorf("config: unknown preset %q", p)
	}
	return b
}

// WithDataDir sets the on-disk root. Pass "" to resolve it from
// INDRA_DATA_DIR (or a platform default) at Build time.
func (b *Builder) WithDataDir(dir string) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.DataDir = dir
	return b
}

// WithSyncInterval overrides the base period between sync rounds.
func (b *Builder) WithSyncInterval(interval time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if interval <= 0 {
		b.err = ErrInvalidSyncInterval
		return b
	}
	b.cfg.SyncInterval = interval
	return b
}

// WithSyncJitter overrides the maximum random skew on the sync period.
func (b *Builder) WithSyncJitter(jitter time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if jitter < 0 {
		b.err = errors.New("config: sync jitter must not be negative")
		return b
	}
	b.cfg.SyncJitter = jitter
	return b
}

// WithHeatParams overrides the heat kernel's half-life and lookback window.
func (b *Builder) WithHeatParams(halfLife, window time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if halfLife <= 0 {
		b.err = ErrInvalidHeatHalfLife
		return b
	}
	b.cfg.HeatHalfLife = halfLife
	b.cfg.HeatWindow = window
	return b
}

// WithAttentionTTL sets Config.AttentionTTL. No package reads it:
// attention replicas are dropped by PruneReplica on Unpeer, not by age.
func (b *Builder) WithAttentionTTL(ttl time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.AttentionTTL = ttl
	return b
}

// HeatParams derives vault.HeatParams from the builder's current config.
func (b *Builder) HeatParams() vault.HeatParams {
	return vault.HeatParams{HalfLife: b.cfg.HeatHalfLife, Window: b.cfg.HeatWindow}
}

// Build validates and returns the final Config, resolving an unset
// DataDir from INDRA_DATA_DIR or the user config directory.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	cfg := *b.cfg
	if cfg.DataDir == "" {
		dir, err := resolveDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if cfg.SyncInterval <= 0 {
		return nil, ErrInvalidSyncInterval
	}
	if cfg.HeatHalfLife <= 0 {
		return nil, ErrInvalidHeatHalfLife
	}
	return &cfg, nil
}

func resolveDataDir() (string, error) {
	if dir := os.Getenv(envDataDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve default data directory: %w", err)
	}
	return filepath.Join(base, "indra"), nil
}
