package retropix

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Edition describes one configured game edition.
type Edition struct {
	// Name identifies the edition in logs and lookups.
	Name string `json:"name"`

	// TargetFolder is the game installation root.
	TargetFolder string `json:"target_folder"`

	// AssetsFolder is the container directory relative to TargetFolder,
	// e.g. "Game_Data".
	AssetsFolder string `json:"assets_folder"`

	// MasksFolder holds authored masks mirroring the request layout.
	MasksFolder string `json:"masks_folder"`

	// DebugFolder, when non-empty and debug mode is enabled, receives
	// standalone exports of every transformed texture.
	DebugFolder string `json:"debug_folder"`

	// ResizeAmount is the pixelation strength in (0, 1]; smaller is coarser.
	ResizeAmount float64 `json:"resize_amount"`

	// PixelateFiles lists requested textures as assets-relative paths,
	// e.g. "sharedassets0.assets/tree_large.png".
	PixelateFiles []string `json:"pixelate_files"`

	// IgnoreBlackShadowFiles lists requests excluded from shadow hardening
	// even when the run enables it, as "dir/file" paths.
	IgnoreBlackShadowFiles []string `json:"ignore_black_shadow_files"`
}

// ShadowsIgnored reports whether the entry is excluded from shadow hardening.
func (e *Edition) ShadowsIgnored(entry PixelateEntry) bool {
	key := entry.Dir + "/" + entry.File
	for _, f := range e.IgnoreBlackShadowFiles {
		if f == key {
			return true
		}
	}
	return false
}

// Config is the parsed configuration file: a set of editions.
type Config struct {
	Editions []Edition `json:"editions"`
}

// LoadConfig reads and parses a JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Edition returns the named edition, with environment overrides applied.
func (c *Config) Edition(name string) (Edition, error) {
	for _, e := range c.Editions {
		if e.Name == name {
			applyEnvOverrides(&e)
			return e, nil
		}
	}
	return Edition{}, fmt.Errorf("%w: %q", ErrEditionNotFound, name)
}

// Names returns the configured edition names in file order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Editions))
	for i, e := range c.Editions {
		names[i] = e.Name
	}
	return names
}

// Environment variables overriding per-edition configuration values.
const (
	EnvResizeAmount = "RETROPIX_RESIZE_AMOUNT"
	EnvTargetFolder = "RETROPIX_TARGET_FOLDER"
	EnvDebugFolder  = "RETROPIX_DEBUG_FOLDER"
	EnvBlackShadows = "RETROPIX_BLACK_SHADOWS"
)

func applyEnvOverrides(e *Edition) {
	if v := os.Getenv(EnvResizeAmount); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			e.ResizeAmount = f
		}
	}
	if v := os.Getenv(EnvTargetFolder); v != "" {
		e.TargetFolder = v
	}
	if v := os.Getenv(EnvDebugFolder); v != "" {
		e.DebugFolder = v
	}
}

// EnvBool parses a boolean-ish environment value the way the config file
// accepts them ("true", "1", "yes", case-insensitive).
func EnvBool(name string) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ValidateEditionDir reports whether dir looks like a game installation for
// this edition: it must contain either an executable or a data folder whose
// name ends in "_Data".
func ValidateEditionDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, ent := range entries {
		name := ent.Name()
		if !ent.IsDir() && strings.HasSuffix(name, ".exe") {
			return true
		}
		if ent.IsDir() && strings.HasSuffix(name, "_Data") {
			return true
		}
	}
	return false
}
