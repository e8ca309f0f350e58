package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "driveprobe"
	configFile = "config.yaml"
)

// Config is the operator-tunable configuration, loaded from the platform
// config directory. Every field has a working default; the file only
// needs to exist when a default is wrong for the drive at hand.
type Config struct {
	// DevicePath is the sg passthrough node for the drive.
	DevicePath string `yaml:"device_path"`

	// StagingAddress is the scratch virtual address where words are
	// staged before the overlay is re-mapped onto their real target.
	// Must lie inside the overlay's 8MB window.
	StagingAddress uint32 `yaml:"staging_address"`

	// ScratchPad is the base of the RAM region reserved for injected
	// code and data. Handlers are placed at ScratchPad + 0x100.
	ScratchPad uint32 `yaml:"scratch_pad"`

	// ToolchainPrefix is the cross toolchain triplet prefix.
	ToolchainPrefix string `yaml:"toolchain_prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DevicePath:      "/dev/sg1",
		StagingAddress:  0x500000,
		ScratchPad:      0x1e00000,
		ToolchainPrefix: "arm-none-eabi-",
	}
}

// Path returns the location of the config file,
// e.g. ~/.config/driveprobe/config.yaml on Linux.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(dir, appName, configFile), nil
}

// Load reads the config file, applying it over the defaults. A missing
// file is not an error; the defaults are returned.
func Load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating the directory as needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
