// Package config loads the application settings from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/dataset"
	"github.com/spaghettifunk/neuranim/engine/node"
)

const DefaultFileName = "neuranim.toml"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log    core.LoggingConfig `toml:"log"`
	Jobs   JobsConfig         `toml:"jobs"`
	Assets AssetsConfig       `toml:"assets"`
	Node   node.Settings      `toml:"node"`
	Export dataset.Settings   `toml:"export"`
	Play   PlayConfig         `toml:"play"`
}

type JobsConfig struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// AssetsConfig names the assets used by a run, relative to Root.
type AssetsConfig struct {
	Root       string   `toml:"root"`
	Watch      bool     `toml:"watch"`
	Skeleton   string   `toml:"skeleton"`
	FeatureSet string   `toml:"feature_set"`
	Model      string   `toml:"model"`
	Clips      []string `toml:"clips"`
}

type PlayConfig struct {
	FPS    int    `toml:"fps"`
	Frames int    `toml:"frames"`
	Clip   string `toml:"clip"`
	// Realtime paces the frames on the wall clock instead of running them
	// back to back.
	Realtime bool `toml:"realtime"`
	// DebugEvery logs the node debug data every that many frames, 0 disables it.
	DebugEvery int `toml:"debug_every"`
}

func Default() *Config {
	return &Config{
		Log: core.DefaultLoggingConfig(),
		Jobs: JobsConfig{
			Workers:   runtime.NumCPU(),
			QueueSize: 16,
		},
		Assets: AssetsConfig{
			Root:       "assets",
			Skeleton:   "character.skel.toml",
			FeatureSet: "locomotion.features.toml",
			Model:      "locomotion.model",
		},
		Node:   node.DefaultSettings(),
		Export: dataset.DefaultSettings(),
		Play: PlayConfig{
			FPS:        60,
			Frames:     600,
			DebugEvery: 60,
		},
	}
}

// Load returns the configuration with priority defaults < file < flags. An
// empty path falls back to DefaultFileName in the working directory and then
// in the user config directory; no file at all is not an error.
func Load(path string, flags *Flags) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}
	if flags != nil {
		flags.apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("%w: jobs.workers must be positive, got %d", ErrInvalidConfig, c.Jobs.Workers)
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("%w: jobs.queue_size must not be negative, got %d", ErrInvalidConfig, c.Jobs.QueueSize)
	}
	if c.Assets.Root == "" {
		return fmt.Errorf("%w: assets.root is empty", ErrInvalidConfig)
	}
	if c.Play.FPS <= 0 {
		return fmt.Errorf("%w: play.fps must be positive, got %d", ErrInvalidConfig, c.Play.FPS)
	}
	if c.Node.Inertialised && !(c.Node.HalfLife > 0) {
		return fmt.Errorf("%w: node.half_life must be positive, got %v", ErrInvalidConfig, c.Node.HalfLife)
	}
	return nil
}

// FrameTime is the fixed delta time of the player in seconds.
func (c *Config) FrameTime() float32 {
	return 1 / float32(c.Play.FPS)
}

// SaveTo writes the config to path, creating the parent directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func findConfigFile() string {
	candidates := []string{
		DefaultFileName,
		filepath.Join(ConfigDir(), DefaultFileName),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the user configuration directory of the application.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "neuranim")
}

// loadFromFile merges the file over the values already in cfg.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}
