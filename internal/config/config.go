// Package config loads process configuration — storage mode, page cache
// sizing, and log level — from a YAML file via viper.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Log     LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	Mode     string `mapstructure:"mode"` // "file" | "memory"
	DataDir  string `mapstructure:"data_dir"`
	PageSize int    `mapstructure:"page_size"`
}

type CacheConfig struct {
	Frames int `mapstructure:"frames"`
	LRUK   int `mapstructure:"lruk_k"`
}

// TreeConfig tunes the B+Tree's node capacity. MaxFanout caps the number
// of slots a node holds before splitting; 0 means "use whatever the page
// has room for" (internal/btree.Open's default).
type TreeConfig struct {
	MaxFanout int32 `mapstructure:"max_fanout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{Mode: "file", DataDir: "./data", PageSize: 4096},
		Cache:   CacheConfig{Frames: 128, LRUK: 2},
		Tree:    TreeConfig{MaxFanout: 0},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads path as YAML and unmarshals it onto the defaults returned by
// defaults(), so a config file may set only the fields it wants to
// override.
func Load(path string) (*Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("storage.mode", cfg.Storage.Mode)
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.page_size", cfg.Storage.PageSize)
	v.SetDefault("cache.frames", cfg.Cache.Frames)
	v.SetDefault("cache.lruk_k", cfg.Cache.LRUK)
	v.SetDefault("tree.max_fanout", cfg.Tree.MaxFanout)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// InstallLogger parses cfg.Log.Level and installs a slog text handler
// writing to stderr as the process default logger.
func (cfg *Config) InstallLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
