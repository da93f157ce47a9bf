// cmdcache uses flags and a single config file for configuration.
// A config file is stored in YAML format and contains the values that can be set via flags.

package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var configFilePath = flag.String("config_file", "config.yaml", "Path to the configuration file.")

// Config is the schema of the config file. Every leaf is optional and names the command line flag it sets in its
// `flag` tag; unset leaves keep the flag's default or command line value.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Cascade CascadeConfig `yaml:"cascade"`
	Server  ServerConfig  `yaml:"server"`
}

// LoggingConfig holds the slog handler settings.
type LoggingConfig struct {
	HandlerType *string `yaml:"handler_type" flag:"log_handler_type"`
	Level       *string `yaml:"level" flag:"log_level"`
}

// CacheConfig holds the command cache settings.
type CacheConfig struct {
	Capacity      *int           `yaml:"capacity" flag:"cache_capacity"`
	PurgeInterval *time.Duration `yaml:"purge_interval" flag:"cache_purge_interval"`
	MaxAge        *time.Duration `yaml:"max_age" flag:"cache_max_age"`
}

// CascadeConfig holds the deletion cascade settings.
type CascadeConfig struct {
	Workers     *int    `yaml:"workers" flag:"cascade_workers"`
	QueueSize   *int    `yaml:"queue_size" flag:"cascade_queue_size"`
	ChannelName *string `yaml:"channel_name" flag:"cascade_channel_name"`
}

// ServerConfig holds the listen addresses.
type ServerConfig struct {
	Address        *string `yaml:"address" flag:"address"`
	MetricsAddress *string `yaml:"metrics_address" flag:"metrics_address"`
}

// parseConfig decodes a YAML config. Unknown keys are rejected so that typos don't go unnoticed.
func parseConfig(configBytes []byte) (*Config, error) {
	conf := new(Config)
	decoder := yaml.NewDecoder(bytes.NewReader(configBytes))
	decoder.KnownFields(true)
	if err := decoder.Decode(conf); err != nil && !errors.Is(err, io.EOF) { // An empty file is a valid config.
		return nil, err
	}
	return conf, nil
}

// LoadFile applies the config file at `path` to the registered flags.
func LoadFile(path string) error {
	configBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	conf, err := parseConfig(configBytes)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := setConfigFlags(conf); err != nil {
		return fmt.Errorf("failed to set flags from config file: %w", err)
	}
	return nil
}

// InitFlags initializes the flags from the config file specified by the -config_file flag.
// It should be called after defining all flags and before using them.
func InitFlags() {
	flag.Parse()

	if *configFilePath == "" {
		slog.Info("Config file not specified. Skipping config initialization.")
		return
	}
	if _, err := os.Stat(*configFilePath); errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file does not exist.", "path", *configFilePath, "error", err)
		return
	}
	// If the config file cannot be applied, we skip loading and use default flag values.
	if err := LoadFile(*configFilePath); err != nil {
		slog.Error("Failed to load config file.", "path", *configFilePath, "error", err)
		return
	}
}
