// Package config loads convo settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// GraphQL API
	ServerURL     string
	ClientTimeout time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Author name used by the in-memory demo backend
	UserName string
}

// fileConfig mirrors the YAML config file. Empty fields fall through to defaults.
type fileConfig struct {
	ServerURL     string `yaml:"server_url"`
	ClientTimeout string `yaml:"client_timeout"`
	LogFile       string `yaml:"log_file"`
	LogLevel      string `yaml:"log_level"`
	UserName      string `yaml:"user_name"`
}

// Defaults
const (
	DefaultServerURL     = "http://localhost:4000/graphql"
	DefaultClientTimeout = 30 * time.Second
	DefaultUserName      = "you"
)

// Load reads configuration. Precedence: environment, then config file, then defaults.
// The file is $CONVO_CONFIG if set, else $XDG_CONFIG_HOME/convo/config.yaml.
// A missing file is not an error; a malformed one is.
func Load() (Config, error) {
	path := configPath()
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return resolve(fc)
}

// LoadFile reads configuration using the given file path instead of the default lookup.
func LoadFile(path string) (Config, error) {
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return resolve(fc)
}

func resolve(fc fileConfig) (Config, error) {
	timeoutStr := getEnv("CONVO_CLIENT_TIMEOUT", fc.ClientTimeout)
	timeout := DefaultClientTimeout
	if timeoutStr != "" {
		d, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("parse client timeout %q: %w", timeoutStr, err)
		}
		timeout = d
	}

	return Config{
		ServerURL:     getEnv("CONVO_SERVER_URL", or(fc.ServerURL, DefaultServerURL)),
		ClientTimeout: timeout,

		LogFile:  getEnv("CONVO_LOG_FILE", or(fc.LogFile, filepath.Join(os.TempDir(), "convo.log"))),
		LogLevel: parseLogLevel(getEnv("CONVO_LOG_LEVEL", or(fc.LogLevel, "INFO"))),

		UserName: getEnv("CONVO_USER_NAME", or(fc.UserName, DefaultUserName)),
	}, nil
}

func configPath() string {
	if p := os.Getenv("CONVO_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "convo", "config.yaml")
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func or(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
