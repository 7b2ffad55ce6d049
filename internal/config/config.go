// Package config resolves askesis's runtime configuration through a
// package-level viper.Viper singleton, grounded directly on the teacher's
// internal/config/config.go: walk up from the working directory looking for
// a project-local config file, then fall back to the user config directory,
// bind ASKESIS_-prefixed environment variables over both, and seed defaults
// for everything in between.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

var v *viper.Viper

const (
	projectConfigDir  = ".askesis"
	configFileName    = "config.toml"
	envPrefix         = "ASKESIS"
)

// Initialize sets up the configuration singleton. Must be called once at
// process startup before Get* accessors are used.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, projectConfigDir, configFileName)
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(configDir, "askesis", configFileName)
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir, err := os.UserConfigDir()
	if err != nil {
		dataDir = "."
	}
	v.SetDefault("data-dir", filepath.Join(dataDir, "askesis"))
	v.SetDefault("sync.endpoint", "")
	v.SetDefault("sync.key-path", filepath.Join(dataDir, "askesis", "sync.key"))
	v.SetDefault("archive.threshold-days", 365)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(dataDir, "askesis", "askesis.log"))
	v.SetDefault("ai.daily-quota", 20)
}

// DataDir returns the directory askesis stores its local SQLite database,
// lock file, and (if enabled) sync key under.
func DataDir() string { return v.GetString("data-dir") }

// SyncEndpoint returns the base URL of the encrypted shard store, or "" if
// sync has never been configured.
func SyncEndpoint() string { return v.GetString("sync.endpoint") }

// SyncKeyPath returns the configured sync.key-path value. Only
// WriteDefaultFile uses it; the sync key itself is kept in the database's
// identity table, not at this path.
func SyncKeyPath() string { return v.GetString("sync.key-path") }

// ArchiveThreshold returns how old a daily-data entry must be before
// internal/persistence offloads it into a compressed year archive.
func ArchiveThreshold() time.Duration {
	return time.Duration(v.GetInt("archive.threshold-days")) * 24 * time.Hour
}

// LogLevel returns the configured slog level name ("debug", "info", "warn",
// "error").
func LogLevel() string { return v.GetString("log.level") }

// LogPath returns the rotating log file path for internal/logging's
// lumberjack sink.
func LogPath() string { return v.GetString("log.path") }

// AIDailyQuota returns the per-day cap on build-ai-prompt task submissions.
func AIDailyQuota() int { return v.GetInt("ai.daily-quota") }

// GetValueSource reports whether key's effective value came from an
// environment variable, the config file, or a default, the same
// diagnostic the teacher's CheckOverrides/GetValueSource pair provides.
type Source string

const (
	SourceDefault    Source = "default"
	SourceConfigFile Source = "config_file"
	SourceEnvVar     Source = "env_var"
)

func GetValueSource(key string) Source {
	if v == nil {
		return SourceDefault
	}
	envKey := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	if os.Getenv(envKey) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// WriteDefaultFile writes a fresh TOML config file populated with the
// current defaults to path. It never overwrites an existing file.
func WriteDefaultFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	doc := struct {
		DataDir string `toml:"data-dir"`
		Sync    struct {
			Endpoint string `toml:"endpoint"`
			KeyPath  string `toml:"key-path"`
		} `toml:"sync"`
		Archive struct {
			ThresholdDays int `toml:"threshold-days"`
		} `toml:"archive"`
		Log struct {
			Level string `toml:"level"`
			Path  string `toml:"path"`
		} `toml:"log"`
		AI struct {
			DailyQuota int `toml:"daily-quota"`
		} `toml:"ai"`
	}{}
	doc.DataDir = DataDir()
	doc.Sync.Endpoint = SyncEndpoint()
	doc.Sync.KeyPath = SyncKeyPath()
	doc.Archive.ThresholdDays = int(ArchiveThreshold().Hours() / 24)
	doc.Log.Level = LogLevel()
	doc.Log.Path = LogPath()
	doc.AI.DailyQuota = AIDailyQuota()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(doc)
}
