// Package config loads cadence settings from defaults, an optional
// cadence.yaml, CADENCE_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "CADENCE"
	FileName  = "cadence"
	FileType  = "yaml"
)

type SpotifyConfig struct {
	ClientID        string   `mapstructure:"client_id"`
	RedirectURI     string   `mapstructure:"redirect_uri" validate:"omitempty,url"`
	APIBaseURL      string   `mapstructure:"api_base_url" validate:"required,url"`
	AccountsBaseURL string   `mapstructure:"accounts_base_url" validate:"required,url"`
	Scopes          []string `mapstructure:"scopes" validate:"dive,required"`
	RefreshToken    string   `mapstructure:"refresh_token"`
}

type CatalogConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ResourceTimeout time.Duration `mapstructure:"resource_timeout" validate:"gt=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	BaseBackoff     time.Duration `mapstructure:"base_backoff" validate:"gt=0"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff" validate:"gtefield=BaseBackoff"`
	Tracing         bool          `mapstructure:"tracing"`
}

type MatchingConfig struct {
	PerQueryLimit int `mapstructure:"per_query_limit" validate:"min=1,max=50"`
	BatchLimit    int `mapstructure:"batch_limit" validate:"min=1,max=100"`
	MaxResults    int `mapstructure:"max_results" validate:"min=1"`
}

type MetronomeConfig struct {
	BPM       int    `mapstructure:"bpm" validate:"gt=0,lte=300"`
	Enabled   bool   `mapstructure:"enabled"`
	Sink      string `mapstructure:"sink" validate:"oneof=bell pcm none"`
	ClickFile string `mapstructure:"click_file"`
}

type WorkoutConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
}

type HistoryConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	QueueSize   int    `mapstructure:"queue_size" validate:"min=1"`
	Workers     int    `mapstructure:"workers" validate:"min=1"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr" validate:"required"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=trace debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

// Config is the full runtime configuration.
type Config struct {
	Spotify   SpotifyConfig   `mapstructure:"spotify"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Metronome MetronomeConfig `mapstructure:"metronome"`
	Workout   WorkoutConfig   `mapstructure:"workout"`
	History   HistoryConfig   `mapstructure:"history"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

var defaults = map[string]any{
	"spotify.client_id":         "",
	"spotify.redirect_uri":      "http://127.0.0.1:8080/auth/callback",
	"spotify.api_base_url":      "https://api.spotify.com/v1",
	"spotify.accounts_base_url": "https://accounts.spotify.com",
	"spotify.scopes": []string{
		"user-read-private", "user-read-email", "user-read-playback-state",
		"user-modify-playback-state", "user-read-currently-playing", "streaming",
		"playlist-read-private", "playlist-read-collaborative", "user-library-read",
	},
	"spotify.refresh_token": "",

	"catalog.request_timeout":  30 * time.Second,
	"catalog.resource_timeout": 60 * time.Second,
	"catalog.max_retries":      3,
	"catalog.base_backoff":     time.Second,
	"catalog.max_backoff":      30 * time.Second,
	"catalog.tracing":          false,

	"matching.per_query_limit": 20,
	"matching.batch_limit":     50,
	"matching.max_results":     20,

	"metronome.bpm":        140,
	"metronome.enabled":    true,
	"metronome.sink":       "bell",
	"metronome.click_file": "",

	"workout.tick_interval": time.Second,

	"history.driver":       "memory",
	"history.sqlite_path":  "cadence.db",
	"history.postgres_dsn": "",
	"history.queue_size":   16,
	"history.workers":      1,

	"server.addr":         ":8080",
	"server.cors_origins": []string{"http://localhost:3000"},

	"log.level":        "info",
	"log.format":       "text",
	"log.file":         "",
	"log.max_size_mb":  50,
	"log.max_backups":  3,
	"log.max_age_days": 28,
}

// FlagKeys maps command-line flag names onto config keys.
var FlagKeys = map[string]string{
	"addr":           "server.addr",
	"bpm":            "metronome.bpm",
	"sink":           "metronome.sink",
	"click-file":     "metronome.click_file",
	"history-driver": "history.driver",
	"sqlite-path":    "history.sqlite_path",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"log-file":       "log.file",
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// File overrides the cadence.yaml search.
	File string
	// EnvFile is a dotenv file loaded into the process environment when it
	// exists. Empty means ".env".
	EnvFile string
	// Flags are bound through FlagKeys when present.
	Flags *pflag.FlagSet
}

// Load assembles and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	v := newViper(true)
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+FileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := newViper(false).Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration as YAML to path. It refuses
// to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists", path)
		}
	}

	doc := map[string]any{}
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		section, field, _ := strings.Cut(key, ".")
		m, ok := doc[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			doc[section] = m
		}
		val := defaults[key]
		if d, ok := val.(time.Duration); ok {
			val = d.String()
		}
		m[field] = val
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func newViper(withEnv bool) *viper.Viper {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	if !withEnv {
		return v
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
