// Package config loads the daemon's configuration from an optional YAML
// file and environment variables, following mmcdole-kino's
// viper.SetEnvPrefix/AutomaticEnv/Unmarshal pattern.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Media   MediaConfig   `mapstructure:"media"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds TCP listener settings.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	IdleTimeoutSecs int    `mapstructure:"idle_timeout_secs"` // 0 disables the idle read timeout
}

// MediaConfig holds the default format and file-browsing root.
type MediaConfig struct {
	Root              string `mapstructure:"root"`
	DefaultStandard   string `mapstructure:"default_standard"`
	DefaultColorspace string `mapstructure:"default_colorspace"`
}

// CacheConfig holds frame cache sizing.
type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// DecoderConfig holds paths to the ffmpeg/ffprobe binaries.
type DecoderConfig struct {
	FFmpegBinary  string `mapstructure:"ffmpeg_binary"`
	FFprobeBinary string `mapstructure:"ffprobe_binary"`
}

// MetricsConfig holds the Prometheus HTTP exposition listener.
type MetricsConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds slog setup.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the daemon's built-in defaults, applied before any config
// file or environment override is read.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5400",
			IdleTimeoutSecs: 0,
		},
		Media: MediaConfig{
			Root:              ".",
			DefaultStandard:   "NTSC",
			DefaultColorspace: "RGB24",
		},
		Cache: CacheConfig{
			Capacity: 30,
		},
		Decoder: DecoderConfig{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Metrics: MetricsConfig{
			Addr:    ":9400",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from (in order of increasing precedence) the
// built-in defaults, an optional YAML config file named "vtsourced" found
// in the current directory or /etc/vtsourced, and VTSOURCED_-prefixed
// environment variables.
func Load() (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("vtsourced")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/vtsourced")

	v.SetEnvPrefix("VTSOURCED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows, so register every key
	// for environment lookup (e.g. VTSOURCED_SERVER_ADDR).
	for _, key := range []string{
		"server.addr", "server.idle_timeout_secs",
		"media.root", "media.default_standard", "media.default_colorspace",
		"cache.capacity",
		"decoder.ffmpeg_binary", "decoder.ffprobe_binary",
		"metrics.addr", "metrics.enabled",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing config: %w", err)
	}

	return cfg, nil
}
