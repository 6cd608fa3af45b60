// Package config loads engine, logging and event tap settings from a YAML
// file with environment overrides.
//
// Every key can be overridden from the environment with the RTCEVENT_
// prefix, dots replaced by underscores: RTCEVENT_SAMPLER_SOUND_LEVEL_INTERVAL=200ms.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opd-ai/rtcevent"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/sampler"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "RTCEVENT"

var (
	// ErrInvalidInterval indicates a non-positive sampler interval
	ErrInvalidInterval = errors.New("sampler interval must be positive")

	// ErrInvalidLogFormat indicates a log format other than text or json
	ErrInvalidLogFormat = errors.New("log format must be text or json")

	// ErrInvalidBuffer indicates a non-positive tap client buffer
	ErrInvalidBuffer = errors.New("tap client buffer must be positive")
)

// Config is the full configuration of an rtcevent process.
type Config struct {
	VerboseDiagnostics bool   `mapstructure:"verbose_diagnostics"`
	LogLevel           string `mapstructure:"log_level"`
	LogFormat          string `mapstructure:"log_format"`

	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Tap      TapConfig      `mapstructure:"tap"`
}

// DispatchConfig configures the event dispatcher.
type DispatchConfig struct {
	QueueWarnDepth int `mapstructure:"queue_warn_depth"`
}

// SamplerConfig configures the periodic producers.
type SamplerConfig struct {
	PublishQualityInterval time.Duration `mapstructure:"publish_quality_interval"`
	PlayQualityInterval    time.Duration `mapstructure:"play_quality_interval"`
	OnlineCountInterval    time.Duration `mapstructure:"online_count_interval"`
	SoundLevelInterval     time.Duration `mapstructure:"sound_level_interval"`
	SpectrumInterval       time.Duration `mapstructure:"spectrum_interval"`
	MixerLevelInterval     time.Duration `mapstructure:"mixer_level_interval"`
	ArmQuality             bool          `mapstructure:"arm_quality"`
	ArmOnlineCount         bool          `mapstructure:"arm_online_count"`
}

// TapConfig configures the diagnostic event tap.
type TapConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	Mode         string `mapstructure:"mode"`
	ClientBuffer int    `mapstructure:"client_buffer"`
}

func setDefaults(v *viper.Viper) {
	intervals := sampler.DefaultIntervals()

	v.SetDefault("verbose_diagnostics", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("dispatch.queue_warn_depth", dispatch.DefaultQueueWarnDepth)

	v.SetDefault("sampler.publish_quality_interval", intervals.PublishQuality)
	v.SetDefault("sampler.play_quality_interval", intervals.PlayQuality)
	v.SetDefault("sampler.online_count_interval", intervals.OnlineCount)
	v.SetDefault("sampler.sound_level_interval", intervals.SoundLevel)
	v.SetDefault("sampler.spectrum_interval", intervals.Spectrum)
	v.SetDefault("sampler.mixer_level_interval", intervals.MixerLevel)
	v.SetDefault("sampler.arm_quality", true)
	v.SetDefault("sampler.arm_online_count", true)

	v.SetDefault("tap.enabled", false)
	v.SetDefault("tap.addr", "127.0.0.1:8790")
	v.SetDefault("tap.mode", "release")
	v.SetDefault("tap.client_buffer", 256)
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path loads defaults and environment only;
// a missing file is reported as an error.
//
// Parameters:
//   - path: YAML file to read, or "" for defaults
//
// Returns:
//   - *Config: The validated configuration
//   - error: Read, decode or validation failure
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "config.Load",
		"path":        path,
		"log_level":   cfg.LogLevel,
		"tap_enabled": cfg.Tap.Enabled,
	}).Info("Configuration loaded")

	return &cfg, nil
}

// Validate checks value ranges that the decoder cannot.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	intervals := map[string]time.Duration{
		"publish_quality_interval": c.Sampler.PublishQualityInterval,
		"play_quality_interval":    c.Sampler.PlayQualityInterval,
		"online_count_interval":    c.Sampler.OnlineCountInterval,
		"sound_level_interval":     c.Sampler.SoundLevelInterval,
		"spectrum_interval":        c.Sampler.SpectrumInterval,
		"mixer_level_interval":     c.Sampler.MixerLevelInterval,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%w: sampler.%s=%s", ErrInvalidInterval, key, d)
		}
	}

	if c.Tap.Enabled && c.Tap.ClientBuffer <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, c.Tap.ClientBuffer)
	}
	return nil
}

// ApplyLogging configures the global logrus logger.
func (c *Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)

	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return nil
}

// Options converts the configuration into engine options.
func (c *Config) Options() *rtcevent.Options {
	options := rtcevent.NewOptions()
	options.VerboseDiagnostics = c.VerboseDiagnostics
	options.QueueWarnDepth = c.Dispatch.QueueWarnDepth
	options.Intervals = sampler.Intervals{
		PublishQuality: c.Sampler.PublishQualityInterval,
		PlayQuality:    c.Sampler.PlayQualityInterval,
		OnlineCount:    c.Sampler.OnlineCountInterval,
		SoundLevel:     c.Sampler.SoundLevelInterval,
		Spectrum:       c.Sampler.SpectrumInterval,
		MixerLevel:     c.Sampler.MixerLevelInterval,
	}
	options.ArmQuality = c.Sampler.ArmQuality
	options.ArmOnlineCount = c.Sampler.ArmOnlineCount
	return options
}
