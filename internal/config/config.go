// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/callwatch/internal/capture"
	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/core"
	"firestige.xyz/callwatch/internal/log"
	"firestige.xyz/callwatch/internal/report"
	"firestige.xyz/callwatch/internal/session"
	"firestige.xyz/callwatch/internal/stream"
)

// Config maps to the `callwatch:` root key in YAML.
type Config struct {
	Capture    CaptureConfig    `mapstructure:"capture" yaml:"capture"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Display    DisplayConfig    `mapstructure:"display" yaml:"display"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Log        log.Config       `mapstructure:"log" yaml:"log"`
}

// CaptureConfig selects the capture device and backend.
type CaptureConfig struct {
	Backend        string         `mapstructure:"backend" yaml:"backend"` // pcap | afpacket
	Device         string         `mapstructure:"device" yaml:"device"`   // empty = auto
	SnapLen        int            `mapstructure:"snap_len" yaml:"snap_len"`
	Timeout        time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	Promiscuous    bool           `mapstructure:"promiscuous" yaml:"promiscuous"`
	SignallingPort int            `mapstructure:"signalling_port" yaml:"signalling_port"`
	Options        map[string]any `mapstructure:"options" yaml:"options,omitempty"` // backend specific
}

// ClassifierConfig tunes the size heuristic and idle timeouts.
type ClassifierConfig struct {
	Window          int           `mapstructure:"window" yaml:"window"`
	KeepaliveUnder  int           `mapstructure:"keepalive_under" yaml:"keepalive_under"`
	AudioAbove      int           `mapstructure:"audio_above" yaml:"audio_above"`
	VideoAbove      int           `mapstructure:"video_above" yaml:"video_above"`
	AVIdleTimeout   time.Duration `mapstructure:"av_idle_timeout" yaml:"av_idle_timeout"`
	CallIdleTimeout time.Duration `mapstructure:"call_idle_timeout" yaml:"call_idle_timeout"`
}

type DisplayConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Format   string        `mapstructure:"format" yaml:"format"` // text | json
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // empty = $XDG_DATA_HOME/callwatch/history.db
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `callwatch: ...`.
type configRoot struct {
	Callwatch Config `mapstructure:"callwatch"`
}

// Load loads configuration from path; an empty path yields the defaults.
// Env vars override file values, e.g. CALLWATCH_CAPTURE_DEVICE.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "callwatch.capture.device" maps to env "CALLWATCH_CAPTURE_DEVICE"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Callwatch

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault("callwatch.capture.backend", capture.BackendPcap)
	v.SetDefault("callwatch.capture.device", "")
	v.SetDefault("callwatch.capture.snap_len", capture.DefaultSnapLen)
	v.SetDefault("callwatch.capture.timeout", capture.DefaultTimeout)
	v.SetDefault("callwatch.capture.promiscuous", false)
	v.SetDefault("callwatch.capture.signalling_port", classifier.DefaultSignallingPort)

	// Classifier defaults
	v.SetDefault("callwatch.classifier.window", stream.DefaultWindow)
	v.SetDefault("callwatch.classifier.keepalive_under", stream.DefaultKeepaliveUnder)
	v.SetDefault("callwatch.classifier.audio_above", classifier.DefaultAudioAbove)
	v.SetDefault("callwatch.classifier.video_above", classifier.DefaultVideoAbove)
	v.SetDefault("callwatch.classifier.av_idle_timeout", session.DefaultAVIdleTimeout)
	v.SetDefault("callwatch.classifier.call_idle_timeout", session.DefaultCallIdleTimeout)

	// Display defaults
	v.SetDefault("callwatch.display.interval", report.DefaultInterval)
	v.SetDefault("callwatch.display.format", report.FormatText)

	// History defaults
	v.SetDefault("callwatch.history.enabled", false)
	v.SetDefault("callwatch.history.path", "")

	// Metrics defaults
	v.SetDefault("callwatch.metrics.enabled", false)
	v.SetDefault("callwatch.metrics.listen", "127.0.0.1:9464")
	v.SetDefault("callwatch.metrics.path", "/metrics")

	// Log defaults
	def := log.DefaultConfig()
	v.SetDefault("callwatch.log.level", def.Level)
	v.SetDefault("callwatch.log.format", def.Format)
	v.SetDefault("callwatch.log.pattern", def.Pattern)
	v.SetDefault("callwatch.log.time", def.Time)
	v.SetDefault("callwatch.log.file.path", "")
	v.SetDefault("callwatch.log.file.max_size_mb", def.File.MaxSizeMB)
	v.SetDefault("callwatch.log.file.max_backups", def.File.MaxBackups)
	v.SetDefault("callwatch.log.file.max_age_days", def.File.MaxAgeDays)
	v.SetDefault("callwatch.log.file.compress", false)
}

// ValidateAndApplyDefaults validates configuration and fills runtime defaults.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return invalid("log.level %q (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != log.FormatText && cfg.Log.Format != log.FormatJSON {
		return invalid("log.format %q (must be text/json)", cfg.Log.Format)
	}

	// ── Capture ──
	switch cfg.Capture.Backend {
	case capture.BackendPcap, capture.BackendAFPacket:
	default:
		return invalid("capture.backend %q (must be pcap/afpacket)", cfg.Capture.Backend)
	}
	if cfg.Capture.SnapLen < 64 || cfg.Capture.SnapLen > 65535 {
		return invalid("capture.snap_len %d (must be 64..65535)", cfg.Capture.SnapLen)
	}
	if cfg.Capture.Timeout <= 0 {
		return invalid("capture.timeout %s (must be positive)", cfg.Capture.Timeout)
	}
	if !validPort(cfg.Capture.SignallingPort) {
		return invalid("capture.signalling_port %d", cfg.Capture.SignallingPort)
	}
	if cfg.Capture.Options == nil {
		cfg.Capture.Options = map[string]any{}
	}

	// ── Classifier ──
	c := cfg.Classifier
	if c.Window < 1 || c.Window > 65535 {
		return invalid("classifier.window %d (must be at least 1)", c.Window)
	}
	if c.KeepaliveUnder < 0 || c.KeepaliveUnder > 65535 {
		return invalid("classifier.keepalive_under %d", c.KeepaliveUnder)
	}
	if c.AudioAbove <= 0 || c.AudioAbove >= c.VideoAbove || c.VideoAbove > 65535 {
		return invalid("classifier thresholds audio_above=%d video_above=%d (need 0 < audio_above < video_above)",
			c.AudioAbove, c.VideoAbove)
	}
	if c.AVIdleTimeout <= 0 || c.AVIdleTimeout >= c.CallIdleTimeout {
		return invalid("classifier timeouts av_idle=%s call_idle=%s (need 0 < av_idle < call_idle)",
			c.AVIdleTimeout, c.CallIdleTimeout)
	}

	// ── Display ──
	if cfg.Display.Interval <= 0 {
		return invalid("display.interval %s (must be positive)", cfg.Display.Interval)
	}
	if cfg.Display.Format != report.FormatText && cfg.Display.Format != report.FormatJSON {
		return invalid("display.format %q (must be text/json)", cfg.Display.Format)
	}

	return nil
}

// CaptureSource converts the capture section for capture.Open.
func (cfg *Config) CaptureSource() capture.Config {
	return capture.Config{
		Backend:     cfg.Capture.Backend,
		Device:      cfg.Capture.Device,
		SnapLen:     cfg.Capture.SnapLen,
		Timeout:     cfg.Capture.Timeout,
		Promiscuous: cfg.Capture.Promiscuous,
		Options:     cfg.Capture.Options,
	}
}

// ClassifierParams converts the classifier section. It assumes a validated config.
func (cfg *Config) ClassifierParams() classifier.Params {
	c := cfg.Classifier
	return classifier.Params{
		Stream: stream.Options{
			Window:         uint16(c.Window),
			KeepaliveUnder: uint16(c.KeepaliveUnder),
		},
		AudioAbove:     uint16(c.AudioAbove),
		VideoAbove:     uint16(c.VideoAbove),
		SignallingPort: uint16(cfg.Capture.SignallingPort),
		Timeouts: session.Timeouts{
			AVIdle:   c.AVIdleTimeout,
			CallIdle: c.CallIdleTimeout,
		},
	}
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{core.ErrConfigInvalid}, args...)...)
}
