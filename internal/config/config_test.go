package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callwatch.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pcap", cfg.Capture.Backend)
	assert.Equal(t, "", cfg.Capture.Device)
	assert.Equal(t, 96, cfg.Capture.SnapLen)
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.Timeout)
	assert.False(t, cfg.Capture.Promiscuous)
	assert.Equal(t, 8801, cfg.Capture.SignallingPort)
	assert.NotNil(t, cfg.Capture.Options)
	assert.Equal(t, 10, cfg.Classifier.Window)
	assert.Equal(t, 70, cfg.Classifier.KeepaliveUnder)
	assert.Equal(t, 90, cfg.Classifier.AudioAbove)
	assert.Equal(t, 500, cfg.Classifier.VideoAbove)
	assert.Equal(t, 200*time.Millisecond, cfg.Classifier.AVIdleTimeout)
	assert.Equal(t, 5*time.Second, cfg.Classifier.CallIdleTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Display.Interval)
	assert.Equal(t, "text", cfg.Display.Format)
	assert.False(t, cfg.History.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, classifier.DefaultParams(), cfg.ClassifierParams())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
callwatch:
  capture:
    backend: afpacket
    device: eth1
    timeout: 250ms
    options:
      buffer_size_mb: 16
  classifier:
    window: 20
    video_above: 600
    call_idle_timeout: 10s
  display:
    format: json
  history:
    enabled: true
    path: /tmp/calls.db
  log:
    level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "afpacket", cfg.Capture.Backend)
	assert.Equal(t, "eth1", cfg.Capture.Device)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.Timeout)
	assert.EqualValues(t, 16, cfg.Capture.Options["buffer_size_mb"])
	assert.Equal(t, 20, cfg.Classifier.Window)
	assert.Equal(t, 600, cfg.Classifier.VideoAbove)
	assert.Equal(t, 90, cfg.Classifier.AudioAbove, "unset keys keep their defaults")
	assert.Equal(t, 10*time.Second, cfg.Classifier.CallIdleTimeout)
	assert.Equal(t, "json", cfg.Display.Format)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/calls.db", cfg.History.Path)
	assert.Equal(t, "debug", cfg.Log.Level)

	src := cfg.CaptureSource()
	assert.Equal(t, "eth1", src.Device)
	assert.Equal(t, 96, src.SnapLen)

	params := cfg.ClassifierParams()
	assert.Equal(t, uint16(20), params.Stream.Window)
	assert.Equal(t, 10*time.Second, params.Timeouts.CallIdle)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CALLWATCH_CAPTURE_DEVICE", "wlan0")
	t.Setenv("CALLWATCH_CLASSIFIER_AV_IDLE_TIMEOUT", "300ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wlan0", cfg.Capture.Device)
	assert.Equal(t, 300*time.Millisecond, cfg.Classifier.AVIdleTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"log level":          "log:\n    level: loud",
		"log format":         "log:\n    format: xml",
		"backend":            "capture:\n    backend: netmap",
		"snap len":           "capture:\n    snap_len: 20",
		"timeout":            "capture:\n    timeout: 0s",
		"signalling port":    "capture:\n    signalling_port: 70000",
		"window":             "classifier:\n    window: 0",
		"thresholds ordered": "classifier:\n    audio_above: 600",
		"zero audio":         "classifier:\n    audio_above: 0",
		"timeouts ordered":   "classifier:\n    av_idle_timeout: 6s",
		"display format":     "display:\n    format: xml",
		"display interval":   "display:\n    interval: 0s",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "callwatch:\n  "+body+"\n"))
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}
