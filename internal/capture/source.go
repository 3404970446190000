// Package capture opens packet sources and decodes captured frames down to
// the UDP metadata the classifier needs.
package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/mitchellh/mapstructure"
)

const (
	BackendPcap     = "pcap"
	BackendAFPacket = "afpacket"

	DefaultSnapLen = 96
	DefaultTimeout = 100 * time.Millisecond
)

// Source is an open capture handle.
//
// ReadPacketData returns core.ErrTimeout when no packet arrived within the
// configured timeout and io.EOF once the source is exhausted or closed.
type Source interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	// SetFilter replaces the BPF filter on the open handle.
	SetFilter(expr string) error
	// Live is false for offline files, whose packet timestamps drive the clock.
	Live() bool
	Close()
}

// Config selects and tunes a live capture backend.
type Config struct {
	Backend     string
	Device      string
	SnapLen     int
	Timeout     time.Duration
	Promiscuous bool
	// Options carries backend-specific settings, decoded per backend.
	Options map[string]any
}

// Open opens a live capture on cfg.Device with filter applied.
func Open(cfg Config, filter string) (Source, error) {
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = DefaultSnapLen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Backend {
	case "", BackendPcap:
		return openPcap(cfg, filter)
	case BackendAFPacket:
		return openAFPacket(cfg, filter)
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// decodeOptions decodes the free-form options map into out, rejecting unknown keys.
func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}
