// Package stream implements the per-port traffic model.
package stream

import (
	"encoding/json"
	"time"
)

const (
	// DefaultWindow is the length of the moving average window.
	DefaultWindow uint16 = 10

	// DefaultKeepaliveUnder is the size below which a packet on a known media
	// stream is treated as a keep-alive and ignored.
	DefaultKeepaliveUnder uint16 = 70
)

// Options tunes the update rule of a PacketStream.
type Options struct {
	Window         uint16
	KeepaliveUnder uint16
}

// DefaultOptions returns the stock averaging window and keep-alive threshold.
func DefaultOptions() Options {
	return Options{
		Window:         DefaultWindow,
		KeepaliveUnder: DefaultKeepaliveUnder,
	}
}

// PacketStream is a single source port sending packets to a remote server.
// It keeps an integer moving average of packet size and the time of the
// last packet that counted towards it.
type PacketStream struct {
	port     uint16
	average  uint16
	lastSeen time.Time
	samples  uint16
	opts     Options
}

// New creates an empty stream for port. A zero window is treated as 1.
func New(port uint16, opts Options) *PacketStream {
	if opts.Window == 0 {
		opts.Window = 1
	}
	return &PacketStream{
		port: port,
		opts: opts,
	}
}

// Update adds a packet of the given length observed at now.
//
// With ignoreSmall set, packets shorter than the keep-alive threshold are
// dropped without touching any field. It reports whether the packet counted.
func (s *PacketStream) Update(length uint16, ignoreSmall bool, now time.Time) bool {
	if ignoreSmall && length < s.opts.KeepaliveUnder {
		return false
	}

	w := s.opts.Window
	if s.samples == 0 {
		// seed with the first sample so a cold stream doesn't start from zero
		s.average = length
	} else {
		s.average -= s.average / w
		s.average += length / w
	}

	s.lastSeen = now
	if s.samples < w {
		s.samples++
	}
	return true
}

// Ready reports whether a full window of samples has been seen.
func (s *PacketStream) Ready() bool {
	return s.samples >= s.opts.Window
}

// Port returns the source port of the stream.
func (s *PacketStream) Port() uint16 { return s.port }

// AverageSize returns the smoothed packet length.
func (s *PacketStream) AverageSize() uint16 { return s.average }

// LastSeen returns the time of the last qualifying update.
func (s *PacketStream) LastSeen() time.Time { return s.lastSeen }

// Samples returns the number of qualifying updates, capped at the window size.
func (s *PacketStream) Samples() uint16 { return s.samples }

// Clone returns an independent copy. A nil receiver yields nil.
func (s *PacketStream) Clone() *PacketStream {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Is reports whether s is non-nil and carries port.
func (s *PacketStream) Is(port uint16) bool {
	return s != nil && s.port == port
}

type streamJSON struct {
	Port        uint16    `json:"port"`
	AverageSize uint16    `json:"average_size"`
	Samples     uint16    `json:"samples"`
	LastSeen    time.Time `json:"last_seen"`
}

// MarshalJSON renders the observable fields of the stream.
func (s *PacketStream) MarshalJSON() ([]byte, error) {
	return json.Marshal(streamJSON{
		Port:        s.port,
		AverageSize: s.average,
		Samples:     s.samples,
		LastSeen:    s.lastSeen,
	})
}
