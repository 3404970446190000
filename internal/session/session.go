// Package session derives channel and call liveness from the current role assignment.
package session

import (
	"fmt"
	"time"

	"firestige.xyz/callwatch/internal/stream"
)

// Status is the liveness of a single channel or of the whole call.
type Status int

const (
	StatusUnknown Status = iota
	StatusOn
	StatusOff
)

func (s Status) String() string {
	switch s {
	case StatusOn:
		return "On"
	case StatusOff:
		return "Off"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status in lower case for JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusOn:
		return []byte("on"), nil
	case StatusOff:
		return []byte("off"), nil
	case StatusUnknown:
		return []byte("unknown"), nil
	}
	return nil, fmt.Errorf("invalid status %d", int(s))
}

// Role is the semantic label given to a source port.
type Role int

const (
	RoleVideo Role = iota
	RoleAudio
	RoleControl
)

func (r Role) String() string {
	switch r {
	case RoleVideo:
		return "video"
	case RoleAudio:
		return "audio"
	case RoleControl:
		return "control"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Roles lists every role in a stable order.
var Roles = []Role{RoleVideo, RoleAudio, RoleControl}

const (
	// DefaultAVIdleTimeout is the longest gap between packets before a media channel is off.
	DefaultAVIdleTimeout = 200 * time.Millisecond

	// DefaultCallIdleTimeout is the longest gap across all channels before the call is over.
	DefaultCallIdleTimeout = 5 * time.Second
)

// Timeouts holds the idle thresholds used by Recompute.
type Timeouts struct {
	AVIdle   time.Duration
	CallIdle time.Duration
}

// DefaultTimeouts returns the stock idle thresholds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		AVIdle:   DefaultAVIdleTimeout,
		CallIdle: DefaultCallIdleTimeout,
	}
}

// Channels is the role assignment: at most one stream per role, and a port
// never held by two roles at once.
type Channels struct {
	Video   *stream.PacketStream `json:"video"`
	Audio   *stream.PacketStream `json:"audio"`
	Control *stream.PacketStream `json:"control"`
}

// Get returns the stream held by role, or nil.
func (c *Channels) Get(r Role) *stream.PacketStream {
	switch r {
	case RoleVideo:
		return c.Video
	case RoleAudio:
		return c.Audio
	case RoleControl:
		return c.Control
	}
	return nil
}

// Set assigns s to role. A nil s clears the role.
func (c *Channels) Set(r Role, s *stream.PacketStream) {
	switch r {
	case RoleVideo:
		c.Video = s
	case RoleAudio:
		c.Audio = s
	case RoleControl:
		c.Control = s
	}
}

// RoleOf returns the role holding port.
func (c *Channels) RoleOf(port uint16) (Role, bool) {
	for _, r := range Roles {
		if c.Get(r).Is(port) {
			return r, true
		}
	}
	return 0, false
}

// Ports returns the ports of every assigned role.
func (c *Channels) Ports() []uint16 {
	var ports []uint16
	for _, r := range Roles {
		if s := c.Get(r); s != nil {
			ports = append(ports, s.Port())
		}
	}
	return ports
}

// Clone returns a deep copy so the result can be handed to another goroutine.
func (c *Channels) Clone() Channels {
	return Channels{
		Video:   c.Video.Clone(),
		Audio:   c.Audio.Clone(),
		Control: c.Control.Clone(),
	}
}

// State is the derived summary of a session at one instant.
type State struct {
	Video    Status   `json:"video"`
	Audio    Status   `json:"audio"`
	Call     Status   `json:"call"`
	Channels Channels `json:"channels"`
}

// NewState returns the state before anything has been observed.
func NewState() State {
	return State{
		Video: StatusUnknown,
		Audio: StatusUnknown,
		Call:  StatusUnknown,
	}
}

// Recompute derives the session state from the role assignment at now.
// The returned state owns a copy of channels.
func Recompute(channels Channels, now time.Time, timeouts Timeouts) State {
	call := StatusOff
	for _, r := range Roles {
		if s := channels.Get(r); s != nil && now.Sub(s.LastSeen()) <= timeouts.CallIdle {
			call = StatusOn
			break
		}
	}

	return State{
		Video:    channelStatus(channels.Video, now, timeouts.AVIdle),
		Audio:    channelStatus(channels.Audio, now, timeouts.AVIdle),
		Call:     call,
		Channels: channels.Clone(),
	}
}

func channelStatus(s *stream.PacketStream, now time.Time, timeout time.Duration) Status {
	if s == nil {
		return StatusUnknown
	}
	if now.Sub(s.LastSeen()) > timeout {
		return StatusOff
	}
	return StatusOn
}
