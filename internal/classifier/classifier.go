// Package classifier assigns observed source ports to video, audio and control
// roles and drives the Discover/Monitor capture state machine.
package classifier

import (
	"time"

	"firestige.xyz/callwatch/internal/session"
	"firestige.xyz/callwatch/internal/stream"
)

const (
	// DefaultAudioAbove: a stream averaging more bytes than this is probably audio.
	DefaultAudioAbove uint16 = 90

	// DefaultVideoAbove: a stream averaging more bytes than this is probably video.
	DefaultVideoAbove uint16 = 500

	// DefaultSignallingPort is the well-known server port media is sent to.
	DefaultSignallingPort uint16 = 8801
)

// Mode is the capture phase.
type Mode int

const (
	// ModeDiscover watches all traffic to the signalling port and learns roles.
	ModeDiscover Mode = iota
	// ModeMonitor watches only the ports that already hold a role.
	ModeMonitor
)

func (m Mode) String() string {
	if m == ModeMonitor {
		return "Monitor"
	}
	return "Discover"
}

// MarshalText renders the mode in lower case.
func (m Mode) MarshalText() ([]byte, error) {
	if m == ModeMonitor {
		return []byte("monitor"), nil
	}
	return []byte("discover"), nil
}

// Params tunes the classifier.
type Params struct {
	Stream         stream.Options
	AudioAbove     uint16
	VideoAbove     uint16
	SignallingPort uint16
	Timeouts       session.Timeouts
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		Stream:         stream.DefaultOptions(),
		AudioAbove:     DefaultAudioAbove,
		VideoAbove:     DefaultVideoAbove,
		SignallingPort: DefaultSignallingPort,
		Timeouts:       session.DefaultTimeouts(),
	}
}

// Transition describes a mode change.
type Transition struct {
	From   Mode
	To     Mode
	Reason string
}

const (
	ReasonRolesFound     = "video and audio identified"
	ReasonCallIdle       = "call idle"
	ReasonUnexpectedPort = "unexpected port"
)

// Hooks lets the owner observe classifier decisions. Any field may be nil.
type Hooks struct {
	OnAssign     func(role session.Role, s *stream.PacketStream)
	OnTransition func(t Transition)
}

// Classifier is not safe for concurrent use; the capture loop owns it.
type Classifier struct {
	params Params
	hooks  Hooks

	mode     Mode
	working  map[uint16]*stream.PacketStream
	channels session.Channels

	// roles (re)assigned since the current Discover round began
	confirmed map[session.Role]bool

	state session.State
}

// New creates a classifier in Discover mode.
func New(params Params, hooks Hooks) *Classifier {
	c := &Classifier{
		params: params,
		hooks:  hooks,
		state:  session.NewState(),
	}
	c.resetDiscovery()
	return c
}

// Mode returns the current capture phase.
func (c *Classifier) Mode() Mode { return c.mode }

// State returns the session state computed by the last Observe or Refresh.
func (c *Classifier) State() session.State { return c.state }

// Channels returns a copy of the current role assignment.
func (c *Classifier) Channels() session.Channels { return c.channels.Clone() }

// Working returns the number of ports in the Discover working set.
func (c *Classifier) Working() int { return len(c.working) }

// Filter returns the BPF expression for the current mode.
func (c *Classifier) Filter() string {
	if c.mode == ModeMonitor {
		return MonitorFilter(c.params.SignallingPort, c.channels.Ports())
	}
	return DiscoverFilter(c.params.SignallingPort)
}

// Observe feeds one packet from port of the given length, seen at now,
// and returns the recomputed session state.
func (c *Classifier) Observe(port, length uint16, now time.Time) session.State {
	switch c.mode {
	case ModeDiscover:
		c.discover(port, length, now)
	case ModeMonitor:
		if !c.monitor(port, length, now) {
			c.switchMode(ModeDiscover, ReasonUnexpectedPort)
			c.discover(port, length, now)
		}
	}
	return c.evaluate(now)
}

// Refresh recomputes time-derived state without a packet.
func (c *Classifier) Refresh(now time.Time) session.State {
	return c.evaluate(now)
}

func (c *Classifier) evaluate(now time.Time) session.State {
	c.state = session.Recompute(c.channels, now, c.params.Timeouts)
	if next, reason := c.nextMode(); next != c.mode {
		c.switchMode(next, reason)
	}
	return c.state
}

func (c *Classifier) nextMode() (Mode, string) {
	switch c.mode {
	case ModeDiscover:
		if c.channels.Video != nil && c.channels.Audio != nil &&
			c.confirmed[session.RoleVideo] && c.confirmed[session.RoleAudio] {
			return ModeMonitor, ReasonRolesFound
		}
	case ModeMonitor:
		if c.state.Call != session.StatusOn {
			return ModeDiscover, ReasonCallIdle
		}
	}
	return c.mode, ""
}

func (c *Classifier) switchMode(to Mode, reason string) {
	from := c.mode
	c.mode = to
	switch to {
	case ModeDiscover:
		c.resetDiscovery()
	case ModeMonitor:
		c.working = nil
	}
	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(Transition{From: from, To: to, Reason: reason})
	}
}

func (c *Classifier) resetDiscovery() {
	c.working = make(map[uint16]*stream.PacketStream)
	c.confirmed = make(map[session.Role]bool, len(session.Roles))
}

func (c *Classifier) discover(port, length uint16, now time.Time) {
	s, ok := c.working[port]
	if !ok {
		s = stream.New(port, c.params.Stream)
		c.working[port] = s
	}
	s.Update(length, false, now)
	if s.Ready() {
		c.classify(s)
	}
}

// monitor updates the stream holding port. It reports false if no role holds it.
func (c *Classifier) monitor(port, length uint16, now time.Time) bool {
	role, ok := c.channels.RoleOf(port)
	if !ok {
		return false
	}
	c.channels.Get(role).Update(length, role != session.RoleControl, now)
	return true
}

// classify applies the size heuristic to a classification-ready stream.
func (c *Classifier) classify(s *stream.PacketStream) {
	port := s.Port()
	avg := s.AverageSize()

	switch {
	case avg > c.params.VideoAbove:
		// big enough to be video: audio rarely produces packets this large
		c.clearIfHeld(session.RoleAudio, port)
		c.clearIfHeld(session.RoleControl, port)
		c.assign(session.RoleVideo, s)

	case avg > c.params.AudioAbove:
		c.clearIfHeld(session.RoleControl, port)
		if c.channels.Video.Is(port) {
			c.assign(session.RoleVideo, s)
		} else {
			c.assign(session.RoleAudio, s)
		}

	default:
		// a port already trusted as media is not demoted by a quiet spell
		if !c.channels.Video.Is(port) && !c.channels.Audio.Is(port) {
			c.assign(session.RoleControl, s)
		}
	}
}

func (c *Classifier) clearIfHeld(role session.Role, port uint16) {
	if c.channels.Get(role).Is(port) {
		c.channels.Set(role, nil)
		delete(c.confirmed, role)
	}
}

func (c *Classifier) assign(role session.Role, s *stream.PacketStream) {
	prev := c.channels.Get(role)
	c.channels.Set(role, s.Clone())
	c.confirmed[role] = true
	if c.hooks.OnAssign != nil && !prev.Is(s.Port()) {
		c.hooks.OnAssign(role, s)
	}
}
