// Package metrics exposes classifier activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/session"
)

var (
	// PacketsObservedTotal counts UDP frames fed to the classifier, by capture mode
	PacketsObservedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callwatch_packets_observed_total",
			Help: "Total number of UDP frames fed to the classifier",
		},
		[]string{"mode"},
	)

	// PacketLengthBytes is the distribution of UDP lengths seen
	PacketLengthBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "callwatch_packet_length_bytes",
			Help:    "UDP length of observed frames",
			Buckets: []float64{70, 90, 200, 500, 800, 1200},
		},
	)

	// ReadTimeoutsTotal counts capture reads that returned no packet
	ReadTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "callwatch_read_timeouts_total",
			Help: "Total number of capture reads that timed out",
		},
	)

	// ModeTransitionsTotal counts Discover/Monitor switches
	ModeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callwatch_mode_transitions_total",
			Help: "Total number of capture mode transitions",
		},
		[]string{"from", "to", "reason"},
	)

	// RoleAssignmentsTotal counts ports newly assigned to a role
	RoleAssignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callwatch_role_assignments_total",
			Help: "Total number of ports assigned to a role",
		},
		[]string{"role"},
	)

	// ChannelStatus tracks current liveness per channel
	ChannelStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "callwatch_channel_status",
			Help: "Current channel status (0=unknown, 1=on, 2=off)",
		},
		[]string{"channel"},
	)

	// CaptureMode tracks the current capture mode
	CaptureMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "callwatch_capture_mode",
			Help: "Current capture mode (0=discover, 1=monitor)",
		},
	)

	// DiscoverWorkingSet tracks ports under observation in Discover mode
	DiscoverWorkingSet = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "callwatch_discover_working_set",
			Help: "Number of ports tracked in the Discover working set",
		},
	)
)

// SetState mirrors a session state into the status gauges.
func SetState(s session.State) {
	ChannelStatus.WithLabelValues("video").Set(float64(s.Video))
	ChannelStatus.WithLabelValues("audio").Set(float64(s.Audio))
	ChannelStatus.WithLabelValues("call").Set(float64(s.Call))
}

func SetMode(m classifier.Mode) {
	CaptureMode.Set(float64(m))
}

// RecordTransition counts t and updates the mode gauge.
func RecordTransition(t classifier.Transition) {
	ModeTransitionsTotal.WithLabelValues(t.From.String(), t.To.String(), t.Reason).Inc()
	SetMode(t.To)
}
