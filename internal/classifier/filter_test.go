package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverFilter(t *testing.T) {
	assert.Equal(t, "udp and dst port 8801", DiscoverFilter(8801))
	assert.Equal(t, "udp and dst port 3478", DiscoverFilter(3478))
}

func TestMonitorFilter(t *testing.T) {
	tests := []struct {
		name  string
		ports []uint16
		want  string
	}{
		{"no ports", nil, "udp and dst port 8801"},
		{"single", []uint16{5000}, "udp and dst port 8801 and (src port 5000)"},
		{"sorted", []uint16{5002, 5000, 5001}, "udp and dst port 8801 and (src port 5000 or src port 5001 or src port 5002)"},
		{"deduplicated", []uint16{5000, 5000}, "udp and dst port 8801 and (src port 5000)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonitorFilter(8801, tt.ports))
		})
	}
}

func TestMonitorFilterDoesNotReorderInput(t *testing.T) {
	ports := []uint16{5001, 5000}

	MonitorFilter(8801, ports)

	assert.Equal(t, []uint16{5001, 5000}, ports)
}
