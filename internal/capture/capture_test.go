package capture

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/callwatch/internal/core"
)

func TestRingLayout(t *testing.T) {
	frame, block, blocks, err := ringLayout(8, 96, 4096)
	require.NoError(t, err)

	assert.Equal(t, 160, frame)
	assert.Zero(t, frame%16)
	assert.Zero(t, block%4096)
	assert.Zero(t, block%frame)
	assert.Equal(t, (8<<20)/block, blocks)
}

func TestRingLayoutLargeSnapLen(t *testing.T) {
	frame, block, blocks, err := ringLayout(64, 65535, 4096)
	require.NoError(t, err)

	assert.Zero(t, frame%16)
	assert.Zero(t, block%4096)
	assert.Zero(t, block%frame)
	assert.GreaterOrEqual(t, block, frame)
	assert.GreaterOrEqual(t, blocks, 1)
}

func TestRingLayoutBlocksHoldWholeFrames(t *testing.T) {
	for _, pageSize := range []int{4096, 16384, 65536} {
		for _, snap := range []int{96, 1500, 9000, 16384, 40000, 65535} {
			frame, block, _, err := ringLayout(8, snap, pageSize)
			require.NoError(t, err, "snap=%d page=%d", snap, pageSize)

			assert.GreaterOrEqual(t, frame, snap+52, "snap=%d page=%d", snap, pageSize)
			assert.Zero(t, frame%16, "snap=%d page=%d", snap, pageSize)
			assert.Zero(t, block%pageSize, "snap=%d page=%d", snap, pageSize)
			assert.Zero(t, block%frame, "snap=%d page=%d", snap, pageSize)
			assert.LessOrEqual(t, block, 4<<20, "snap=%d page=%d", snap, pageSize)
		}
	}
}

func TestRingLayoutInvalid(t *testing.T) {
	cases := []struct {
		name               string
		mb, snap, pageSize int
	}{
		{"zero buffer", 0, 96, 4096},
		{"zero snaplen", 8, 0, 4096},
		{"odd page", 8, 96, 1000},
		{"page above block limit", 8, 96, 8 << 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := ringLayout(tc.mb, tc.snap, tc.pageSize)
			assert.Error(t, err)
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	var opts pcapOptions
	err := decodeOptions(map[string]any{"buffer_size_mb": "16", "immediate": true}, &opts)
	require.NoError(t, err)
	assert.Equal(t, pcapOptions{BufferSizeMB: 16, Immediate: true}, opts)

	err = decodeOptions(map[string]any{"ring": 4}, &opts)
	assert.Error(t, err, "unknown keys are rejected")

	opts = pcapOptions{}
	require.NoError(t, decodeOptions(nil, &opts))
	assert.Zero(t, opts)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "netmap", Device: "eth0"}, "udp")
	assert.Error(t, err)
}

func TestResolveFrom(t *testing.T) {
	devs := []Device{
		{Name: "lo", Loopback: true, Addresses: []net.IP{net.IPv4(127, 0, 0, 1)}},
		{Name: "any"},
		{Name: "docker0"},
		{Name: "eth0", Addresses: []net.IP{net.IPv4(192, 168, 1, 10)}},
	}

	d, err := resolveFrom(devs, "")
	require.NoError(t, err)
	assert.Equal(t, "eth0", d.Name)

	d, err = resolveFrom(devs, "lo")
	require.NoError(t, err)
	assert.Equal(t, "lo", d.Name)

	_, err = resolveFrom(devs, "wlan9")
	assert.ErrorIs(t, err, core.ErrNoSuchDevice)
}

func TestResolveFromFallsBackToAddresslessDevice(t *testing.T) {
	d, err := resolveFrom([]Device{{Name: "lo", Loopback: true}, {Name: "eth1"}}, "")
	require.NoError(t, err)
	assert.Equal(t, "eth1", d.Name)

	_, err = resolveFrom([]Device{{Name: "lo", Loopback: true}}, "")
	assert.ErrorIs(t, err, core.ErrNoSuchDevice)
}
