package capture

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/callwatch/internal/core"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func udp4Packet(t *testing.T, srcPort, dstPort uint16, payload int) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(203, 0, 113, 5),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload(make([]byte, payload)))
}

func TestDecodeUDPv4(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	frame, err := d.Decode(udp4Packet(t, 5000, 8801, 592), gopacket.CaptureInfo{Timestamp: ts})

	require.NoError(t, err)
	assert.Equal(t, core.Frame{Timestamp: ts, SourcePort: 5000, Length: 600}, frame)
}

func TestDecodeTruncatedAtSnapLen(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	data := udp4Packet(t, 5000, 8801, 1200)[:DefaultSnapLen]
	frame, err := d.Decode(data, gopacket.CaptureInfo{})

	require.NoError(t, err)
	assert.Equal(t, uint16(1208), frame.Length, "length comes from the UDP header, not the capture")
}

func TestDecodeUDPv6(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::10"),
		DstIP:      net.ParseIP("2001:db8::5"),
	}
	udp := &layers.UDP{SrcPort: 5001, DstPort: 8801}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv6},
		ip, udp, gopacket.Payload(make([]byte, 142)))

	frame, err := d.Decode(data, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.Equal(t, uint16(5001), frame.SourcePort)
	assert.Equal(t, uint16(150), frame.Length)
}

func TestDecodeVLANTagged(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 6000, DstPort: 8801}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeDot1Q},
		&layers.Dot1Q{VLANIdentifier: 100, Type: layers.EthernetTypeIPv4},
		ip, udp, gopacket.Payload(make([]byte, 32)))

	frame, err := d.Decode(data, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.Equal(t, uint16(6000), frame.SourcePort)
	assert.Equal(t, uint16(40), frame.Length)
}

func TestDecodeRawIP(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeRaw)
	require.NoError(t, err)

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 7000, DstPort: 8801}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, ip, udp, gopacket.Payload(make([]byte, 92)))

	frame, err := d.Decode(data, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.Equal(t, uint16(100), frame.Length)
}

func TestDecodeRawIPv6(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeRaw)
	require.NoError(t, err)

	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("2001:db8::10"),
		DstIP:      net.ParseIP("2001:db8::5"),
	}
	udp := &layers.UDP{SrcPort: 7001, DstPort: 8801}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	data := serialize(t, ip, udp, gopacket.Payload(make([]byte, 592)))

	frame, err := d.Decode(data, gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.Equal(t, uint16(7001), frame.SourcePort)
	assert.Equal(t, uint16(600), frame.Length)

	// the same decoder keeps handling v4 afterwards
	ip4 := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp4 := &layers.UDP{SrcPort: 7000, DstPort: 8801}
	require.NoError(t, udp4.SetNetworkLayerForChecksum(ip4))
	frame, err = d.Decode(serialize(t, ip4, udp4, gopacket.Payload(make([]byte, 92))), gopacket.CaptureInfo{})
	require.NoError(t, err)
	assert.Equal(t, uint16(7000), frame.SourcePort)
	assert.Equal(t, uint16(100), frame.Length)
}

func TestDecodeNotUDP(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	tcp := &layers.TCP{SrcPort: 443, DstPort: 8801, SYN: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	data := serialize(t,
		&layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4},
		ip, tcp)

	_, err = d.Decode(data, gopacket.CaptureInfo{})
	assert.ErrorIs(t, err, core.ErrNotUDP)

	_, err = d.Decode([]byte{0x01, 0x02}, gopacket.CaptureInfo{})
	assert.ErrorIs(t, err, core.ErrNotUDP)
}

func TestDecoderReusedAcrossPackets(t *testing.T) {
	d, err := NewDecoder(layers.LinkTypeEthernet)
	require.NoError(t, err)

	for i, port := range []uint16{5000, 5001, 5002} {
		frame, err := d.Decode(udp4Packet(t, port, 8801, 100+i), gopacket.CaptureInfo{})
		require.NoError(t, err)
		assert.Equal(t, port, frame.SourcePort)
		assert.Equal(t, uint16(108+i), frame.Length)
	}
}

func TestNewDecoderUnsupportedLinkType(t *testing.T) {
	_, err := NewDecoder(layers.LinkTypeIEEE802_11)
	assert.ErrorIs(t, err, core.ErrUnsupportedLinkType)
}
