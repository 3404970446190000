package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/callwatch/internal/core"
)

// Decoder extracts UDP frames from captured packets. It reuses its layer
// structs between calls and is not safe for concurrent use.
type Decoder struct {
	parser *gopacket.DecodingLayerParser
	// raw IP links carry v4 and v6 without a link header to tell them apart
	parser6 *gopacket.DecodingLayerParser

	eth     layers.Ethernet
	dot1q   layers.Dot1Q
	sll     layers.LinuxSLL
	loop    layers.Loopback
	ip4     layers.IPv4
	ip6     layers.IPv6
	udp     layers.UDP
	payload gopacket.Payload

	decoded []gopacket.LayerType
}

// NewDecoder returns a decoder for packets of the given link type.
func NewDecoder(linkType layers.LinkType) (*Decoder, error) {
	first, err := firstLayer(linkType)
	if err != nil {
		return nil, err
	}

	d := &Decoder{decoded: make([]gopacket.LayerType, 0, 8)}
	d.parser = d.newParser(first)
	if linkType == layers.LinkTypeRaw {
		d.parser6 = d.newParser(layers.LayerTypeIPv6)
	}
	return d, nil
}

func (d *Decoder) newParser(first gopacket.LayerType) *gopacket.DecodingLayerParser {
	p := gopacket.NewDecodingLayerParser(first,
		&d.eth, &d.dot1q, &d.sll, &d.loop, &d.ip4, &d.ip6, &d.udp, &d.payload)
	p.IgnoreUnsupported = true
	return p
}

func firstLayer(linkType layers.LinkType) (gopacket.LayerType, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return layers.LayerTypeEthernet, nil
	case layers.LinkTypeLinuxSLL:
		return layers.LayerTypeLinuxSLL, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return layers.LayerTypeLoopback, nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		return layers.LayerTypeIPv4, nil
	case layers.LinkTypeIPv6:
		return layers.LayerTypeIPv6, nil
	default:
		return gopacket.LayerTypeZero, fmt.Errorf("%w: %s", core.ErrUnsupportedLinkType, linkType)
	}
}

// Decode returns the UDP metadata of data. Packets truncated by the snap
// length still decode as long as the UDP header was captured; packets
// without a UDP layer yield core.ErrNotUDP.
func (d *Decoder) Decode(data []byte, ci gopacket.CaptureInfo) (core.Frame, error) {
	parser := d.parser
	if d.parser6 != nil && len(data) > 0 && data[0]>>4 == 6 {
		parser = d.parser6
	}

	// a truncated payload surfaces as an error after UDP was already decoded
	err := parser.DecodeLayers(data, &d.decoded)

	for _, lt := range d.decoded {
		if lt == layers.LayerTypeUDP {
			return core.Frame{
				Timestamp:  ci.Timestamp,
				SourcePort: uint16(d.udp.SrcPort),
				Length:     d.udp.Length,
			}, nil
		}
	}
	if err != nil {
		return core.Frame{}, fmt.Errorf("%w: %v", core.ErrNotUDP, err)
	}
	return core.Frame{}, fmt.Errorf("%w: decoded %v", core.ErrNotUDP, d.decoded)
}
