package capture

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/callwatch/internal/core"
)

// compileRawBPF compiles expr with libpcap and converts the program into
// raw instructions for sockets that take a classic BPF program directly.
func compileRawBPF(linkType layers.LinkType, snapLen int, expr string) ([]bpf.RawInstruction, error) {
	insns, err := pcap.CompileBPFFilter(linkType, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", core.ErrFilterInvalid, expr, err)
	}

	raw := make([]bpf.RawInstruction, len(insns))
	for i, insn := range insns {
		raw[i] = bpf.RawInstruction{Op: insn.Code, Jt: insn.Jt, Jf: insn.Jf, K: insn.K}
	}
	return raw, nil
}
