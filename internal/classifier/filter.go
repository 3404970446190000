package classifier

import (
	"fmt"
	"slices"
	"strings"
)

// DiscoverFilter matches every UDP packet sent to the signalling port.
func DiscoverFilter(signallingPort uint16) string {
	return fmt.Sprintf("udp and dst port %d", signallingPort)
}

// MonitorFilter narrows DiscoverFilter to the given source ports. Ports are
// de-duplicated and sorted so equal sets yield equal expressions. With no
// ports it degrades to DiscoverFilter.
func MonitorFilter(signallingPort uint16, ports []uint16) string {
	if len(ports) == 0 {
		return DiscoverFilter(signallingPort)
	}

	sorted := slices.Clone(ports)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	terms := make([]string, len(sorted))
	for i, p := range sorted {
		terms[i] = fmt.Sprintf("src port %d", p)
	}
	return fmt.Sprintf("%s and (%s)", DiscoverFilter(signallingPort), strings.Join(terms, " or "))
}
