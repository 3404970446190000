package core

import "time"

// Frame is the decoded view of a captured UDP datagram that the classifier consumes.
// Only transport-level metadata is kept; the payload is never inspected.
type Frame struct {
	Timestamp  time.Time
	SourcePort uint16
	Length     uint16 // UDP length field, header included
}
