// Package report carries session snapshots from the capture loop to the
// display loop and renders them.
package report

import (
	"fmt"
	"sync/atomic"
	"time"

	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/session"
)

// Snapshot is one published view of the session.
type Snapshot struct {
	session.State
	Mode      classifier.Mode `json:"mode"`
	Packets   uint64          `json:"packets"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// String renders the status line printed to the console.
func (s Snapshot) String() string {
	return fmt.Sprintf("Statuses: Video: %s Audio: %s Call: %s", s.Video, s.Audio, s.Call)
}

// Latest is a single-value cell: one writer publishes, any number of readers
// load the most recent snapshot without blocking the writer.
type Latest struct {
	v atomic.Pointer[Snapshot]
}

// NewLatest returns a cell holding the all-Unknown snapshot.
func NewLatest() *Latest {
	l := &Latest{}
	l.v.Store(&Snapshot{State: session.NewState(), Mode: classifier.ModeDiscover})
	return l
}

// Publish replaces the held snapshot. s must not be mutated afterwards.
func (l *Latest) Publish(s Snapshot) {
	l.v.Store(&s)
}

func (l *Latest) Load() Snapshot {
	return *l.v.Load()
}
