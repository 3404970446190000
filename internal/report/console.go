package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"firestige.xyz/callwatch/internal/log"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	DefaultInterval = 100 * time.Millisecond
)

// Observer receives every snapshot the console renders.
type Observer interface {
	Observe(s Snapshot)
}

// Console periodically prints the latest snapshot.
type Console struct {
	latest    *Latest
	out       io.Writer
	format    string
	interval  time.Duration
	observers []Observer
}

func NewConsole(latest *Latest, out io.Writer, format string, interval time.Duration, observers ...Observer) *Console {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if format == "" {
		format = FormatText
	}
	return &Console{
		latest:    latest,
		out:       out,
		format:    format,
		interval:  interval,
		observers: observers,
	}
}

// Run prints a status line every interval until ctx is done, then prints
// the final snapshot once more.
func (c *Console) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Emit()
			return
		case <-ticker.C:
			c.Emit()
		}
	}
}

// Emit renders the current snapshot and hands it to the observers.
func (c *Console) Emit() {
	s := c.latest.Load()
	if err := c.write(s); err != nil {
		log.GetLogger().WithError(err).Debug("status line not written")
	}
	for _, o := range c.observers {
		o.Observe(s)
	}
}

func (c *Console) write(s Snapshot) error {
	if c.format == FormatJSON {
		line, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.out, "%s\n", line)
		return err
	}
	_, err := fmt.Fprintf(c.out, "%s (mode=%s)\n", s, s.Mode)
	return err
}
