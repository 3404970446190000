// Package watch runs the capture loop.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"firestige.xyz/callwatch/internal/capture"
	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/core"
	"firestige.xyz/callwatch/internal/log"
	"firestige.xyz/callwatch/internal/metrics"
	"firestige.xyz/callwatch/internal/report"
	"firestige.xyz/callwatch/internal/session"
	"firestige.xyz/callwatch/internal/stream"
)

type Option func(*Engine)

// WithClock overrides the wall clock used for live sources.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// Engine owns the capture source and the classifier. Only Run touches them.
type Engine struct {
	source     capture.Source
	decoder    *capture.Decoder
	classifier *classifier.Classifier
	latest     *report.Latest
	clock      func() time.Time
	logger     log.Logger

	applied string
	packets uint64
	// last packet timestamp; the clock of offline sources
	lastSeen time.Time
}

// New prepares an engine reading from src, which must already carry the
// Discover filter for params.SignallingPort.
func New(src capture.Source, params classifier.Params, latest *report.Latest, opts ...Option) (*Engine, error) {
	dec, err := capture.NewDecoder(src.LinkType())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		source:  src,
		decoder: dec,
		latest:  latest,
		clock:   time.Now,
		logger:  log.GetLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.classifier = classifier.New(params, classifier.Hooks{
		OnAssign:     e.onAssign,
		OnTransition: e.onTransition,
	})
	e.applied = e.classifier.Filter()
	metrics.SetMode(e.classifier.Mode())
	return e, nil
}

// Run reads until ctx is done, the source is exhausted, or a fatal error
// occurs. Context is checked between reads; a blocked read returns at the
// source's timeout.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, ci, err := e.source.ReadPacketData()
		switch {
		case err == nil:
			frame, err := e.decoder.Decode(data, ci)
			if err != nil {
				return err
			}
			e.observe(frame)

		case errors.Is(err, core.ErrTimeout):
			metrics.ReadTimeoutsTotal.Inc()
			now := e.now(time.Time{})
			e.publish(e.classifier.Refresh(now), now)

		case errors.Is(err, io.EOF):
			e.logger.WithField("packets", e.packets).Info("capture source exhausted")
			return nil

		default:
			return err
		}

		if err := e.syncFilter(); err != nil {
			return err
		}
	}
}

func (e *Engine) observe(f core.Frame) {
	now := e.now(f.Timestamp)
	e.packets++
	metrics.PacketsObservedTotal.WithLabelValues(e.classifier.Mode().String()).Inc()
	metrics.PacketLengthBytes.Observe(float64(f.Length))

	e.publish(e.classifier.Observe(f.SourcePort, f.Length, now), now)
}

func (e *Engine) publish(state session.State, now time.Time) {
	e.latest.Publish(report.Snapshot{
		State:     state,
		Mode:      e.classifier.Mode(),
		Packets:   e.packets,
		UpdatedAt: now,
	})
	metrics.SetState(state)
	metrics.DiscoverWorkingSet.Set(float64(e.classifier.Working()))
}

// syncFilter pushes the classifier's filter to the source when it changed.
func (e *Engine) syncFilter() error {
	want := e.classifier.Filter()
	if want == e.applied {
		return nil
	}
	if err := e.source.SetFilter(want); err != nil {
		return fmt.Errorf("apply %s filter: %w", e.classifier.Mode(), err)
	}
	e.logger.WithField("filter", want).Debug("capture filter updated")
	e.applied = want
	return nil
}

// now is the wall clock for live sources and the packet clock otherwise.
func (e *Engine) now(ts time.Time) time.Time {
	if e.source.Live() {
		return e.clock()
	}
	if !ts.IsZero() {
		e.lastSeen = ts
	}
	return e.lastSeen
}

func (e *Engine) onAssign(role session.Role, s *stream.PacketStream) {
	metrics.RoleAssignmentsTotal.WithLabelValues(role.String()).Inc()
	e.logger.WithFields(map[string]interface{}{
		"role":    role.String(),
		"port":    s.Port(),
		"average": s.AverageSize(),
	}).Info("port assigned")
}

func (e *Engine) onTransition(t classifier.Transition) {
	metrics.RecordTransition(t)
	e.logger.WithFields(map[string]interface{}{
		"from":   t.From.String(),
		"to":     t.To.String(),
		"reason": t.Reason,
	}).Info("capture mode changed")
}
