// Package daemon wires the watcher components together and manages their
// lifecycle: logging, metrics, history, capture and display.
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firestige.xyz/callwatch/internal/capture"
	"firestige.xyz/callwatch/internal/classifier"
	"firestige.xyz/callwatch/internal/config"
	"firestige.xyz/callwatch/internal/history"
	"firestige.xyz/callwatch/internal/log"
	"firestige.xyz/callwatch/internal/metrics"
	"firestige.xyz/callwatch/internal/report"
	"firestige.xyz/callwatch/internal/watch"
)

// Options are per-invocation settings that are not part of the config file.
type Options struct {
	// ReadFile replays a pcap file instead of capturing live.
	ReadFile string
	// Out receives status lines. Defaults to stdout.
	Out io.Writer
}

// Daemon runs one watcher session.
type Daemon struct {
	config *config.Config
	opts   Options

	source        capture.Source
	engine        *watch.Engine
	latest        *report.Latest
	console       *report.Console
	store         *history.Store    // nil if history disabled
	recorder      *history.Recorder // nil if history disabled
	metricsServer *metrics.Server   // nil if metrics disabled

	// openSource is replaced in tests
	openSource func(filter string) (capture.Source, error)

	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
}

func New(cfg *config.Config, opts Options) *Daemon {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	d := &Daemon{
		config: cfg,
		opts:   opts,
		latest: report.NewLatest(),
	}
	d.openSource = d.open
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Latest exposes the most recent snapshot.
func (d *Daemon) Latest() *report.Latest { return d.latest }

// Start initializes every component. On error, whatever was started is stopped.
func (d *Daemon) Start() (err error) {
	defer func() {
		if err != nil {
			d.Stop()
		}
	}()

	if err := log.Init(d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if err := d.startHistory(); err != nil {
		return fmt.Errorf("failed to open call history: %w", err)
	}

	params := d.config.ClassifierParams()
	src, err := d.openSource(classifier.DiscoverFilter(params.SignallingPort))
	if err != nil {
		return err
	}
	d.source = src

	d.engine, err = watch.New(src, params, d.latest)
	if err != nil {
		return err
	}

	var observers []report.Observer
	if d.recorder != nil {
		observers = append(observers, d.recorder)
	}
	d.console = report.NewConsole(d.latest, d.opts.Out, d.config.Display.Format, d.config.Display.Interval, observers...)

	log.GetLogger().Info("watcher started")
	return nil
}

// Run blocks until SIGINT/SIGTERM, end of an offline file, or a fatal
// capture error, then stops every component.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT)

	engineDone := make(chan error, 1)
	go func() { engineDone <- d.engine.Run(d.ctx) }()

	displayCtx, stopDisplay := context.WithCancel(context.Background())
	displayDone := make(chan struct{})
	go func() {
		d.console.Run(displayCtx)
		close(displayDone)
	}()

	var err error
	select {
	case sig := <-d.sigChan:
		log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
		d.cancel()
		err = <-engineDone
	case err = <-engineDone:
	}

	stopDisplay()
	<-displayDone
	d.Stop()
	return err
}

// Stop releases every component. Safe to call more than once.
func (d *Daemon) Stop() {
	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
		d.sigChan = nil
	}

	if d.source != nil {
		d.source.Close()
		d.source = nil
	}

	if d.recorder != nil {
		if err := d.recorder.Close(d.latest.Load().UpdatedAt); err != nil {
			log.GetLogger().WithError(err).Warn("failed to close ongoing call")
		}
		d.recorder = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.GetLogger().WithError(err).Warn("failed to close call history")
		}
		d.store = nil
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			log.GetLogger().WithError(err).Error("error stopping metrics server")
		}
		d.metricsServer = nil
	}
}

// open opens the offline file or resolves and opens the live device.
func (d *Daemon) open(filter string) (capture.Source, error) {
	if d.opts.ReadFile != "" {
		return capture.OpenFile(d.opts.ReadFile, filter)
	}

	dev, err := capture.ResolveDevice(d.config.Capture.Device)
	if err != nil {
		return nil, err
	}
	cfg := d.config.CaptureSource()
	cfg.Device = dev.Name
	return capture.Open(cfg, filter)
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		return nil
	}
	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start()
}

func (d *Daemon) startHistory() error {
	if !d.config.History.Enabled {
		return nil
	}
	path := d.config.History.Path
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return err
		}
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	d.store = store
	d.recorder = history.NewRecorder(store)
	log.GetLogger().WithField("path", path).Info("call history enabled")
	return nil
}
