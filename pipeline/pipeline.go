// Package pipeline runs the read, decode, throttle, persist and notify loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/eddielth/sdr-weather/display"
	"github.com/eddielth/sdr-weather/event"
	"github.com/eddielth/sdr-weather/logger"
	"github.com/eddielth/sdr-weather/metrics"
	"github.com/eddielth/sdr-weather/publish"
	"github.com/eddielth/sdr-weather/source"
	"github.com/eddielth/sdr-weather/storage"
	"github.com/eddielth/sdr-weather/throttle"
	"github.com/eddielth/sdr-weather/units"
)

// ErrSourceTerminated is returned by Run when the line stream ends on its own
var ErrSourceTerminated = errors.New("line source terminated")

// Settings are the options that can change while the pipeline runs
type Settings struct {
	Unit units.Unit
	Mode display.Mode
	// Interval in seconds between accepted events of one sensor, 0 accepts all
	Interval int64
}

// Options wires the pipeline's collaborators. Source and Decoder are required.
type Options struct {
	Source   source.LineSource
	Decoder  *event.Decoder
	Throttle *throttle.Store
	// Storage may be nil or empty when logging is disabled
	Storage *storage.Manager
	// Dispatcher may be nil when nothing is notified
	Dispatcher publish.Dispatcher
	Printer    *display.Printer
	Metrics    *metrics.Metrics
	Settings   Settings
}

// Outcome is what happened to one line
type Outcome int

const (
	DecodeFailed Outcome = iota
	Throttled
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case DecodeFailed:
		return "decode-failed"
	case Throttled:
		return "throttled"
	case Accepted:
		return "accepted"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Pipeline processes decoder lines strictly in arrival order
type Pipeline struct {
	source     source.LineSource
	decoder    *event.Decoder
	throttle   *throttle.Store
	storage    *storage.Manager
	dispatcher publish.Dispatcher
	printer    *display.Printer
	metrics    *metrics.Metrics

	settings atomic.Pointer[Settings]
}

// New creates a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("pipeline needs a line source")
	}
	if opts.Decoder == nil {
		return nil, fmt.Errorf("pipeline needs a decoder")
	}
	if opts.Settings.Interval < 0 {
		return nil, fmt.Errorf("throttle interval must not be negative, got %d", opts.Settings.Interval)
	}

	p := &Pipeline{
		source:     opts.Source,
		decoder:    opts.Decoder,
		throttle:   opts.Throttle,
		storage:    opts.Storage,
		dispatcher: opts.Dispatcher,
		printer:    opts.Printer,
		metrics:    opts.Metrics,
	}
	if p.throttle == nil {
		p.throttle = throttle.NewStore()
	}
	if p.metrics == nil {
		p.metrics = metrics.New(prometheus.NewRegistry())
	}
	settings := opts.Settings
	p.settings.Store(&settings)
	return p, nil
}

// Settings returns the settings in effect
func (p *Pipeline) Settings() Settings {
	return *p.settings.Load()
}

// UpdateSettings swaps the settings; the next line uses them
func (p *Pipeline) UpdateSettings(s Settings) error {
	if s.Interval < 0 {
		return fmt.Errorf("throttle interval must not be negative, got %d", s.Interval)
	}
	p.settings.Store(&s)
	logger.Info("pipeline settings updated: unit=%q mode=%s interval=%ds", s.Unit, s.Mode, s.Interval)
	return nil
}

// Run reads lines until the source ends or ctx is cancelled. Cancellation
// closes the source, lets the in-flight line finish and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := p.source.Close(); err != nil {
			logger.Warn("close line source: %v", err)
		}
	})
	defer stop()

	logger.Info("pipeline started")
	for {
		line, err := p.source.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("pipeline stopped")
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, source.ErrClosed) {
				return ErrSourceTerminated
			}
			return fmt.Errorf("read line: %w", err)
		}

		p.handleLine(ctx, line)
	}
}

func (p *Pipeline) handleLine(ctx context.Context, line string) Outcome {
	p.metrics.LinesRead.Inc()
	settings := p.Settings()

	ev, err := p.decoder.Decode(line)
	if err != nil {
		p.metrics.DecodeFailures.Inc()
		logger.Debug("skipping line: %v", err)
		p.printer.Raw(settings.Mode, line)
		return DecodeFailed
	}

	temp := units.Normalize(ev, settings.Unit)
	p.printer.Event(settings.Mode, ev, temp)

	if !p.throttle.ShouldAccept(ev.Key, ev.Time, settings.Interval) {
		p.metrics.Throttled.Inc()
		logger.Debug("throttled retransmission of %q at %d", ev.Key, ev.Time)
		return Throttled
	}
	p.metrics.Accepted.Inc()
	p.metrics.SensorsTracked.Set(float64(p.throttle.Len()))

	p.deliver(ctx, ev, temp)
	return Accepted
}

// deliver persists and notifies concurrently and returns when both are done.
// Failures are logged and counted; they never stop ingestion.
func (p *Pipeline) deliver(ctx context.Context, ev *event.Event, temp units.Temperature) {
	// the in-flight line completes even when shutdown has begun
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group

	if p.storage != nil && p.storage.Len() > 0 {
		rec := storage.Record{SensorKey: ev.Key, Time: ev.Time, Fields: ev.Fields}
		g.Go(func() error {
			if err := p.storage.Store(rec); err != nil {
				p.metrics.PersistFailures.Inc()
				logger.Error("failed to store reading of %q: %v", rec.SensorKey, err)
			}
			return nil
		})
	}

	if p.dispatcher != nil && ev.HasMeasurement() {
		reading := publish.NewReading(ev, temp)
		g.Go(func() error {
			if err := p.dispatcher.Dispatch(ctx, reading); err != nil {
				p.metrics.DispatchFailures.Inc()
				logger.Error("failed to dispatch reading of %q: %v", reading.SensorKey, err)
			}
			return nil
		})
	}

	_ = g.Wait()
}
