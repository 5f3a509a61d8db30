// ABOUTME: OpenTelemetry metric instruments for sessions and control surfaces
// ABOUTME: Implements the session observer hook on top of counters and histograms
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mictroll/mictroll-go/pkg/effects"
	"github.com/mictroll/mictroll-go/pkg/session"
)

// meterName is the instrumentation scope for every mictroll metric
const meterName = "github.com/mictroll/mictroll-go"

// Start results recorded on SessionStarts
const (
	ResultOK             = "ok"
	ResultDeviceNotFound = "device_not_found"
	ResultStreamOpen     = "stream_open"
	ResultError          = "error"
)

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// Frames counts frames written to the sink
	Frames metric.Int64Counter

	// MutedFrames counts frames silenced by the break draw
	MutedFrames metric.Int64Counter

	// DistortedFrames counts frames hit by the distortion draw
	DistortedFrames metric.Int64Counter

	// Faults counts transient device faults. Attribute: direction=read|write
	Faults metric.Int64Counter

	// ProcessDuration tracks per-frame processing time, excluding device I/O
	ProcessDuration metric.Float64Histogram

	// ActiveSessions is 1 while a session is running
	ActiveSessions metric.Int64UpDownCounter

	// SessionStarts counts start attempts. Attribute: result
	SessionStarts metric.Int64Counter

	// ParamUpdates counts parameter changes. Attribute: source=ui|remote
	ParamUpdates metric.Int64Counter
}

// processBuckets are in seconds; a 1024-sample frame at 44.1kHz lasts 23ms
var processBuckets = []float64{
	0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025,
}

// NewMetrics creates every instrument on mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("mictroll.frames",
		metric.WithDescription("Frames processed and written to the sink."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if met.MutedFrames, err = m.Int64Counter("mictroll.frames.muted",
		metric.WithDescription("Frames silenced by the break effect."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if met.DistortedFrames, err = m.Int64Counter("mictroll.frames.distorted",
		metric.WithDescription("Frames hit by the distortion effect."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if met.Faults, err = m.Int64Counter("mictroll.device.faults",
		metric.WithDescription("Transient capture overflows and playback underflows."),
	); err != nil {
		return nil, err
	}
	if met.ProcessDuration, err = m.Float64Histogram("mictroll.process.duration",
		metric.WithDescription("Time spent transforming one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(processBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("mictroll.sessions.active",
		metric.WithDescription("Sessions currently running."),
	); err != nil {
		return nil, err
	}
	if met.SessionStarts, err = m.Int64Counter("mictroll.sessions.starts",
		metric.WithDescription("Session start attempts by result."),
	); err != nil {
		return nil, err
	}
	if met.ParamUpdates, err = m.Int64Counter("mictroll.params.updates",
		metric.WithDescription("Effect parameter changes by control surface."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide instance built on the global provider
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordSessionStart counts one start attempt
func (m *Metrics) RecordSessionStart(ctx context.Context, result string) {
	m.SessionStarts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordParamUpdate counts one parameter change
func (m *Metrics) RecordParamUpdate(ctx context.Context, source string) {
	m.ParamUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// SessionObserver adapts the instruments to the session observer hook
func (m *Metrics) SessionObserver() session.Observer {
	return &sessionObserver{
		m:     m,
		read:  metric.WithAttributes(attribute.String("direction", "read")),
		write: metric.WithAttributes(attribute.String("direction", "write")),
	}
}

type sessionObserver struct {
	m     *Metrics
	read  metric.AddOption
	write metric.AddOption
}

func (o *sessionObserver) FrameProcessed(elapsed time.Duration, outcome effects.Outcome) {
	ctx := context.Background()
	o.m.Frames.Add(ctx, 1)
	if outcome.Muted {
		o.m.MutedFrames.Add(ctx, 1)
	}
	if outcome.Distorted {
		o.m.DistortedFrames.Add(ctx, 1)
	}
	o.m.ProcessDuration.Record(ctx, elapsed.Seconds())
}

func (o *sessionObserver) ReadFault() {
	o.m.Faults.Add(context.Background(), 1, o.read)
}

func (o *sessionObserver) WriteFault() {
	o.m.Faults.Add(context.Background(), 1, o.write)
}

func (o *sessionObserver) StateChanged(state session.State) {
	switch state {
	case session.Running:
		o.m.ActiveSessions.Add(context.Background(), 1)
	case session.Closed:
		o.m.ActiveSessions.Add(context.Background(), -1)
	}
}
