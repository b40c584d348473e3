package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Job outcomes recorded on the jobs counter.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Lookup results recorded on the lookups counter.
const (
	LookupHit        = "hit"
	LookupHitFailed  = "hit_failed"
	LookupMiss       = "miss"
	LookupLazyFilled = "lazy_filled"
)

// Instruments bundles the telemetry the engine emits: precomputation job
// counters, cache lookup counters, flush duration, and job spans.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - A nil *Instruments is valid everywhere and records nothing.
type Instruments struct {
	logger Logger
	tracer trace.Tracer

	jobs      metric.Int64Counter
	lookups   metric.Int64Counter
	flushHist metric.Float64Histogram
}

// NewInstruments builds the engine's instruments from an Observer.
func NewInstruments(obs *Observer) (*Instruments, error) {
	meter := obs.Meter()

	jobs, err := meter.Int64Counter(
		"precache.jobs.total",
		metric.WithDescription("Precomputation jobs by outcome"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	lookups, err := meter.Int64Counter(
		"precache.lookups.total",
		metric.WithDescription("Wrapped-call cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	flushHist, err := meter.Float64Histogram(
		"precache.flush.duration_ms",
		metric.WithDescription("Snapshot flush duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		logger:    obs.Logger(),
		tracer:    obs.Tracer(),
		jobs:      jobs,
		lookups:   lookups,
		flushHist: flushHist,
	}, nil
}

// Log returns a component-scoped logger, never nil.
func (in *Instruments) Log(component string) Logger {
	if in == nil || in.logger == nil {
		return NopLogger()
	}
	return in.logger.WithComponent(component)
}

// JobDone records the outcome of one precomputation job.
func (in *Instruments) JobDone(ctx context.Context, handler, outcome string) {
	if in == nil {
		return
	}
	in.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("outcome", outcome),
	))
}

// LookupDone records the result of one wrapped-call lookup.
func (in *Instruments) LookupDone(ctx context.Context, handler, result string) {
	if in == nil {
		return
	}
	in.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("result", result),
	))
}

// FlushDone records the duration of one snapshot flush.
func (in *Instruments) FlushDone(ctx context.Context, d time.Duration, err error) {
	if in == nil {
		return
	}
	in.flushHist.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.Bool("error", err != nil),
	))
}

// StartJob starts a span for one precomputation job. The returned span
// is never nil; callers must pass it to EndJob.
func (in *Instruments) StartJob(ctx context.Context, handler, key string) (context.Context, trace.Span) {
	if in == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return in.tracer.Start(ctx, "precache.job."+handler,
		trace.WithAttributes(
			attribute.String("handler", handler),
			attribute.String("cache.key", key),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndJob ends a job span, recording error status if present.
func (in *Instruments) EndJob(span trace.Span, err error) {
	if in == nil {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
