package search

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/janisto/profile-search/internal/service/search"

// Outcome attribute values recorded per search.
const (
	outcomeMatches   = "matches"
	outcomeEmpty     = "empty"
	outcomeTransport = "transport"
)

type instruments struct {
	tracer   trace.Tracer
	requests metric.Int64Counter
	duration metric.Float64Histogram
	profiles metric.Int64Histogram
}

// newInstruments ignores creation errors: names are static and the SDK still returns
// a usable instrument alongside an error.
func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) *instruments {
	meter := mp.Meter(instrumentationName)
	requests, _ := meter.Int64Counter("search.requests",
		metric.WithDescription("Searches sent to the search service, by outcome."))
	duration, _ := meter.Float64Histogram("search.duration",
		metric.WithDescription("Search round trip time."), metric.WithUnit("s"))
	profiles, _ := meter.Int64Histogram("search.profiles",
		metric.WithDescription("Profiles returned per successful search."))
	return &instruments{
		tracer:   tp.Tracer(instrumentationName),
		requests: requests,
		duration: duration,
		profiles: profiles,
	}
}

func outcome(profiles []Profile, err error) string {
	var upstreamErr *UpstreamError
	switch {
	case errors.As(err, &upstreamErr):
		return string(upstreamErr.Kind)
	case err != nil:
		return outcomeTransport
	case len(profiles) == 0:
		return outcomeEmpty
	default:
		return outcomeMatches
	}
}

// start opens a search span; the returned func ends it and records metrics.
func (in *instruments) start(ctx context.Context, criteria Criteria) (context.Context, func([]Profile, error)) {
	begin := time.Now()
	ctx, span := in.tracer.Start(ctx, "search profiles",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Bool("search.image", criteria.Image != nil)),
	)
	return ctx, func(profiles []Profile, err error) {
		result := outcome(profiles, err)
		attrs := metric.WithAttributes(attribute.String("search.outcome", result))
		in.requests.Add(ctx, 1, attrs)
		in.duration.Record(ctx, time.Since(begin).Seconds(), attrs)
		if err == nil {
			in.profiles.Record(ctx, int64(len(profiles)))
		}

		span.SetAttributes(attribute.String("search.outcome", result), attribute.Int("search.profiles", len(profiles)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
	}
}
