// Package tracing defines the span-start seam the executor and dispatch
// paths call through, grounded on the teacher's
// system/framework/core.Tracer: a single StartSpan method returning a
// derived context and a completion callback, with a no-op default so
// tracing is opt-in rather than a hard dependency.
package tracing

import "context"

// Tracer starts and finishes spans for observability.
type Tracer interface {
	// StartSpan returns a derived context and a completion callback. The
	// callback must be invoked with the final error (if any) when the
	// operation ends.
	StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func(error))
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, func(error)) {
	return ctx, func(error) {}
}

// NoopTracer is the default tracer used when none is configured.
var NoopTracer Tracer = noopTracer{}
