// Copyright 2026 The Reelgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tracing exports the spans emitted while resolving callers to roles
// and gating their requests.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span names.
const (
	SpanResolveRole = "rbac.resolve_role"
	SpanRequire     = "rbac.require"
)

// Span attribute keys.
const (
	AttrState      = attribute.Key("rbac.state")
	AttrRole       = attribute.Key("rbac.role")
	AttrClaim      = attribute.Key("rbac.claim")
	AttrRequired   = attribute.Key("rbac.required")
	AttrRequireAll = attribute.Key("rbac.require_all")
	AttrAllowed    = attribute.Key("rbac.allowed")
)

// Config holds tracing configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SamplingRate is the fraction of new traces kept. Out of range means 1.
	SamplingRate   float64
}

// Tracer starts the service's spans. A nil Tracer, or one built from a
// disabled Config, records nothing.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New exports spans over OTLP/HTTP and installs the provider and the W3C
// propagators globally. The endpoint and headers come from the standard
// OTEL_EXPORTER_OTLP_* variables.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{}, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	t, err := NewWithExporter(ctx, cfg, exporter)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// NewWithExporter batches spans to exporter without touching global state.
func NewWithExporter(ctx context.Context, cfg Config, exporter sdktrace.SpanExporter) (*Tracer, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRate)),
	)
	return &Tracer{
		tracer:   provider.Tracer(cfg.ServiceName),
		provider: provider,
	}, nil
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Start starts a new span.
func (t *Tracer) Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, spanName, opts...)
	}
	return t.tracer.Start(ctx, spanName, opts...)
}

// Enabled reports whether spans are exported.
func (t *Tracer) Enabled() bool {
	return t != nil && t.provider != nil
}

// ForceFlush exports all ended spans that are still buffered.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// RecordResolution annotates span with the outcome of a role resolution. A
// provider error marks the span failed.
func RecordResolution(span trace.Span, state, role, claim string, err error) {
	span.SetAttributes(
		AttrState.String(state),
		AttrRole.String(role),
		AttrClaim.String(claim),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity provider failed")
	}
}

// RecordDecision annotates span with an access decision. A denial is an
// expected outcome and leaves the span status unset.
func RecordDecision(span trace.Span, role string, required []string, requireAll, allowed bool) {
	span.SetAttributes(
		AttrRole.String(role),
		AttrRequired.StringSlice(required),
		AttrRequireAll.Bool(requireAll),
		AttrAllowed.Bool(allowed),
	)
}
