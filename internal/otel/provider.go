// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package otel wires the process-wide tracer provider that System spans and
// the gRPC stats handlers report to.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Tracing describes where call spans go.
type Tracing struct {
	ServiceName string
	// Endpoint is an OTLP/HTTP collector URL. Empty leaves tracing off.
	Endpoint string
	// SampleRatio is the share of root calls recorded, in [0, 1]. Remote
	// parents keep their own decision.
	SampleRatio float64
}

// Shutdown flushes buffered spans.
type Shutdown func(context.Context) error

// Setup installs a global tracer provider for t and returns its Shutdown.
// Without an endpoint nothing is installed and Shutdown does nothing.
func Setup(ctx context.Context, t Tracing) (Shutdown, error) {
	off := func(context.Context) error { return nil }
	if t.Endpoint == "" {
		return off, nil
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return off, fmt.Errorf("otel: sample ratio %v outside [0, 1]", t.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(t.Endpoint))
	if err != nil {
		return off, fmt.Errorf("otel: exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(t.ServiceName)))
	if err != nil {
		return off, fmt.Errorf("otel: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
