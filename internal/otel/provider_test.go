// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package otel_test

import (
	"context"
	"testing"

	"github.com/luxfi/actorrpc/internal/otel"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), otel.Tracing{ServiceName: "actorrpc-test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown with tracing off: %v", err)
	}
}

func TestSetupWithEndpoint(t *testing.T) {
	// TEST-NET address; no spans are recorded so nothing is sent
	shutdown, err := otel.Setup(context.Background(), otel.Tracing{
		ServiceName: "actorrpc-test",
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRejectsSampleRatio(t *testing.T) {
	for _, ratio := range []float64{-0.1, 1.5} {
		_, err := otel.Setup(context.Background(), otel.Tracing{
			Endpoint:    "http://192.0.2.1:4318",
			SampleRatio: ratio,
		})
		if err == nil {
			t.Errorf("ratio %v accepted", ratio)
		}
	}
}
