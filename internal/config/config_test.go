// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("ACTORRPC_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "zap" || cfg.Codec != "json" {
		t.Errorf("transport %q codec %q", cfg.Transport, cfg.Codec)
	}
	if cfg.CallTimeout != 5*time.Second {
		t.Errorf("call timeout = %s", cfg.CallTimeout)
	}
	if cfg.OTelEndpoint != "" {
		t.Errorf("tracing enabled by default: %q", cfg.OTelEndpoint)
	}
	if cfg.OTelSampleRatio != 1 {
		t.Errorf("sample ratio = %v, want 1", cfg.OTelSampleRatio)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACTORRPC_TRANSPORT", "grpc")
	t.Setenv("ACTORRPC_PEER", "10.0.0.5:9651")
	t.Setenv("ACTORRPC_CODEC", "cbor")
	t.Setenv("ACTORRPC_CALL_TIMEOUT", "250ms")
	t.Setenv("ACTORRPC_STRICT_GENERICS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != "grpc" || cfg.Peer != "10.0.0.5:9651" || cfg.Codec != "cbor" {
		t.Errorf("got %+v", cfg)
	}
	if cfg.CallTimeout != 250*time.Millisecond || !cfg.StrictGenerics {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"ACTORRPC_TRANSPORT":         "smoke-signals",
		"ACTORRPC_CODEC":             "xml",
		"ACTORRPC_LOG_LEVEL":         "LOUD",
		"ACTORRPC_CALL_TIMEOUT":      "0s",
		"ACTORRPC_OTEL_SAMPLE_RATIO": "2",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", key, value)
			}
		})
	}
}
