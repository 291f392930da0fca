// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the environment driven settings of the actorrpc
// executable.
package config

import (
	"fmt"
	"time"

	"github.com/luxfi/actorrpc"
)

// Config is read from ACTORRPC_* variables. Command line flags override it.
type Config struct {
	// Transport selects the client transport: zap, grpc or http.
	Transport string `env:"TRANSPORT" envDefault:"zap"`
	// Peer is the address the client dials.
	Peer string `env:"PEER" envDefault:"127.0.0.1:9650"`

	ZAPAddr  string `env:"ZAP_ADDR" envDefault:"127.0.0.1:9650"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:"127.0.0.1:9651"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:9652"`
	// DiagAddr serves the diagnostic routes; empty disables them.
	DiagAddr string `env:"DIAG_ADDR" envDefault:"127.0.0.1:8080"`

	Codec          string        `env:"CODEC" envDefault:"json"`
	StrictGenerics bool          `env:"STRICT_GENERICS" envDefault:"false"`
	CallTimeout    time.Duration `env:"CALL_TIMEOUT" envDefault:"5s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"INFO"`
	OTelEndpoint   string        `env:"OTEL_ENDPOINT"`

	// OTelSampleRatio is the share of root calls traced when an endpoint is set.
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that named transports, codecs and levels exist.
func (c Config) Validate() error {
	if !actorrpc.HasTransport(c.Transport) {
		return fmt.Errorf("unknown transport %q (available: %v)", c.Transport, actorrpc.AvailableTransports())
	}
	if _, err := actorrpc.CodecByName(c.Codec); err != nil {
		return err
	}
	if _, err := actorrpc.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %s", c.CallTimeout)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("otel sample ratio must be within [0, 1], got %v", c.OTelSampleRatio)
	}
	return nil
}
