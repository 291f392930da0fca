// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package actorrpc

import "time"

// WriteDeadline bounds a single response write on a ZAP connection.
const WriteDeadline = 30 * time.Second

// HTTPClient is the overall timeout of one JSON-RPC HTTP request.
const HTTPClient = 30 * time.Second

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// DefaultCallTimeout is used by the command line client when none is configured.
const DefaultCallTimeout = 5 * time.Second

// retryBaseWait is the first backoff step of opt-in HTTP retries.
const retryBaseWait = 500 * time.Millisecond
