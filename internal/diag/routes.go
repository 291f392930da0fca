// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package diag serves a few plain-text routes for checking that an actorrpc
// host is up. It never touches the envelope format.
package diag

import (
	"net/http"

	"github.com/luxfi/actorrpc"
	"github.com/luxfi/actorrpc/internal/greeter"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("diag")

// Route paths.
const (
	RootPath  = "/"
	HelloPath = "/hello"
)

// RegisterRoutes wires the diagnostic routes into mux.
func RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("GET "+RootPath+"{$}", handleRoot)
	mux.HandleFunc("GET "+HelloPath, handleHello)
}

// NewHandler returns a mux serving only the diagnostic routes.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux)
	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "It works!")
}

// handleHello builds a throwaway System, hosts a Greeter on it and greets
// the world through a local call.
func handleHello(w http.ResponseWriter, r *http.Request) {
	sys := actorrpc.NewSystem()
	if _, err := greeter.Host(sys); err != nil {
		log.Errorf("hosting greeter: %v", err)
		http.Error(w, "greeter unavailable", http.StatusInternalServerError)
		return
	}
	greeting, err := greeter.NewClient(sys).Greet(r.Context(), "world")
	if err != nil {
		log.Errorf("greet: %v", err)
		http.Error(w, "greeting failed", http.StatusInternalServerError)
		return
	}
	writeText(w, greeting+"!")
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(body)); err != nil {
		log.Debugf("write response: %v", err)
	}
}
