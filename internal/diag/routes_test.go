// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package diag

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRoutes(t *testing.T) {
	t.Parallel()

	handler := NewHandler()
	tests := []struct {
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{method: http.MethodGet, path: "/", wantCode: http.StatusOK, wantBody: "It works!"},
		{method: http.MethodGet, path: "/hello", wantCode: http.StatusOK, wantBody: "Hello, world!"},
		{method: http.MethodGet, path: "/missing", wantCode: http.StatusNotFound},
		{method: http.MethodPost, path: "/hello", wantCode: http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if tc.wantBody != "" && rec.Body.String() != tc.wantBody {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestRegisterRoutesNilMux(t *testing.T) {
	RegisterRoutes(nil)
}
