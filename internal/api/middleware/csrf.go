// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strings"

	xnet "github.com/ManuGH/freesession/internal/platform/net"
)

// CSRFProtection rejects state-changing requests whose Origin (or Referer)
// is neither the daemon itself nor one of allowedOrigins. Permission grants
// and unmount beacons are only ever sent by the daemon's own pages.
func CSRFProtection(allowedOrigins ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if norm, err := xnet.NormalizeOrigin(origin); err == nil {
			allowed[norm] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			origin := requestOrigin(r)
			if origin == "" {
				writeForbidden(w, "missing origin information")
				return
			}
			if !allowed[origin] && !isSameOrigin(origin, r) {
				writeForbidden(w, "cross-origin request not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeForbidden(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden","detail":"` + detail + `"}`))
}

// requestOrigin prefers Origin and falls back to the Referer's scheme+host.
func requestOrigin(r *http.Request) string {
	raw := r.Header.Get("Origin")
	if raw == "" || raw == "null" {
		raw = r.Header.Get("Referer")
	}
	if raw == "" {
		return ""
	}
	origin, err := xnet.NormalizeOrigin(raw)
	if err != nil {
		return ""
	}
	return origin
}

func isSameOrigin(origin string, r *http.Request) bool {
	if r.Host == "" {
		return false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(proto)
	}
	self, err := xnet.NormalizeOrigin(scheme + "://" + r.Host)
	return err == nil && origin == self
}
