// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"strings"
)

// DefaultCSP admits the browser push SDK, which loads from the provider CDN
// and talks to the provider API and its service worker.
const DefaultCSP = "default-src 'self'; " +
	"script-src 'self' https://cdn.onesignal.com; " +
	"style-src 'self' 'unsafe-inline' https://onesignal.com; " +
	"img-src 'self' data: https://*.onesignal.com; " +
	"connect-src 'self' https://onesignal.com https://*.onesignal.com; " +
	"worker-src 'self'; " +
	"frame-ancestors 'none'"

// SecurityHeaders returns a middleware that adds common security headers to all responses.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	if csp == "" {
		csp = DefaultCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			w.Header().Set("Content-Security-Policy", csp)
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			// The standalone detector reads the android-app:// referrer on
			// first launch, so same-origin referrers must survive.
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Notifications are the only powerful feature the pages use.
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

			next.ServeHTTP(w, r)
		})
	}
}
