// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalsFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		build func() *http.Request
		want  Signals
	}{
		{
			name:  "plain browser tab",
			build: func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", nil) },
			want:  Signals{},
		},
		{
			name: "manifest start url",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/?mode=standalone", nil)
			},
			want: Signals{DisplayModeStandalone: true},
		},
		{
			name: "display mode cookie",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.AddCookie(&http.Cookie{Name: CookieDisplayMode, Value: "standalone"})
				return r
			},
			want: Signals{DisplayModeStandalone: true},
		},
		{
			name: "ios flag header",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set(HeaderIOSStandalone, "true")
				return r
			},
			want: Signals{NavigatorStandalone: true},
		},
		{
			name: "android wrapper referrer",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Referer", "android-app://com.example.twa/")
				return r
			},
			want: Signals{Referrer: "android-app://com.example.twa/"},
		},
		{
			name: "reported referrer wins over header",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/api/v1/phase?referrer=android-app%3A%2F%2Fx", nil)
				r.Header.Set("Referer", "https://example.com/")
				return r
			},
			want: Signals{Referrer: "android-app://x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignalsFromRequest(tt.build()))
		})
	}
}

func TestDetectOS(t *testing.T) {
	assert.Equal(t, OSiOS, DetectOS("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.Equal(t, OSAndroid, DetectOS("Mozilla/5.0 (Linux; Android 14; Pixel 8)"))
	assert.Equal(t, OSOther, DetectOS("Mozilla/5.0 (Windows NT 10.0; Win64; x64)"))
	assert.Equal(t, OSOther, DetectOS("Mozilla/5.0 (Windows Phone 8.1; Trident/7.0; iPhone)"))
}

func TestParsePermissionState(t *testing.T) {
	assert.Equal(t, PermissionGranted, ParsePermissionState(" Granted "))
	assert.Equal(t, PermissionDenied, ParsePermissionState("denied"))
	assert.Equal(t, PermissionDefault, ParsePermissionState("prompt"))
	assert.False(t, PermissionDefault.Decided())
	assert.True(t, PermissionDenied.Decided())
}

func TestReportedPermission(t *testing.T) {
	p := NewReportedPermission()
	assert.Equal(t, PermissionDefault, p.State())

	p.Report(PermissionGranted)
	got, err := p.Request(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PermissionGranted, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Request(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
