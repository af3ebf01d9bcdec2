// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/health"
	"github.com/ManuGH/freesession/internal/phase"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/push/memsdk"
	"github.com/ManuGH/freesession/internal/subscription"
	"github.com/ManuGH/freesession/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rewardURL = "https://reward.example/p/1"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15"
	origin    = "http://example.com"
)

type testServer struct {
	srv   *Server
	gates *gate.Service
	sdk   *memsdk.SDK
}

func newTestServer(t *testing.T, sdk *memsdk.SDK) *testServer {
	t.Helper()
	perm := platform.NewReportedPermission()
	client := push.NewClient(push.Config{
		AppID:         "app-test",
		InitRetries:   1,
		ReadyAttempts: 2,
		ReadyInterval: time.Millisecond,
		QueryTimeout:  time.Second,
	}, sdk, perm, subscription.NewBroadcaster(), push.WithSettleDelay(time.Millisecond))
	gates := gate.NewService(gate.Config{PollInterval: 5 * time.Millisecond}, client, perm)
	t.Cleanup(func() {
		gates.Close()
		client.Close()
	})

	renderer, err := view.New(view.Config{PushAppID: "app-test"})
	require.NoError(t, err)
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPushChecker(client))

	srv := New(Config{RewardURL: rewardURL, APIRateLimit: 1000}, gates, renderer, hm)
	return &testServer{srv: srv, gates: gates, sdk: sdk}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) mount(t *testing.T, target string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", iphoneUA)
	rec := ts.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieMount {
			return c.Value
		}
	}
	t.Fatal("mount cookie not set")
	return ""
}

func (ts *testServer) snapshot(t *testing.T, id string) gate.Snapshot {
	t.Helper()
	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/phase?mount="+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap gate.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	return snap
}

func permissionRequest(id, permission string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/permission?mount="+id,
		strings.NewReader(`{"permission":"`+permission+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	return req
}

func TestIndex_BrowserTabRendersInstall(t *testing.T) {
	ts := newTestServer(t, memsdk.New())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", iphoneUA)
	rec := ts.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "iOSでの追加方法")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Zero(t, ts.sdk.InitCalls())
}

func TestPhase_StandaloneUnlocks(t *testing.T) {
	ts := newTestServer(t, memsdk.New(memsdk.WithSubscribed(true)))
	id := ts.mount(t, "/?mode=standalone")

	require.Eventually(t, func() bool {
		return ts.snapshot(t, id).Phase == phase.Unlocked
	}, 2*time.Second, 10*time.Millisecond)

	snap := ts.snapshot(t, id)
	assert.True(t, snap.Standalone)
	assert.True(t, snap.Settled)
	assert.Equal(t, platform.OSiOS, snap.OS)
}

func TestPhase_UnknownMount(t *testing.T) {
	ts := newTestServer(t, memsdk.New())

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/phase?mount=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeUnknownMount, body["error"])
}

func TestPermission(t *testing.T) {
	tests := []struct {
		name        string
		permission  string
		wantOutcome push.Outcome
		wantPhase   phase.Phase
		wantMessage string
	}{
		{"granted", "granted", push.OutcomeGranted, phase.Unlocked, ""},
		{"denied", "denied", push.OutcomeDenied, phase.Permission, view.MessagePermissionRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, memsdk.New())
			id := ts.mount(t, "/?mode=standalone")
			require.Eventually(t, func() bool { return ts.snapshot(t, id).Settled }, 2*time.Second, 10*time.Millisecond)

			rec := ts.do(t, permissionRequest(id, tt.permission))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp PermissionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantOutcome, resp.Outcome)
			assert.Equal(t, tt.wantOutcome.Granted(), resp.Granted)
			assert.Equal(t, tt.wantMessage, resp.Message)
			require.Eventually(t, func() bool { return ts.snapshot(t, id).Phase == tt.wantPhase }, 2*time.Second, 10*time.Millisecond)
		})
	}
}

func TestPermission_RejectsCrossOrigin(t *testing.T) {
	ts := newTestServer(t, memsdk.New())
	id := ts.mount(t, "/?mode=standalone")

	req := permissionRequest(id, "granted")
	req.Header.Set("Origin", "https://evil.example")
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, ts.sdk.RegisterCalls())
}

func TestPermission_BrowserTabConflict(t *testing.T) {
	ts := newTestServer(t, memsdk.New())
	id := ts.mount(t, "/")

	rec := ts.do(t, permissionRequest(id, "granted"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPermission_BadPayload(t *testing.T) {
	ts := newTestServer(t, memsdk.New())
	id := ts.mount(t, "/?mode=standalone")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/permission?mount="+id, strings.NewReader("{"))
	req.Header.Set("Origin", origin)
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReward(t *testing.T) {
	ts := newTestServer(t, memsdk.New(memsdk.WithSubscribed(true)))

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/reward", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	id := ts.mount(t, "/?mode=standalone")
	require.Eventually(t, func() bool { return ts.snapshot(t, id).Phase == phase.Unlocked }, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/reward", nil)
	req.AddCookie(&http.Cookie{Name: CookieMount, Value: id})
	rec = ts.do(t, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, rewardURL, rec.Header().Get("Location"))

	ts.srv.SetRewardURL("https://reward.example/next")
	rec = ts.do(t, req.Clone(req.Context()))
	assert.Equal(t, "https://reward.example/next", rec.Header().Get("Location"))
}

func TestUnmount(t *testing.T) {
	ts := newTestServer(t, memsdk.New())
	id := ts.mount(t, "/?mode=standalone")
	require.Equal(t, 1, ts.gates.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/unmount?mount="+id, nil)
	req.Header.Set("Origin", origin)
	rec := ts.do(t, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, ts.gates.Len())

	// Repeated beacons are harmless.
	rec = ts.do(t, req.Clone(req.Context()))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthAndAssets(t *testing.T) {
	ts := newTestServer(t, memsdk.New())

	for _, path := range []string{"/healthz", "/readyz", "/manifest.json", "/static/app.js"} {
		rec := ts.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
