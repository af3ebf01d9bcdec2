// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package platform models the browser-side signals the gate depends on:
// display mode, the iOS home-screen flag, the launch referrer, the device OS
// and the native notification-permission primitive.
package platform

import (
	"context"
	"strings"
	"sync"
)

// Signals are the read-only platform observations taken when a page mounts.
type Signals struct {
	// DisplayModeStandalone mirrors matchMedia("(display-mode: standalone)").
	DisplayModeStandalone bool
	// NavigatorStandalone mirrors the iOS-only navigator.standalone flag.
	NavigatorStandalone bool
	// Referrer is the document referrer at launch.
	Referrer string
}

// OS is the coarse device family used to pick install instructions.
type OS string

const (
	OSiOS     OS = "ios"
	OSAndroid OS = "android"
	OSOther   OS = "other"
)

// PermissionState mirrors the browser Notification.permission value.
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// ParsePermissionState maps a browser-reported string onto a PermissionState.
// Anything unrecognised is treated as undecided.
func ParsePermissionState(s string) PermissionState {
	switch PermissionState(strings.ToLower(strings.TrimSpace(s))) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

// Decided reports whether the user already answered the native prompt.
// Decided states are never re-prompted.
func (p PermissionState) Decided() bool {
	return p == PermissionGranted || p == PermissionDenied
}

// Permission is the native notification-permission primitive.
type Permission interface {
	// State returns the current permission without prompting.
	State() PermissionState
	// Request prompts the user and returns the resulting state.
	Request(ctx context.Context) (PermissionState, error)
}

// ReportedPermission is a Permission backed by the value the browser last
// reported. The prompt itself runs in the browser, so Request returns the
// answer that was reported alongside the permission request.
type ReportedPermission struct {
	mu    sync.RWMutex
	state PermissionState
}

// NewReportedPermission returns a ReportedPermission in the undecided state.
func NewReportedPermission() *ReportedPermission {
	return &ReportedPermission{state: PermissionDefault}
}

// Report records the browser-side permission value.
func (p *ReportedPermission) Report(state PermissionState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// State implements Permission.
func (p *ReportedPermission) State() PermissionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Request implements Permission.
func (p *ReportedPermission) Request(ctx context.Context) (PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDefault, err
	}
	return p.State(), nil
}
