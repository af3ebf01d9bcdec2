// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package push wraps a third-party push provider behind a boolean-status
// contract: initialize once, ask whether the user is subscribed, and request
// permission plus registration. No operation returns an error to its caller.
package push

import "context"

// SDK is the capability surface the push provider must offer.
type SDK interface {
	// Init starts provider setup for appID. It may return before the
	// provider is usable; Ready reports when it is.
	Init(ctx context.Context, appID string, opts Options) error
	// Ready reports whether the provider has a live instance.
	Ready(ctx context.Context) bool
	// IsPushNotificationsEnabled reports the current subscription.
	IsPushNotificationsEnabled(ctx context.Context) (bool, error)
	// RegisterForPushNotifications subscribes the current user.
	RegisterForPushNotifications(ctx context.Context) error
}

// Options are passed to the provider on setup.
type Options struct {
	// AllowLocalhostAsSecureOrigin lets development builds run over plain
	// http://localhost.
	AllowLocalhostAsSecureOrigin bool `yaml:"allowLocalhostAsSecureOrigin"`
	// NotifyButtonEnabled toggles the provider's floating bell widget.
	NotifyButtonEnabled bool `yaml:"notifyButtonEnabled"`
	// SlidedownPromptEnabled toggles the provider's own permission prompt.
	SlidedownPromptEnabled bool `yaml:"slidedownPromptEnabled"`
}

// DefaultOptions suppresses the provider's built-in UI; the permission view
// supplies its own prompt.
func DefaultOptions() Options {
	return Options{
		AllowLocalhostAsSecureOrigin: true,
		NotifyButtonEnabled:          false,
		SlidedownPromptEnabled:       false,
	}
}
