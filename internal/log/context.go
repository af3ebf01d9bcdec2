// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package log configures the process-wide zerolog logger and carries the
// request and mount correlation IDs through contexts.
package log

import (
	"context"

	"github.com/rs/zerolog"
)

type (
	requestIDKey struct{}
	mountIDKey   struct{}
)

// ContextWithRequestID stores the request ID in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(orBackground(ctx), requestIDKey{}, id)
}

// ContextWithMountID stores the mount ID in ctx. Handlers set it once the
// page's mount is resolved so gate and push logs can be joined to requests.
func ContextWithMountID(ctx context.Context, id string) context.Context {
	return context.WithValue(orBackground(ctx), mountIDKey{}, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return valueFrom[requestIDKey](ctx)
}

// MountIDFromContext returns the mount ID, or "".
func MountIDFromContext(ctx context.Context) string {
	return valueFrom[mountIDKey](ctx)
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func valueFrom[K requestIDKey | mountIDKey](ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	var key K
	v, _ := ctx.Value(key).(string)
	return v
}

// WithContext adds the correlation IDs found in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rid, mid := RequestIDFromContext(ctx), MountIDFromContext(ctx)
	if rid == "" && mid == "" {
		return logger
	}
	b := logger.With()
	if rid != "" {
		b = b.Str(FieldRequestID, rid)
	}
	if mid != "" {
		b = b.Str(FieldMountID, mid)
	}
	return b.Logger()
}

// WithComponentFromContext is WithComponent plus the correlation IDs in ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
