// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package view renders the phase pages, the web app manifest and the page
// script from embedded assets.
package view

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed all:static
var staticFS embed.FS

const (
	// MessagePermissionRequired is shown when the user declined or the
	// provider still reports no subscription after registering.
	MessagePermissionRequired = "通知を許可していただく必要があります。設定から通知を有効にしてください。"
	// MessageRetry is shown for provider failures.
	MessageRetry = "通知の許可に失敗しました。もう一度お試しください。"
)

// PermissionMessage returns the alert text for a permission outcome, or ""
// when the user ended up subscribed.
func PermissionMessage(o push.Outcome) string {
	switch o {
	case push.OutcomeGranted, push.OutcomeCancelled:
		return ""
	case push.OutcomeDenied, push.OutcomeNotSubscribed:
		return MessagePermissionRequired
	default:
		return MessageRetry
	}
}

// Config holds branding and the browser-side push SDK settings.
type Config struct {
	AppName         string
	ShortName       string
	Description     string
	ThemeColor      string
	BackgroundColor string
	// PushAppID and ExternalID are handed to the browser SDK so the
	// subscription it creates is attributed to this daemon's identity.
	PushAppID    string
	ExternalID   string
	PushOptions  push.Options
	SDKScriptURL string
}

// DefaultConfig returns the stock branding.
func DefaultConfig() Config {
	return Config{
		AppName:         "Free Session App",
		ShortName:       "Free Session",
		Description:     "通知を受け取って特典をアンロック",
		ThemeColor:      "#000000",
		BackgroundColor: "#ffffff",
		PushOptions:     push.DefaultOptions(),
		SDKScriptURL:    "https://cdn.onesignal.com/sdks/web/v16/OneSignalSDK.page.js",
	}
}

// Page is the template data for one render.
type Page struct {
	Config
	Snapshot gate.Snapshot
	Message  string
	IOS      bool
	Android  bool
}

// PermissionRequiredMessage exposes MessagePermissionRequired to the page
// script.
func (Page) PermissionRequiredMessage() string { return MessagePermissionRequired }

// RetryMessage exposes MessageRetry to the page script.
func (Page) RetryMessage() string { return MessageRetry }

// Renderer executes the embedded templates.
type Renderer struct {
	cfg      Config
	tmpl     *template.Template
	manifest []byte
}

// New parses the embedded templates and prepares the manifest.
func New(cfg Config) (*Renderer, error) {
	def := DefaultConfig()
	if cfg.AppName == "" {
		cfg.AppName = def.AppName
	}
	if cfg.ShortName == "" {
		cfg.ShortName = def.ShortName
	}
	if cfg.Description == "" {
		cfg.Description = def.Description
	}
	if cfg.ThemeColor == "" {
		cfg.ThemeColor = def.ThemeColor
	}
	if cfg.BackgroundColor == "" {
		cfg.BackgroundColor = def.BackgroundColor
	}
	if cfg.SDKScriptURL == "" {
		cfg.SDKScriptURL = def.SDKScriptURL
	}

	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	manifest, err := buildManifest(cfg)
	if err != nil {
		return nil, err
	}
	return &Renderer{cfg: cfg, tmpl: tmpl, manifest: manifest}, nil
}

// Render writes the page for snap. message is an optional alert shown on the
// permission step.
func (r *Renderer) Render(w io.Writer, snap gate.Snapshot, message string) error {
	page := Page{
		Config:   r.cfg,
		Snapshot: snap,
		Message:  message,
		IOS:      snap.OS == platform.OSiOS,
		Android:  snap.OS == platform.OSAndroid,
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "layout.html", page); err != nil {
		return fmt.Errorf("render %s: %w", snap.Phase, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

type manifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

type manifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	Orientation     string         `json:"orientation"`
	ThemeColor      string         `json:"theme_color"`
	BackgroundColor string         `json:"background_color"`
	Icons           []manifestIcon `json:"icons"`
}

func buildManifest(cfg Config) ([]byte, error) {
	m := manifest{
		Name:            cfg.AppName,
		ShortName:       cfg.ShortName,
		Description:     cfg.Description,
		StartURL:        "/?" + platform.QueryMode + "=" + platform.ModeStandalone,
		Scope:           "/",
		Display:         "standalone",
		Orientation:     "portrait",
		ThemeColor:      cfg.ThemeColor,
		BackgroundColor: cfg.BackgroundColor,
		Icons: []manifestIcon{
			{Src: "/static/icon.svg", Sizes: "any", Type: "image/svg+xml", Purpose: "any maskable"},
		},
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

// ManifestHandler serves /manifest.json.
func (r *Renderer) ManifestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/manifest+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(r.manifest)
	})
}

// StaticHandler serves the embedded page script and icons. Mount it with the
// "/static" prefix stripped.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	var fileServer http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "static assets not available", http.StatusInternalServerError)
	})
	if err == nil {
		fileServer = http.FileServer(http.FS(sub))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The script is not content-hashed, so it must revalidate.
		if strings.HasSuffix(r.URL.Path, ".js") {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=86400")
		}
		fileServer.ServeHTTP(w, r)
	})
}
