// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/freesession/internal/gate"
	"github.com/ManuGH/freesession/internal/log"
	"github.com/ManuGH/freesession/internal/metrics"
	"github.com/ManuGH/freesession/internal/phase"
	"github.com/ManuGH/freesession/internal/platform"
	"github.com/ManuGH/freesession/internal/push"
	"github.com/ManuGH/freesession/internal/view"
)

const maxBodyBytes = 1 << 10

// PermissionRequest is the body of POST /api/v1/permission: the permission
// the browser reported after its own native prompt.
type PermissionRequest struct {
	Permission string `json:"permission"`
}

// PermissionResponse reports the outcome and the phase it led to.
type PermissionResponse struct {
	Granted bool         `json:"granted"`
	Outcome push.Outcome `json:"outcome"`
	Phase   phase.Phase  `json:"phase"`
	Message string       `json:"message,omitempty"`
}

func mountID(r *http.Request) string {
	if id := r.URL.Query().Get("mount"); id != "" {
		return id
	}
	if c, err := r.Cookie(CookieMount); err == nil {
		return c.Value
	}
	return ""
}

// handleIndex mounts a page. Each load is a new mount with its own
// launch-mode decision.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	signals := platform.SignalsFromRequest(r)
	g, err := s.gates.Mount(r.Context(), signals, platform.DetectOS(r.UserAgent()))
	if err != nil {
		writeGateError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieMount,
		Value:    g.ID(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.view.Render(w, g.Snapshot(), ""); err != nil {
		s.logger.Error().Err(err).
			Str(log.FieldEvent, "api.render_failed").
			Str(log.FieldMountID, g.ID()).
			Msg("render failed")
	}
}

func (s *Server) handlePhase(w http.ResponseWriter, r *http.Request) {
	g, err := s.gates.Touch(mountID(r))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, r, http.StatusBadRequest, CodeBadRequest, "invalid permission payload")
		return
	}

	id := mountID(r)
	outcome, err := s.gates.RequestPermission(r.Context(), id, platform.ParsePermissionState(req.Permission))
	if err != nil {
		writeGateError(w, r, err)
		return
	}
	g, err := s.gates.Lookup(id)
	if err != nil {
		writeGateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PermissionResponse{
		Granted: outcome.Granted(),
		Outcome: outcome,
		Phase:   g.Phase(),
		Message: view.PermissionMessage(outcome),
	})
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	if err := s.gates.Unmount(mountID(r)); err != nil && !errors.Is(err, gate.ErrUnknownMount) {
		writeGateError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReward forwards unlocked mounts to the reward page. Anything else is
// sent back to the gate.
func (s *Server) handleReward(w http.ResponseWriter, r *http.Request) {
	g, err := s.gates.Touch(mountID(r))
	if err != nil || g.Phase() != phase.Unlocked {
		metrics.IncRewardRedirect("locked")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	metrics.IncRewardRedirect("redirected")
	s.logger.Info().
		Str(log.FieldEvent, "reward.redirected").
		Str(log.FieldMountID, g.ID()).
		Msg("reward opened")
	http.Redirect(w, r, *s.rewardURL.Load(), http.StatusSeeOther)
}
