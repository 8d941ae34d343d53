// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jmulder/tunequiz/internal/auth"
	"github.com/jmulder/tunequiz/internal/models"
	"github.com/jmulder/tunequiz/internal/spotify"
	"github.com/jmulder/tunequiz/internal/store"
)

// sessionResponse is returned from create and join: the credential is what
// the client presents when opening the session websocket.
type sessionResponse struct {
	Code         string          `json:"code"`
	PlayerID     string          `json:"playerId"`
	SessionToken string          `json:"sessionToken"`
	Session      *models.Session `json:"session"`
}

// CreateSessionHandler handles POST /session/create. The caller's provider
// credential resolves to the host identity; stored host preferences seed the
// settings unless the request carries explicit ones.
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	profile, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Settings *models.Settings `json:"settings,omitempty"`
	}
	if r.Body != nil {
		// An empty body is fine; settings are optional.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	settings, err := s.Prefs.Load(r.Context(), profile.ID)
	if err != nil {
		s.Log.Warnf("preferences load failed for %s, using defaults: %v", profile.ID, err)
	}
	if body.Settings != nil {
		if err := body.Settings.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		settings = *body.Settings
		// Editing preferences at create time persists them as the new default.
		if err := s.Prefs.Save(r.Context(), profile.ID, settings); err != nil {
			s.Log.Warnf("preferences save failed for %s: %v", profile.ID, err)
		}
	}

	host := models.Player{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}
	doc, err := s.Coord.CreateSession(r.Context(), host, settings)
	if err != nil {
		s.Log.Errorf("create session: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	token, err := auth.CreateSessionToken(profile.ID, doc.Code)
	if err != nil {
		s.Log.Errorf("mint session token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not issue session credential")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Code:         doc.Code,
		PlayerID:     profile.ID,
		SessionToken: token,
		Session:      doc,
	})
}

// JoinSessionHandler handles POST /session/join with body {"code": "..."}.
func (s *Server) JoinSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	profile, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, "missing session code")
		return
	}

	player := models.Player{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}
	doc, err := s.Coord.Join(r.Context(), body.Code, player)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found, check the code")
		return
	}
	if err != nil {
		if re, rejected := rejectedReason(err); rejected {
			writeError(w, http.StatusConflict, re)
			return
		}
		s.Log.Errorf("join session %s: %v", body.Code, err)
		writeError(w, http.StatusServiceUnavailable, "could not join session")
		return
	}

	token, err := auth.CreateSessionToken(profile.ID, doc.Code)
	if err != nil {
		s.Log.Errorf("mint session token: %v", err)
		writeError(w, http.StatusInternalServerError, "could not issue session credential")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Code:         doc.Code,
		PlayerID:     profile.ID,
		SessionToken: token,
		Session:      doc,
	})
}

// SearchHandler handles GET /catalog/search?q=...&limit=N against the track
// catalog. Provider hiccups are reported as retryable, not fatal.
func (s *Server) SearchHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer credential")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	tracks, err := s.Catalog.SearchTracks(r.Context(), token, r.URL.Query().Get("q"), limit)
	if errors.Is(err, spotify.ErrCredentialExpired) {
		writeError(w, http.StatusUnauthorized, "credential expired, log in again")
		return
	}
	var se *spotify.SearchError
	if errors.As(err, &se) {
		writeError(w, http.StatusServiceUnavailable, "catalog temporarily unavailable, try again")
		return
	}
	if err != nil {
		s.Log.Errorf("catalog search: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

// resolveProfile authenticates the provider credential on the request. An
// expired credential always surfaces as 401 so the client forces a fresh
// login rather than retrying.
func (s *Server) resolveProfile(w http.ResponseWriter, r *http.Request) (spotify.Profile, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer credential")
		return spotify.Profile{}, false
	}
	profile, err := s.Profile.Me(r.Context(), token)
	if errors.Is(err, spotify.ErrCredentialExpired) {
		writeError(w, http.StatusUnauthorized, "credential expired, log in again")
		return spotify.Profile{}, false
	}
	if err != nil {
		s.Log.Warnf("profile lookup failed: %v", err)
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
		return spotify.Profile{}, false
	}
	if !models.ValidPlayerID(profile.ID) {
		s.Log.Warnf("provider returned unusable player id %q", profile.ID)
		writeError(w, http.StatusBadRequest, "provider account id cannot be used in a session")
		return spotify.Profile{}, false
	}
	return profile, true
}
