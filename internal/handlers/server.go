// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/database"
	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/spotify"
	"github.com/jmulder/tunequiz/internal/store"
)

// Server bundles everything the HTTP and websocket handlers need.
type Server struct {
	Log     *logrus.Logger
	Coord   *game.Coordinator
	Store   store.Store
	Profile spotify.ProfileProvider
	Catalog spotify.Catalog
	Prefs   *database.Preferences
}

// NewServer wires the handler dependencies together.
func NewServer(log *logrus.Logger, coord *game.Coordinator, st store.Store, profile spotify.ProfileProvider, catalog spotify.Catalog, prefs *database.Preferences) *Server {
	return &Server{
		Log:     log,
		Coord:   coord,
		Store:   st,
		Profile: profile,
		Catalog: catalog,
		Prefs:   prefs,
	}
}

// rejectedReason unwraps a guard rejection for an HTTP error response.
func rejectedReason(err error) (string, bool) {
	if re, ok := game.IsRejected(err); ok {
		return re.Reason, true
	}
	return "", false
}

// bearerToken extracts the provider credential from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
