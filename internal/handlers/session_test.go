// internal/handlers/session_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmulder/tunequiz/internal/auth"
	"github.com/jmulder/tunequiz/internal/database"
	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/models"
	"github.com/jmulder/tunequiz/internal/spotify"
	"github.com/jmulder/tunequiz/internal/store"
)

func TestMain(m *testing.M) {
	auth.Init()
	os.Exit(m.Run())
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fixedProfile resolves every credential to the same identity, unlike the
// demo provider which mints a fresh one per call.
type fixedProfile struct {
	profile spotify.Profile
	err     error
}

func (f *fixedProfile) Me(ctx context.Context, token string) (spotify.Profile, error) {
	if f.err != nil {
		return spotify.Profile{}, f.err
	}
	return f.profile, nil
}

func setupServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	log := testLogger()
	coord := game.NewCoordinator(st, log)
	mock := spotify.NewMock(log)
	srv := NewServer(log, coord, st,
		&fixedProfile{profile: spotify.Profile{ID: "p1", DisplayName: "Alice"}},
		mock,
		database.NewPreferences(nil),
	)
	return srv, st
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateSessionHandler(t *testing.T) {
	srv, st := setupServer(t)

	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Code, 6)
	assert.Equal(t, "p1", resp.PlayerID)
	require.NotNil(t, resp.Session)
	assert.Equal(t, models.PhaseWaiting, resp.Session.Phase)
	assert.Equal(t, models.DefaultSettings(), resp.Session.Settings, "no stored prefs means defaults")

	playerID, sessionCode, err := auth.VerifySessionToken(resp.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, "p1", playerID)
	assert.Equal(t, resp.Code, sessionCode)

	stored, err := st.Read(context.Background(), resp.Code)
	require.NoError(t, err)
	assert.Equal(t, "p1", stored.Host().ID)
}

func TestCreateSessionHandlerWithSettings(t *testing.T) {
	srv, _ := setupServer(t)

	custom := models.DefaultSettings()
	custom.RoundCount = 5
	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok",
		map[string]any{"settings": custom})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Session.TotalRounds)
}

func TestCreateSessionHandlerRejectsBadSettings(t *testing.T) {
	srv, _ := setupServer(t)
	bad := models.DefaultSettings()
	bad.RoundCount = 0
	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok",
		map[string]any{"settings": bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionHandlerAuth(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing bearer")

	srv.Profile = &fixedProfile{err: spotify.ErrCredentialExpired}
	rec = doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "stale", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired credential forces re-login")

	rec = doJSON(t, srv.CreateSessionHandler, http.MethodGet, "/session/create", "tok", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateSessionHandlerRejectsDottedAccountID(t *testing.T) {
	srv, _ := setupServer(t)
	srv.Profile = &fixedProfile{profile: spotify.Profile{ID: "user.name", DisplayName: "Dot"}}
	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinSessionHandler(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Second identity joins.
	srv.Profile = &fixedProfile{profile: spotify.Profile{ID: "p2", DisplayName: "Bob"}}
	rec = doJSON(t, srv.JoinSessionHandler, http.MethodPost, "/session/join", "tok2",
		map[string]string{"code": created.Code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var joined sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	assert.Equal(t, "p2", joined.PlayerID)
	require.Len(t, joined.Session.Players, 2)
	assert.False(t, joined.Session.Players[1].IsHost)
}

func TestJoinSessionHandlerUnknownCode(t *testing.T) {
	srv, _ := setupServer(t)
	rec := doJSON(t, srv.JoinSessionHandler, http.MethodPost, "/session/join", "tok",
		map[string]string{"code": "NOPE99"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinSessionHandlerFinishedSession(t *testing.T) {
	srv, st := setupServer(t)

	rec := doJSON(t, srv.CreateSessionHandler, http.MethodPost, "/session/create", "tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	require.NoError(t, st.Update(context.Background(), created.Code,
		map[string]any{"phase": models.PhaseGameOver}))

	srv.Profile = &fixedProfile{profile: spotify.Profile{ID: "p2"}}
	rec = doJSON(t, srv.JoinSessionHandler, http.MethodPost, "/session/join", "tok2",
		map[string]string{"code": created.Code})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestJoinSessionHandlerMissingCode(t *testing.T) {
	srv, _ := setupServer(t)
	rec := doJSON(t, srv.JoinSessionHandler, http.MethodPost, "/session/join", "tok",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler(t *testing.T) {
	srv, _ := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/catalog/search?q=queen", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	srv.SearchHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tracks []models.Track `json:"tracks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, "Bohemian Rhapsody", resp.Tracks[0].Title)
}

func TestSearchHandlerRequiresCredential(t *testing.T) {
	srv, _ := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/catalog/search?q=queen", nil)
	rec := httptest.NewRecorder()
	srv.SearchHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDecodeScoresheet(t *testing.T) {
	sheet, err := decodeScoresheet(map[string]wireSheet{
		"p2": {TrackAwards: map[string]int{"t1": 2, "t2": 0}, ThemeAwarded: true},
	})
	require.NoError(t, err)
	assert.Equal(t, game.AwardFull, sheet["p2"].TrackAwards["t1"])
	assert.True(t, sheet["p2"].ThemeAwarded)
	assert.Equal(t, 2+game.ThemeBonus, sheet["p2"].Total())

	_, err = decodeScoresheet(map[string]wireSheet{
		"p2": {TrackAwards: map[string]int{"t1": 3}},
	})
	assert.Error(t, err, "award above 2 is invalid")

	_, err = decodeScoresheet(map[string]wireSheet{
		"p2": {TrackAwards: map[string]int{"t1": -1}},
	})
	assert.Error(t, err)
}
