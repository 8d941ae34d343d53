// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/auth"
	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/middleware"
	"github.com/jmulder/tunequiz/internal/models"
	"github.com/jmulder/tunequiz/internal/store"
)

// intentEnvelope is the wire format for client -> server messages. Type is
// one of the game.Intent values, plus "ping".
type intentEnvelope struct {
	Type string `json:"type"`

	// submit_selection
	Theme  string         `json:"theme,omitempty"`
	Tracks []models.Track `json:"tracks,omitempty"`

	// submit_guess
	Guess *models.Guess `json:"guess,omitempty"`

	// confirm_scores: playerId -> grading
	Scores map[string]wireSheet `json:"scores,omitempty"`

	// update_settings
	Settings *models.Settings `json:"settings,omitempty"`
}

// wireSheet is the JSON shape of one player's grading.
type wireSheet struct {
	TrackAwards  map[string]int `json:"trackAwards"`
	ThemeAwarded bool           `json:"themeAwarded"`
}

// SessionWSHandler upgrades /session/ws/{code} to a websocket. The client
// authenticates with its session credential (query parameter "token"); after
// that it receives a snapshot envelope for every document change and may send
// intent envelopes. Guard rejections are answered to this client only.
func SessionWSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/session/ws/")
		if code == "" || strings.Contains(code, "/") {
			http.Error(w, "missing session code in path (/session/ws/{code})", http.StatusBadRequest)
			return
		}

		playerID, tokenCode, err := auth.VerifySessionToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid session credential", http.StatusUnauthorized)
			return
		}
		if tokenCode != code {
			http.Error(w, "credential was issued for a different session", http.StatusForbidden)
			return
		}

		doc, err := s.Store.Read(r.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
		if doc.PlayerByID(playerID) == nil {
			http.Error(w, "you are not a player in this session", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"tunequiz"},
			OriginPatterns: []string{"*"}, // tighten for production
		})
		if err != nil {
			logger.Warnf("websocket accept failed for session %s: %v", code, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &wsConn{c: c}

		// Every committed change is pushed to this client as a full snapshot.
		unsubscribe, err := s.Store.Subscribe(ctx, code, func(snap *models.Session) {
			conn.send(map[string]any{"type": "snapshot", "session": snap})
		})
		if err != nil {
			logger.Warnf("subscribe failed for session %s: %v", code, err)
			c.Close(websocket.StatusInternalError, "subscription failed")
			return
		}
		defer unsubscribe()

		readErr := s.readIntents(ctx, conn, code, playerID, logger)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readIntents is the per-connection read loop: decode, dispatch, answer.
func (s *Server) readIntents(ctx context.Context, conn *wsConn, code, playerID string, logger *logrus.Logger) error {
	for {
		msgType, data, err := conn.c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var env intentEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			conn.sendError("", "invalid JSON")
			continue
		}

		if env.Type == "ping" {
			conn.send(map[string]string{"type": "pong"})
			continue
		}

		logger.WithFields(logrus.Fields{
			"session": code,
			"player":  playerID,
			"intent":  env.Type,
		}).Debug("intent received")

		if err := s.dispatch(ctx, code, playerID, env); err != nil {
			// A rejected guard touches nothing; only the issuer hears of it.
			if re, ok := game.IsRejected(err); ok {
				conn.sendError(env.Type, re.Reason)
				continue
			}
			logger.Warnf("session %s: intent %s from %s failed: %v", code, env.Type, playerID, err)
			conn.sendError(env.Type, "temporary failure, try again")
		}
	}
}

func (s *Server) dispatch(ctx context.Context, code, playerID string, env intentEnvelope) error {
	switch game.Intent(env.Type) {
	case game.IntentStart:
		return s.Coord.Start(ctx, code, playerID)
	case game.IntentSubmitSelection:
		return s.Coord.SubmitSelection(ctx, code, playerID, env.Theme, env.Tracks)
	case game.IntentSubmitGuess:
		if env.Guess == nil {
			return &game.RejectedIntentError{Intent: game.IntentSubmitGuess, Reason: "missing guess payload"}
		}
		return s.Coord.SubmitGuess(ctx, code, playerID, *env.Guess)
	case game.IntentSelectorFinish:
		return s.Coord.SelectorFinish(ctx, code, playerID)
	case game.IntentConfirmScores:
		sheet, err := decodeScoresheet(env.Scores)
		if err != nil {
			return &game.RejectedIntentError{Intent: game.IntentConfirmScores, Reason: err.Error()}
		}
		return s.Coord.ConfirmScores(ctx, code, playerID, sheet)
	case game.IntentAdvance:
		return s.Coord.Advance(ctx, code, playerID)
	case game.IntentUpdateSettings:
		if env.Settings == nil {
			return &game.RejectedIntentError{Intent: game.IntentUpdateSettings, Reason: "missing settings payload"}
		}
		return s.Coord.UpdateSettings(ctx, code, playerID, *env.Settings)
	default:
		return &game.RejectedIntentError{Intent: game.Intent(env.Type), Reason: "unknown intent type"}
	}
}

func decodeScoresheet(wire map[string]wireSheet) (game.Scoresheet, error) {
	sheet := make(game.Scoresheet, len(wire))
	for playerID, ws := range wire {
		ps := game.PlayerSheet{
			TrackAwards:  make(map[string]game.TrackAward, len(ws.TrackAwards)),
			ThemeAwarded: ws.ThemeAwarded,
		}
		for trackID, award := range ws.TrackAwards {
			if award < int(game.AwardNone) || award > int(game.AwardFull) {
				return nil, fmt.Errorf("award for track %s out of range: %d", trackID, award)
			}
			ps.TrackAwards[trackID] = game.TrackAward(award)
		}
		sheet[playerID] = ps
	}
	return sheet, nil
}

// wsConn serializes writes to one websocket client.
type wsConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (w *wsConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) sendError(intent, msg string) {
	w.send(map[string]string{"type": "error", "intent": intent, "message": msg})
}
