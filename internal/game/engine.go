// internal/game/engine.go
package game

import (
	"strings"

	"github.com/jmulder/tunequiz/internal/models"
)

// The transition functions below are the phase transition engine: each one
// validates an intent's guard against a session snapshot and, if the guard
// holds, compiles the transition into a single field map for one atomic store
// update. A guard failure returns *RejectedIntentError and no fields, so a
// rejected intent can never mutate the document. Only the fields a transition
// is specified to touch ever appear in the map.

// DesignatedSelector returns the player who is expected to submit the next
// selection. The role is pre-assigned to the current host; it becomes the
// round's SelectorID once the selection commits.
func DesignatedSelector(s *models.Session) *models.Player {
	return s.Host()
}

// Start handles waiting -> selecting. Host only; at least one player present.
func Start(s *models.Session, issuerID string) (map[string]any, error) {
	if s.Phase != models.PhaseWaiting {
		return nil, reject(IntentStart, "session is in phase %s, not %s", s.Phase, models.PhaseWaiting)
	}
	if len(s.Players) < 1 {
		return nil, reject(IntentStart, "no players in session")
	}
	issuer := s.PlayerByID(issuerID)
	if issuer == nil || !issuer.IsHost {
		return nil, reject(IntentStart, "only the host may start the game")
	}
	return map[string]any{
		"phase": models.PhaseSelecting,
	}, nil
}

// SubmitSelection handles selecting -> playing. The designated selector hands
// in a theme and exactly five tracks; the round and the phase change commit
// together, so no observer can ever see phase=playing without a round.
func SubmitSelection(s *models.Session, issuerID, theme string, tracks []models.Track) (map[string]any, error) {
	if s.Phase != models.PhaseSelecting {
		return nil, reject(IntentSubmitSelection, "session is in phase %s, not %s", s.Phase, models.PhaseSelecting)
	}
	selector := DesignatedSelector(s)
	if selector == nil || selector.ID != issuerID {
		return nil, reject(IntentSubmitSelection, "player %s is not this round's selector", issuerID)
	}
	theme = strings.TrimSpace(theme)
	if len(theme) < models.MinThemeLength {
		return nil, reject(IntentSubmitSelection, "theme must be at least %d characters", models.MinThemeLength)
	}
	if len(tracks) != models.TracksPerRound {
		return nil, reject(IntentSubmitSelection, "selection needs exactly %d tracks, got %d", models.TracksPerRound, len(tracks))
	}
	seen := make(map[string]bool, len(tracks))
	for _, tr := range tracks {
		if tr.ID == "" {
			return nil, reject(IntentSubmitSelection, "track without id in selection")
		}
		if seen[tr.ID] {
			return nil, reject(IntentSubmitSelection, "duplicate track %s in selection", tr.ID)
		}
		seen[tr.ID] = true
	}

	round := &models.Round{
		SelectorID: issuerID,
		Theme:      theme,
		Tracks:     append([]models.Track(nil), tracks...),
		Guesses:    map[string]models.Guess{},
	}
	return map[string]any{
		"activeRound": round,
		"phase":       models.PhasePlaying,
	}, nil
}

// SubmitGuess stores one player's answers for the active round. The write is
// scoped to the player's own key under activeRound.guesses, so any number of
// players submitting concurrently produce independent, commuting writes.
// Resubmission overwrites the previous entry; whether answers are still open
// is the submitting client's call (timers are advisory, there is no
// authoritative clock).
func SubmitGuess(s *models.Session, issuerID string, guess models.Guess) (map[string]any, error) {
	if s.Phase != models.PhasePlaying {
		return nil, reject(IntentSubmitGuess, "guesses are only accepted in phase %s", models.PhasePlaying)
	}
	if s.PlayerByID(issuerID) == nil {
		return nil, reject(IntentSubmitGuess, "player %s is not in this session", issuerID)
	}
	if s.IsSelector(issuerID) {
		return nil, reject(IntentSubmitGuess, "the selector cannot guess its own round")
	}
	// Points are assigned by the scorer, never by the guesser.
	guess.AwardedPoints = nil

	return map[string]any{
		"activeRound.guesses." + issuerID: guess,
	}, nil
}

// SelectorFinish handles playing -> scoring. The selector closes the guessing
// window; the host may do it as a fallback.
func SelectorFinish(s *models.Session, issuerID string) (map[string]any, error) {
	if s.Phase != models.PhasePlaying {
		return nil, reject(IntentSelectorFinish, "session is in phase %s, not %s", s.Phase, models.PhasePlaying)
	}
	issuer := s.PlayerByID(issuerID)
	if issuer == nil {
		return nil, reject(IntentSelectorFinish, "player %s is not in this session", issuerID)
	}
	if !s.IsSelector(issuerID) && !issuer.IsHost {
		return nil, reject(IntentSelectorFinish, "only the selector or the host may finish the round")
	}
	return map[string]any{
		"phase": models.PhaseScoring,
	}, nil
}

// ConfirmScores handles scoring -> results. The authorized scorer (selector,
// or host as fallback) commits the final scoresheet: every non-selector
// player's cumulative score grows by its round total, the awarded points are
// recorded on the guesses, and the phase flips, all in one atomic update.
// The selector's own score is untouched.
func ConfirmScores(s *models.Session, issuerID string, sheet Scoresheet) (map[string]any, error) {
	if s.Phase != models.PhaseScoring {
		return nil, reject(IntentConfirmScores, "session is in phase %s, not %s", s.Phase, models.PhaseScoring)
	}
	round := s.ActiveRound
	if round == nil {
		return nil, reject(IntentConfirmScores, "no active round to score")
	}
	issuer := s.PlayerByID(issuerID)
	if issuer == nil {
		return nil, reject(IntentConfirmScores, "player %s is not in this session", issuerID)
	}
	if issuerID != round.SelectorID && !issuer.IsHost {
		return nil, reject(IntentConfirmScores, "only the selector or the host may confirm scores")
	}
	if _, ok := sheet[round.SelectorID]; ok {
		return nil, reject(IntentConfirmScores, "the selector cannot be scored")
	}
	for id, ps := range sheet {
		if s.PlayerByID(id) == nil {
			return nil, reject(IntentConfirmScores, "scoresheet names unknown player %s", id)
		}
		if ps.Total() < 0 {
			return nil, reject(IntentConfirmScores, "negative round total for player %s", id)
		}
	}

	updated := append([]models.Player(nil), s.Players...)
	fields := map[string]any{
		"phase": models.PhaseResults,
	}
	for i := range updated {
		p := &updated[i]
		if p.ID == round.SelectorID {
			continue
		}
		ps, ok := sheet[p.ID]
		if !ok {
			continue
		}
		total := ps.Total()
		p.Score += total
		if _, guessed := round.Guesses[p.ID]; guessed {
			fields["activeRound.guesses."+p.ID+".awardedPoints"] = total
		}
	}
	fields["players"] = updated
	return fields, nil
}

// Advance handles results -> selecting (host rotation) or results ->
// game_over when the final round just completed. Host only. On rotation the
// host flag moves to the next player in join order, the active round is
// cleared and the round counter increments in one atomic write. A solo session
// rotates the host onto itself. On game over nothing rotates and the counter
// stays put; the session is terminal from then on.
func Advance(s *models.Session, issuerID string) (map[string]any, error) {
	if s.Phase != models.PhaseResults {
		return nil, reject(IntentAdvance, "session is in phase %s, not %s", s.Phase, models.PhaseResults)
	}
	issuer := s.PlayerByID(issuerID)
	if issuer == nil || !issuer.IsHost {
		return nil, reject(IntentAdvance, "only the host may advance the round")
	}

	if s.CurrentRound == s.TotalRounds {
		return map[string]any{
			"phase":       models.PhaseGameOver,
			"activeRound": nil,
		}, nil
	}

	hostIdx := s.HostIndex()
	if hostIdx < 0 {
		hostIdx = 0
	}
	nextIdx := (hostIdx + 1) % len(s.Players)

	rotated := append([]models.Player(nil), s.Players...)
	for i := range rotated {
		rotated[i].IsHost = i == nextIdx
	}
	return map[string]any{
		"players":      rotated,
		"activeRound":  nil,
		"currentRound": s.CurrentRound + 1,
		"phase":        models.PhaseSelecting,
	}, nil
}

// Join appends a new player. Joining an already-joined session is a no-op
// (the empty field map commits nothing); joining a finished session is
// rejected.
func Join(s *models.Session, p models.Player) (map[string]any, error) {
	if s.Phase.Terminal() {
		return nil, reject(IntentJoin, "session %s is over", s.Code)
	}
	if !models.ValidPlayerID(p.ID) {
		return nil, reject(IntentJoin, "player id %q cannot be used as a document key", p.ID)
	}
	if s.PlayerByID(p.ID) != nil {
		return map[string]any{}, nil
	}
	p.IsHost = false
	p.Score = 0
	return map[string]any{
		"players": append(append([]models.Player(nil), s.Players...), p),
	}, nil
}

// UpdateSettings lets the host edit settings while the session is still in
// the waiting phase. TotalRounds tracks the round count until the game
// starts; afterwards settings are frozen.
func UpdateSettings(s *models.Session, issuerID string, settings models.Settings) (map[string]any, error) {
	if s.Phase != models.PhaseWaiting {
		return nil, reject(IntentUpdateSettings, "settings are frozen once the game has started")
	}
	issuer := s.PlayerByID(issuerID)
	if issuer == nil || !issuer.IsHost {
		return nil, reject(IntentUpdateSettings, "only the host may change settings")
	}
	if err := settings.Validate(); err != nil {
		return nil, reject(IntentUpdateSettings, "invalid settings: %v", err)
	}
	return map[string]any{
		"settings":    settings,
		"totalRounds": settings.RoundCount,
	}, nil
}
