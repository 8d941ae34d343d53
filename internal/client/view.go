// internal/client/view.go
package client

import (
	"sort"

	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/models"
)

// Screen is what the local device should be rendering. There is deliberately
// more of these than there are phases: "selecting but not my turn" is a
// distinct screen even though the document has no phase value for it.
type Screen string

const (
	ScreenLobby          Screen = "lobby"
	ScreenSelection      Screen = "selection"
	ScreenAwaitSelection Screen = "await_selection"
	ScreenGameplay       Screen = "gameplay"
	ScreenScoring        Screen = "scoring"
	ScreenAwaitScoring   Screen = "await_scoring"
	ScreenResults        Screen = "results"
	ScreenGameOver       Screen = "game_over"
)

// View is everything a renderer needs, derived from one snapshot and the
// local identity. It carries no behavior and holds no references into shared
// state.
type View struct {
	Screen      Screen
	RoundNumber int
	TotalRounds int

	IsHost     bool
	IsSelector bool
	Score      int

	// Round is the active round, nil outside round-scoped phases.
	Round *models.Round

	// SubmittedPlayers lists the ids of players whose guesses are in, so the
	// selector can see who is still thinking.
	SubmittedPlayers []string

	// Scoreboard is the player list in join order.
	Scoreboard []models.Player
}

// DeriveView is the pure projection (document, local identity) -> display
// state, re-evaluated on every snapshot. It must stay side-effect-free.
func DeriveView(doc *models.Session, playerID string) View {
	v := View{
		RoundNumber: doc.CurrentRound,
		TotalRounds: doc.TotalRounds,
		Scoreboard:  append([]models.Player(nil), doc.Players...),
	}
	if me := doc.PlayerByID(playerID); me != nil {
		v.IsHost = me.IsHost
		v.Score = me.Score
	}
	v.Round = doc.ActiveRound

	switch doc.Phase {
	case models.PhaseWaiting:
		v.Screen = ScreenLobby
	case models.PhaseSelecting:
		sel := game.DesignatedSelector(doc)
		if sel != nil && sel.ID == playerID {
			v.IsSelector = true
			v.Screen = ScreenSelection
		} else {
			v.Screen = ScreenAwaitSelection
		}
	case models.PhasePlaying:
		v.IsSelector = doc.IsSelector(playerID)
		v.Screen = ScreenGameplay
		if doc.ActiveRound != nil {
			for id := range doc.ActiveRound.Guesses {
				v.SubmittedPlayers = append(v.SubmittedPlayers, id)
			}
			// Map order is random; keep the list stable between snapshots.
			sort.Strings(v.SubmittedPlayers)
		}
	case models.PhaseScoring:
		v.IsSelector = doc.IsSelector(playerID)
		if v.IsSelector || v.IsHost {
			v.Screen = ScreenScoring
		} else {
			v.Screen = ScreenAwaitScoring
		}
	case models.PhaseResults:
		v.IsSelector = doc.IsSelector(playerID)
		v.Screen = ScreenResults
	case models.PhaseGameOver:
		v.Screen = ScreenGameOver
	default:
		v.Screen = ScreenLobby
	}
	return v
}
