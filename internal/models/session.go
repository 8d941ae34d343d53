// internal/models/session.go
package models

import (
	"fmt"
	"strings"
)

// Phase is the session's coarse-grained state.
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelecting Phase = "selecting"
	PhasePlaying   Phase = "playing"
	PhaseScoring   Phase = "scoring"
	PhaseResults   Phase = "results"
	PhaseGameOver  Phase = "game_over"
)

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWaiting, PhaseSelecting, PhasePlaying, PhaseScoring, PhaseResults, PhaseGameOver:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are defined from p.
func (p Phase) Terminal() bool { return p == PhaseGameOver }

// RoundScoped reports whether an active round must be present in this phase.
func (p Phase) RoundScoped() bool {
	switch p {
	case PhasePlaying, PhaseScoring, PhaseResults:
		return true
	}
	return false
}

// Player is one connected device's identity inside a session.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsHost      bool   `json:"isHost"`
	// Score accumulates across rounds and never decreases.
	Score int `json:"score"`
	// Credential is an opaque session credential reference (a signed token
	// issued at join time). The game core never inspects it.
	Credential string `json:"credential,omitempty"`
}

// ValidPlayerID reports whether id can serve as a document field key. Dots
// separate path segments in store updates (activeRound.guesses.<id>), so an
// id containing one would silently split the guess path.
func ValidPlayerID(id string) bool {
	return id != "" && !strings.Contains(id, ".")
}

// Session is the canonical shared document for one game, keyed by Code in the
// session store. Every connected client holds the latest snapshot of it.
type Session struct {
	Code         string   `json:"code"`
	Players      []Player `json:"players"`
	CurrentRound int      `json:"currentRound"`
	TotalRounds  int      `json:"totalRounds"`
	Phase        Phase    `json:"phase"`
	Settings     Settings `json:"settings"`
	// ActiveRound is present only during selecting/playing/scoring/results and
	// cleared when a round advance commits.
	ActiveRound *Round `json:"activeRound,omitempty"`
}

// NewSession builds the initial document for a freshly created game: the host
// is the only player, round counter at 1, waiting for others to join.
func NewSession(code string, host Player, settings Settings) *Session {
	host.IsHost = true
	host.Score = 0
	return &Session{
		Code:         code,
		Players:      []Player{host},
		CurrentRound: 1,
		TotalRounds:  settings.RoundCount,
		Phase:        PhaseWaiting,
		Settings:     settings,
	}
}

// PlayerByID returns the player with the given id, or nil.
func (s *Session) PlayerByID(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// HostIndex returns the index of the current host. If, through a rotation
// race, more than one player carries the host flag, the lowest join index
// wins. Returns -1 when no player is flagged.
func (s *Session) HostIndex() int {
	for i := range s.Players {
		if s.Players[i].IsHost {
			return i
		}
	}
	return -1
}

// Host returns the current host player, or nil when none is flagged.
func (s *Session) Host() *Player {
	if i := s.HostIndex(); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// IsSelector reports whether the given player designated the active round's
// content.
func (s *Session) IsSelector(playerID string) bool {
	return s.ActiveRound != nil && s.ActiveRound.SelectorID == playerID
}

// Clone returns a deep copy of the session document.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Players = append([]Player(nil), s.Players...)
	cp.ActiveRound = s.ActiveRound.Clone()
	return &cp
}

// CheckInvariants verifies the structural invariants every stored document
// must satisfy. It is used by the engine in tests and as a safety net before
// commits.
func (s *Session) CheckInvariants() error {
	if s.Code == "" {
		return fmt.Errorf("session has no code")
	}
	if !s.Phase.Valid() {
		return fmt.Errorf("invalid phase %q", s.Phase)
	}
	if s.CurrentRound < 1 {
		return fmt.Errorf("currentRound must be >= 1, got %d", s.CurrentRound)
	}
	if len(s.Players) > 0 {
		hosts := 0
		for _, p := range s.Players {
			if p.IsHost {
				hosts++
			}
			if p.Score < 0 {
				return fmt.Errorf("player %s has negative score %d", p.ID, p.Score)
			}
		}
		if hosts != 1 {
			return fmt.Errorf("expected exactly one host, found %d", hosts)
		}
	}
	if s.Phase.RoundScoped() && s.ActiveRound == nil {
		return fmt.Errorf("phase %s requires an active round", s.Phase)
	}
	if s.ActiveRound != nil {
		if s.PlayerByID(s.ActiveRound.SelectorID) == nil {
			return fmt.Errorf("selector %s is not a player", s.ActiveRound.SelectorID)
		}
		if _, ok := s.ActiveRound.Guesses[s.ActiveRound.SelectorID]; ok {
			return fmt.Errorf("selector %s must not appear in guesses", s.ActiveRound.SelectorID)
		}
	}
	return nil
}
