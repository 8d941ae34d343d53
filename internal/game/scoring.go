// internal/game/scoring.go
package game

import (
	"strings"

	"github.com/jmulder/tunequiz/internal/models"
)

// ThemeBonus is the fixed point value for guessing the secret theme. The
// difficulty setting affects content curation only, not this value.
const ThemeBonus = 3

// TrackAward is the per-track score for one player: title hit plus artist hit.
// The scorer cycles it manually to override the pre-fill.
type TrackAward int

const (
	AwardNone    TrackAward = 0
	AwardPartial TrackAward = 1
	AwardFull    TrackAward = 2
)

// Next cycles the award 0 -> 1 -> 2 -> 0, matching the scorer's toggle.
func (a TrackAward) Next() TrackAward {
	switch a {
	case AwardNone:
		return AwardPartial
	case AwardPartial:
		return AwardFull
	default:
		return AwardNone
	}
}

// Points returns the award's point value.
func (a TrackAward) Points() int { return int(a) }

// PlayerSheet holds the scorer's (possibly overridden) grading for one player
// in one round.
type PlayerSheet struct {
	// TrackAwards maps track id -> award for that track.
	TrackAwards  map[string]TrackAward
	ThemeAwarded bool
}

// Total is the player's point total for the round.
func (ps PlayerSheet) Total() int {
	total := 0
	for _, a := range ps.TrackAwards {
		total += a.Points()
	}
	if ps.ThemeAwarded {
		total += ThemeBonus
	}
	return total
}

// Scoresheet maps player id -> that player's grading. The selector never
// appears as a key.
type Scoresheet map[string]PlayerSheet

// Prefill computes the advisory default grading for every non-selector
// player: one point per track for a title hit, one for an artist hit, and the
// theme bonus on a theme hit. The scorer can override any of it before
// confirming.
func Prefill(round *models.Round, players []models.Player) Scoresheet {
	sheet := make(Scoresheet, len(players))
	for _, p := range players {
		if p.ID == round.SelectorID {
			continue
		}
		guess := round.Guesses[p.ID]

		ps := PlayerSheet{TrackAwards: make(map[string]TrackAward, len(round.Tracks))}
		for _, track := range round.Tracks {
			tg := guess.TrackGuesses[track.ID]
			award := AwardNone
			if looseMatch(track.Title, tg.Title) {
				award++
			}
			if looseMatch(track.Artist, tg.Artist) {
				award++
			}
			ps.TrackAwards[track.ID] = award
		}
		ps.ThemeAwarded = looseMatch(round.Theme, guess.ThemeGuess)
		sheet[p.ID] = ps
	}
	return sheet
}

// looseMatch reports whether a non-empty guess is contained in the truth,
// case-insensitively. Deliberately forgiving: "bohemian" matches "Bohemian
// Rhapsody".
func looseMatch(truth, guess string) bool {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return false
	}
	return strings.Contains(strings.ToLower(truth), strings.ToLower(guess))
}
