// internal/models/settings.go
package models

import "fmt"

// Difficulty controls how obscure the curated tracks are expected to be.
// It affects content curation only; point values are fixed (see game.ThemeBonus).
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// GameMode selects the overall pacing variant of a session.
type GameMode string

const (
	ModeClassic  GameMode = "classic"
	ModeFast     GameMode = "fast"
	ModeHardcore GameMode = "hardcore"
)

// Settings is the host-editable configuration of a session. It may only be
// mutated while the session is still in PhaseWaiting; once the first round has
// been played the settings are frozen.
type Settings struct {
	RoundCount           int        `json:"roundCount"`
	Difficulty           Difficulty `json:"difficulty"`
	PlayDurationSeconds  int        `json:"playDurationSeconds"`
	ThinkDurationSeconds int        `json:"thinkDurationSeconds"`
	Mode                 GameMode   `json:"mode"`
	LockAnswersAtTimeout bool       `json:"lockAnswersAtTimeout"`
}

// DefaultSettings returns the settings a fresh session starts with when the
// host has no stored preferences.
func DefaultSettings() Settings {
	return Settings{
		RoundCount:           3,
		Difficulty:           DifficultyMedium,
		PlayDurationSeconds:  30,
		ThinkDurationSeconds: 90,
		Mode:                 ModeClassic,
		LockAnswersAtTimeout: true,
	}
}

// Validate checks that every field holds a usable value.
func (s Settings) Validate() error {
	if s.RoundCount < 1 {
		return fmt.Errorf("roundCount must be >= 1, got %d", s.RoundCount)
	}
	switch s.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", s.Difficulty)
	}
	switch s.Mode {
	case ModeClassic, ModeFast, ModeHardcore:
	default:
		return fmt.Errorf("unknown game mode %q", s.Mode)
	}
	if s.PlayDurationSeconds <= 0 {
		return fmt.Errorf("playDurationSeconds must be positive, got %d", s.PlayDurationSeconds)
	}
	if s.ThinkDurationSeconds <= 0 {
		return fmt.Errorf("thinkDurationSeconds must be positive, got %d", s.ThinkDurationSeconds)
	}
	return nil
}
