// internal/models/round.go
package models

const (
	// TracksPerRound is the exact number of tracks a selector must pick.
	TracksPerRound = 5

	// MinThemeLength is the minimum length of the selector's secret theme.
	MinThemeLength = 3
)

// Track is one piece of hidden content in a round. Immutable once the round
// has been created.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"coverUrl"`
	// PreviewURL may be empty; not every catalog entry ships a preview clip.
	PreviewURL string `json:"previewUrl,omitempty"`
	// URI is the playback reference handed to the playback controller.
	URI string `json:"uri,omitempty"`
}

// TrackGuess is one player's answer for a single track.
type TrackGuess struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Guess is everything one player submitted for the active round. Partial
// entries are allowed: a player may answer some tracks and skip others.
type Guess struct {
	ThemeGuess string `json:"themeGuess,omitempty"`
	// TrackGuesses maps track id -> the player's answer for that track.
	TrackGuesses map[string]TrackGuess `json:"trackGuesses,omitempty"`
	// AwardedPoints is set by the scorer when the round is confirmed, nil before.
	AwardedPoints *int `json:"awardedPoints,omitempty"`
}

// Round is one cycle of selection, guessing and scoring. It exists on the
// session document only between selection intake and round advance.
type Round struct {
	SelectorID string  `json:"selectorId"`
	Theme      string  `json:"theme"`
	Tracks     []Track `json:"tracks"`
	// Guesses maps player id -> that player's guess. Each player only ever
	// writes its own key, which is what keeps concurrent submissions
	// conflict-free. The selector never appears as a key.
	Guesses map[string]Guess `json:"guesses,omitempty"`
}

// TrackByID returns the round's track with the given id, or nil.
func (r *Round) TrackByID(id string) *Track {
	for i := range r.Tracks {
		if r.Tracks[i].ID == id {
			return &r.Tracks[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	cp := &Round{
		SelectorID: r.SelectorID,
		Theme:      r.Theme,
		Tracks:     append([]Track(nil), r.Tracks...),
	}
	if r.Guesses != nil {
		cp.Guesses = make(map[string]Guess, len(r.Guesses))
		for id, g := range r.Guesses {
			cp.Guesses[id] = g.Clone()
		}
	}
	return cp
}

// Clone returns a deep copy of the guess.
func (g Guess) Clone() Guess {
	cp := g
	if g.TrackGuesses != nil {
		cp.TrackGuesses = make(map[string]TrackGuess, len(g.TrackGuesses))
		for id, tg := range g.TrackGuesses {
			cp.TrackGuesses[id] = tg
		}
	}
	if g.AwardedPoints != nil {
		v := *g.AwardedPoints
		cp.AwardedPoints = &v
	}
	return cp
}
