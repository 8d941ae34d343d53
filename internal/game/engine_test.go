// internal/game/engine_test.go
package game

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmulder/tunequiz/internal/models"
)

// testSession builds a session with n players (p1..pn, p1 hosting) in the
// given phase.
func testSession(n int, phase models.Phase) *models.Session {
	players := make([]models.Player, n)
	for i := range players {
		players[i] = models.Player{ID: fmt.Sprintf("p%d", i+1), DisplayName: fmt.Sprintf("Player %d", i+1)}
	}
	players[0].IsHost = true
	return &models.Session{
		Code:         "ABC123",
		Players:      players,
		CurrentRound: 1,
		TotalRounds:  3,
		Phase:        phase,
		Settings:     models.DefaultSettings(),
	}
}

func testTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{ID: fmt.Sprintf("t%d", i+1), Title: fmt.Sprintf("Track %d", i+1), Artist: "Artist"}
	}
	return tracks
}

// withRound attaches an active round selected by the host.
func withRound(s *models.Session) *models.Session {
	s.ActiveRound = &models.Round{
		SelectorID: "p1",
		Theme:      "colors",
		Tracks: []models.Track{
			{ID: "t1", Title: "Yellow", Artist: "Coldplay"},
			{ID: "t2", Title: "Purple Rain", Artist: "Prince"},
			{ID: "t3", Title: "Back in Black", Artist: "AC/DC"},
			{ID: "t4", Title: "White Wedding", Artist: "Billy Idol"},
			{ID: "t5", Title: "Blue Monday", Artist: "New Order"},
		},
		Guesses: map[string]models.Guess{},
	}
	return s
}

// fieldKeys returns the sorted-ish key set of a field map for drift checks.
func fieldKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	return keys
}

func TestStart(t *testing.T) {
	s := testSession(3, models.PhaseWaiting)

	fields, err := Start(s, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"phase"}, fieldKeys(fields), "start touches only the phase")
	assert.Equal(t, models.PhaseSelecting, fields["phase"])
}

func TestStartGuards(t *testing.T) {
	_, err := Start(testSession(3, models.PhaseWaiting), "p2")
	re, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, IntentStart, re.Intent)

	_, err = Start(testSession(3, models.PhasePlaying), "p1")
	_, ok = IsRejected(err)
	assert.True(t, ok, "start outside waiting is rejected")

	_, err = Start(testSession(3, models.PhaseWaiting), "ghost")
	_, ok = IsRejected(err)
	assert.True(t, ok, "non-member cannot start")
}

func TestSubmitSelection(t *testing.T) {
	s := testSession(3, models.PhaseSelecting)

	fields, err := SubmitSelection(s, "p1", "  colors  ", testTracks(5))
	require.NoError(t, err)

	// Round and phase commit together; no observer can see playing without a round.
	assert.ElementsMatch(t, []string{"activeRound", "phase"}, fieldKeys(fields))
	assert.Equal(t, models.PhasePlaying, fields["phase"])

	round, ok := fields["activeRound"].(*models.Round)
	require.True(t, ok)
	assert.Equal(t, "p1", round.SelectorID)
	assert.Equal(t, "colors", round.Theme, "theme is trimmed")
	assert.Len(t, round.Tracks, 5)
	assert.NotNil(t, round.Guesses)
	assert.Empty(t, round.Guesses)
}

func TestSubmitSelectionGuards(t *testing.T) {
	cases := []struct {
		name   string
		phase  models.Phase
		issuer string
		theme  string
		tracks []models.Track
	}{
		{"wrong phase", models.PhaseWaiting, "p1", "colors", testTracks(5)},
		{"not the selector", models.PhaseSelecting, "p2", "colors", testTracks(5)},
		{"theme too short", models.PhaseSelecting, "p1", "ab", testTracks(5)},
		{"theme only whitespace", models.PhaseSelecting, "p1", "   ", testTracks(5)},
		{"four tracks", models.PhaseSelecting, "p1", "colors", testTracks(4)},
		{"six tracks", models.PhaseSelecting, "p1", "colors", testTracks(6)},
		{"no tracks", models.PhaseSelecting, "p1", "colors", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SubmitSelection(testSession(3, tc.phase), tc.issuer, tc.theme, tc.tracks)
			_, ok := IsRejected(err)
			assert.True(t, ok)
		})
	}

	t.Run("duplicate track", func(t *testing.T) {
		tracks := testTracks(5)
		tracks[4].ID = tracks[0].ID
		_, err := SubmitSelection(testSession(3, models.PhaseSelecting), "p1", "colors", tracks)
		_, ok := IsRejected(err)
		assert.True(t, ok)
	})

	t.Run("track without id", func(t *testing.T) {
		tracks := testTracks(5)
		tracks[2].ID = ""
		_, err := SubmitSelection(testSession(3, models.PhaseSelecting), "p1", "colors", tracks)
		_, ok := IsRejected(err)
		assert.True(t, ok)
	})
}

func TestSubmitGuessFieldScope(t *testing.T) {
	s := withRound(testSession(3, models.PhasePlaying))
	pts := 99
	guess := models.Guess{
		ThemeGuess:    "colours",
		TrackGuesses:  map[string]models.TrackGuess{"t1": {Title: "Yellow", Artist: "Coldplay"}},
		AwardedPoints: &pts,
	}

	fields, err := SubmitGuess(s, "p2", guess)
	require.NoError(t, err)

	// The write is scoped to the guesser's own key so concurrent submissions
	// from different players commute.
	assert.ElementsMatch(t, []string{"activeRound.guesses.p2"}, fieldKeys(fields))
	stored, ok := fields["activeRound.guesses.p2"].(models.Guess)
	require.True(t, ok)
	assert.Nil(t, stored.AwardedPoints, "guessers cannot award themselves points")
	assert.Equal(t, "colours", stored.ThemeGuess)
}

func TestSubmitGuessGuards(t *testing.T) {
	s := withRound(testSession(3, models.PhasePlaying))

	_, err := SubmitGuess(s, "p1", models.Guess{})
	_, ok := IsRejected(err)
	assert.True(t, ok, "selector cannot guess its own round")

	_, err = SubmitGuess(s, "ghost", models.Guess{})
	_, ok = IsRejected(err)
	assert.True(t, ok, "non-member cannot guess")

	_, err = SubmitGuess(withRound(testSession(3, models.PhaseScoring)), "p2", models.Guess{})
	_, ok = IsRejected(err)
	assert.True(t, ok, "guesses close when scoring starts")
}

func TestSelectorFinish(t *testing.T) {
	s := withRound(testSession(3, models.PhasePlaying))

	fields, err := SelectorFinish(s, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"phase"}, fieldKeys(fields))
	assert.Equal(t, models.PhaseScoring, fields["phase"])

	_, err = SelectorFinish(s, "p2")
	_, ok := IsRejected(err)
	assert.True(t, ok, "a plain guesser cannot close the round")
}

func TestSelectorFinishHostFallback(t *testing.T) {
	// Round selected by p2 while p1 still hosts; the host may close it.
	s := testSession(3, models.PhasePlaying)
	s.ActiveRound = &models.Round{SelectorID: "p2", Theme: "colors", Tracks: testTracks(5), Guesses: map[string]models.Guess{}}

	fields, err := SelectorFinish(s, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseScoring, fields["phase"])
}

func TestConfirmScores(t *testing.T) {
	s := withRound(testSession(3, models.PhaseScoring))
	s.Players[1].Score = 5
	s.ActiveRound.Guesses["p2"] = models.Guess{ThemeGuess: "colours"}
	// p3 never submitted a guess but still gets graded (e.g. zero).

	sheet := Scoresheet{
		"p2": {TrackAwards: map[string]TrackAward{"t1": AwardFull, "t2": AwardPartial}, ThemeAwarded: true},
		"p3": {TrackAwards: map[string]TrackAward{}},
	}

	fields, err := ConfirmScores(s, "p1", sheet)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"phase", "players", "activeRound.guesses.p2.awardedPoints"}, fieldKeys(fields),
		"no awardedPoints write for p3, who never guessed")
	assert.Equal(t, models.PhaseResults, fields["phase"])
	assert.Equal(t, 2+1+ThemeBonus, fields["activeRound.guesses.p2.awardedPoints"])

	updated, ok := fields["players"].([]models.Player)
	require.True(t, ok)
	assert.Equal(t, 0, updated[0].Score, "selector is never scored")
	assert.Equal(t, 5+2+1+ThemeBonus, updated[1].Score, "round total is added, never replaces")
	assert.Equal(t, 0, updated[2].Score)
}

func TestConfirmScoresGuards(t *testing.T) {
	base := func() *models.Session {
		return withRound(testSession(3, models.PhaseScoring))
	}

	_, err := ConfirmScores(base(), "p2", Scoresheet{})
	_, ok := IsRejected(err)
	assert.True(t, ok, "only selector or host may score")

	_, err = ConfirmScores(base(), "p1", Scoresheet{"p1": {}})
	_, ok = IsRejected(err)
	assert.True(t, ok, "selector must not appear in the sheet")

	_, err = ConfirmScores(base(), "p1", Scoresheet{"ghost": {}})
	_, ok = IsRejected(err)
	assert.True(t, ok, "sheet must only name players")

	_, err = ConfirmScores(withRound(testSession(3, models.PhasePlaying)), "p1", Scoresheet{})
	_, ok = IsRejected(err)
	assert.True(t, ok, "scores confirm only in scoring phase")
}

func TestAdvanceRotation(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			s := withRound(testSession(n, models.PhaseResults))

			fields, err := Advance(s, "p1")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"players", "activeRound", "currentRound", "phase"}, fieldKeys(fields))
			assert.Equal(t, models.PhaseSelecting, fields["phase"])
			assert.Equal(t, 2, fields["currentRound"])
			assert.Nil(t, fields["activeRound"])

			rotated, ok := fields["players"].([]models.Player)
			require.True(t, ok)
			hosts := 0
			for _, p := range rotated {
				if p.IsHost {
					hosts++
				}
			}
			assert.Equal(t, 1, hosts, "exactly one host after rotation")

			wantHost := "p1"
			if n > 1 {
				wantHost = "p2"
			}
			for _, p := range rotated {
				if p.IsHost {
					assert.Equal(t, wantHost, p.ID)
				}
			}
		})
	}
}

// TestAdvanceFullCycle rotates through every player and checks the host comes
// back around to the first one.
func TestAdvanceFullCycle(t *testing.T) {
	const n = 5
	s := withRound(testSession(n, models.PhaseResults))
	s.TotalRounds = n + 1

	for round := 1; round <= n; round++ {
		hostID := s.Host().ID
		fields, err := Advance(s, hostID)
		require.NoError(t, err)

		s.Players = fields["players"].([]models.Player)
		s.CurrentRound = fields["currentRound"].(int)
		s.ActiveRound = nil
		s.Phase = models.PhaseSelecting

		// Put the session back into results for the next advance.
		withRound(s)
		s.ActiveRound.SelectorID = s.Host().ID
		s.Phase = models.PhaseResults
	}
	assert.Equal(t, "p1", s.Host().ID, "host rotation is cyclic")
	assert.Equal(t, n+1, s.CurrentRound)
}

func TestAdvanceGameOver(t *testing.T) {
	s := withRound(testSession(3, models.PhaseResults))
	s.CurrentRound = 3
	s.TotalRounds = 3

	fields, err := Advance(s, "p1")
	require.NoError(t, err)

	// No rotation and no counter bump on the final round.
	assert.ElementsMatch(t, []string{"phase", "activeRound"}, fieldKeys(fields))
	assert.Equal(t, models.PhaseGameOver, fields["phase"])
	assert.Nil(t, fields["activeRound"])
}

func TestAdvanceGuards(t *testing.T) {
	_, err := Advance(withRound(testSession(3, models.PhaseResults)), "p2")
	_, ok := IsRejected(err)
	assert.True(t, ok, "only the host advances")

	_, err = Advance(withRound(testSession(3, models.PhaseScoring)), "p1")
	_, ok = IsRejected(err)
	assert.True(t, ok, "advance only from results")
}

func TestJoin(t *testing.T) {
	s := testSession(2, models.PhaseWaiting)

	fields, err := Join(s, models.Player{ID: "p3", DisplayName: "Carol", IsHost: true, Score: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"players"}, fieldKeys(fields))

	players, ok := fields["players"].([]models.Player)
	require.True(t, ok)
	require.Len(t, players, 3)
	assert.False(t, players[2].IsHost, "joiners never arrive hosting")
	assert.Equal(t, 0, players[2].Score)
}

func TestJoinIdempotent(t *testing.T) {
	s := testSession(2, models.PhaseWaiting)
	fields, err := Join(s, models.Player{ID: "p2"})
	require.NoError(t, err)
	assert.Empty(t, fields, "re-joining commits nothing")
}

// TestJoinRejectsUnusablePlayerID keeps dots out of player ids; a dotted id
// would split the activeRound.guesses.<id> path and bury the guess under a
// junk nested key.
func TestJoinRejectsUnusablePlayerID(t *testing.T) {
	for _, id := range []string{"", "user.name", "a.b.c"} {
		_, err := Join(testSession(2, models.PhaseWaiting), models.Player{ID: id})
		re, ok := IsRejected(err)
		require.True(t, ok, "id %q", id)
		assert.Equal(t, IntentJoin, re.Intent)
	}
}

func TestJoinMidGameAndAfterEnd(t *testing.T) {
	fields, err := Join(withRound(testSession(2, models.PhasePlaying)), models.Player{ID: "late"})
	require.NoError(t, err, "late joiners are welcome while the game runs")
	assert.Len(t, fields["players"].([]models.Player), 3)

	_, err = Join(testSession(2, models.PhaseGameOver), models.Player{ID: "late"})
	_, ok := IsRejected(err)
	assert.True(t, ok, "a finished session accepts no one")
}

func TestUpdateSettings(t *testing.T) {
	s := testSession(2, models.PhaseWaiting)
	next := models.DefaultSettings()
	next.RoundCount = 7

	fields, err := UpdateSettings(s, "p1", next)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"settings", "totalRounds"}, fieldKeys(fields))
	assert.Equal(t, 7, fields["totalRounds"], "round budget follows the setting pre-game")

	_, err = UpdateSettings(s, "p2", next)
	_, ok := IsRejected(err)
	assert.True(t, ok, "only the host edits settings")

	_, err = UpdateSettings(testSession(2, models.PhaseSelecting), "p1", next)
	_, ok = IsRejected(err)
	assert.True(t, ok, "settings freeze at start")

	bad := next
	bad.RoundCount = 0
	_, err = UpdateSettings(s, "p1", bad)
	_, ok = IsRejected(err)
	assert.True(t, ok)
}

func TestDesignatedSelectorFollowsHost(t *testing.T) {
	s := testSession(3, models.PhaseSelecting)
	require.Equal(t, "p1", DesignatedSelector(s).ID)

	s.Players[0].IsHost = false
	s.Players[2].IsHost = true
	assert.Equal(t, "p3", DesignatedSelector(s).ID)
}
