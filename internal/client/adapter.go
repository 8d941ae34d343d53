// internal/client/adapter.go
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/models"
	"github.com/jmulder/tunequiz/internal/store"
)

// ErrAnswersLocked is returned when a guess is submitted after the think
// timer elapsed and the session locks answers at timeout.
var ErrAnswersLocked = errors.New("answers are locked for this round")

// Adapter is the per-device view of one session. It subscribes to the shared
// document, keeps the latest snapshot, re-syncs the locally cached player
// record on every change (so host rotation and score updates take effect
// without a reconnect) and issues intents through the coordinator.
//
// The think countdown is a local, advisory wall-clock timer; it is not
// synchronized across devices.
type Adapter struct {
	coord *game.Coordinator
	store store.Store
	clock clockwork.Clock
	log   logrus.FieldLogger

	mu            sync.Mutex
	code          string
	self          models.Player
	latest        *models.Session
	thinkDeadline time.Time
	unsubscribe   func()
}

// NewAdapter builds an adapter for the given local identity.
func NewAdapter(coord *game.Coordinator, st store.Store, clock clockwork.Clock, log logrus.FieldLogger, self models.Player) *Adapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Adapter{coord: coord, store: st, clock: clock, log: log, self: self}
}

// CreateSession creates a new game with this device as host and subscribes.
func (a *Adapter) CreateSession(ctx context.Context, settings models.Settings) (string, error) {
	doc, err := a.coord.CreateSession(ctx, a.self, settings)
	if err != nil {
		return "", err
	}
	if err := a.attach(ctx, doc.Code); err != nil {
		return "", err
	}
	return doc.Code, nil
}

// JoinSession joins an existing game by code and subscribes.
func (a *Adapter) JoinSession(ctx context.Context, code string) error {
	if _, err := a.coord.Join(ctx, code, a.self); err != nil {
		return err
	}
	return a.attach(ctx, code)
}

func (a *Adapter) attach(ctx context.Context, code string) error {
	unsub, err := a.store.Subscribe(ctx, code, a.onSnapshot)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.code = code
	a.unsubscribe = unsub
	a.mu.Unlock()
	return nil
}

// Close cancels the subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsub := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onSnapshot ingests every document change.
func (a *Adapter) onSnapshot(doc *models.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prevPhase := models.Phase("")
	if a.latest != nil {
		prevPhase = a.latest.Phase
	}
	a.latest = doc

	// Re-sync the cached identity from the shared document; isHost and score
	// are owned by the session, not by this device.
	if me := doc.PlayerByID(a.self.ID); me != nil {
		a.self.IsHost = me.IsHost
		a.self.Score = me.Score
	}

	// Arm the local think countdown when a round starts playing.
	if doc.Phase == models.PhasePlaying && prevPhase != models.PhasePlaying {
		a.thinkDeadline = a.clock.Now().Add(time.Duration(doc.Settings.ThinkDurationSeconds) * time.Second)
	}
	if doc.Phase != models.PhasePlaying {
		a.thinkDeadline = time.Time{}
	}
}

// Snapshot returns the most recent document, or nil before the first delivery.
func (a *Adapter) Snapshot() *models.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Self returns the locally cached player record.
func (a *Adapter) Self() models.Player {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.self
}

// View derives the current display state from the latest snapshot.
func (a *Adapter) View() (View, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return View{}, false
	}
	return DeriveView(a.latest, a.self.ID), true
}

// ThinkTimeLeft reports how much advisory think time remains in the current
// round; zero outside the playing phase or after the deadline.
func (a *Adapter) ThinkTimeLeft() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.thinkDeadline.IsZero() {
		return 0
	}
	left := a.thinkDeadline.Sub(a.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// AnswersLocked reports whether this device should refuse further guess
// edits: lockAnswersAtTimeout is on and the local think timer has elapsed.
// Purely a local policy; the store accepts whatever is written.
func (a *Adapter) AnswersLocked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil || !a.latest.Settings.LockAnswersAtTimeout {
		return false
	}
	return !a.thinkDeadline.IsZero() && !a.clock.Now().Before(a.thinkDeadline)
}

// Start issues the host's start intent.
func (a *Adapter) Start(ctx context.Context) error {
	return a.coord.Start(ctx, a.sessionCode(), a.selfID())
}

// SubmitSelection hands in this device's theme and track selection.
func (a *Adapter) SubmitSelection(ctx context.Context, theme string, tracks []models.Track) error {
	return a.coord.SubmitSelection(ctx, a.sessionCode(), a.selfID(), theme, tracks)
}

// SubmitGuess submits (or resubmits) this device's answers, unless the local
// lock policy says the round is closed.
func (a *Adapter) SubmitGuess(ctx context.Context, guess models.Guess) error {
	if a.AnswersLocked() {
		return ErrAnswersLocked
	}
	return a.coord.SubmitGuess(ctx, a.sessionCode(), a.selfID(), guess)
}

// SelectorFinish closes the guessing window.
func (a *Adapter) SelectorFinish(ctx context.Context) error {
	return a.coord.SelectorFinish(ctx, a.sessionCode(), a.selfID())
}

// PrefillScores computes the advisory scoresheet for the current round.
func (a *Adapter) PrefillScores() (game.Scoresheet, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil || a.latest.ActiveRound == nil {
		return nil, false
	}
	return game.Prefill(a.latest.ActiveRound, a.latest.Players), true
}

// ConfirmScores commits the scorer's grading.
func (a *Adapter) ConfirmScores(ctx context.Context, sheet game.Scoresheet) error {
	return a.coord.ConfirmScores(ctx, a.sessionCode(), a.selfID(), sheet)
}

// Advance moves the session into the next round (or ends the game).
func (a *Adapter) Advance(ctx context.Context) error {
	return a.coord.Advance(ctx, a.sessionCode(), a.selfID())
}

// UpdateSettings edits the pre-game settings.
func (a *Adapter) UpdateSettings(ctx context.Context, settings models.Settings) error {
	return a.coord.UpdateSettings(ctx, a.sessionCode(), a.selfID(), settings)
}

func (a *Adapter) sessionCode() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

func (a *Adapter) selfID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.self.ID
}
