// internal/game/coordinator.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/models"
	"github.com/jmulder/tunequiz/internal/store"
)

// Archiver persists a finished session. Wired to the Postgres archive in
// production; nil disables archiving.
type Archiver interface {
	SaveFinishedSession(ctx context.Context, s *models.Session) error
}

// Coordinator executes intents against the shared session store. For every
// intent it re-reads the latest document, runs the guard against that fresh
// snapshot (not a client's possibly stale cache) and commits the resulting
// field map as one atomic update. Authority therefore gets re-validated
// immediately before the write, which is as close as this decentralized
// design gets to closing the stale-authority window.
type Coordinator struct {
	store   store.Store
	log     *logrus.Logger
	archive Archiver
}

// NewCoordinator returns a coordinator on top of the given store.
func NewCoordinator(st store.Store, log *logrus.Logger) *Coordinator {
	return &Coordinator{store: st, log: log}
}

// SetArchiver enables persistence of finished sessions.
func (c *Coordinator) SetArchiver(a Archiver) { c.archive = a }

// CreateSession generates a fresh shareable code, builds the initial document
// with the creator as host and stores it. Code collisions are retried.
func (c *Coordinator) CreateSession(ctx context.Context, host models.Player, settings models.Settings) (*models.Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if !models.ValidPlayerID(host.ID) {
		return nil, fmt.Errorf("create session: player id %q cannot be used as a document key", host.ID)
	}
	for attempt := 0; attempt < 5; attempt++ {
		code := NewSessionCode()
		doc := models.NewSession(code, host, settings)
		err := c.store.Create(ctx, code, doc)
		if errors.Is(err, store.ErrCodeExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c.log.WithFields(logrus.Fields{"session": code, "host": host.ID}).Info("session created")
		return doc, nil
	}
	return nil, fmt.Errorf("create session: could not find a free code")
}

// Join adds the player to the session and returns the resulting document.
func (c *Coordinator) Join(ctx context.Context, code string, p models.Player) (*models.Session, error) {
	if err := c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return Join(s, p)
	}); err != nil {
		return nil, err
	}
	return c.store.Read(ctx, code)
}

// Start executes the host's start intent.
func (c *Coordinator) Start(ctx context.Context, code, issuerID string) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return Start(s, issuerID)
	})
}

// SubmitSelection executes the selector's selection intake.
func (c *Coordinator) SubmitSelection(ctx context.Context, code, issuerID, theme string, tracks []models.Track) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return SubmitSelection(s, issuerID, theme, tracks)
	})
}

// SubmitGuess records one player's answers for the active round.
func (c *Coordinator) SubmitGuess(ctx context.Context, code, issuerID string, guess models.Guess) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return SubmitGuess(s, issuerID, guess)
	})
}

// SelectorFinish closes the guessing window.
func (c *Coordinator) SelectorFinish(ctx context.Context, code, issuerID string) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return SelectorFinish(s, issuerID)
	})
}

// ConfirmScores commits the scorer's final grading.
func (c *Coordinator) ConfirmScores(ctx context.Context, code, issuerID string, sheet Scoresheet) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return ConfirmScores(s, issuerID, sheet)
	})
}

// Advance rotates the host into the next round, or ends the game after the
// final round. A finished session is handed to the archiver.
func (c *Coordinator) Advance(ctx context.Context, code, issuerID string) error {
	var finished bool
	err := c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		fields, err := Advance(s, issuerID)
		if err == nil {
			finished = fields["phase"] == models.PhaseGameOver
		}
		return fields, err
	})
	if err != nil {
		return err
	}
	if finished {
		c.archiveFinished(ctx, code)
	}
	return nil
}

// UpdateSettings applies the host's settings edit in the waiting phase.
func (c *Coordinator) UpdateSettings(ctx context.Context, code, issuerID string, settings models.Settings) error {
	return c.apply(ctx, code, func(s *models.Session) (map[string]any, error) {
		return UpdateSettings(s, issuerID, settings)
	})
}

// apply reads the latest document, runs the transition against it and commits
// the produced field map. An empty field map is a successful no-op.
func (c *Coordinator) apply(ctx context.Context, code string, fn func(*models.Session) (map[string]any, error)) error {
	doc, err := c.store.Read(ctx, code)
	if err != nil {
		return err
	}
	fields, err := fn(doc)
	if err != nil {
		if re, ok := IsRejected(err); ok {
			c.log.WithFields(logrus.Fields{"session": code, "intent": re.Intent}).Debugf("intent rejected: %s", re.Reason)
		}
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	return c.store.Update(ctx, code, fields)
}

func (c *Coordinator) archiveFinished(ctx context.Context, code string) {
	if c.archive == nil {
		return
	}
	doc, err := c.store.Read(ctx, code)
	if err != nil {
		c.log.Warnf("session %s: cannot read finished session for archive: %v", code, err)
		return
	}
	if err := c.archive.SaveFinishedSession(ctx, doc); err != nil {
		c.log.Warnf("session %s: archive failed: %v", code, err)
		return
	}
	c.log.WithField("session", code).Info("finished session archived")
}

// sessionCodeAlphabet omits look-alike characters so codes stay easy to read
// out loud at a party.
const sessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewSessionCode returns a 6-character shareable session code.
func NewSessionCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = sessionCodeAlphabet[rand.Intn(len(sessionCodeAlphabet))]
	}
	return string(b)
}
