// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmulder/tunequiz/internal/models"
)

// Archive persists finished sessions so final scoreboards survive the
// ephemeral session store.
type Archive struct {
	pool *pgxpool.Pool
}

// NewArchive wraps a pool; nil disables archiving.
func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// SaveFinishedSession records the final state of a game that reached
// game_over. Saving the same code twice is harmless.
func (a *Archive) SaveFinishedSession(ctx context.Context, s *models.Session) error {
	if a.pool == nil {
		return nil
	}
	players, err := json.Marshal(s.Players)
	if err != nil {
		return err
	}
	_, err = a.pool.Exec(ctx, `
INSERT INTO finished_sessions (code, rounds, players)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO NOTHING`,
		s.Code, s.TotalRounds, players)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", s.Code, err)
	}
	return nil
}
