// internal/database/preferences.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmulder/tunequiz/internal/models"
)

// Preferences stores each host's default settings as a keyed JSON blob. A
// host's stored preferences seed the settings of every session they create.
type Preferences struct {
	pool *pgxpool.Pool
}

// NewPreferences wraps a pool; pool may be nil, in which case Load always
// falls back to defaults and Save is a no-op.
func NewPreferences(pool *pgxpool.Pool) *Preferences {
	return &Preferences{pool: pool}
}

// Load returns the host's stored settings, or the defaults when nothing is
// stored (or no database is configured).
func (p *Preferences) Load(ctx context.Context, hostID string) (models.Settings, error) {
	defaults := models.DefaultSettings()
	if p.pool == nil {
		return defaults, nil
	}

	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT settings FROM host_preferences WHERE host_id = $1`, hostID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("load preferences for %s: %w", hostID, err)
	}

	var settings models.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return defaults, fmt.Errorf("decode preferences for %s: %w", hostID, err)
	}
	if err := settings.Validate(); err != nil {
		// Stored blob predates a settings change; ignore it.
		return defaults, nil
	}
	return settings, nil
}

// Save upserts the host's default settings.
func (p *Preferences) Save(ctx context.Context, hostID string, settings models.Settings) error {
	if p.pool == nil {
		return nil
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO host_preferences (host_id, settings, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (host_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		hostID, raw)
	if err != nil {
		return fmt.Errorf("save preferences for %s: %w", hostID, err)
	}
	return nil
}
