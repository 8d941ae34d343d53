// internal/spotify/mock.go
package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/models"
)

// mockTracks is the fixture catalog for demo mode.
var mockTracks = []models.Track{
	{ID: "mock-1", Title: "Bohemian Rhapsody", Artist: "Queen", CoverURL: "https://picsum.photos/seed/queen/64/64"},
	{ID: "mock-2", Title: "Blinding Lights", Artist: "The Weeknd", CoverURL: "https://picsum.photos/seed/weeknd/64/64"},
	{ID: "mock-3", Title: "As It Was", Artist: "Harry Styles", CoverURL: "https://picsum.photos/seed/harry/64/64"},
	{ID: "mock-4", Title: "Roller Coaster", Artist: "Danny Vera", CoverURL: "https://picsum.photos/seed/danny/64/64"},
	{ID: "mock-5", Title: "Shape of You", Artist: "Ed Sheeran", CoverURL: "https://picsum.photos/seed/ed/64/64"},
	{ID: "mock-6", Title: "Bad Guy", Artist: "Billie Eilish", CoverURL: "https://picsum.photos/seed/billie/64/64"},
}

// Mock serves demo/solo play without a provider account: every credential
// resolves to a fresh demo profile, searches run against a small fixture
// catalog, and playback is a log line.
type Mock struct {
	log *logrus.Logger
}

// NewMock returns the demo provider.
func NewMock(log *logrus.Logger) *Mock { return &Mock{log: log} }

func (m *Mock) Me(ctx context.Context, token string) (Profile, error) {
	id := "demo_" + uuid.NewString()[:8]
	return Profile{
		ID:          id,
		DisplayName: "Demo Player",
		AvatarURL:   fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", id),
	}, nil
}

func (m *Mock) SearchTracks(ctx context.Context, token, query string, limit int) ([]models.Track, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	var out []models.Track
	for _, tr := range mockTracks {
		if strings.Contains(strings.ToLower(tr.Title), query) || strings.Contains(strings.ToLower(tr.Artist), query) {
			out = append(out, tr)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Mock) Play(ctx context.Context, token, deviceID, uri string) error {
	m.log.Debugf("demo playback: play %s on %s", uri, deviceID)
	return nil
}

func (m *Mock) Pause(ctx context.Context, token, deviceID string) error {
	m.log.Debugf("demo playback: pause on %s", deviceID)
	return nil
}
