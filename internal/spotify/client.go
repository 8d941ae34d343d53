// internal/spotify/client.go
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/models"
)

// ErrCredentialExpired indicates the provider rejected the bearer token. The
// caller must force a fresh login; this error is never retried silently.
var ErrCredentialExpired = errors.New("provider credential expired or invalid")

// SearchError is a retryable catalog failure (provider unavailable, rate
// limited). It never takes the game down.
type SearchError struct {
	Status int
	Body   string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("catalog search failed with status %d: %s", e.Status, e.Body)
}

// Profile is the identity the provider reports for a bearer credential.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// ProfileProvider resolves a bearer credential to a user profile.
type ProfileProvider interface {
	Me(ctx context.Context, token string) (Profile, error)
}

// Catalog searches the track catalog.
type Catalog interface {
	SearchTracks(ctx context.Context, token, query string, limit int) ([]models.Track, error)
}

// PlaybackController starts and stops playback on a device. Failures are
// non-fatal to the game: a track that will not play never blocks a round.
type PlaybackController interface {
	Play(ctx context.Context, token, deviceID, uri string) error
	Pause(ctx context.Context, token, deviceID string) error
}

// Client talks to the Spotify Web API. It implements ProfileProvider,
// Catalog and PlaybackController.
type Client struct {
	http    *http.Client
	baseURL string
	log     *logrus.Logger
}

// NewClient returns a client against the real API endpoint.
func NewClient(log *logrus.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.spotify.com/v1",
		log:     log,
	}
}

// NewClientWithBase overrides the endpoint; used by tests.
func NewClientWithBase(baseURL string, log *logrus.Logger) *Client {
	c := NewClient(log)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Me fetches the profile behind the credential.
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	resp, err := c.get(ctx, token, "/me", nil)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return Profile{}, ErrCredentialExpired
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile request failed with status %d", resp.StatusCode)
	}

	var body struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if body.ID == "" {
		return Profile{}, fmt.Errorf("provider returned profile without id")
	}

	p := Profile{ID: body.ID, DisplayName: body.DisplayName}
	if p.DisplayName == "" {
		p.DisplayName = body.ID
	}
	if len(body.Images) > 0 {
		p.AvatarURL = body.Images[0].URL
	}
	return p, nil
}

// SearchTracks runs a free-text catalog search. An empty query yields an
// empty result without touching the network.
func (c *Client) SearchTracks(ctx context.Context, token, query string, limit int) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	resp, err := c.get(ctx, token, "/search", params)
	if err != nil {
		return nil, &SearchError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrCredentialExpired
	case resp.StatusCode != http.StatusOK:
		return nil, &SearchError{Status: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
	}

	var body struct {
		Tracks struct {
			Items []struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				URI     string `json:"uri"`
				Preview string `json:"preview_url"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Images []struct {
						URL string `json:"url"`
					} `json:"images"`
				} `json:"album"`
			} `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	tracks := make([]models.Track, 0, len(body.Tracks.Items))
	for _, item := range body.Tracks.Items {
		names := make([]string, 0, len(item.Artists))
		for _, a := range item.Artists {
			names = append(names, a.Name)
		}
		tr := models.Track{
			ID:         item.ID,
			Title:      item.Name,
			Artist:     strings.Join(names, ", "),
			PreviewURL: item.Preview,
			URI:        item.URI,
		}
		// Prefer the smallest cover; fall back to whatever is first.
		if n := len(item.Album.Images); n > 0 {
			tr.CoverURL = item.Album.Images[n-1].URL
		}
		tracks = append(tracks, tr)
	}
	return tracks, nil
}

// Play starts playback of the given URI on a device.
func (c *Client) Play(ctx context.Context, token, deviceID, uri string) error {
	body := fmt.Sprintf(`{"uris":[%q]}`, uri)
	return c.playerPut(ctx, token, "/me/player/play", deviceID, body)
}

// Pause stops playback on a device.
func (c *Client) Pause(ctx context.Context, token, deviceID string) error {
	return c.playerPut(ctx, token, "/me/player/pause", deviceID, "")
}

func (c *Client) playerPut(ctx context.Context, token, path, deviceID, body string) error {
	u := c.baseURL + path
	if deviceID != "" {
		u += "?device_id=" + url.QueryEscape(deviceID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrCredentialExpired
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("playback command %s failed with status %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, token, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(req)
}
