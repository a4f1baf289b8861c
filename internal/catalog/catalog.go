// Package catalog holds the read-only list of tracks the player walks
// through. A catalog is loaded once, from a JSON file or from the server's
// track listing, and never mutated afterwards.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/brassbook/brassbook/pkg/models"
)

var ErrNotFound = errors.New("track not found in catalog")

type Catalog struct {
	tracks []models.Track
	byID   map[string]int
}

// New builds a catalog from tracks. Tracks without an id get their
// 1-based position; duplicate ids are rejected.
func New(tracks []models.Track) (*Catalog, error) {
	c := &Catalog{
		tracks: make([]models.Track, len(tracks)),
		byID:   make(map[string]int, len(tracks)),
	}
	for i, t := range tracks {
		if t.ID == "" {
			t.ID = strconv.Itoa(i + 1)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate track id %q", t.ID)
		}
		if t.AudioURL == "" {
			return nil, fmt.Errorf("track %q has no audio source", t.ID)
		}
		c.tracks[i] = t
		c.byID[t.ID] = i
	}
	return c, nil
}

// Parse accepts either a bare JSON array of tracks or an object with a
// "tracks" array.
func Parse(data []byte) (*Catalog, error) {
	data = bytes.TrimSpace(data)
	var tracks []models.Track
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &tracks); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
		return New(tracks)
	}

	var wrapped struct {
		Tracks []models.Track `json:"tracks"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(wrapped.Tracks)
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Fetch loads the catalog from the server's GET /api/v1/tracks.
func Fetch(ctx context.Context, client *http.Client, baseURL string) (*Catalog, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimRight(baseURL, "/") + "/api/v1/tracks"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) Len() int { return len(c.tracks) }

// At returns the track at index i. It panics when i is out of range.
func (c *Catalog) At(i int) models.Track { return c.tracks[i] }

func (c *Catalog) Get(id string) (models.Track, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Track{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.tracks[i], nil
}

// Index returns the position of id, or -1.
func (c *Catalog) Index(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// Tracks returns a copy of the catalog in order.
func (c *Catalog) Tracks() []models.Track {
	out := make([]models.Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}
