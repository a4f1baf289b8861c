package models

import (
	"encoding/json"
	"time"
)

// Track is one entry of the read-only catalog.
type Track struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	AudioURL     string `json:"audio_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// UnmarshalJSON also accepts the older catalog keys name, author, src and img.
func (t *Track) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           json.RawMessage `json:"id"`
		Title        string          `json:"title"`
		Name         string          `json:"name"`
		Artist       string          `json:"artist"`
		Author       string          `json:"author"`
		AudioURL     string          `json:"audio_url"`
		Src          string          `json:"src"`
		ThumbnailURL string          `json:"thumbnail_url"`
		Img          string          `json:"img"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	*t = Track{
		ID:           id,
		Title:        firstNonEmpty(raw.Title, raw.Name),
		Artist:       firstNonEmpty(raw.Artist, raw.Author),
		AudioURL:     firstNonEmpty(raw.AudioURL, raw.Src),
		ThumbnailURL: firstNonEmpty(raw.ThumbnailURL, raw.Img),
	}
	return nil
}

// decodeID accepts both string and numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Comparison is one scored submission kept in the history.
type Comparison struct {
	ID            string    `json:"id"`
	TrackID       string    `json:"track_id,omitempty"`
	ReferenceName string    `json:"reference_name"`
	RecordingName string    `json:"recording_name"`
	Integral      float64   `json:"integral"`
	CreatedAt     time.Time `json:"created_at"`
}
