package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brassbook/brassbook/pkg/models"
)

const legacyCatalog = `[
  {"id": 1, "name": "Ode to Joy", "author": "Beethoven", "src": "/music/ode.mp3", "img": "/img/ode.jpg"},
  {"id": 2, "name": "Scale", "author": "Teacher", "src": "/music/scale.mp3", "img": "/img/scale.jpg"}
]`

func TestParseLegacyArray(t *testing.T) {
	c, err := Parse([]byte(legacyCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("Expected 2 tracks, got %d", c.Len())
	}
	first := c.At(0)
	if first.ID != "1" || first.Title != "Ode to Joy" || first.AudioURL != "/music/ode.mp3" {
		t.Errorf("Unexpected first track %+v", first)
	}
}

func TestParseWrappedObject(t *testing.T) {
	c, err := Parse([]byte(`{"tracks":[{"id":"a","title":"A","audio_url":"a.mp3"}],"count":1}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got, err := c.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "A" {
		t.Errorf("Expected title A, got %q", got.Title)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		tracks []models.Track
		ok     bool
	}{
		{"empty catalog", nil, true},
		{"missing ids are numbered", []models.Track{{AudioURL: "a"}, {AudioURL: "b"}}, true},
		{"duplicate id", []models.Track{{ID: "x", AudioURL: "a"}, {ID: "x", AudioURL: "b"}}, false},
		{"missing source", []models.Track{{ID: "x"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tracks)
			if (err == nil) != tt.ok {
				t.Errorf("New() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestGetAndIndex(t *testing.T) {
	c, err := New([]models.Track{{AudioURL: "a"}, {AudioURL: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Index("2") != 1 || c.Index("nope") != -1 {
		t.Errorf("Index returned unexpected values")
	}
	if _, err := c.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	tracks := c.Tracks()
	tracks[0].Title = "mutated"
	if c.At(0).Title == "mutated" {
		t.Error("Tracks must return a copy")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.json")
	if err := os.WriteFile(path, []byte(legacyCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 tracks, got %d", c.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tracks" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tracks":[{"id":"ode","title":"Ode","audio_url":"/music/ode.mp3"}],"count":1}`))
	}))
	defer srv.Close()

	c, err := Fetch(context.Background(), srv.Client(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if c.Len() != 1 || c.At(0).ID != "ode" {
		t.Errorf("Unexpected catalog %+v", c.Tracks())
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Error("Expected error for 500 response")
	}
}
