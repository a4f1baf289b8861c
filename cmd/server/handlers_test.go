package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brassbook/brassbook/pkg/brassbook"
	"github.com/brassbook/brassbook/pkg/brassbook/melody"
	"github.com/brassbook/brassbook/pkg/logger"
	"github.com/brassbook/brassbook/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

type fakeService struct {
	result     melody.Result
	compareErr error
	compared   []brassbook.Upload
	tracks     []models.Track
	history    []models.Comparison
	lastLimit  int
}

func (f *fakeService) CompareMelodies(ctx context.Context, reference, recording brassbook.Upload) (melody.Result, error) {
	f.compared = append(f.compared, reference, recording)
	return f.result, f.compareErr
}

func (f *fakeService) CompareFiles(ctx context.Context, referencePath, recordingPath string) (melody.Result, error) {
	return f.result, f.compareErr
}

func (f *fakeService) ImportTracks(tracks []models.Track) error {
	f.tracks = tracks
	return nil
}

func (f *fakeService) ListTracks() ([]models.Track, error) { return f.tracks, nil }

func (f *fakeService) GetTrack(id string) (*models.Track, error) {
	for _, t := range f.tracks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, brassbook.ErrTrackNotFound
}

func (f *fakeService) ListComparisons(limit int) ([]models.Comparison, error) {
	f.lastLimit = limit
	return f.history, nil
}

func (f *fakeService) Close() error { return nil }

func newTestServer(t *testing.T, svc brassbook.Service, tokens ...string) http.Handler {
	t.Helper()
	s := NewServer(svc, &ServerConfig{
		AllowedOrigins: []string{"*"},
		Tokens:         tokens,
		MaxUploadSize:  1024,
		CompareTimeout: time.Second,
	})
	s.log = logger.Discard()
	return s.setupRoutes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := mw.CreateFormFile(field, field+".wav")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	if err := mw.WriteField(TrackIDField, "3"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func compareRequest(t *testing.T, path, token string, files map[string][]byte) *http.Request {
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCompareMelodies(t *testing.T) {
	svc := &fakeService{result: melody.Result{Integral: 0.75, Rhythm: []int{0, 1}}}
	handler := newTestServer(t, svc, "secret")

	for _, path := range []string{"/api/v1/compare_melodies", "/v1/compare_melodies"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, compareRequest(t, path, "secret", map[string][]byte{
				ReferenceField: []byte("ref"),
				RecordingField: []byte("perf"),
			}))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			var res melody.Result
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("response is not a result array: %v", err)
			}
			if res.Integral != 0.75 {
				t.Errorf("Integral = %v, want 0.75", res.Integral)
			}
		})
	}

	if len(svc.compared) != 4 {
		t.Fatalf("service saw %d uploads, want 4", len(svc.compared))
	}
	ref, perf := svc.compared[0], svc.compared[1]
	if string(ref.Data) != "ref" || ref.Name != "file1.wav" || ref.TrackID != "3" {
		t.Errorf("unexpected reference upload %+v", ref)
	}
	if string(perf.Data) != "perf" {
		t.Errorf("unexpected recording upload %+v", perf)
	}
}

func TestCompareMelodiesErrors(t *testing.T) {
	files := map[string][]byte{ReferenceField: []byte("a"), RecordingField: []byte("b")}

	tests := []struct {
		name   string
		token  string
		files  map[string][]byte
		svcErr error
		want   int
	}{
		{"missing token", "", files, nil, http.StatusUnauthorized},
		{"wrong token", "nope", files, nil, http.StatusUnauthorized},
		{"missing file2", "secret", map[string][]byte{ReferenceField: []byte("a")}, nil, http.StatusBadRequest},
		{"oversized file", "secret", map[string][]byte{ReferenceField: make([]byte, 2048), RecordingField: []byte("b")}, nil, http.StatusRequestEntityTooLarge},
		{"not audio", "secret", files, fmt.Errorf("file1: %w", brassbook.ErrNotAudio), http.StatusBadRequest},
		{"empty upload", "secret", files, brassbook.ErrEmptyUpload, http.StatusBadRequest},
		{"too large from service", "secret", files, brassbook.ErrUploadTooLarge, http.StatusRequestEntityTooLarge},
		{"comparison failure", "secret", files, errors.New("ffmpeg failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeService{compareErr: tt.svcErr}, "secret")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, compareRequest(t, "/api/v1/compare_melodies", tt.token, tt.files))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body not JSON: %v", err)
			}
			if body.Code != tt.want {
				t.Errorf("body code = %d, want %d", body.Code, tt.want)
			}
		})
	}
}

func TestCompareMelodiesMethodNotAllowed(t *testing.T) {
	handler := newTestServer(t, &fakeService{}, "secret")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/compare_melodies", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestTokenAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	auth := newTokenAuth([]string{" plain ", string(hash), ""})

	tests := []struct {
		token string
		want  bool
	}{
		{"plain", true},
		{"hashed-token", true},
		{"other", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := auth.valid(tt.token); got != tt.want {
			t.Errorf("valid(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}

	open := newTokenAuth(nil)
	if !open.valid("anything") || open.valid("") {
		t.Error("open auth should accept any non-empty token only")
	}
}

func TestBearerTokenFromCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
	if got := bearerToken(req); got != "from-cookie" {
		t.Errorf("bearerToken = %q", got)
	}

	req.Header.Set("Authorization", "Basic abc")
	if got := bearerToken(req); got != "" {
		t.Errorf("non-bearer scheme yielded %q", got)
	}
}

func TestTracksEndpoints(t *testing.T) {
	svc := &fakeService{tracks: []models.Track{
		{ID: "1", Title: "Ode", Artist: "Beethoven", AudioURL: "/audio/ode.mp3"},
		{ID: "2", Title: "Taps", Artist: "Butterfield", AudioURL: "/audio/taps.mp3"},
	}}
	handler := newTestServer(t, svc)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list ListTracksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || list.Tracks[1].Title != "Taps" {
		t.Errorf("unexpected list %+v", list)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracks/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tracks/99", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing track status = %d, want 404", rec.Code)
	}
}

func TestComparisonsEndpoint(t *testing.T) {
	svc := &fakeService{history: []models.Comparison{{ID: "c1", Integral: 0.5}}}
	handler := newTestServer(t, svc, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/comparisons?limit=5", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", svc.lastLimit)
	}
	var resp ListComparisonsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Comparisons[0].ID != "c1" {
		t.Errorf("unexpected response %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/comparisons?limit=-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	handler := newTestServer(t, &fakeService{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/compare_melodies", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}
