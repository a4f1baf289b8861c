package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"song.mp3", "song.mp3"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{`dir\file.wav`, "dir_file.wav"},
		{"  ", "upload"},
		{"..", "upload"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteTempFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	path, err := WriteTempFile(dir, "take/1.wav", []byte("RIFF"))
	if err != nil {
		t.Fatalf("WriteTempFile failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Expected file inside %s, got %s", dir, path)
	}
	if !strings.HasSuffix(path, "_take_1.wav") {
		t.Errorf("Unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("Unexpected content %q (err %v)", data, err)
	}
}

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	if a == b {
		t.Error("Expected distinct UUIDs")
	}
	if !IsUUID(a) {
		t.Errorf("%q is not a valid UUID", a)
	}
	if IsUUID("not-a-uuid") {
		t.Error("IsUUID accepted garbage")
	}
}
