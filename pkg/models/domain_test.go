package models

import (
	"encoding/json"
	"testing"
)

func TestTrackUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Track
	}{
		{
			name: "current keys",
			in:   `{"id":"ode","title":"Ode to Joy","artist":"Beethoven","audio_url":"a.mp3","thumbnail_url":"a.png"}`,
			want: Track{ID: "ode", Title: "Ode to Joy", Artist: "Beethoven", AudioURL: "a.mp3", ThumbnailURL: "a.png"},
		},
		{
			name: "legacy keys",
			in:   `{"id":3,"name":"Scale","author":"Teacher","src":"/music/scale.mp3","img":"/img/scale.jpg"}`,
			want: Track{ID: "3", Title: "Scale", Artist: "Teacher", AudioURL: "/music/scale.mp3", ThumbnailURL: "/img/scale.jpg"},
		},
		{
			name: "current keys win",
			in:   `{"title":"New","name":"Old"}`,
			want: Track{Title: "New"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Track
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTrackUnmarshalRejectsBadID(t *testing.T) {
	var got Track
	if err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &got); err == nil {
		t.Error("expected error for object id")
	}
}

func TestTrackMarshalUsesCurrentKeys(t *testing.T) {
	data, err := json.Marshal(Track{ID: "a", Title: "T"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"a","title":"T","artist":"","audio_url":"","thumbnail_url":""}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
