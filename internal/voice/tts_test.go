package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSynthesizeStoresAudio(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tts := New(Config{Endpoint: srv.URL, UploadDir: dir, BaseURL: "https://cdn.example.com/"})

	url, err := tts.Synthesize(context.Background(), "good night", "female")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "good night" {
		t.Fatalf("upstream query = %q", gotQuery)
	}
	if !strings.HasPrefix(url, "https://cdn.example.com/uploads/voices/voice_") {
		t.Fatalf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, "voices", filepath.Base(url)))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ID3fake-mp3" {
		t.Fatalf("stored %q", data)
	}
}

func TestSynthesizeRejects(t *testing.T) {
	tts := New(Config{Endpoint: "http://127.0.0.1:0", UploadDir: t.TempDir()})
	tests := []struct {
		name   string
		text   string
		gender string
		want   error
	}{
		{"empty", "  ", "male", ErrEmptyText},
		{"too long", strings.Repeat("a", MaxTextLength+1), "male", ErrTextTooLong},
		{"bad gender", "hi", "robot", ErrGender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tts.Synthesize(context.Background(), tt.text, tt.gender); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tts := New(Config{Endpoint: srv.URL, UploadDir: t.TempDir()})
	if _, err := tts.Synthesize(context.Background(), "hello", "male"); err == nil {
		t.Fatal("expected an upstream error")
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base, file, want string
	}{
		{"", "a.mp3", "/uploads/voices/a.mp3"},
		{"http://localhost:3001/", "a.mp3", "http://localhost:3001/uploads/voices/a.mp3"},
		{"http://x", "", ""},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.file); got != tt.want {
			t.Fatalf("BuildURL(%q, %q) = %q, want %q", tt.base, tt.file, got, tt.want)
		}
	}
}
