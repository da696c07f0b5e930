package handler

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ypei92/backfill-media-date/internal/backup"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// newTestDeps returns handler dependencies wired against a temp vault
// and a silent logger.
func newTestDeps(t *testing.T, mediaDir string, dryRun bool) *Deps {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	vault := backup.NewVault(mediaDir, "")
	if !dryRun {
		if err := vault.Ensure(); err != nil {
			t.Fatalf("vault Ensure failed: %v", err)
		}
	}
	return &Deps{
		Log:             log,
		Oracle:          timestamp.NewOracle(),
		Vault:           vault,
		DryRun:          dryRun,
		ExiftoolPath:    "exiftool",
		FFmpegPath:      "ffmpeg",
		FallbackQuality: 95,
		AudioCodec:      "aac",
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	d := NewDispatcher(newTestDeps(t, t.TempDir(), true), nil)

	tests := []struct {
		path string
		want string
	}{
		{"/media/a.JPG", "JPEG"},
		{"/media/b.jpeg", "JPEG"},
		{"/media/c.Png", "PNG"},
		{"/media/d.BMP", "BMP"},
		{"/media/e.gif", "GIF"},
		{"/media/f.MP4", "MP4"},
		{"/media/g.m4v", "MP4"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h, passthrough, err := d.Lookup(tt.path)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if passthrough {
				t.Fatal("unexpected passthrough")
			}
			if h.Name() != tt.want {
				t.Errorf("handler = %s, want %s", h.Name(), tt.want)
			}
		})
	}
}

func TestLookupPassthrough(t *testing.T) {
	d := NewDispatcher(newTestDeps(t, t.TempDir(), true), nil)

	for _, path := range []string{"/m/a.mov", "/m/b.TIF", "/m/c.heic", "/m/d.webp"} {
		h, passthrough, err := d.Lookup(path)
		if err != nil {
			t.Errorf("Lookup(%s) failed: %v", path, err)
		}
		if !passthrough || h != nil {
			t.Errorf("Lookup(%s) should be passthrough", path)
		}
	}
}

func TestLookupUnsupported(t *testing.T) {
	d := NewDispatcher(newTestDeps(t, t.TempDir(), true), nil)

	_, _, err := d.Lookup("/media/note.txt")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Fatalf("expected ErrUnsupportedExtension, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, ".txt") || !strings.Contains(got, "note.txt") {
		t.Errorf("error should identify extension and file, got %q", got)
	}
}

func TestMarkedPath(t *testing.T) {
	if got := markedPath("/m/clip.gif", ProcessedMarker); got != "/m/clip_immich.gif" {
		t.Errorf("markedPath = %q", got)
	}
	if !hasMarker("/m/clip_immich.gif", ProcessedMarker) {
		t.Error("hasMarker should detect the infix")
	}
	if hasMarker("/m/clip.gif", ProcessedMarker) {
		t.Error("hasMarker false positive")
	}
}
