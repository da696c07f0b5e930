package handler

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ypei92/backfill-media-date/internal/pngmeta"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

func writeBMPFixture(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 120, G: 120, B: 120, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save bmp fixture: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestBMPConversion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.bmp")
	mtime := time.Date(2015, 2, 14, 9, 0, 0, 0, time.Local)
	writeBMPFixture(t, path, mtime)

	deps := newTestDeps(t, dir, false)
	h := NewBMPHandler(deps, NewPNGHandler(deps))

	if err := h.WriteDate(path); err != nil {
		t.Fatalf("WriteDate failed: %v", err)
	}

	// The original must be gone from the media directory, archived in
	// the vault.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("photo.bmp should be relocated out of the media directory")
	}
	if _, err := os.Stat(filepath.Join(deps.Vault.Dir(), "photo.bmp")); err != nil {
		t.Errorf("photo.bmp missing from vault: %v", err)
	}

	// The converted sibling carries both text fields, holding the
	// original BMP's timestamp. The PNG itself was created seconds ago,
	// so a value derived from the converted file would be today.
	want := mtime.Format(timestamp.LayoutEXIF)
	converted := filepath.Join(dir, "photo_bmp.png")
	chunks, err := pngmeta.ReadFile(converted)
	if err != nil {
		t.Fatalf("converted PNG unreadable: %v", err)
	}
	for _, key := range []string{"Creation Time", "Date Time Original"} {
		got, ok := pngmeta.TextValue(chunks, key)
		if !ok {
			t.Errorf("converted PNG missing %q", key)
			continue
		}
		if got != want {
			t.Errorf("%s = %q, want %q (timestamp must come from the BMP)", key, got, want)
		}
	}
}

func TestBMPDryRunCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.bmp")
	writeBMPFixture(t, path, time.Date(2015, 2, 14, 9, 0, 0, 0, time.Local))

	deps := newTestDeps(t, dir, true)
	h := NewBMPHandler(deps, NewPNGHandler(deps))

	if err := h.WriteDate(path); err != nil {
		t.Fatalf("dry-run WriteDate failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "photo_bmp.png")); !os.IsNotExist(err) {
		t.Error("dry run must not create the converted PNG")
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("dry run must leave the BMP in place")
	}
	if _, err := os.Stat(deps.Vault.Dir()); !os.IsNotExist(err) {
		t.Error("dry run must not create the vault directory")
	}
}
