package pngmeta

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestSetTextAddsChunksBeforeIDAT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writeTestPNG(t, path)

	chunks, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if _, ok := TextValue(chunks, "Creation Time"); ok {
		t.Fatal("fresh PNG should not carry Creation Time")
	}

	fields := []TextField{
		{Key: "Creation Time", Value: "2020:01:02 03:04:05"},
		{Key: "Date Time Original", Value: "2020:01:02 03:04:05"},
	}
	if err := WriteFile(path, SetText(chunks, fields)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	chunks, err = ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after edit failed: %v", err)
	}
	for _, f := range fields {
		got, ok := TextValue(chunks, f.Key)
		if !ok {
			t.Errorf("missing tEXt %q after edit", f.Key)
			continue
		}
		if got != f.Value {
			t.Errorf("tEXt %q = %q, want %q", f.Key, got, f.Value)
		}
	}

	// Text chunks must precede the image data.
	idx := map[string]int{}
	for i, c := range chunks {
		if _, seen := idx[c.Type]; !seen {
			idx[c.Type] = i
		}
	}
	if idx["tEXt"] > idx["IDAT"] {
		t.Error("tEXt chunks should be inserted before IDAT")
	}
}

func TestEditedPNGStillDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writeTestPNG(t, path)

	chunks, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	edited := SetText(chunks, []TextField{{Key: "Creation Time", Value: "2020:01:02 03:04:05"}})
	if err := WriteFile(path, edited); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read edited png: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("edited PNG no longer decodes: %v", err)
	}
}

func TestSetTextUpdatesExistingChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writeTestPNG(t, path)

	chunks, _ := ReadFile(path)
	chunks = SetText(chunks, []TextField{{Key: "Creation Time", Value: "old"}})
	chunks = SetText(chunks, []TextField{{Key: "Creation Time", Value: "new"}})

	got, ok := TextValue(chunks, "Creation Time")
	if !ok || got != "new" {
		t.Errorf("expected updated value %q, got %q (present=%v)", "new", got, ok)
	}

	count := 0
	for _, c := range chunks {
		if c.Type == "tEXt" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected a single tEXt chunk, got %d", count)
	}
}

func TestReadChunksRejectsGarbage(t *testing.T) {
	if _, err := ReadChunks(bytes.NewReader([]byte("definitely not a png"))); err == nil {
		t.Error("expected error for non-PNG input")
	}
}
