package handler

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

func writeJPEGFixture(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{R: 250, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jpeg fixture: %v", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	f.Close()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestJPEGWriteDateThenHasDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeJPEGFixture(t, path, time.Date(2016, 8, 1, 14, 0, 0, 0, time.Local))

	h := NewJPEGHandler(newTestDeps(t, dir, false))

	present, err := h.HasDate(path)
	if err != nil {
		t.Fatalf("HasDate failed: %v", err)
	}
	if present {
		t.Fatal("fresh JPEG should not have DateTimeOriginal")
	}

	if err := h.WriteDate(path); err != nil {
		t.Fatalf("WriteDate failed: %v", err)
	}

	present, err = h.HasDate(path)
	if err != nil {
		t.Fatalf("HasDate after write failed: %v", err)
	}
	if !present {
		t.Error("DateTimeOriginal should be present after write")
	}
}

func TestJPEGSecondRunIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeJPEGFixture(t, path, time.Date(2016, 8, 1, 14, 0, 0, 0, time.Local))

	h := NewJPEGHandler(newTestDeps(t, dir, false))
	if err := h.WriteDate(path); err != nil {
		t.Fatalf("WriteDate failed: %v", err)
	}
	first, _ := os.ReadFile(path)

	// A second pass must short-circuit on HasDate; the file stays
	// byte-identical.
	present, err := h.HasDate(path)
	if err != nil || !present {
		t.Fatalf("HasDate = %v, %v; want true", present, err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("file changed between runs without a write")
	}
}

func TestJPEGDryRunMutatesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeJPEGFixture(t, path, time.Date(2016, 8, 1, 14, 0, 0, 0, time.Local))
	before, _ := os.ReadFile(path)

	h := NewJPEGHandler(newTestDeps(t, dir, true))
	if err := h.WriteDate(path); err != nil {
		t.Fatalf("dry-run WriteDate failed: %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("dry run must not modify the file")
	}
}

func TestJPEGCorruptedExifIsAbsentNotError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	writeJPEGFixture(t, path, time.Now())

	h := NewJPEGHandler(newTestDeps(t, dir, false))
	present, err := h.HasDate(path)
	if err != nil {
		t.Fatalf("missing EXIF must not be an error: %v", err)
	}
	if present {
		t.Error("missing EXIF should read as absent")
	}
}

// writeOrientedJPEGFixture writes a JPEG whose EXIF holds only an
// Orientation (SHORT) tag, the shape of a camera file with rotation
// metadata but no capture date.
func writeOrientedJPEGFixture(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var jpegBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg fixture: %v", err)
	}
	jpegData := jpegBuf.Bytes()

	var tiff bytes.Buffer
	le := binary.LittleEndian
	tiff.WriteString("II")
	binary.Write(&tiff, le, uint16(0x2A))
	binary.Write(&tiff, le, uint32(8))
	binary.Write(&tiff, le, uint16(1))
	binary.Write(&tiff, le, uint16(0x0112)) // Orientation
	binary.Write(&tiff, le, uint16(3))      // SHORT
	binary.Write(&tiff, le, uint32(1))
	tiff.Write([]byte{6, 0, 0, 0}) // rotate 90 CW
	binary.Write(&tiff, le, uint32(0))

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
	out.Write(jpegData[2:])

	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestJPEGRichExifAbortsWithoutConfirm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camera.jpg")
	writeOrientedJPEGFixture(t, path, time.Date(2016, 8, 1, 14, 0, 0, 0, time.Local))
	before, _ := os.ReadFile(path)

	deps := newTestDeps(t, dir, false)
	deps.Confirm = nil // non-interactive default
	h := NewJPEGHandler(deps)

	if err := h.WriteDate(path); err == nil {
		t.Error("expected error: untouched orientation metadata needs a confirmed re-encode")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Error("declined rewrite must leave the file unchanged")
	}
}

func TestJPEGRichExifConfirmedReencodeWritesDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "camera.jpg")
	writeOrientedJPEGFixture(t, path, time.Date(2016, 8, 1, 14, 0, 0, 0, time.Local))

	deps := newTestDeps(t, dir, false)
	deps.Confirm = func(prompt string) bool { return true }
	h := NewJPEGHandler(deps)

	if err := h.WriteDate(path); err != nil {
		t.Fatalf("confirmed re-encode failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		t.Fatalf("re-encoded JPEG has unreadable EXIF: %v", err)
	}
	if _, err := x.Get(exif.DateTimeOriginal); err != nil {
		t.Errorf("DateTimeOriginal missing after re-encode: %v", err)
	}
}

func TestJPEGMalformedContainerAbortsWithoutConfirm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("not a jpeg at all"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	deps := newTestDeps(t, dir, false)
	deps.Confirm = nil // non-interactive default
	h := NewJPEGHandler(deps)

	if err := h.WriteDate(path); err == nil {
		t.Error("expected error when rewrite fails and no confirmer is wired")
	}
}

func TestJPEGConfirmDeclinedAborts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(path, []byte("not a jpeg at all"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	asked := false
	deps := newTestDeps(t, dir, false)
	deps.Confirm = func(prompt string) bool {
		asked = true
		return false
	}
	h := NewJPEGHandler(deps)

	if err := h.WriteDate(path); err == nil {
		t.Error("expected error when operator declines the re-encode")
	}
	if !asked {
		t.Error("confirm callback should have been invoked")
	}
}
