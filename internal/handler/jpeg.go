package handler

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/ypei92/backfill-media-date/internal/jpegmeta"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// JPEGHandler backfills DateTimeOriginal in the EXIF block of JPEG
// files. The write path rewrites metadata segments only, leaving the
// compressed image data byte-identical; a full re-encode happens only
// when that rewrite is impossible (malformed container, or existing
// EXIF too rich to carry through the rebuild) and only after operator
// confirmation.
type JPEGHandler struct {
	deps *Deps
}

// NewJPEGHandler returns a JPEGHandler.
func NewJPEGHandler(deps *Deps) *JPEGHandler {
	return &JPEGHandler{deps: deps}
}

func (h *JPEGHandler) Name() string { return "JPEG" }

// HasDate reports whether the EXIF DateTimeOriginal field is set.
// A missing or corrupted EXIF block is a normal case, not an error.
func (h *JPEGHandler) HasDate(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		h.deps.Log.Infof("[No EXIF metadata or corrupted] %s", path)
		return false, nil
	}
	if _, err := x.Get(exif.DateTimeOriginal); err == nil {
		return true, nil
	}
	return false, nil
}

// WriteDate sets DateTimeOriginal to the oracle timestamp and rewrites
// the file in place.
func (h *JPEGHandler) WriteDate(path string) error {
	dateStr, err := h.deps.Oracle.EarliestDate(path, timestamp.LayoutEXIF)
	if err != nil {
		return err
	}

	h.deps.Log.Infof("[Assign Date Taken (JPEG)] %s %s", path, dateStr)
	if h.deps.DryRun {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	out, rewriteErr := jpegmeta.SetDateTimeOriginal(data, dateStr)
	if rewriteErr == nil {
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		return nil
	}

	// The container could not be rewritten losslessly, either because
	// it is malformed or because its EXIF holds tags the rewrite would
	// drop. Re-encoding loses quality and metadata, so it needs
	// explicit operator acknowledgment.
	h.deps.Log.Errorf("[Error] lossless metadata rewrite failed for %s: %v", path, rewriteErr)
	prompt := fmt.Sprintf("re-encode %s at quality %d", path, h.deps.FallbackQuality)
	if h.deps.Confirm == nil || !h.deps.Confirm(prompt) {
		return fmt.Errorf("metadata rewrite failed and re-encode was not confirmed: %w", rewriteErr)
	}
	return h.reencode(path, dateStr)
}

// reencode decodes the image, encodes it again at the configured
// fallback quality, and applies the EXIF segment to the fresh output.
// The orientation tag does not survive the rebuild, so the rotation is
// baked into the pixels instead.
func (h *JPEGHandler) reencode(path, dateStr string) error {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(h.deps.FallbackQuality)); err != nil {
		return fmt.Errorf("failed to re-encode image: %w", err)
	}

	out, err := jpegmeta.SetDateTimeOriginal(buf.Bytes(), dateStr)
	if err != nil {
		return fmt.Errorf("failed to set metadata on re-encoded image: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
