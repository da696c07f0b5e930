package handler

import (
	"fmt"

	"github.com/ypei92/backfill-media-date/internal/pngmeta"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// Text keywords written into the PNG. "Creation Time" drives OS-level
// file-property display, "Date Time Original" is what photo-management
// ingestion reads.
const (
	pngKeyCreationTime     = "Creation Time"
	pngKeyDateTimeOriginal = "Date Time Original"
)

// PNGHandler backfills tEXt date metadata in PNG files. Edits happen at
// the chunk level, so pixel data is never re-encoded.
type PNGHandler struct {
	deps *Deps
}

// NewPNGHandler returns a PNGHandler.
func NewPNGHandler(deps *Deps) *PNGHandler {
	return &PNGHandler{deps: deps}
}

func (h *PNGHandler) Name() string { return "PNG" }

// HasDate reports whether a "Creation Time" text field already exists.
func (h *PNGHandler) HasDate(path string) (bool, error) {
	return pngmeta.HasText(path, pngKeyCreationTime)
}

// WriteDate sets both text fields to the oracle timestamp and rewrites
// the file in place.
func (h *PNGHandler) WriteDate(path string) error {
	dateStr, err := h.deps.Oracle.EarliestDate(path, timestamp.LayoutEXIF)
	if err != nil {
		return err
	}
	return h.writeDateValue(path, dateStr)
}

// writeDateValue writes a caller-supplied timestamp. The BMP handler
// uses it to carry the original BMP's timestamp onto the converted PNG,
// whose own filesystem times reflect the conversion, not the capture.
func (h *PNGHandler) writeDateValue(path, dateStr string) error {
	h.deps.Log.Infof("[Assign Date Taken (PNG)] %s %s", path, dateStr)
	if h.deps.DryRun {
		return nil
	}

	chunks, err := pngmeta.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse PNG: %w", err)
	}
	chunks = pngmeta.SetText(chunks, []pngmeta.TextField{
		{Key: pngKeyCreationTime, Value: dateStr},
		{Key: pngKeyDateTimeOriginal, Value: dateStr},
	})
	return pngmeta.WriteFile(path, chunks)
}
