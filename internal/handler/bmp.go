package handler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// BMPMarker is the infix carried by PNG files produced from BMP
// conversions.
const BMPMarker = "_bmp"

// BMPHandler converts BMP files to PNG so date metadata can be carried
// at all: BMP has no native field for it. The original is archived in
// the vault and the converted sibling is handed to the PNG handler.
type BMPHandler struct {
	deps *Deps
	png  *PNGHandler
}

// NewBMPHandler returns a BMPHandler delegating to the given PNG
// handler.
func NewBMPHandler(deps *Deps, png *PNGHandler) *BMPHandler {
	return &BMPHandler{deps: deps, png: png}
}

func (h *BMPHandler) Name() string { return "BMP" }

// HasDate always reports false: a BMP that survived to this run has not
// been converted yet. After conversion the BMP itself is gone from the
// media directory, which is what makes re-runs idempotent.
func (h *BMPHandler) HasDate(path string) (bool, error) {
	return false, nil
}

// WriteDate converts the BMP to a _bmp.png sibling, archives the
// original, and delegates the metadata write to the PNG handler. The
// timestamp is taken from the original BMP before conversion; the
// converted file's own times are the run time and must not be used.
func (h *BMPHandler) WriteDate(path string) error {
	dateStr, err := h.deps.Oracle.EarliestDate(path, timestamp.LayoutEXIF)
	if err != nil {
		return err
	}
	newPath := strings.TrimSuffix(path, filepath.Ext(path)) + BMPMarker + ".png"

	h.deps.Log.Infof("[Convert BMP to PNG] %s %s", path, newPath)
	if h.deps.DryRun {
		return nil
	}

	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode BMP: %w", err)
	}
	if err := imaging.Save(img, newPath); err != nil {
		return fmt.Errorf("failed to save PNG: %w", err)
	}
	if err := h.deps.Vault.Archive(path); err != nil {
		return err
	}
	return h.png.writeDateValue(newPath, dateStr)
}
