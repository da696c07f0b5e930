package handler

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// exiftoolBackupSuffix is the suffix exiftool appends to the copy it
// keeps of the unmodified file.
const exiftoolBackupSuffix = "_original"

// GIFHandler backfills an XMP DateTimeOriginal field in GIF files by
// shelling out to exiftool, the one handler that relies on an external
// process: no in-process library in use here writes XMP into GIF
// containers. Processed files are renamed with the marker infix since
// there is no cheap presence check for the field.
type GIFHandler struct {
	deps *Deps
}

// NewGIFHandler returns a GIFHandler.
func NewGIFHandler(deps *Deps) *GIFHandler {
	return &GIFHandler{deps: deps}
}

func (h *GIFHandler) Name() string { return "GIF" }

// HasDate reports whether the file name already carries the processed
// marker.
func (h *GIFHandler) HasDate(path string) (bool, error) {
	return hasMarker(path, ProcessedMarker), nil
}

// WriteDate sets XMP:DateTimeOriginal via exiftool, relocates the
// exiftool backup copy into the vault, and renames the file with the
// processed marker.
func (h *GIFHandler) WriteDate(path string) error {
	dateStr, err := h.deps.Oracle.EarliestDate(path, timestamp.LayoutEXIF)
	if err != nil {
		return err
	}
	newPath := markedPath(path, ProcessedMarker)

	h.deps.Log.Infof("[Assign XMP DateTimeOriginal (GIF)] %s %s", newPath, dateStr)
	if h.deps.DryRun {
		return nil
	}

	cmd := exec.Command(h.deps.ExiftoolPath, fmt.Sprintf("-XMP:DateTimeOriginal=%s", dateStr), path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool failed on %s: %w: %s", path, err, output)
	}

	if err := os.Rename(path, newPath); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	// exiftool left its safety copy next to the original.
	return h.deps.Vault.Archive(path + exiftoolBackupSuffix)
}
