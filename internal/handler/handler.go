// Package handler contains the per-format backfill strategies. Each
// supported container format implements Handler: detect whether date
// metadata is already present, and write it when it is not. Selection
// happens by extension through the Dispatcher.
package handler

import (
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ypei92/backfill-media-date/internal/backup"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// ProcessedMarker is the filename infix that marks a file as already
// backfilled, used by handlers that replace the original with a sibling
// file.
const ProcessedMarker = "_immich"

// ConfirmFunc asks the operator to acknowledge a degraded operation
// before it runs. A nil ConfirmFunc means "abort", which keeps
// non-interactive contexts (services, tests) safe by default.
type ConfirmFunc func(prompt string) bool

// Deps carries the collaborators shared by every handler. DryRun guards
// every mutating operation: a dry run walks the same decision path and
// emits the same log lines, but changes nothing on disk.
type Deps struct {
	Log     *logrus.Logger
	Oracle  *timestamp.Oracle
	Vault   *backup.Vault
	DryRun  bool
	Confirm ConfirmFunc

	// External tool configuration.
	ExiftoolPath string
	FFmpegPath   string

	// JPEG re-encode quality used only after operator confirmation.
	FallbackQuality int
	// Audio codec for the MP4 remux.
	AudioCodec string
}

// Handler is the two-operation capability every format strategy
// implements.
type Handler interface {
	// Name identifies the format in logs.
	Name() string
	// HasDate reports whether date metadata is already present (or
	// the file is already marked processed). Missing or corrupted
	// metadata is "absent", not an error.
	HasDate(path string) (bool, error)
	// WriteDate backfills the date metadata. Mutations are skipped
	// when Deps.DryRun is set.
	WriteDate(path string) error
}

// markedPath inserts the given infix before the file extension:
// clip.gif becomes clip_immich.gif.
func markedPath(path, infix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + infix + ext
}

// hasMarker reports whether the file name already carries the infix
// directly before its extension.
func hasMarker(path, infix string) bool {
	ext := filepath.Ext(path)
	return strings.HasSuffix(strings.TrimSuffix(path, ext), infix)
}
