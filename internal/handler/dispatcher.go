package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedExtension aborts the whole run: silently skipping an
// unknown format would produce a backfill that looks complete but is
// not.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// DefaultPassthroughExtensions are formats considered already
// metadata-complete by convention; they are logged and left alone.
var DefaultPassthroughExtensions = []string{"mov", "tif", "heic", "webp"}

// Dispatcher maps a file's extension (case-insensitive) to its format
// handler.
type Dispatcher struct {
	handlers    map[string]Handler
	passthrough map[string]struct{}
}

// NewDispatcher wires the closed set of format handlers against the
// shared dependencies. The passthrough list defaults when empty.
func NewDispatcher(deps *Deps, passthrough []string) *Dispatcher {
	jpeg := NewJPEGHandler(deps)
	png := NewPNGHandler(deps)
	bmp := NewBMPHandler(deps, png)
	gif := NewGIFHandler(deps)
	mp4 := NewMP4Handler(deps)

	d := &Dispatcher{
		handlers: map[string]Handler{
			"jpg":  jpeg,
			"jpeg": jpeg,
			"png":  png,
			"bmp":  bmp,
			"gif":  gif,
			"mp4":  mp4,
			"m4v":  mp4,
		},
		passthrough: make(map[string]struct{}),
	}

	if len(passthrough) == 0 {
		passthrough = DefaultPassthroughExtensions
	}
	for _, ext := range passthrough {
		d.passthrough[normalizeExt(ext)] = struct{}{}
	}
	return d
}

// Lookup selects the handler for a file. It returns (nil, true, nil)
// for pass-through extensions, and ErrUnsupportedExtension for anything
// unknown.
func (d *Dispatcher) Lookup(path string) (Handler, bool, error) {
	ext := normalizeExt(filepath.Ext(path))
	if h, ok := d.handlers[ext]; ok {
		return h, false, nil
	}
	if _, ok := d.passthrough[ext]; ok {
		return nil, true, nil
	}
	return nil, false, fmt.Errorf("%w: .%s (%s)", ErrUnsupportedExtension, ext, filepath.Base(path))
}

// FormatKey returns the uppercase extension used as the per-format
// counter key in run reports.
func FormatKey(path string) string {
	return strings.ToUpper(normalizeExt(filepath.Ext(path)))
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
