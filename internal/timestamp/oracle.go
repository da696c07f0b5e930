package timestamp

import (
	"fmt"
	"os"
	"time"
)

// Layouts used when rendering a timestamp into container metadata.
const (
	// LayoutEXIF is the colon-separated form expected by EXIF-style
	// image metadata fields.
	LayoutEXIF = "2006:01:02 15:04:05"
	// LayoutVideo is the ISO-like form expected by video container
	// creation_time tags.
	LayoutVideo = "2006-01-02T15:04:05"
)

// Oracle derives a single representative timestamp for a file from
// filesystem metadata. The heuristic is min(creation time, modification
// time): copy operations commonly reset the creation time, in which
// case the modification time is the more trustworthy of the two.
type Oracle struct{}

// NewOracle returns a new Oracle.
func NewOracle() *Oracle {
	return &Oracle{}
}

// EarliestDate returns the earlier of the file's creation and
// modification times, rendered with the given layout.
func (o *Oracle) EarliestDate(path, layout string) (string, error) {
	t, err := o.Earliest(path)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

// Earliest returns the earlier of the file's creation and modification
// times. A stat failure is propagated to the caller and is fatal for
// the file being processed.
func (o *Oracle) Earliest(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat file: %w", err)
	}

	modTime := info.ModTime()
	created := creationTime(info)
	if created.Before(modTime) {
		return created, nil
	}
	return modTime, nil
}
