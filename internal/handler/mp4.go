package handler

import (
	"fmt"
	"os/exec"

	"github.com/ypei92/backfill-media-date/internal/mp4meta"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// MP4Handler backfills the creation_time tag of MP4/M4V containers.
// The container is probed in-process; when a remux is needed the video
// stream is copied bit-for-bit and only the audio stream is transcoded,
// so the costly rewrite loses no visual quality.
type MP4Handler struct {
	deps *Deps
}

// NewMP4Handler returns an MP4Handler.
func NewMP4Handler(deps *Deps) *MP4Handler {
	return &MP4Handler{deps: deps}
}

func (h *MP4Handler) Name() string { return "MP4" }

// HasDate reports whether every stream in the container already carries
// a creation time.
func (h *MP4Handler) HasDate(path string) (bool, error) {
	return mp4meta.HasCreationTimes(path)
}

// WriteDate remuxes the video into a marker-named sibling with the
// creation_time tag injected, then archives the original.
func (h *MP4Handler) WriteDate(path string) error {
	dateStr, err := h.deps.Oracle.EarliestDate(path, timestamp.LayoutVideo)
	if err != nil {
		return err
	}
	newPath := markedPath(path, ProcessedMarker)

	h.deps.Log.Infof("[Assign Media Created (MP4)] %s %s", newPath, dateStr)
	if h.deps.DryRun {
		return nil
	}

	cmd := exec.Command(h.deps.FFmpegPath,
		"-i", path,
		"-c:v", "copy",
		"-c:a", h.deps.AudioCodec,
		"-metadata", "creation_time="+dateStr,
		"-y", newPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed on %s: %w: %s", path, err, tail(output))
	}

	return h.deps.Vault.Archive(path)
}

// tail trims ffmpeg's banner-heavy output to the part that matters.
func tail(output []byte) []byte {
	const keep = 512
	if len(output) > keep {
		return output[len(output)-keep:]
	}
	return output
}
