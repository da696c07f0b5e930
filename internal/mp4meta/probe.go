// Package mp4meta probes ISO BMFF containers for creation-time
// metadata. The movie header (mvhd) and each track header (tkhd) carry
// a creation time measured from the 1904 epoch; muxers that received no
// creation_time tag leave those fields zero.
package mp4meta

import (
	"fmt"
	"os"
	"time"

	mp4 "github.com/abema/go-mp4"
)

// Seconds between the ISO BMFF epoch (1904-01-01) and the Unix epoch.
const epochOffset = 2082844800

// HasCreationTimes reports whether the movie header and every track in
// the container carry a non-zero creation time. A single untagged track
// means the file still needs a backfill.
func HasCreationTimes(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()},
	})
	if err != nil {
		return false, fmt.Errorf("failed to probe container: %w", err)
	}

	tracks := 0
	for _, box := range boxes {
		switch payload := box.Payload.(type) {
		case *mp4.Mvhd:
			var ct uint64
			if payload.Version > 0 {
				ct = payload.CreationTimeV1
			} else {
				ct = uint64(payload.CreationTimeV0)
			}
			if ct == 0 {
				return false, nil
			}
		case *mp4.Tkhd:
			tracks++
			var ct uint64
			if payload.Version > 0 {
				ct = payload.CreationTimeV1
			} else {
				ct = uint64(payload.CreationTimeV0)
			}
			if ct == 0 {
				return false, nil
			}
		}
	}

	if tracks == 0 {
		return false, fmt.Errorf("no tracks found in container")
	}
	return true, nil
}

// ToTime converts an ISO BMFF creation time into a time.Time.
func ToTime(ct uint64) time.Time {
	return time.Unix(int64(ct)-epochOffset, 0).UTC()
}
