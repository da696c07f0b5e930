package mp4meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHasCreationTimesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("this is not an mp4 container"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := HasCreationTimes(path); err == nil {
		t.Fatal("expected an error for a non-MP4 file")
	}
}

func TestHasCreationTimesMissingFile(t *testing.T) {
	if _, err := HasCreationTimes(filepath.Join(t.TempDir(), "absent.mp4")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestToTime(t *testing.T) {
	// The container epoch is 1904-01-01; an offset of exactly
	// 2082844800 seconds lands on the Unix epoch.
	got := ToTime(epochOffset)
	want := time.Unix(0, 0).UTC()
	if !got.Equal(want) {
		t.Errorf("ToTime(epochOffset) = %v, want %v", got, want)
	}

	if !ToTime(0).Before(want) {
		t.Error("a zero container timestamp must predate the Unix epoch")
	}
}
