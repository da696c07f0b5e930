//go:build darwin

package timestamp

import (
	"os"
	"syscall"
	"time"
)

// creationTime returns the file birth time on macOS.
func creationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
	}
	return info.ModTime()
}
