//go:build linux

package timestamp

import (
	"os"
	"syscall"
	"time"
)

// creationTime returns the closest thing Linux exposes to a creation
// time: the inode change time. Falls back to the modification time when
// the underlying stat type is not available.
func creationTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
