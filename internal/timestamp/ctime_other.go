//go:build !linux && !darwin

package timestamp

import (
	"os"
	"time"
)

// creationTime degrades to the modification time on platforms without
// an accessible creation or change time. min(creation, modification)
// then trivially selects the modification time.
func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
