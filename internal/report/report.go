package report

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Report aggregates the outcome of a backfill run. Counters are atomic
// so the web layer can read them while a run is in flight.
type Report struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesBackfilled     int64
	FilesSkipped        int64
	FilesPassedThrough  int64
	BMPConversions      int64
	VideoRemuxes        int64
	BytesProcessed      int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []RunError

	mutex       sync.RWMutex
	FormatStats map[string]int64
}

// RunError records a fatal condition hit during processing.
type RunError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewReport returns a Report with the clock started.
func NewReport() *Report {
	return &Report{
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]RunError, 0),
	}
}

// IncrementFilesFound increases the count of enumerated media files by 1.
func (r *Report) IncrementFilesFound() {
	atomic.AddInt64(&r.TotalFilesFound, 1)
}

// IncrementFilesProcessed increases the count of dispatched files by 1.
func (r *Report) IncrementFilesProcessed() {
	atomic.AddInt64(&r.TotalFilesProcessed, 1)
}

// IncrementFilesBackfilled increases the count of files that received
// date metadata by 1.
func (r *Report) IncrementFilesBackfilled() {
	atomic.AddInt64(&r.FilesBackfilled, 1)
}

// IncrementFilesSkipped increases the count of files whose date
// metadata was already present by 1.
func (r *Report) IncrementFilesSkipped() {
	atomic.AddInt64(&r.FilesSkipped, 1)
}

// IncrementFilesPassedThrough increases the count of files whose format
// is considered metadata-complete by convention by 1.
func (r *Report) IncrementFilesPassedThrough() {
	atomic.AddInt64(&r.FilesPassedThrough, 1)
}

// IncrementBMPConversions increases the count of BMP-to-PNG conversions by 1.
func (r *Report) IncrementBMPConversions() {
	atomic.AddInt64(&r.BMPConversions, 1)
}

// IncrementVideoRemuxes increases the count of video remuxes by 1.
func (r *Report) IncrementVideoRemuxes() {
	atomic.AddInt64(&r.VideoRemuxes, 1)
}

// IncrementFormat increases the counter for a format name by 1.
func (r *Report) IncrementFormat(format string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.FormatStats[format]++
}

// AddBytesProcessed adds the given number of bytes to the running total.
func (r *Report) AddBytesProcessed(bytes int64) {
	atomic.AddInt64(&r.BytesProcessed, bytes)
}

// AddError records a fatal condition.
func (r *Report) AddError(filePath, operation, errorMsg string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Errors = append(r.Errors, RunError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize stops the clock.
func (r *Report) Finalize() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Summary returns a formatted summary of the run.
func (r *Report) Summary() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf(`Backfill Summary:

Files:
	Total Found: %d
	Total Processed: %d
	Backfilled: %d
	Skipped (already dated): %d
	Passed Through: %d

Destructive Changes:
	BMP Conversions: %d
	Video Remuxes: %d

Performance:
	Duration: %v
	Bytes Processed: %s

Errors: %d`,
		atomic.LoadInt64(&r.TotalFilesFound),
		atomic.LoadInt64(&r.TotalFilesProcessed),
		atomic.LoadInt64(&r.FilesBackfilled),
		atomic.LoadInt64(&r.FilesSkipped),
		atomic.LoadInt64(&r.FilesPassedThrough),
		atomic.LoadInt64(&r.BMPConversions),
		atomic.LoadInt64(&r.VideoRemuxes),
		r.Duration,
		formatBytes(atomic.LoadInt64(&r.BytesProcessed)),
		len(r.Errors))
}

// FormatBreakdown returns a per-format count listing.
func (r *Report) FormatBreakdown() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if len(r.FormatStats) == 0 {
		return "No files processed"
	}
	result := "Format Breakdown:\n"
	for format, count := range r.FormatStats {
		result += fmt.Sprintf("  %s: %d\n", format, count)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
