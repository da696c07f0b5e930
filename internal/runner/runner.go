package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ypei92/backfill-media-date/internal/backup"
	"github.com/ypei92/backfill-media-date/internal/config"
	"github.com/ypei92/backfill-media-date/internal/handler"
	"github.com/ypei92/backfill-media-date/internal/report"
	"github.com/ypei92/backfill-media-date/internal/timestamp"
)

// LogHookFunc receives a copy of every run log line, for forwarding to
// an external sink such as a WebSocket stream.
type LogHookFunc func(level, message string)

// Runner walks a single media directory and backfills missing date
// metadata on every supported file. Files are processed sequentially
// in directory order; the first error aborts the run so a partially
// mutated directory is never silently reported as complete.
type Runner struct {
	config     *config.Config
	logger     *logrus.Logger
	rep        *report.Report
	vault      *backup.Vault
	dispatcher *handler.Dispatcher

	logHook LogHookFunc
}

// NewRunner returns a Runner wired with the default console
// confirmation behavior (nil Confirm aborts on fallback prompts).
func NewRunner(cfg *config.Config, logger *logrus.Logger, rep *report.Report, confirm handler.ConfirmFunc) *Runner {
	return NewRunnerWithLogHook(cfg, logger, rep, confirm, nil)
}

// NewRunnerWithLogHook additionally forwards log lines to the hook
// (used by the web server to stream progress to clients).
func NewRunnerWithLogHook(cfg *config.Config, logger *logrus.Logger, rep *report.Report, confirm handler.ConfirmFunc, logHook LogHookFunc) *Runner {
	vault := backup.NewVault(cfg.MediaDirectory, cfg.BackupDirName)
	deps := &handler.Deps{
		Log:             logger,
		Oracle:          timestamp.NewOracle(),
		Vault:           vault,
		DryRun:          !cfg.RealRun,
		Confirm:         confirm,
		ExiftoolPath:    cfg.Tools.ExiftoolPath,
		FFmpegPath:      cfg.Tools.FFmpegPath,
		FallbackQuality: cfg.JPEG.FallbackQuality,
		AudioCodec:      cfg.Video.AudioCodec,
	}
	return &Runner{
		config:     cfg,
		logger:     logger,
		rep:        rep,
		vault:      vault,
		dispatcher: handler.NewDispatcher(deps, cfg.PassthroughExtensions),
		logHook:    logHook,
	}
}

// Run processes every file in the configured media directory.
func (r *Runner) Run() error {
	r.rep.StartTime = time.Now()
	defer r.rep.Finalize()

	if r.config.RealRun {
		r.logf(logrus.InfoLevel, "Starting backfill run on %s", r.config.MediaDirectory)
		if err := r.vault.Ensure(); err != nil {
			return fmt.Errorf("failed to prepare backup directory: %w", err)
		}
	} else {
		r.logf(logrus.InfoLevel, "Starting dry run on %s - no files will be modified", r.config.MediaDirectory)
	}

	entries, err := os.ReadDir(r.config.MediaDirectory)
	if err != nil {
		return fmt.Errorf("failed to read media directory: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(r.config.MediaDirectory, entry.Name())

		if entry.IsDir() {
			r.logger.Debugf("Skipping directory: %s", path)
			continue
		}

		r.rep.IncrementFilesFound()

		if err := r.processFile(path); err != nil {
			r.rep.AddError(path, "backfill", err.Error())
			r.logf(logrus.ErrorLevel, "Aborting run: %v", err)
			return err
		}
	}

	r.logf(logrus.InfoLevel, "Backfill run completed")
	return nil
}

// processFile routes a single file through the dispatcher and invokes
// the matching handler.
func (r *Runner) processFile(path string) error {
	h, passthrough, err := r.dispatcher.Lookup(path)
	if err != nil {
		return err
	}

	r.rep.IncrementFilesProcessed()
	r.rep.IncrementFormat(handler.FormatKey(path))

	if passthrough {
		r.logger.Debugf("Passing through %s", path)
		r.rep.IncrementFilesPassedThrough()
		return nil
	}

	present, err := h.HasDate(path)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if present {
		r.logger.Debugf("Date already present, skipping %s", path)
		r.rep.IncrementFilesSkipped()
		return nil
	}

	if err := h.WriteDate(path); err != nil {
		return err
	}

	switch h.Name() {
	case "BMP":
		r.rep.IncrementBMPConversions()
	case "MP4":
		r.rep.IncrementVideoRemuxes()
	}
	r.rep.IncrementFilesBackfilled()

	if info, err := os.Stat(path); err == nil {
		r.rep.AddBytesProcessed(info.Size())
	}
	return nil
}

// logf logs at the given level and mirrors the line into the hook.
func (r *Runner) logf(level logrus.Level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Log(level, msg)
	if r.logHook != nil {
		r.logHook(level.String(), msg)
	}
}
