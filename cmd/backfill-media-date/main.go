package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ypei92/backfill-media-date/internal/config"
	"github.com/ypei92/backfill-media-date/internal/logger"
	"github.com/ypei92/backfill-media-date/internal/report"
	"github.com/ypei92/backfill-media-date/internal/runner"
	"github.com/ypei92/backfill-media-date/internal/web"
)

var (
	cfgFile   string
	realRun   bool
	verbosity string
	quiet     bool
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "backfill-media-date <media-dir>",
	Short: "Backfill missing date-taken metadata from filesystem timestamps",
	Long: `backfill-media-date scans a directory of media files and writes a
"date taken" value into every file that lacks one, derived from the
earlier of the file's change time and modification time.

Supported formats:
- JPEG: EXIF DateTimeOriginal
- PNG:  Creation Time / Date Time Original text fields
- BMP:  converted to PNG, then dated
- GIF:  XMP DateTimeOriginal via exiftool
- MP4:  container creation_time via ffmpeg remux

Originals replaced by a conversion or remux are moved into a backup
directory inside the media directory. Runs are dry by default; pass
--real-run to modify files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBackfill(args[0])
	},
}

// suffixesCmd lists the distinct file extensions found in a directory.
var suffixesCmd = &cobra.Command{
	Use:   "suffixes [directory]",
	Short: "List the distinct file extensions in a directory",
	Long: `Scans the given directory (default: current directory) and prints the
set of distinct file extensions found, lower-cased. Useful for checking
what a backfill run would encounter before starting it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		return runSuffixes(dir)
	},
}

// inspectCmd dumps the metadata of a single file via exiftool.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show all metadata fields of a media file",
	Long: `Runs exiftool against a single file and prints every metadata field it
reports. Useful for verifying what a backfill run wrote.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface server",
	Long: `Starts an HTTP server exposing backfill runs over a JSON API, with a
WebSocket endpoint that streams run log lines to connected clients.

Runs launched over HTTP are non-interactive: any step that would ask
for confirmation aborts instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "INFO", "log verbosity (DEBUG, INFO, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().BoolVar(&realRun, "real-run", false, "actually modify files (default is a dry run)")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(suffixesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.backfill-media-date")
		viper.AddConfigPath("/etc/backfill-media-date")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runBackfill executes a backfill run over the given media directory.
func runBackfill(mediaDir string) error {
	cfg, err := loadConfig(mediaDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	rep := report.NewReport()

	r := runner.NewRunner(cfg, log, rep, consoleConfirm)
	if err := r.Run(); err != nil {
		if !quiet {
			fmt.Println("\n" + rep.Summary())
		}
		return fmt.Errorf("backfill failed: %w", err)
	}

	if !quiet {
		fmt.Println("\n" + rep.Summary())
		if breakdown := rep.FormatBreakdown(); breakdown != "" {
			fmt.Println(breakdown)
		}
	}

	return nil
}

// runSuffixes prints the distinct extensions found in a directory tree.
func runSuffixes(dir string) error {
	if !dirExists(dir) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}

	suffixes := make(map[string]struct{})
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if ext == "" {
			ext = "(none)"
		}
		suffixes[ext] = struct{}{}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	sorted := make([]string, 0, len(suffixes))
	for ext := range suffixes {
		sorted = append(sorted, ext)
	}
	sort.Strings(sorted)

	fmt.Printf("Found %d distinct extensions in %s:\n", len(sorted), dir)
	for _, ext := range sorted {
		fmt.Printf("  %s\n", ext)
	}
	return nil
}

// runInspect dumps all metadata fields of a file.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		return fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	defer et.Close()

	metas := et.ExtractMetadata(filePath)
	for _, meta := range metas {
		if meta.Err != nil {
			return fmt.Errorf("failed to read metadata: %w", meta.Err)
		}

		keys := make([]string, 0, len(meta.Fields))
		for k := range meta.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Printf("Metadata for %s:\n", meta.File)
		for _, k := range keys {
			fmt.Printf("  %-32s %v\n", k, meta.Fields[k])
		}
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Web interface started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(mediaDir string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg.MediaDirectory = mediaDir
	if realRun {
		cfg.RealRun = true
	}
	cfg.Logging.Level = logger.LevelFromVerbosity(verbosity)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// consoleConfirm asks the user on stdin before a lossy fallback step.
func consoleConfirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
