package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the validated run configuration handed to the run
// controller. RealRun defaults to false: the tool simulates by default
// and mutates only when explicitly asked to.
type Config struct {
	MediaDirectory        string        `mapstructure:"media_directory"`
	RealRun               bool          `mapstructure:"real_run"`
	BackupDirName         string        `mapstructure:"backup_dir_name"`
	PassthroughExtensions []string      `mapstructure:"passthrough_extensions"`
	Tools                 ToolsConfig   `mapstructure:"tools"`
	JPEG                  JPEGConfig    `mapstructure:"jpeg"`
	Video                 VideoConfig   `mapstructure:"video"`
	Logging               LoggingConfig `mapstructure:"logging"`
}

// ToolsConfig locates the external tools some handlers shell out to.
type ToolsConfig struct {
	ExiftoolPath string `mapstructure:"exiftool_path"`
	FFmpegPath   string `mapstructure:"ffmpeg_path"`
}

// JPEGConfig contains JPEG handling settings.
type JPEGConfig struct {
	// FallbackQuality is used only when a lossless metadata rewrite
	// fails and the operator confirms a re-encode.
	FallbackQuality int `mapstructure:"fallback_quality"`
}

// VideoConfig contains video remux settings.
type VideoConfig struct {
	AudioCodec string `mapstructure:"audio_codec"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		RealRun:               false,
		BackupDirName:         "backup_original",
		PassthroughExtensions: []string{"mov", "tif", "heic", "webp"},
		Tools: ToolsConfig{
			ExiftoolPath: "exiftool",
			FFmpegPath:   "ffmpeg",
		},
		JPEG: JPEGConfig{
			FallbackQuality: 95,
		},
		Video: VideoConfig{
			AudioCodec: "aac",
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// Validation happens separately, after CLI overrides are applied.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.backfill-media-date")
		viper.AddConfigPath("/etc/backfill-media-date")
	}

	viper.SetEnvPrefix("BACKFILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults apply.
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

// Validate checks and normalizes the configuration.
func (c *Config) Validate() error {
	if c.MediaDirectory == "" {
		return fmt.Errorf("media directory is required")
	}
	info, err := os.Stat(c.MediaDirectory)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("media directory does not exist or is not accessible: %s", c.MediaDirectory)
	}

	if c.BackupDirName == "" {
		c.BackupDirName = "backup_original"
	}

	if c.JPEG.FallbackQuality < 1 || c.JPEG.FallbackQuality > 100 {
		return fmt.Errorf("invalid jpeg fallback quality: %d (valid: 1-100)", c.JPEG.FallbackQuality)
	}

	if c.Video.AudioCodec == "" {
		c.Video.AudioCodec = "aac"
	}

	c.PassthroughExtensions = normalizeExtensions(c.PassthroughExtensions)

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: DEBUG, INFO, ERROR)", c.Logging.Level)
	}

	return nil
}

// normalizeExtensions lowercases extensions and strips leading dots so
// lookups are uniform.
func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		normalized[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	return normalized
}
