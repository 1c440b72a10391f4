package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Speech contains the text-to-speech vendor settings.
type Speech struct {
	APIKey         string `toml:"api_key"`
	VoiceID        string `toml:"voice_id"`
	Model          string `toml:"model"`
	FallbackModel  string `toml:"fallback_model"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Render contains the avatar render vendor settings and polling budget.
type Render struct {
	APIKey                string `toml:"api_key"`
	AvatarID              string `toml:"avatar_id"`
	BaseURL               string `toml:"base_url"`
	UploadURL             string `toml:"upload_url"`
	Width                 int    `toml:"width"`
	Height                int    `toml:"height"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds"`
	MaxWaitSeconds        int    `toml:"max_wait_seconds"`
	NetworkBackoffSeconds int    `toml:"network_backoff_seconds"`
	NetworkRetries        int    `toml:"network_retries"`
	StatusTimeoutSeconds  int    `toml:"status_timeout_seconds"`
}

// Paths contains working directories.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	TempDir    string `toml:"temp_dir"`
	ArchiveDir string `toml:"archive_dir"`
}

// Google contains OAuth credentials and resource identifiers for Drive, Sheets,
// Gmail and YouTube.
type Google struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RefreshToken  string `toml:"refresh_token"`
	SheetID       string `toml:"sheet_id"`
	DriveFolderID string `toml:"drive_folder_id"`
}

// Notify contains notification settings.
type Notify struct {
	Email string `toml:"email"`
}

// YouTube contains video hosting upload settings.
type YouTube struct {
	Privacy    string `toml:"privacy"`
	CategoryID string `toml:"category_id"`
	MaxRetries int    `toml:"max_retries"`
}

// Storage selects the archive provider used by the publication step.
type Storage struct {
	Provider string `toml:"provider"`
}

// API contains settings for the HTTP API and queue worker.
type API struct {
	Bind        string   `toml:"bind"`
	DatabaseURL string   `toml:"database_url"`
	RedisAddr   string   `toml:"redis_addr"`
	QueueKey    string   `toml:"queue_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for the pipeline.
//
// Configuration sections by subsystem:
//   - Speech: synthesis vendor credentials and models
//   - Render: render vendor credentials, dimensions and polling budget
//   - Paths: output, temp and local archive directories
//   - Google: OAuth client and Drive/Sheets identifiers
//   - Notify: notification recipient
//   - YouTube: upload privacy, category and retry budget
//   - Storage: archive provider (gdrive or localfs)
//   - API: HTTP bind address, database and queue
//   - Logging: log format, level and file sink
type Config struct {
	Speech  Speech  `toml:"speech"`
	Render  Render  `toml:"render"`
	Paths   Paths   `toml:"paths"`
	Google  Google  `toml:"google"`
	Notify  Notify  `toml:"notify"`
	YouTube YouTube `toml:"youtube"`
	Storage Storage `toml:"storage"`
	API     API     `toml:"api"`
	Logging Logging `toml:"logging"`

	// path is the file the config was resolved from; write-backs go here.
	path string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: defaults and environment variables still apply.
func Load(path string) (*Config, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	cfg.path = resolvedPath
	return &cfg, exists, nil
}

// Path returns the file this configuration was resolved from.
func (c *Config) Path() string {
	return c.path
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and temp directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the render status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Render.PollIntervalSeconds) * time.Second
}

// MaxWait returns the total render wait budget.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.Render.MaxWaitSeconds) * time.Second
}

// NetworkBackoff returns the fixed sleep after a failed status query.
func (c *Config) NetworkBackoff() time.Duration {
	return time.Duration(c.Render.NetworkBackoffSeconds) * time.Second
}

// GoogleConfigured reports whether an OAuth refresh token is available.
func (c *Config) GoogleConfigured() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != "" && c.Google.RefreshToken != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
