package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeSpeech()
	c.normalizeRender()
	c.normalizeGoogle()
	c.normalizeAPI()
	c.normalizeLogging()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.YouTube.Privacy = strings.ToLower(strings.TrimSpace(c.YouTube.Privacy))
	if c.YouTube.Privacy == "" {
		c.YouTube.Privacy = defaultPrivacy
	}
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(envOr("STORAGE_PROVIDER", c.Storage.Provider)))
	fill(&c.Notify.Email, "NOTIFICATION_EMAIL")
	return nil
}

func (c *Config) normalizeSpeech() {
	fill(&c.Speech.APIKey, "ELEVENLABS_API_KEY")
	fill(&c.Speech.VoiceID, "ELEVENLABS_VOICE_ID")
	if v := Env("ELEVENLABS_MODEL", ""); v != "" {
		c.Speech.Model = v
	}
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
}

func (c *Config) normalizeRender() {
	fill(&c.Render.APIKey, "HEYGEN_API_KEY")
	fill(&c.Render.AvatarID, "HEYGEN_AVATAR_ID")
	c.Render.BaseURL = strings.TrimRight(strings.TrimSpace(c.Render.BaseURL), "/")
	if c.Render.BaseURL == "" {
		c.Render.BaseURL = defaultRenderBaseURL
	}
	c.Render.UploadURL = strings.TrimRight(strings.TrimSpace(c.Render.UploadURL), "/")
	if c.Render.UploadURL == "" {
		c.Render.UploadURL = defaultRenderUploadURL
	}
	if c.Render.NetworkRetries <= 0 {
		c.Render.NetworkRetries = defaultNetworkRetries
	}
}

func (c *Config) normalizeGoogle() {
	fill(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	fill(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	fill(&c.Google.RefreshToken, "GOOGLE_REFRESH_TOKEN")
	fill(&c.Google.SheetID, "GOOGLE_SHEET_ID")
	fill(&c.Google.DriveFolderID, "GOOGLE_DRIVE_FOLDER_ID")
	c.Google.SheetID = strings.Trim(c.Google.SheetID, `'"`)
	c.Google.DriveFolderID = strings.Trim(c.Google.DriveFolderID, `'"`)
}

func (c *Config) normalizeAPI() {
	fill(&c.API.DatabaseURL, "DATABASE_URL")
	if v := Env("REDIS_ADDR", ""); v != "" {
		c.API.RedisAddr = v
	}
	if v := Env("API_BIND", ""); v != "" {
		c.API.Bind = v
	}
	if c.API.QueueKey == "" {
		c.API.QueueKey = defaultQueueKey
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(envOr("LOG_FORMAT", c.Logging.Format)))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(envOr("LOG_LEVEL", c.Logging.Level)))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	fill(&c.Logging.File, "LOG_FILE")
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if c.Logging.File != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

// fill sets *dst from the environment when the file left it blank.
func fill(dst *string, key string) {
	*dst = strings.TrimSpace(*dst)
	if *dst == "" {
		*dst = Env(key, "")
	}
}

// envOr prefers a set environment variable over the file value.
func envOr(key, current string) string {
	return Env(key, current)
}

// Env reads an environment variable, returning def when it is unset or blank.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// BoolEnv reads an env var as bool. If empty or invalid, returns def.
func BoolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
