package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatarpipe/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ELEVENLABS_API_KEY", "ELEVENLABS_VOICE_ID", "ELEVENLABS_MODEL",
		"HEYGEN_API_KEY", "HEYGEN_AVATAR_ID",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REFRESH_TOKEN",
		"GOOGLE_SHEET_ID", "GOOGLE_DRIVE_FOLDER_ID",
		"NOTIFICATION_EMAIL", "DATABASE_URL", "REDIS_ADDR", "API_BIND",
		"STORAGE_PROVIDER", "LOG_FORMAT", "LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaultsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("HEYGEN_AVATAR_ID", "avatar-1")
	t.Setenv("GOOGLE_SHEET_ID", `"quoted-sheet"`)

	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, path, cfg.Path())

	assert.Equal(t, "el-key", cfg.Speech.APIKey)
	assert.Equal(t, "avatar-1", cfg.Render.AvatarID)
	assert.Equal(t, "quoted-sheet", cfg.Google.SheetID)
	assert.Equal(t, "eleven_v3", cfg.Speech.Model)
	assert.Equal(t, "eleven_multilingual_v2", cfg.Speech.FallbackModel)
	assert.Equal(t, 10*time.Second, cfg.PollInterval())
	assert.Equal(t, 600*time.Second, cfg.MaxWait())
	assert.Equal(t, 5*time.Second, cfg.NetworkBackoff())
	assert.Equal(t, 3, cfg.Render.NetworkRetries)
	assert.Equal(t, 1280, cfg.Render.Width)
	assert.Equal(t, 720, cfg.Render.Height)
	assert.Equal(t, "unlisted", cfg.YouTube.Privacy)
	assert.Equal(t, "22", cfg.YouTube.CategoryID)
	assert.Equal(t, "gdrive", cfg.Storage.Provider)
	assert.True(t, filepath.IsAbs(cfg.Paths.OutputDir))
	assert.False(t, cfg.GoogleConfigured())
}

func TestLoadFileValuesWinOverEnvForCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEYGEN_API_KEY", "from-env")
	t.Setenv("LOG_LEVEL", "debug")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[render]
api_key = "from-file"
max_wait_seconds = 30

[youtube]
privacy = "Private"

[logging]
level = "warn"
`), 0o600))

	cfg, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "from-file", cfg.Render.APIKey)
	assert.Equal(t, 30*time.Second, cfg.MaxWait())
	assert.Equal(t, "private", cfg.YouTube.Privacy)
	assert.Equal(t, "debug", cfg.Logging.Level, "LOG_LEVEL overrides the file")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"privacy", "[youtube]\nprivacy = \"friends\"\n"},
		{"storage", "[storage]\nprovider = \"s3\"\n"},
		{"poll interval", "[render]\npoll_interval_seconds = 0\n"},
		{"log format", "[logging]\nformat = \"xml\"\n"},
		{"malformed", "[render\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, _, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	cfg, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, config.Default().Render.MaxWaitSeconds, cfg.Render.MaxWaitSeconds)
}

func TestPersistSheetIDPreservesOtherKeys(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[speech]
voice_id = "voice-9"

[google]
drive_folder_id = "folder-1"
`), 0o600))

	cfg, _, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.PersistSheetID("sheet-42"))
	assert.Equal(t, "sheet-42", cfg.Google.SheetID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Speech struct {
			VoiceID string `toml:"voice_id"`
		} `toml:"speech"`
		Google struct {
			SheetID       string `toml:"sheet_id"`
			DriveFolderID string `toml:"drive_folder_id"`
		} `toml:"google"`
	}
	require.NoError(t, toml.Unmarshal(data, &doc))
	assert.Equal(t, "voice-9", doc.Speech.VoiceID)
	assert.Equal(t, "folder-1", doc.Google.DriveFolderID)
	assert.Equal(t, "sheet-42", doc.Google.SheetID)

	reloaded, _, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sheet-42", reloaded.Google.SheetID)
}

func TestSetValueConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	keys := []string{"a", "b", "c", "d", "e", "f"}
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			assert.NoError(t, config.SetValue(path, "google", key, key+"-value"))
		}(key)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]string
	require.NoError(t, toml.Unmarshal(data, &doc))
	for _, key := range keys {
		assert.Equal(t, key+"-value", doc["google"][key])
	}
}

func TestBoolEnv(t *testing.T) {
	t.Setenv("AVATARPIPE_FLAG", "true")
	assert.True(t, config.BoolEnv("AVATARPIPE_FLAG", false))

	t.Setenv("AVATARPIPE_FLAG", "nope")
	assert.True(t, config.BoolEnv("AVATARPIPE_FLAG", true))

	t.Setenv("AVATARPIPE_FLAG", "")
	assert.False(t, config.BoolEnv("AVATARPIPE_FLAG", false))
}
