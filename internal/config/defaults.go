package config

const (
	defaultConfigPath      = "~/.config/avatarpipe/config.toml"
	projectConfigFile      = "avatarpipe.toml"
	defaultOutputDir       = "output"
	defaultTempDir         = ".tmp"
	defaultArchiveDir      = "~/.local/share/avatarpipe/archive"
	defaultSpeechModel     = "eleven_v3"
	defaultFallbackModel   = "eleven_multilingual_v2"
	defaultSpeechBaseURL   = "https://api.elevenlabs.io"
	defaultSpeechTimeout   = 120
	defaultRenderBaseURL   = "https://api.heygen.com"
	defaultRenderUploadURL = "https://upload.heygen.com"
	defaultWidth           = 1280
	defaultHeight          = 720
	defaultPollInterval    = 10
	defaultMaxWait         = 600
	defaultNetworkBackoff  = 5
	defaultNetworkRetries  = 3
	defaultStatusTimeout   = 30
	defaultPrivacy         = "unlisted"
	defaultCategoryID      = "22"
	defaultUploadRetries   = 10
	defaultStorageProvider = "gdrive"
	defaultAPIBind         = "127.0.0.1:8080"
	defaultRedisAddr       = "localhost:6379"
	defaultQueueKey        = "avatarpipe:runs"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Speech: Speech{
			Model:          defaultSpeechModel,
			FallbackModel:  defaultFallbackModel,
			BaseURL:        defaultSpeechBaseURL,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Render: Render{
			BaseURL:               defaultRenderBaseURL,
			UploadURL:             defaultRenderUploadURL,
			Width:                 defaultWidth,
			Height:                defaultHeight,
			PollIntervalSeconds:   defaultPollInterval,
			MaxWaitSeconds:        defaultMaxWait,
			NetworkBackoffSeconds: defaultNetworkBackoff,
			NetworkRetries:        defaultNetworkRetries,
			StatusTimeoutSeconds:  defaultStatusTimeout,
		},
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			TempDir:    defaultTempDir,
			ArchiveDir: defaultArchiveDir,
		},
		YouTube: YouTube{
			Privacy:    defaultPrivacy,
			CategoryID: defaultCategoryID,
			MaxRetries: defaultUploadRetries,
		},
		Storage: Storage{
			Provider: defaultStorageProvider,
		},
		API: API{
			Bind:      defaultAPIBind,
			RedisAddr: defaultRedisAddr,
			QueueKey:  defaultQueueKey,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
