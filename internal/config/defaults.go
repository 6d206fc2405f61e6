package config

const (
	defaultStagingDir         = "~/.local/share/archivist/staging"
	defaultLibraryDir         = "~/.local/share/archivist/library"
	defaultLogDir             = "~/.local/share/archivist/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 60
	defaultTranscriberBaseURL = "http://127.0.0.1:9090/v1/audio/transcriptions"
	defaultTranscriberModel   = "whisper-large-v3"
	defaultTranscriberTimeout = 600
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultEmbeddingsModel    = "text-embedding-3-small"
	defaultLLMTimeout         = 120
	defaultFFmpegBinary       = "ffmpeg"
	defaultExtractTimeout     = 900
	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultNotifyTimeout      = 10
	defaultNotifyDedupWindow  = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Transcriber: Transcriber{
			BaseURL:        defaultTranscriberBaseURL,
			Model:          defaultTranscriberModel,
			Language:       "en",
			TimeoutSeconds: defaultTranscriberTimeout,
		},
		LLM: LLM{
			BaseURL:         defaultLLMBaseURL,
			Model:           defaultLLMModel,
			EmbeddingsModel: defaultEmbeddingsModel,
			TimeoutSeconds:  defaultLLMTimeout,
		},
		Extract: Extract{
			FFmpegBinary:   defaultFFmpegBinary,
			TimeoutSeconds: defaultExtractTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			Uploads:            true,
			Processing:         true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Level:         defaultLogLevel,
			Format:        defaultLogFormat,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
