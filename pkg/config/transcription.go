package config

import "time"

// TranscriptionConfig configures the transcription pipeline.
type TranscriptionConfig struct {
	Provider       string // "openai" or "gemini"
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string
	HandlerTimeout time.Duration
	MaxAttempts    int
	MaxUploadSize  int64
	CacheTTL       time.Duration
}

func loadTranscriptionConfig() TranscriptionConfig {
	return TranscriptionConfig{
		Provider:       getEnv("TRANSCRIPTION_PROVIDER", "openai"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_TRANSCRIPTION_MODEL", "whisper-1"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_TRANSCRIPTION_MODEL", "gemini-2.0-flash"),
		HandlerTimeout: getEnvDuration("TRANSCRIPTION_TIMEOUT", 10*time.Minute),
		MaxAttempts:    getEnvInt("TRANSCRIPTION_MAX_ATTEMPTS", 3),
		MaxUploadSize:  getEnvInt64("MAX_UPLOAD_SIZE", 100<<20),
		CacheTTL:       getEnvDuration("TRANSCRIPT_CACHE_TTL", time.Hour),
	}
}
