package config

// StorageConfig selects and configures the audio file backend.
type StorageConfig struct {
	Mode      string // "local" or "s3"
	UploadDir string
	AWSRegion string
	AWSBucket string
	KeyPrefix string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Mode:      getEnv("STORAGE_MODE", "local"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		AWSBucket: getEnv("AWS_BUCKET", "auralis-audio"),
		KeyPrefix: getEnv("AWS_KEY_PREFIX", ""),
	}
}
