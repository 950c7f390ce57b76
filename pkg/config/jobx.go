package config

import "time"

// JobxConfig configures the background job queue.
type JobxConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	BackoffBase     time.Duration
	BackoffCap      time.Duration
}

func loadJobxConfig() JobxConfig {
	return JobxConfig{
		Concurrency:     getEnvInt("JOBX_CONCURRENCY", 3),
		PollInterval:    getEnvDuration("JOBX_POLL_INTERVAL", 5*time.Second),
		ShutdownTimeout: getEnvDuration("JOBX_SHUTDOWN_TIMEOUT", 30*time.Second),
		BackoffBase:     getEnvDuration("JOBX_BACKOFF_BASE", time.Second),
		BackoffCap:      getEnvDuration("JOBX_BACKOFF_CAP", 30*time.Second),
	}
}
