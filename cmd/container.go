// cmd/container.go
//
// Root composition root. Owns infrastructure (DB, Redis, FS, job pool) and
// wires the bounded contexts together. This is the only place that knows
// about ALL modules.
package main

import (
	"context"

	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/Abraxas-365/auralis/pkg/config"
	"github.com/Abraxas-365/auralis/pkg/fsx"
	"github.com/Abraxas-365/auralis/pkg/fsx/fsxlocal"
	"github.com/Abraxas-365/auralis/pkg/fsx/fsxs3"
	"github.com/Abraxas-365/auralis/pkg/iam/auth"
	"github.com/Abraxas-365/auralis/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/auralis/pkg/iam/auth/authsrv"
	"github.com/Abraxas-365/auralis/pkg/jobx"
	"github.com/Abraxas-365/auralis/pkg/jobx/jobxmem"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/logx"
	"github.com/Abraxas-365/auralis/pkg/notifx"
	"github.com/Abraxas-365/auralis/pkg/notifx/notifxconsole"
	"github.com/Abraxas-365/auralis/pkg/notifx/notifxses"
	"github.com/Abraxas-365/auralis/pkg/transcription"
	"github.com/Abraxas-365/auralis/pkg/transcription/providers/stgemini"
	"github.com/Abraxas-365/auralis/pkg/transcription/providers/stopenai"
	"github.com/Abraxas-365/auralis/pkg/transcription/transcriptionapi"
	"github.com/Abraxas-365/auralis/pkg/transcription/transcriptioninfra"
	"github.com/Abraxas-365/auralis/pkg/transcription/transcriptionsrv"
)

// Container holds shared infrastructure and composed modules.
type Container struct {
	Config *config.Config

	// Infrastructure (shared across all modules)
	DB         *sqlx.DB
	Redis      *redis.Client
	FileSystem fsx.FileSystem
	S3Client   *s3.Client

	// Jobs
	Bus      *jobx.Bus
	Queue    *jobxmem.MemoryQueue
	JobPool  *jobx.Pool
	Notifier *notifx.Client

	// Bounded contexts
	AuthService        *authsrv.Service
	TranscriptService  *transcriptionsrv.Service
	TranscriptHandlers *transcriptionapi.TranscriptHandlers
}

func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing application container...")

	c := &Container{Config: cfg}

	c.initInfrastructure()
	c.initModules()

	logx.Info("✅ Application container initialized")
	return c
}

// ---------------------------------------------------------------------------
// Infrastructure — DB, Redis, file storage, job pool
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database
	db, err := sqlx.Connect("postgres", c.Config.Database.DSN())
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("  ✅ Database connected")

	// 2. Redis
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required)", err)
	}
	logx.Info("  ✅ Redis connected")

	// 3. File storage
	c.initFileStorage()

	// 4. Job queue and worker pool
	c.Bus = jobx.NewBus()
	c.Queue = jobxmem.New(c.Bus)
	c.JobPool = jobx.NewPool(c.Queue, c.Bus,
		jobx.WithConcurrency(c.Config.Jobx.Concurrency),
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithShutdownTimeout(c.Config.Jobx.ShutdownTimeout),
		jobx.WithBackoff(c.Config.Jobx.BackoffBase, c.Config.Jobx.BackoffCap),
	)
	logx.Infof("  ✅ Job pool configured (concurrency: %d)", c.Config.Jobx.Concurrency)

	// 5. Notifications
	c.initNotifications()

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initFileStorage() {
	switch c.Config.Storage.Mode {
	case "s3":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
			awsConfig.WithRegion(c.Config.Storage.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(cfg)
		c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, c.Config.Storage.AWSBucket, c.Config.Storage.KeyPrefix)
		logx.Infof("  ✅ S3 file system configured (bucket: %s, region: %s)",
			c.Config.Storage.AWSBucket, c.Config.Storage.AWSRegion)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(c.Config.Storage.UploadDir)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("  ✅ Local file system configured (path: %s)", localFS.GetBasePath())

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", c.Config.Storage.Mode)
	}
}

func (c *Container) initNotifications() {
	switch c.Config.Notifx.Provider {
	case "ses":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
			awsConfig.WithRegion(c.Config.Notifx.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config for SES: %v", err)
		}
		provider := notifxses.NewSESProvider(ses.NewFromConfig(cfg), c.Config.Notifx.FromAddress)
		c.Notifier = notifx.NewClient(provider)
		logx.Infof("  ✅ SES notifications configured (region: %s)", c.Config.Notifx.AWSRegion)

	case "console":
		c.Notifier = notifx.NewClient(notifxconsole.NewConsoleProvider())
		logx.Info("  ✅ Console notifications configured")

	default:
		logx.Fatalf("Unknown NOTIFX_PROVIDER: %s (use 'console' or 'ses')", c.Config.Notifx.Provider)
	}
}

// ---------------------------------------------------------------------------
// Module composition — each bounded context wires itself
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	logx.Info("📦 Initializing modules...")

	// IAM / auth
	userRepo := authinfra.NewPostgresUserRepository(c.DB)
	tokenRepo := authinfra.NewPostgresTokenRepository(c.DB)
	jwtService := auth.NewJWTService(
		c.Config.Auth.JWTSecret,
		c.Config.Auth.AccessTokenTTL,
		c.Config.Auth.RefreshTokenTTL,
		c.Config.App.Name,
	)
	c.AuthService = authsrv.NewService(userRepo, tokenRepo, jwtService)
	logx.Info("  ✅ Auth module wired")

	// Transcription
	repo := transcriptioninfra.NewPostgresRepository(c.DB)
	cache := transcriptioninfra.NewRedisCache(c.Redis, c.Config.Transcription.CacheTTL)
	providers := c.buildTranscriptionProviders()

	lookup := func(ctx context.Context, id kernel.UserID) (string, string, error) {
		user, err := userRepo.FindUserByID(ctx, id)
		if err != nil {
			return "", "", err
		}
		return user.Email, user.Name, nil
	}

	c.TranscriptService = transcriptionsrv.NewService(
		repo, cache, c.FileSystem, providers, c.Config.Transcription.Provider,
		c.Queue, c.Notifier, lookup,
		transcriptionsrv.Config{
			MaxUploadSize:  c.Config.Transcription.MaxUploadSize,
			MaxAttempts:    c.Config.Transcription.MaxAttempts,
			HandlerTimeout: c.Config.Transcription.HandlerTimeout,
			FromAddress:    c.Config.Notifx.FromAddress,
		},
	)
	c.TranscriptService.RegisterJobs(c.JobPool)
	c.TranscriptHandlers = transcriptionapi.NewTranscriptHandlers(c.TranscriptService)
	logx.Infof("  ✅ Transcription module wired (default provider: %s)",
		c.Config.Transcription.Provider)
}

// buildTranscriptionProviders registers every provider with credentials in
// the environment. The default must be among them.
func (c *Container) buildTranscriptionProviders() map[string]transcription.Provider {
	providers := make(map[string]transcription.Provider)

	if key := c.Config.Transcription.OpenAIAPIKey; key != "" {
		providers["openai"] = stopenai.New(key,
			stopenai.WithModel(c.Config.Transcription.OpenAIModel))
	}
	if key := c.Config.Transcription.GeminiAPIKey; key != "" {
		provider, err := stgemini.New(context.Background(), key,
			stgemini.WithModel(c.Config.Transcription.GeminiModel))
		if err != nil {
			logx.Fatalf("Failed to initialize Gemini provider: %v", err)
		}
		providers["gemini"] = provider
	}

	if _, ok := providers[c.Config.Transcription.Provider]; !ok {
		logx.Fatalf("TRANSCRIPTION_PROVIDER=%s has no API key configured",
			c.Config.Transcription.Provider)
	}
	return providers
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// StartBackgroundServices starts the worker pool. Call after the container
// is fully wired so every handler is registered first.
func (c *Container) StartBackgroundServices() {
	logx.Info("🔄 Starting background services...")
	c.JobPool.Start()
}

func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.JobPool != nil {
		c.JobPool.Stop()
		logx.Info("  ✅ Job pool stopped")
	}

	if c.Queue != nil {
		c.Queue.Close()
		logx.Info("  ✅ Job queue closed")
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("  ✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("  ✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup complete")
}
