// Package transcriptionsrv orchestrates the transcript lifecycle: uploads go
// to file storage and the database, a job is queued for the worker pool, and
// job lifecycle events drive terminal status updates and notifications.
package transcriptionsrv

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/auralis/pkg/asyncx"
	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/fsx"
	"github.com/Abraxas-365/auralis/pkg/jobx"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/logx"
	"github.com/Abraxas-365/auralis/pkg/notifx"
	"github.com/Abraxas-365/auralis/pkg/transcription"
)

// JobType is the queue job type for transcription work.
const JobType = "transcription"

// jobPayload is what travels through the queue for one transcript.
type jobPayload struct {
	TranscriptID string `json:"transcript_id"`
	UserID       string `json:"user_id"`
	Language     string `json:"language,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// EmailLookup resolves the address to notify for a user. Wired by the
// container so this package stays decoupled from the iam context.
type EmailLookup func(ctx context.Context, id kernel.UserID) (email, name string, err error)

// Config tunes the service.
type Config struct {
	MaxUploadSize  int64         // Reject uploads above this many bytes
	MaxAttempts    int           // Per-job attempt ceiling handed to the queue
	HandlerTimeout time.Duration // Wall-clock budget for one provider call
	FromAddress    string        // Sender for notification emails
}

// Service implements the transcription use cases.
type Service struct {
	repo            transcription.Repository
	cache           transcription.Cache
	files           fsx.FileSystem
	providers       map[string]transcription.Provider
	defaultProvider string
	queue           jobx.Queue
	pool            *jobx.Pool
	notifier        *notifx.Client
	lookup          EmailLookup
	cfg             Config
}

// NewService wires the service. providers maps provider names to
// implementations; defaultProvider must be one of its keys. cache, notifier
// and lookup may be nil; the corresponding features degrade gracefully.
func NewService(
	repo transcription.Repository,
	cache transcription.Cache,
	files fsx.FileSystem,
	providers map[string]transcription.Provider,
	defaultProvider string,
	queue jobx.Queue,
	notifier *notifx.Client,
	lookup EmailLookup,
	cfg Config,
) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 10 * time.Minute
	}
	s := &Service{
		repo:            repo,
		cache:           cache,
		files:           files,
		providers:       providers,
		defaultProvider: defaultProvider,
		queue:           queue,
		notifier:        notifier,
		lookup:          lookup,
		cfg:             cfg,
	}
	s.registerEmailTemplates()
	return s
}

var allowedExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".m4a":  {},
	".mp4":  {},
	".ogg":  {},
	".flac": {},
	".webm": {},
}

// UploadRequest carries one audio upload.
type UploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
	Language    string
	Provider    string // Optional per-request provider override
	Data        io.Reader
}

// Upload stores the audio file, creates the transcript row and queues the
// transcription job.
func (s *Service) Upload(ctx context.Context, userID kernel.UserID, req UploadRequest) (*transcription.Transcript, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, transcription.ErrUnsupportedFormat().WithDetail("extension", ext)
	}
	if req.Size <= 0 {
		return nil, transcription.ErrEmptyFile()
	}
	if s.cfg.MaxUploadSize > 0 && req.Size > s.cfg.MaxUploadSize {
		return nil, transcription.ErrFileTooLarge().
			WithDetail("size_bytes", req.Size).
			WithDetail("max_bytes", s.cfg.MaxUploadSize)
	}
	providerName := req.Provider
	if providerName == "" {
		providerName = s.defaultProvider
	}
	if _, ok := s.providers[providerName]; !ok {
		return nil, transcription.ErrUnknownProvider().WithDetail("provider", providerName)
	}

	id := kernel.NewTranscriptID(uuid.NewString())
	storagePath := s.files.Join("audio", userID.String(), id.String()+ext)

	if err := s.files.WriteFileStream(ctx, storagePath, req.Data); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := transcription.Transcript{
		ID:          id,
		UserID:      userID,
		Filename:    req.Filename,
		StoragePath: storagePath,
		ContentType: req.ContentType,
		SizeBytes:   req.Size,
		Status:      transcription.StatusUploaded,
		Language:    req.Language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Save(ctx, t); err != nil {
		// Best effort: don't leave an orphaned file behind.
		if delErr := s.files.DeleteFile(ctx, storagePath); delErr != nil {
			logx.WithError(delErr).Warn("transcription: failed to clean up file after save error")
		}
		return nil, err
	}

	payload, _ := json.Marshal(jobPayload{
		TranscriptID: id.String(),
		UserID:       userID.String(),
		Language:     req.Language,
		Provider:     providerName,
	})
	// The job id mirrors the transcript id so lifecycle events can be
	// correlated back to the row.
	if _, err := s.queue.Enqueue(jobx.JobSpec{
		ID:          id.String(),
		Type:        JobType,
		Payload:     payload,
		MaxAttempts: s.cfg.MaxAttempts,
	}); err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"transcript_id": id.String(),
		"user_id":       userID.String(),
		"size_bytes":    req.Size,
	}).Info("transcription: upload queued")

	return &t, nil
}

// Get returns one transcript. Completed transcripts are served from the
// cache when possible.
func (s *Service) Get(ctx context.Context, userID kernel.UserID, id kernel.TranscriptID) (*transcription.Transcript, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, id); err == nil && cached != nil && cached.UserID == userID {
			return cached, nil
		}
	}

	t, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && t.Status == transcription.StatusCompleted {
		if err := s.cache.Set(ctx, t); err != nil {
			logx.WithError(err).Warn("transcription: cache set failed")
		}
	}
	return t, nil
}

// Text returns the transcript text once processing has finished.
func (s *Service) Text(ctx context.Context, userID kernel.UserID, id kernel.TranscriptID) (string, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if t.Status != transcription.StatusCompleted {
		return "", transcription.ErrNotReady().WithDetail("status", string(t.Status))
	}
	return t.Text, nil
}

// List pages through a user's transcripts, newest first.
func (s *Service) List(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[transcription.Transcript], error) {
	return s.repo.FindByUser(ctx, userID, opts)
}

// Stats summarises a user's transcripts by status.
func (s *Service) Stats(ctx context.Context, userID kernel.UserID) (map[transcription.TranscriptStatus]int, error) {
	return s.repo.CountByStatus(ctx, userID)
}

// QueueStats reports the worker pool's live counters. Zero value before
// RegisterJobs has run.
func (s *Service) QueueStats() jobx.Stats {
	if s.pool == nil {
		return jobx.Stats{}
	}
	return s.pool.GetStats()
}

// Delete removes the transcript row, its audio file and any cache entry.
func (s *Service) Delete(ctx context.Context, userID kernel.UserID, id kernel.TranscriptID) error {
	t, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	if err := s.files.DeleteFile(ctx, t.StoragePath); err != nil {
		logx.WithError(err).WithField("transcript_id", id.String()).
			Warn("transcription: failed to delete audio file")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			logx.WithError(err).Warn("transcription: cache invalidation failed")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Job handler and lifecycle subscriptions
// ---------------------------------------------------------------------------

// RegisterJobs attaches the transcription handler to the pool and subscribes
// to the lifecycle events that drive terminal updates and notifications.
func (s *Service) RegisterJobs(pool *jobx.Pool) {
	s.pool = pool
	pool.Register(JobType, s.HandleTranscriptionJob)

	bus := pool.Events()
	bus.Subscribe(jobx.EventJobRetry, s.onJobRetry)
	bus.Subscribe(jobx.EventJobCompleted, s.onJobCompleted)
	bus.Subscribe(jobx.EventJobFailedPermanently, s.onJobFailedPermanently)
}

// HandleTranscriptionJob is the worker-pool handler: it loads the transcript,
// streams the audio to the provider and persists the result. A returned error
// makes the pool retry with backoff.
func (s *Service) HandleTranscriptionJob(ctx context.Context, job *jobx.JobRecord) error {
	var payload jobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return errx.Wrap(err, "malformed transcription job payload", errx.TypeInternal).
			WithDetail("job_id", job.ID)
	}

	id := kernel.NewTranscriptID(payload.TranscriptID)
	userID := kernel.NewUserID(payload.UserID)

	t, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return err
	}

	t.Status = transcription.StatusProcessing
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, *t); err != nil {
		return err
	}

	providerName := payload.Provider
	if providerName == "" {
		providerName = s.defaultProvider
	}
	provider, ok := s.providers[providerName]
	if !ok {
		return transcription.ErrUnknownProvider().WithDetail("provider", providerName)
	}

	audio, err := s.files.ReadFileStream(ctx, t.StoragePath)
	if err != nil {
		return err
	}
	defer audio.Close()

	result, err := asyncx.WithTimeout(ctx, s.cfg.HandlerTimeout,
		func(ctx context.Context) (transcription.Result, error) {
			return provider.Transcribe(ctx, audio, transcription.TranscribeOptions{
				Filename: t.Filename,
				Language: payload.Language,
			})
		})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	t.Status = transcription.StatusCompleted
	t.Text = result.Text
	if result.Language != "" {
		t.Language = result.Language
	}
	t.Confidence = result.Confidence
	t.Duration = result.Duration
	t.Provider = provider.Name()
	t.ErrorMessage = ""
	t.UpdatedAt = now
	t.CompletedAt = &now

	if err := s.repo.Update(ctx, *t); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, t); err != nil {
			logx.WithError(err).Warn("transcription: cache set failed")
		}
	}
	return nil
}

func (s *Service) onJobRetry(ev jobx.Event) {
	retry, ok := ev.(jobx.JobRetry)
	if !ok {
		return
	}
	logx.WithFields(logx.Fields{
		"transcript_id": retry.JobID,
		"next_attempt":  retry.NextAttempt,
		"delay":         retry.Delay.String(),
		"error":         retry.Error,
	}).Warn("transcription: job retry scheduled")
}

func (s *Service) onJobCompleted(ev jobx.Event) {
	done, ok := ev.(jobx.JobCompleted)
	if !ok {
		return
	}

	ctx := context.Background()
	t, err := s.repo.FindAnyByID(ctx, kernel.NewTranscriptID(done.JobID))
	if err != nil {
		// Not a transcription job, or the row is gone.
		return
	}
	s.notify(ctx, t, "transcript-completed", "Your transcript is ready")
}

func (s *Service) onJobFailedPermanently(ev jobx.Event) {
	failed, ok := ev.(jobx.JobFailedPermanently)
	if !ok || failed.Type != JobType {
		return
	}

	ctx := context.Background()
	id := kernel.NewTranscriptID(failed.JobID)
	t, err := s.repo.FindAnyByID(ctx, id)
	if err != nil {
		logx.WithError(err).WithField("transcript_id", failed.JobID).
			Error("transcription: failed job references unknown transcript")
		return
	}

	t.Status = transcription.StatusFailed
	t.ErrorMessage = failed.Error
	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, *t); err != nil {
		logx.WithError(err).WithField("transcript_id", failed.JobID).
			Error("transcription: failed to mark transcript failed")
		return
	}

	logx.WithFields(logx.Fields{
		"transcript_id": failed.JobID,
		"attempts":      failed.Attempts,
		"error":         failed.Error,
	}).Error("transcription: job failed permanently")

	s.notify(ctx, t, "transcript-failed", "Your transcription failed")
}

func (s *Service) notify(ctx context.Context, t *transcription.Transcript, template, subject string) {
	if s.notifier == nil || s.lookup == nil {
		return
	}

	email, name, err := s.lookup(ctx, t.UserID)
	if err != nil || email == "" {
		return
	}

	data := map[string]any{
		"Name":     name,
		"Filename": t.Filename,
		"Error":    t.ErrorMessage,
	}
	msg := notifx.EmailMessage{
		From:    s.cfg.FromAddress,
		To:      []string{email},
		Subject: subject,
	}
	if err := s.notifier.SendTemplatedEmail(ctx, template, data, msg); err != nil {
		logx.WithError(err).WithField("transcript_id", t.ID.String()).
			Warn("transcription: notification email failed")
	}
}

func (s *Service) registerEmailTemplates() {
	if s.notifier == nil {
		return
	}

	const completedTmpl = `<p>Hi {{.Name}},</p>
<p>Your audio file <strong>{{.Filename}}</strong> has been transcribed and is ready to view.</p>`

	const failedTmpl = `<p>Hi {{.Name}},</p>
<p>We could not transcribe <strong>{{.Filename}}</strong>: {{.Error}}</p>
<p>Please try uploading the file again.</p>`

	if err := s.notifier.RegisterTemplate("transcript-completed", completedTmpl); err != nil {
		logx.WithError(err).Warn("transcription: failed to register completed template")
	}
	if err := s.notifier.RegisterTemplate("transcript-failed", failedTmpl); err != nil {
		logx.WithError(err).Warn("transcription: failed to register failed template")
	}
}
