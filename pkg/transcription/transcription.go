// Package transcription is the bounded context for audio transcripts: upload,
// async processing through the job queue, retrieval and deletion.
package transcription

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// TranscriptStatus tracks a transcript through its pipeline.
type TranscriptStatus string

const (
	StatusUploaded   TranscriptStatus = "uploaded"
	StatusProcessing TranscriptStatus = "processing"
	StatusCompleted  TranscriptStatus = "completed"
	StatusFailed     TranscriptStatus = "failed"
)

// Transcript is an uploaded audio file and, eventually, its text.
type Transcript struct {
	ID           kernel.TranscriptID `db:"id" json:"id"`
	UserID       kernel.UserID       `db:"user_id" json:"user_id"`
	Filename     string              `db:"filename" json:"filename"`
	StoragePath  string              `db:"storage_path" json:"-"`
	ContentType  string              `db:"content_type" json:"content_type"`
	SizeBytes    int64               `db:"size_bytes" json:"size_bytes"`
	Status       TranscriptStatus    `db:"status" json:"status"`
	Text         string              `db:"text" json:"text,omitempty"`
	Language     string              `db:"language" json:"language,omitempty"`
	Confidence   *float64            `db:"confidence" json:"confidence,omitempty"`
	Duration     *float64            `db:"duration" json:"duration,omitempty"`
	Provider     string              `db:"provider" json:"provider,omitempty"`
	ErrorMessage string              `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal reports whether the transcript reached a final status.
func (t *Transcript) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Result is what a provider returns for one audio file.
type Result struct {
	Text       string   `json:"text"`
	Language   string   `json:"language,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
}

var ErrRegistry = errx.NewRegistry("TRANSCRIPTION")

var (
	CodeNotFound          = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Transcript not found")
	CodeUnsupportedFormat = ErrRegistry.Register("UNSUPPORTED_FORMAT", errx.TypeValidation, http.StatusBadRequest, "Unsupported audio format")
	CodeFileTooLarge      = ErrRegistry.Register("FILE_TOO_LARGE", errx.TypeValidation, http.StatusRequestEntityTooLarge, "Audio file exceeds the size limit")
	CodeEmptyFile         = ErrRegistry.Register("EMPTY_FILE", errx.TypeValidation, http.StatusBadRequest, "Audio file is empty")
	CodeProviderFailed    = ErrRegistry.Register("PROVIDER_FAILED", errx.TypeExternal, http.StatusBadGateway, "Transcription provider failed")
	CodeNotReady          = ErrRegistry.Register("NOT_READY", errx.TypeBusiness, http.StatusConflict, "Transcript is not completed yet")
	CodeUnknownProvider   = ErrRegistry.Register("UNKNOWN_PROVIDER", errx.TypeValidation, http.StatusBadRequest, "Unknown transcription provider")
)

func ErrNotFound() *errx.Error {
	return ErrRegistry.New(CodeNotFound)
}

func ErrUnsupportedFormat() *errx.Error {
	return ErrRegistry.New(CodeUnsupportedFormat)
}

func ErrFileTooLarge() *errx.Error {
	return ErrRegistry.New(CodeFileTooLarge)
}

func ErrEmptyFile() *errx.Error {
	return ErrRegistry.New(CodeEmptyFile)
}

func ErrProviderFailed() *errx.Error {
	return ErrRegistry.New(CodeProviderFailed)
}

func ErrNotReady() *errx.Error {
	return ErrRegistry.New(CodeNotReady)
}

func ErrUnknownProvider() *errx.Error {
	return ErrRegistry.New(CodeUnknownProvider)
}
