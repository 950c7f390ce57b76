package transcription

import (
	"context"
	"io"

	"github.com/Abraxas-365/auralis/pkg/kernel"
)

// Repository defines the contract for transcript persistence
type Repository interface {
	Save(ctx context.Context, t Transcript) error
	Update(ctx context.Context, t Transcript) error
	FindByID(ctx context.Context, id kernel.TranscriptID, userID kernel.UserID) (*Transcript, error)
	FindByUser(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[Transcript], error)
	Delete(ctx context.Context, id kernel.TranscriptID, userID kernel.UserID) error

	// FindAnyByID skips the owner scope. It exists for job event handlers,
	// which only know the transcript id.
	FindAnyByID(ctx context.Context, id kernel.TranscriptID) (*Transcript, error)

	CountByStatus(ctx context.Context, userID kernel.UserID) (map[TranscriptStatus]int, error)
}

// TranscribeOptions tune a single provider call.
type TranscribeOptions struct {
	Filename string // Original filename, used for format hints
	Language string // Optional BCP-47 hint; empty means auto-detect
}

// Provider turns audio into text. Implementations wrap external APIs and are
// expected to fail with errx errors the retry policy can act on.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio io.Reader, opts TranscribeOptions) (Result, error)
}

// Cache is a read-through cache for completed transcripts, keyed by id.
type Cache interface {
	Get(ctx context.Context, id kernel.TranscriptID) (*Transcript, error)
	Set(ctx context.Context, t *Transcript) error
	Invalidate(ctx context.Context, id kernel.TranscriptID) error
}
