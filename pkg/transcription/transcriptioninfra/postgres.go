// Package transcriptioninfra provides the persistence adapters for the
// transcription context: a PostgreSQL repository and a Redis read-through
// cache.
package transcriptioninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/transcription"
)

// PostgresRepository is the PostgreSQL implementation of the transcript
// repository.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates the repository.
func NewPostgresRepository(db *sqlx.DB) transcription.Repository {
	return &PostgresRepository{db: db}
}

type transcriptPersistence struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	Filename     string     `db:"filename"`
	StoragePath  string     `db:"storage_path"`
	ContentType  string     `db:"content_type"`
	SizeBytes    int64      `db:"size_bytes"`
	Status       string     `db:"status"`
	Text         string     `db:"text"`
	Language     string     `db:"language"`
	Confidence   *float64   `db:"confidence"`
	Duration     *float64   `db:"duration"`
	Provider     string     `db:"provider"`
	ErrorMessage string     `db:"error_message"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

func toPersistence(t transcription.Transcript) transcriptPersistence {
	return transcriptPersistence{
		ID:           t.ID.String(),
		UserID:       t.UserID.String(),
		Filename:     t.Filename,
		StoragePath:  t.StoragePath,
		ContentType:  t.ContentType,
		SizeBytes:    t.SizeBytes,
		Status:       string(t.Status),
		Text:         t.Text,
		Language:     t.Language,
		Confidence:   t.Confidence,
		Duration:     t.Duration,
		Provider:     t.Provider,
		ErrorMessage: t.ErrorMessage,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CompletedAt:  t.CompletedAt,
	}
}

func toDomain(p transcriptPersistence) transcription.Transcript {
	return transcription.Transcript{
		ID:           kernel.NewTranscriptID(p.ID),
		UserID:       kernel.NewUserID(p.UserID),
		Filename:     p.Filename,
		StoragePath:  p.StoragePath,
		ContentType:  p.ContentType,
		SizeBytes:    p.SizeBytes,
		Status:       transcription.TranscriptStatus(p.Status),
		Text:         p.Text,
		Language:     p.Language,
		Confidence:   p.Confidence,
		Duration:     p.Duration,
		Provider:     p.Provider,
		ErrorMessage: p.ErrorMessage,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		CompletedAt:  p.CompletedAt,
	}
}

// Save inserts a new transcript row.
func (r *PostgresRepository) Save(ctx context.Context, t transcription.Transcript) error {
	query := `
		INSERT INTO transcripts (
			id, user_id, filename, storage_path, content_type, size_bytes,
			status, text, language, confidence, duration, provider,
			error_message, created_at, updated_at, completed_at
		) VALUES (
			:id, :user_id, :filename, :storage_path, :content_type, :size_bytes,
			:status, :text, :language, :confidence, :duration, :provider,
			:error_message, :created_at, :updated_at, :completed_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPersistence(t))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.New("transcript already exists", errx.TypeConflict).
				WithDetail("transcript_id", t.ID.String())
		}
		return errx.Wrap(err, "failed to save transcript", errx.TypeInternal).
			WithDetail("transcript_id", t.ID.String())
	}
	return nil
}

// Update overwrites the mutable columns of a transcript.
func (r *PostgresRepository) Update(ctx context.Context, t transcription.Transcript) error {
	query := `
		UPDATE transcripts SET
			status = :status,
			text = :text,
			language = :language,
			confidence = :confidence,
			duration = :duration,
			provider = :provider,
			error_message = :error_message,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, toPersistence(t))
	if err != nil {
		return errx.Wrap(err, "failed to update transcript", errx.TypeInternal).
			WithDetail("transcript_id", t.ID.String())
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return transcription.ErrNotFound().WithDetail("transcript_id", t.ID.String())
	}
	return nil
}

// FindByID retrieves a transcript scoped to its owner.
func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.TranscriptID, userID kernel.UserID) (*transcription.Transcript, error) {
	var row transcriptPersistence
	query := `SELECT * FROM transcripts WHERE id = $1 AND user_id = $2`
	err := r.db.GetContext(ctx, &row, query, id.String(), userID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transcription.ErrNotFound().WithDetail("transcript_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find transcript", errx.TypeInternal)
	}
	t := toDomain(row)
	return &t, nil
}

// FindByUser lists a user's transcripts newest first.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[transcription.Transcript], error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 20
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM transcripts WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, userID.String()); err != nil {
		return kernel.Paginated[transcription.Transcript]{},
			errx.Wrap(err, "failed to count transcripts", errx.TypeInternal)
	}

	offset := (opts.Page - 1) * opts.PageSize

	var rows []transcriptPersistence
	query := `
		SELECT * FROM transcripts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID.String(), opts.PageSize, offset); err != nil {
		return kernel.Paginated[transcription.Transcript]{},
			errx.Wrap(err, "failed to list transcripts", errx.TypeInternal)
	}

	items := make([]transcription.Transcript, 0, len(rows))
	for _, row := range rows {
		items = append(items, toDomain(row))
	}

	return kernel.NewPaginated(items, opts.Page, opts.PageSize, total), nil
}

// FindAnyByID retrieves a transcript without the owner scope.
func (r *PostgresRepository) FindAnyByID(ctx context.Context, id kernel.TranscriptID) (*transcription.Transcript, error) {
	var row transcriptPersistence
	query := `SELECT * FROM transcripts WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transcription.ErrNotFound().WithDetail("transcript_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find transcript", errx.TypeInternal)
	}
	t := toDomain(row)
	return &t, nil
}

// CountByStatus groups a user's transcripts by status.
func (r *PostgresRepository) CountByStatus(ctx context.Context, userID kernel.UserID) (map[transcription.TranscriptStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT status, COUNT(*) AS count FROM transcripts WHERE user_id = $1 GROUP BY status`,
		userID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to count transcripts by status", errx.TypeInternal)
	}
	defer rows.Close()

	counts := make(map[transcription.TranscriptStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errx.Wrap(err, "failed to scan status count", errx.TypeInternal)
		}
		counts[transcription.TranscriptStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(err, "failed to iterate status counts", errx.TypeInternal)
	}
	return counts, nil
}

// Delete removes a transcript row owned by the user.
func (r *PostgresRepository) Delete(ctx context.Context, id kernel.TranscriptID, userID kernel.UserID) error {
	query := `DELETE FROM transcripts WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id.String(), userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete transcript", errx.TypeInternal)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return transcription.ErrNotFound().WithDetail("transcript_id", id.String())
	}
	return nil
}
