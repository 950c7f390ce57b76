package transcriptionsrv

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/auralis/pkg/fsx"
	"github.com/Abraxas-365/auralis/pkg/jobx"
	"github.com/Abraxas-365/auralis/pkg/jobx/jobxmem"
	"github.com/Abraxas-365/auralis/pkg/kernel"
	"github.com/Abraxas-365/auralis/pkg/ptrx"
	"github.com/Abraxas-365/auralis/pkg/transcription"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type memRepo struct {
	mu   sync.Mutex
	rows map[kernel.TranscriptID]transcription.Transcript
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[kernel.TranscriptID]transcription.Transcript)}
}

func (r *memRepo) Save(_ context.Context, t transcription.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.ID] = t
	return nil
}

func (r *memRepo) Update(_ context.Context, t transcription.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.ID]; !ok {
		return transcription.ErrNotFound()
	}
	r.rows[t.ID] = t
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id kernel.TranscriptID, userID kernel.UserID) (*transcription.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.UserID != userID {
		return nil, transcription.ErrNotFound()
	}
	cp := t
	return &cp, nil
}

func (r *memRepo) FindAnyByID(_ context.Context, id kernel.TranscriptID) (*transcription.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return nil, transcription.ErrNotFound()
	}
	cp := t
	return &cp, nil
}

func (r *memRepo) FindByUser(_ context.Context, userID kernel.UserID, opts kernel.PaginationOptions) (kernel.Paginated[transcription.Transcript], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []transcription.Transcript
	for _, t := range r.rows {
		if t.UserID == userID {
			items = append(items, t)
		}
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, len(items)), nil
}

func (r *memRepo) Delete(_ context.Context, id kernel.TranscriptID, userID kernel.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.UserID != userID {
		return transcription.ErrNotFound()
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) CountByStatus(_ context.Context, userID kernel.UserID) (map[transcription.TranscriptStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[transcription.TranscriptStatus]int)
	for _, t := range r.rows {
		if t.UserID == userID {
			counts[t.Status]++
		}
	}
	return counts, nil
}

type memFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (f *memFS) ReadFile(_ context.Context, p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	if !ok {
		return nil, errors.New("file not found: " + p)
	}
	return data, nil
}

func (f *memFS) ReadFileStream(ctx context.Context, p string) (io.ReadCloser, error) {
	data, err := f.ReadFile(ctx, p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memFS) Stat(_ context.Context, p string) (fsx.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[p]
	if !ok {
		return fsx.FileInfo{}, errors.New("file not found: " + p)
	}
	return fsx.FileInfo{Name: path.Base(p), Size: int64(len(data))}, nil
}

func (f *memFS) Exists(_ context.Context, p string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[p]
	return ok, nil
}

func (f *memFS) WriteFile(_ context.Context, p string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = data
	return nil
}

func (f *memFS) WriteFileStream(ctx context.Context, p string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return f.WriteFile(ctx, p, data)
}

func (f *memFS) DeleteFile(_ context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, p)
	return nil
}

func (f *memFS) Join(elem ...string) string {
	return path.Join(elem...)
}

type stubProvider struct {
	calls      atomic.Int64
	transcribe func(ctx context.Context, audio io.Reader, opts transcription.TranscribeOptions) (transcription.Result, error)
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Transcribe(ctx context.Context, audio io.Reader, opts transcription.TranscribeOptions) (transcription.Result, error) {
	p.calls.Add(1)
	return p.transcribe(ctx, audio, opts)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	service  *Service
	repo     *memRepo
	fs       *memFS
	provider *stubProvider
	queue    *jobxmem.MemoryQueue
	pool     *jobx.Pool
}

func newHarness(t *testing.T, provider *stubProvider, cfg Config) *harness {
	t.Helper()

	bus := jobx.NewBus()
	queue := jobxmem.New(bus)
	pool := jobx.NewPool(queue, bus,
		jobx.WithConcurrency(2),
		jobx.WithPollInterval(5*time.Millisecond),
		jobx.WithBackoff(time.Millisecond, 20*time.Millisecond),
		jobx.WithShutdownTimeout(2*time.Second),
	)

	repo := newMemRepo()
	fs := newMemFS()

	providers := map[string]transcription.Provider{"stub": provider}
	svc := NewService(repo, nil, fs, providers, "stub", queue, nil, nil, cfg)
	svc.RegisterJobs(pool)

	pool.Start()
	t.Cleanup(func() {
		pool.Stop()
		queue.Close()
	})

	return &harness{service: svc, repo: repo, fs: fs, provider: provider, queue: queue, pool: pool}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
	}
}

func upload(t *testing.T, h *harness, userID kernel.UserID) *transcription.Transcript {
	t.Helper()
	tr, err := h.service.Upload(context.Background(), userID, UploadRequest{
		Filename:    "meeting.mp3",
		ContentType: "audio/mpeg",
		Size:        11,
		Data:        strings.NewReader("fake audio."),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return tr
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestUploadValidation(t *testing.T) {
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		return transcription.Result{Text: "ok"}, nil
	}}
	h := newHarness(t, provider, Config{MaxUploadSize: 10, MaxAttempts: 1, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")

	_, err := h.service.Upload(context.Background(), userID, UploadRequest{
		Filename: "notes.txt", Size: 5, Data: strings.NewReader("hello"),
	})
	if err == nil {
		t.Fatal("expected unsupported format error for .txt")
	}

	_, err = h.service.Upload(context.Background(), userID, UploadRequest{
		Filename: "big.mp3", Size: 100, Data: strings.NewReader("x"),
	})
	if err == nil {
		t.Fatal("expected size limit error")
	}

	_, err = h.service.Upload(context.Background(), userID, UploadRequest{
		Filename: "empty.mp3", Size: 0, Data: strings.NewReader(""),
	})
	if err == nil {
		t.Fatal("expected empty file error")
	}

	_, err = h.service.Upload(context.Background(), userID, UploadRequest{
		Filename: "song.mp3", Size: 5, Provider: "nonexistent", Data: strings.NewReader("audio"),
	})
	if err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestUploadToCompletedTranscript(t *testing.T) {
	provider := &stubProvider{transcribe: func(_ context.Context, audio io.Reader, _ transcription.TranscribeOptions) (transcription.Result, error) {
		data, _ := io.ReadAll(audio)
		if string(data) != "fake audio." {
			return transcription.Result{}, errors.New("unexpected audio payload")
		}
		return transcription.Result{
			Text:       "hello world",
			Language:   "en",
			Confidence: ptrx.Float64(0.93),
			Duration:   ptrx.Float64(42.5),
		}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 3, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")
	tr := upload(t, h, userID)

	if tr.Status != transcription.StatusUploaded {
		t.Fatalf("Status = %q, want %q", tr.Status, transcription.StatusUploaded)
	}

	waitFor(t, 2*time.Second, func() bool {
		got, err := h.repo.FindByID(context.Background(), tr.ID, userID)
		return err == nil && got.Status == transcription.StatusCompleted
	})

	got, err := h.service.Get(context.Background(), userID, tr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q, want %q", got.Text, "hello world")
	}
	if got.Language != "en" {
		t.Errorf("Language = %q, want %q", got.Language, "en")
	}
	if got.Provider != "stub" {
		t.Errorf("Provider = %q, want %q", got.Provider, "stub")
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if ptrx.Float64Value(got.Confidence) != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", ptrx.Float64Value(got.Confidence))
	}
	if ptrx.Float64Value(got.Duration) != 42.5 {
		t.Errorf("Duration = %v, want 42.5", ptrx.Float64Value(got.Duration))
	}
	if n := provider.calls.Load(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
	if size := h.queue.Size(); size != 0 {
		t.Errorf("queue size = %d, want 0", size)
	}
}

func TestProviderFailureMarksTranscriptFailed(t *testing.T) {
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		return transcription.Result{}, errors.New("upstream down")
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 2, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")
	tr := upload(t, h, userID)

	waitFor(t, 2*time.Second, func() bool {
		got, err := h.repo.FindByID(context.Background(), tr.ID, userID)
		return err == nil && got.Status == transcription.StatusFailed
	})

	got, _ := h.repo.FindByID(context.Background(), tr.ID, userID)
	if got.ErrorMessage == "" {
		t.Error("ErrorMessage not set on failed transcript")
	}
	if n := provider.calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2 (initial attempt plus one retry)", n)
	}
}

func TestTranscriptRecoversAfterTransientFailures(t *testing.T) {
	var failures atomic.Int64
	failures.Store(2)
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		if failures.Add(-1) >= 0 {
			return transcription.Result{}, errors.New("flaky")
		}
		return transcription.Result{Text: "finally"}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 3, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")
	tr := upload(t, h, userID)

	waitFor(t, 2*time.Second, func() bool {
		got, err := h.repo.FindByID(context.Background(), tr.ID, userID)
		return err == nil && got.Status == transcription.StatusCompleted
	})

	got, _ := h.repo.FindByID(context.Background(), tr.ID, userID)
	if got.Text != "finally" {
		t.Errorf("Text = %q, want %q", got.Text, "finally")
	}
	if n := provider.calls.Load(); n != 3 {
		t.Errorf("provider calls = %d, want 3", n)
	}
}

func TestTextRequiresCompletion(t *testing.T) {
	block := make(chan struct{})
	provider := &stubProvider{transcribe: func(ctx context.Context, _ io.Reader, _ transcription.TranscribeOptions) (transcription.Result, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return transcription.Result{Text: "late"}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 1, HandlerTimeout: 5 * time.Second})
	defer close(block)

	userID := kernel.NewUserID("u1")
	tr := upload(t, h, userID)

	_, err := h.service.Text(context.Background(), userID, tr.ID)
	if err == nil {
		t.Fatal("expected not-ready error while job is in flight")
	}
}

func TestDeleteRemovesRowAndAudio(t *testing.T) {
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		return transcription.Result{Text: "ok"}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 1, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")
	tr := upload(t, h, userID)

	waitFor(t, 2*time.Second, func() bool {
		got, err := h.repo.FindByID(context.Background(), tr.ID, userID)
		return err == nil && got.IsTerminal()
	})

	if err := h.service.Delete(context.Background(), userID, tr.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := h.repo.FindByID(context.Background(), tr.ID, userID); err == nil {
		t.Error("transcript row still present after delete")
	}
	if exists, _ := h.fs.Exists(context.Background(), tr.StoragePath); exists {
		t.Error("audio file still present after delete")
	}
}

func TestGetIsScopedToOwner(t *testing.T) {
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		return transcription.Result{Text: "ok"}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 1, HandlerTimeout: time.Second})

	owner := kernel.NewUserID("owner")
	tr := upload(t, h, owner)

	if _, err := h.service.Get(context.Background(), kernel.NewUserID("intruder"), tr.ID); err == nil {
		t.Fatal("expected not found for a different user")
	}
}

func TestStatsGroupsByStatus(t *testing.T) {
	provider := &stubProvider{transcribe: func(context.Context, io.Reader, transcription.TranscribeOptions) (transcription.Result, error) {
		return transcription.Result{Text: "ok"}, nil
	}}
	h := newHarness(t, provider, Config{MaxAttempts: 1, HandlerTimeout: time.Second})

	userID := kernel.NewUserID("u1")
	first := upload(t, h, userID)
	second := upload(t, h, userID)

	waitFor(t, 2*time.Second, func() bool {
		a, errA := h.repo.FindByID(context.Background(), first.ID, userID)
		b, errB := h.repo.FindByID(context.Background(), second.ID, userID)
		return errA == nil && errB == nil && a.IsTerminal() && b.IsTerminal()
	})

	counts, err := h.service.Stats(context.Background(), userID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts[transcription.StatusCompleted] != 2 {
		t.Errorf("completed count = %d, want 2", counts[transcription.StatusCompleted])
	}
}
