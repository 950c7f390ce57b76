// Package stgemini implements the transcription provider on top of the
// Gemini API, which accepts inline audio in multimodal prompts.
package stgemini

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/Abraxas-365/auralis/pkg/transcription"
)

const defaultModel = "gemini-2.0-flash"

const transcribePrompt = "Transcribe this audio recording verbatim. " +
	"Return only the spoken text, without commentary or timestamps."

// Provider wraps the Gemini client for audio transcription.
type Provider struct {
	client *genai.Client
	model  string
}

// Option configures the provider.
type Option func(*Provider)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// New creates a Gemini-backed transcription provider.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errorRegistry.New(ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, ParseGeminiError(err)
	}

	p := &Provider{
		client: client,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name identifies the provider in transcript records.
func (p *Provider) Name() string {
	return "gemini"
}

// Transcribe sends the audio inline with a transcription prompt and returns
// the model's text output.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, opts transcription.TranscribeOptions) (transcription.Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return transcription.Result{}, WrapError(err, ErrAudioRead)
	}
	if len(data) == 0 {
		return transcription.Result{}, errorRegistry.New(ErrEmptyAudio)
	}

	prompt := transcribePrompt
	if opts.Language != "" {
		prompt += " The audio is in " + opts.Language + "."
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				genai.NewPartFromBytes(data, audioMIMEType(opts.Filename)),
				genai.NewPartFromText(prompt),
			},
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return transcription.Result{}, ParseGeminiError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return transcription.Result{}, errorRegistry.New(ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}

	return transcription.Result{
		Text:     strings.TrimSpace(text.String()),
		Language: opts.Language,
	}, nil
}

// audioMIMEType resolves a MIME type from the filename extension, falling
// back to mp3 which Gemini accepts for most compressed audio.
func audioMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webm":
		return "audio/webm"
	}
	if typ := mime.TypeByExtension(ext); typ != "" {
		return typ
	}
	return "audio/mpeg"
}
