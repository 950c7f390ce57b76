// Package stopenai implements the transcription provider on top of the
// OpenAI audio API (Whisper).
package stopenai

import (
	"context"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Abraxas-365/auralis/pkg/transcription"
)

// Provider wraps the OpenAI client for audio transcription.
type Provider struct {
	client openai.Client
	model  openai.AudioModel
}

// Option configures the provider.
type Option func(*Provider)

// WithModel overrides the default audio model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = openai.AudioModel(model)
	}
}

// New creates an OpenAI-backed transcription provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.AudioModelWhisper1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider in transcript records.
func (p *Provider) Name() string {
	return "openai"
}

// Transcribe sends the audio stream to the transcription endpoint and returns
// the recognized text.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, opts transcription.TranscribeOptions) (transcription.Result, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  audio,
	}
	if opts.Language != "" {
		params.Language = param.NewOpt(opts.Language)
	}

	response, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcription.Result{}, ParseOpenAIError(err)
	}

	return transcription.Result{
		Text:     response.Text,
		Language: opts.Language,
	}, nil
}
