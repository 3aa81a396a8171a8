package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// Transcriber turns recorded speech into question text, using a service that speaks the OpenAI audio
// transcription protocol: a multipart upload with the audio under the "file" field, answered with
// {"text": ...}.
type Transcriber struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration

	logger *slog.Logger
}

// DefaultTranscribeTimeout bounds a transcription when no timeout is configured.
const DefaultTranscribeTimeout = 30 * time.Second

var errEmptyTranscript = errors.New("transcript is empty")

// NewTranscriber creates a Transcriber for the service at baseURL. The zero timeout means
// DefaultTranscribeTimeout.
func NewTranscriber(baseURL, apiKey, model string, timeout time.Duration, logger *slog.Logger) Transcriber {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if model == "" {
		model = goopenai.Whisper1
	}
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	return Transcriber{
		client:  goopenai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		logger:  logger.With(slog.String("module", "transcriber")),
	}
}

// Transcribe uploads audio under filename and returns the trimmed transcript. It fails when the service
// doesn't answer within the transcriber timeout, or when the transcript is blank.
func (t Transcriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, t.timeout,
		fmt.Errorf("no transcript within %s", t.timeout))
	defer cancel()

	resp, err := t.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("error transcribing audio: %w", context.Cause(ctx))
		}
		return "", fmt.Errorf("error transcribing audio: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	t.logger.Debug("Transcribed audio", slog.String("filename", filename), slog.Int("length", len(text)))
	if text == "" {
		return "", errEmptyTranscript
	}
	return text, nil
}
