package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/services"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	url            string
	timeout        time.Duration
	history        int
	maxPending     int
	flushRemainder bool
	audio          string
	transcriberURL string
	logLevel       string
}

func main() {
	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "askstream-cli",
		Short:        "Ask questions to a streaming answer service from the terminal",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.url, "url", envOr("ASKSTREAM_URL", "http://localhost:8080/api/ask"), "answer service endpoint")
	flags.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "deadline of each exchange, 0 for none")
	flags.IntVar(&opts.history, "history", chat.DefaultHistoryWindow, "number of recent messages sent with each question")
	flags.IntVar(&opts.maxPending, "max-pending", 16, "maximum number of unanswered questions, 0 for no bound")
	flags.BoolVar(&opts.flushRemainder, "flush-remainder", false, "decode an unterminated last line of the stream")
	flags.StringVar(&opts.audio, "audio", "", "audio file to transcribe and ask")
	flags.StringVar(&opts.transcriberURL, "transcriber-url", os.Getenv("ASKSTREAM_TRANSCRIBER_URL"),
		"base URL of the transcription service")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(newAskCommand(opts), newREPLCommand(opts))
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *options) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func (o *options) newSession(observer chat.Observer, logger *slog.Logger) *chat.Session {
	history := o.history
	if history == 0 {
		history = -1
	}
	return chat.NewSession(services.NewAnswerClient(o.url, nil, logger), chat.Options{
		HistoryWindow:   history,
		ExchangeTimeout: o.timeout,
		MaxPending:      o.maxPending,
		FlushRemainder:  o.flushRemainder,
		Observer:        observer,
		Logger:          logger,
	})
}

// transcribe returns the transcript of the --audio file.
func (o *options) transcribe(ctx context.Context, logger *slog.Logger) (string, error) {
	if o.transcriberURL == "" {
		return "", fmt.Errorf("--transcriber-url is required with --audio")
	}

	f, err := os.Open(o.audio)
	if err != nil {
		return "", fmt.Errorf("error opening audio file: %w", err)
	}
	defer f.Close()

	tr := services.NewTranscriber(o.transcriberURL, os.Getenv("OPENAI_API_KEY"), "", 0, logger)
	return tr.Transcribe(ctx, f.Name(), f)
}
