package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/handlers"
	"github.com/MegaGrindStone/askstream/internal/services"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const errLoggerKey = "err"

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", slog.String(errLoggerKey, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	mux := http.NewServeMux()

	if cfg.LLM != nil {
		llm, err := cfg.LLM.llm(cfg.SystemPrompt, logger)
		if err != nil {
			return fmt.Errorf("error creating llm: %w", err)
		}
		mux.HandleFunc("/api/ask", handlers.NewAnswer(llm, logger).HandleAsk)
	}

	opts := cfg.sessionOptions()
	opts.Logger = logger

	var journal handlers.Journal
	if cfg.JournalPath != "" {
		boltJournal, err := services.NewBoltJournal(cfg.JournalPath)
		if err != nil {
			return err
		}
		defer boltJournal.Close()
		journal = boltJournal
		opts.Journal = boltJournal
	}

	var transcriber handlers.Transcriber
	if cfg.Transcriber.URL != "" {
		transcriber = services.NewTranscriber(cfg.Transcriber.URL, cfg.Transcriber.APIKey, cfg.Transcriber.Model,
			cfg.Transcriber.Timeout, logger)
	}

	events, err := handlers.NewEvents(logger)
	if err != nil {
		return fmt.Errorf("error creating events: %w", err)
	}
	opts.Observer = events

	session := chat.NewSession(services.NewAnswerClient(cfg.AnswerURL, nil, logger), opts)

	m, err := handlers.NewMain(session, journal, transcriber, events, logger)
	if err != nil {
		return fmt.Errorf("error creating handlers: %w", err)
	}

	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/chats/voice", m.HandleVoice)
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("/exchanges", m.HandleExchanges)
	mux.Handle("/sse/messages", events)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String(errLoggerKey, err.Error()))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("answerURL", cfg.AnswerURL),
			slog.Bool("answerService", cfg.LLM != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Closing the session first cancels the exchange in flight, which may be streaming from this
		// very server.
		if err := session.Close(shutdownCtx); err != nil {
			logger.Error("Failed to close session", slog.String(errLoggerKey, err.Error()))
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String(errLoggerKey, err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String(errLoggerKey, err.Error()))
			}
		}
		return nil
	})

	return eg.Wait()
}

// loadConfig reads the configuration file named by ASKSTREAM_CONFIG, or config.yaml in the user
// configuration directory.
func loadConfig() (config, error) {
	cfgFilePath := os.Getenv("ASKSTREAM_CONFIG")
	if cfgFilePath == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("error getting user config dir: %w", err)
		}
		cfgFilePath = filepath.Join(cfgDir, "askstream", "config.yaml")
	}

	cfgFile, err := os.Open(cfgFilePath)
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	return decodeConfig(cfgFile)
}
