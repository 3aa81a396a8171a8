package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/handlers"
	"github.com/MegaGrindStone/askstream/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string            `yaml:"port"`
	LogLevel     string            `yaml:"logLevel"`
	AnswerURL    string            `yaml:"answerURL"`
	SystemPrompt string            `yaml:"systemPrompt"`
	JournalPath  string            `yaml:"journalPath"`
	Session      sessionConfig     `yaml:"session"`
	Queue        queueConfig       `yaml:"queue"`
	Stream       streamConfig      `yaml:"stream"`
	Transcriber  transcriberConfig `yaml:"transcriber"`

	// LLM is nil when no answer service is served by this process.
	LLM llmConfig `yaml:"llm"`
}

type sessionConfig struct {
	HistoryWindow   int           `yaml:"historyWindow"`
	ExchangeTimeout time.Duration `yaml:"exchangeTimeout"`
	EmptyAnswerText string        `yaml:"emptyAnswerText"`
}

type queueConfig struct {
	MaxPending int `yaml:"maxPending"`
}

type streamConfig struct {
	FlushRemainder bool `yaml:"flushRemainder"`
}

type transcriberConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"apiKey"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`

	services.LLMParameters `yaml:",inline"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort            = "8080"
	defaultExchangeTimeout = 2 * time.Minute
	defaultMaxPending      = 16
	defaultOllamaHost      = "http://localhost:11434"
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string            `yaml:"port"`
		LogLevel     string            `yaml:"logLevel"`
		AnswerURL    string            `yaml:"answerURL"`
		SystemPrompt string            `yaml:"systemPrompt"`
		JournalPath  string            `yaml:"journalPath"`
		Session      sessionConfig     `yaml:"session"`
		Queue        *queueConfig      `yaml:"queue"`
		Stream       streamConfig      `yaml:"stream"`
		Transcriber  transcriberConfig `yaml:"transcriber"`
		LLM          map[string]any    `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.AnswerURL = rawConfig.AnswerURL
	c.SystemPrompt = rawConfig.SystemPrompt
	c.JournalPath = rawConfig.JournalPath
	c.Session = rawConfig.Session
	c.Stream = rawConfig.Stream
	c.Transcriber = rawConfig.Transcriber

	// An explicit zero disables the bound, so only a missing section gets the default.
	c.Queue = queueConfig{MaxPending: defaultMaxPending}
	if rawConfig.Queue != nil {
		c.Queue = *rawConfig.Queue
	}

	if len(rawConfig.LLM) == 0 {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func decodeConfig(r io.Reader) (config, error) {
	cfg := config{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// finalize fills in the defaults and checks that the configuration is usable.
func (c *config) finalize() error {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.Session.ExchangeTimeout == 0 {
		c.Session.ExchangeTimeout = defaultExchangeTimeout
	}
	if c.Session.HistoryWindow == 0 {
		c.Session.HistoryWindow = chat.DefaultHistoryWindow
	}
	if c.Queue.MaxPending < 0 {
		return fmt.Errorf("queue.maxPending must not be negative, got %d", c.Queue.MaxPending)
	}
	if c.Transcriber.Timeout == 0 {
		c.Transcriber.Timeout = services.DefaultTranscribeTimeout
	}
	if c.Transcriber.APIKey == "" {
		c.Transcriber.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.AnswerURL == "" {
		if c.LLM == nil {
			return errors.New("either answerURL or llm is required")
		}
		// The answer service is served by this process.
		c.AnswerURL = "http://localhost:" + c.Port + "/api/ask"
	}
	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c config) sessionOptions() chat.Options {
	return chat.Options{
		HistoryWindow:   c.Session.HistoryWindow,
		ExchangeTimeout: c.Session.ExchangeTimeout,
		MaxPending:      c.Queue.MaxPending,
		FlushRemainder:  c.Stream.FlushRemainder,
		EmptyAnswerText: c.Session.EmptyAnswerText,
	}
}

func (o ollamaConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, o.Model, systemPrompt)
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, o.LLMParameters, logger), nil
}

func (a anthropicConfig) llm(systemPrompt string, _ *slog.Logger) (handlers.LLM, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens, systemPrompt, a.BaseURL), nil
}
