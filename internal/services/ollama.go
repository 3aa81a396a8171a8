package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama answers questions with a model served by an Ollama server.
type Ollama struct {
	host         string
	model        string
	systemPrompt string

	client *api.Client
}

// NewOllama creates a new Ollama instance for the server at host. It returns an error if host isn't a
// valid URL.
func NewOllama(host, model, systemPrompt string) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:         host,
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
	}, nil
}

// Answer streams the model's answer to question, token by token. The iteration stops on the first error;
// a canceled context ends it silently.
func (o Ollama) Answer(ctx context.Context, question string, history []models.HistoryEntry) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, 0, len(history)+2)
		if o.systemPrompt != "" {
			msgs = append(msgs, api.Message{Role: "system", Content: o.systemPrompt})
		}
		for _, h := range history {
			msgs = append(msgs, api.Message{Role: h.Role, Content: h.Content})
		}
		msgs = append(msgs, api.Message{Role: "user", Content: question})

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
