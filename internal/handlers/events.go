package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Events publishes the changes of a conversation to every page subscribed to the SSE endpoint. It is
// meant to be the observer of the session it shows.
type Events struct {
	srv       *sse.Server
	templates *template.Template

	mu     sync.Mutex
	active string

	logger *slog.Logger
}

// message is the template data of a rendered conversation message.
type message struct {
	ID        string
	Role      string
	Status    string
	Content   template.HTML
	CreatedAt time.Time
}

// SSE event types for real-time updates.
var (
	messageSSEType    = sse.Type("message")
	processingSSEType = sse.Type("processing")
	closeSSEType      = sse.Type("closeChat")
)

// NewEvents creates an Events publisher. Every subscriber gets every event.
func NewEvents(logger *slog.Logger) (*Events, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	logger = logger.With(slog.String("module", "events"))
	return &Events{
		srv: &sse.Server{
			OnSession: func(http.ResponseWriter, *http.Request) ([]string, bool) {
				return []string{sse.DefaultTopic}, true
			},
			Logger: func(*http.Request) *slog.Logger {
				return logger
			},
		},
		templates: tmpl,
		logger:    logger,
	}, nil
}

// ServeHTTP subscribes the client to the conversation events.
func (e *Events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.srv.ServeHTTP(w, r)
}

// MessageChanged publishes the rendered message. Pages replace the element with the same ID, or append it.
func (e *Events) MessageChanged(msg models.Message) {
	html, err := renderMessage(e.templates, msg)
	if err != nil {
		e.logger.Error("Failed to render message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	ev := &sse.Message{Type: messageSSEType}
	ev.AppendData(html)
	if err := e.srv.Publish(ev); err != nil {
		e.logger.Error("Failed to publish message",
			slog.String("messageID", msg.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// ExchangeChanged publishes whether an exchange is being processed. Only the exchange in flight moves the
// indicator: questions being queued, or dropped while waiting, leave it as it is.
func (e *Events) ExchangeChanged(ex models.Exchange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var processing bool
	switch {
	case ex.State == models.ExchangeDispatched || ex.State == models.ExchangeStreaming:
		if e.active == ex.ID {
			return
		}
		e.active = ex.ID
		processing = true
	case ex.State.Terminal() && ex.ID == e.active:
		e.active = ""
	default:
		return
	}

	ev := &sse.Message{Type: processingSSEType}
	ev.AppendData(strconv.FormatBool(processing))
	if err := e.srv.Publish(ev); err != nil {
		e.logger.Error("Failed to publish processing state",
			slog.String("exchangeID", ex.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func renderMessage(tmpl *template.Template, msg models.Message) (string, error) {
	content, err := msg.RenderText()
	if err != nil {
		return "", fmt.Errorf("failed to render text: %w", err)
	}

	var sb strings.Builder
	err = tmpl.ExecuteTemplate(&sb, "message", message{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Status:    string(msg.Status),
		Content:   safeHTML(content),
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute message template: %w", err)
	}
	return sb.String(), nil
}

// safeHTML marks the output of models.Message.RenderText as safe. Assistant text comes out of the markdown
// renderer with raw HTML removed, and user text is escaped.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}
