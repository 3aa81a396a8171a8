package handlers

import (
	"context"
	"html/template"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/askstream"
	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/tmaxmax/go-sse"
)

// LLM represents a large language model that answers a question, given the recent conversation. The
// returned iterator yields the answer token by token, and stops at the first error.
type LLM interface {
	Answer(ctx context.Context, question string, history []models.HistoryEntry) iter.Seq2[string, error]
}

// Session is the conversation shown by the web interface.
type Session interface {
	Submit(text string) (models.Message, error)
	Messages() []models.Message
	Processing() bool
}

// Journal lists finished exchanges, most recent first.
type Journal interface {
	Exchanges(ctx context.Context) ([]models.Exchange, error)
}

// Transcriber turns recorded speech into question text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Main serves the web interface of a Session: the conversation page, question submission, and the
// server-sent events that keep open pages up to date.
type Main struct {
	events    *Events
	templates *template.Template

	session     Session
	journal     Journal
	transcriber Transcriber

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewMain creates a new Main instance. The events must be the observer of session, so that pages receive
// its changes. A nil journal serves an empty exchange list, and a nil transcriber disables voice questions.
func NewMain(
	session Session,
	journal Journal,
	transcriber Transcriber,
	events *Events,
	logger *slog.Logger,
) (Main, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return Main{}, err
	}

	return Main{
		events:      events,
		templates:   tmpl,
		session:     session,
		journal:     journal,
		transcriber: transcriber,
		logger:      logger.With(slog.String("module", "main")),
	}, nil
}

func parseTemplates() (*template.Template, error) {
	return template.ParseFS(
		askstream.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected clients
// and waits up to 5 seconds for connections to terminate. After the timeout, any remaining connections
// are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: closeSSEType}
	// Browsers drop events that carry no data.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.events.srv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.events.srv.Shutdown(ctx)
}
