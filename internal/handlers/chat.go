package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/models"
)

const maxAudioSize = 25 << 20

type messagesResponse struct {
	Messages   []models.Message `json:"messages"`
	Processing bool             `json:"processing"`
}

// HandleChats submits the "message" form field as a question. The question is answered asynchronously:
// the handler responds with 202 and the queued message as soon as the question is accepted, and the
// answer reaches the page through the SSE endpoint.
//
// A blank message is ignored with 204. A full queue is reported with 429, and a closed session with 503.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.submit(w, r.FormValue("message"))
}

func (m Main) submit(w http.ResponseWriter, text string) {
	msg, err := m.session.Submit(text)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, chat.ErrQueueFull):
			m.logger.Warn("Question rejected", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, chat.ErrQueueClosed):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			m.logger.Error("Failed to submit question", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	m.writeJSON(w, http.StatusAccepted, msg)
}

// HandleVoice transcribes the audio uploaded under the "file" form field and submits the transcript as a
// question, with the same responses as HandleChats. It responds with 404 when no transcriber is
// configured, and with 502 when the transcription fails.
func (m Main) HandleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if m.transcriber == nil {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		m.logger.Error("Failed to read audio", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	text, err := m.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		m.logger.Error("Failed to transcribe audio",
			slog.String("filename", header.Filename),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	m.submit(w, text)
}

// HandleMessages responds with the current conversation as JSON.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.writeJSON(w, http.StatusOK, messagesResponse{
		Messages:   m.session.Messages(),
		Processing: m.session.Processing(),
	})
}

// HandleExchanges responds with the journal of finished exchanges as JSON, most recent first.
func (m Main) HandleExchanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	exchanges := []models.Exchange{}
	if m.journal != nil {
		exs, err := m.journal.Exchanges(r.Context())
		if err != nil {
			m.logger.Error("Failed to get exchanges", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if exs != nil {
			exchanges = exs
		}
	}

	m.writeJSON(w, http.StatusOK, exchanges)
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
