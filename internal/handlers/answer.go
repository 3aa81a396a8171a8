package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/MegaGrindStone/askstream/internal/stream"
	"github.com/tmaxmax/go-sse"
)

// Answer is the answer service: it streams an LLM's answer to a question as server-sent events.
type Answer struct {
	llm LLM

	logger *slog.Logger
}

// NewAnswer creates an answer service backed by llm.
func NewAnswer(llm LLM, logger *slog.Logger) Answer {
	return Answer{
		llm:    llm,
		logger: logger.With(slog.String("module", "answer")),
	}
}

// HandleAsk answers the models.AskRequest in the request body. Each token is sent as an untyped event with
// a {"delta": ...} payload. A failure of the LLM is sent as an "error" event with a {"message": ...}
// payload. The stream always ends with the [DONE] sentinel.
func (a Answer) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		a.logger.Error("Failed to upgrade connection", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logger := a.logger.With(slog.Int("history", len(req.History)))
	logger.Debug("Answering question", slog.String("question", req.Question))

	tokens := 0
	for token, err := range a.llm.Answer(r.Context(), req.Question, req.History) {
		if err != nil {
			logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			msg, mErr := stream.ErrorMessage(err.Error())
			if mErr != nil {
				break
			}
			if err := a.send(sess, msg); err != nil {
				logger.Error("Failed to send error", slog.String(errLoggerKey, err.Error()))
				return
			}
			break
		}

		msg, err := stream.DeltaMessage(token)
		if err != nil {
			logger.Error("Failed to encode delta", slog.String(errLoggerKey, err.Error()))
			continue
		}
		if err := a.send(sess, msg); err != nil {
			// The client went away.
			logger.Debug("Failed to send delta", slog.String(errLoggerKey, err.Error()))
			return
		}
		tokens++
	}

	if err := a.send(sess, stream.DoneMessage()); err != nil {
		logger.Debug("Failed to send end of stream", slog.String(errLoggerKey, err.Error()))
		return
	}
	logger.Debug("Answer sent", slog.Int("tokens", tokens))
}

func (a Answer) send(sess *sse.Session, msg *sse.Message) error {
	if err := sess.Send(msg); err != nil {
		return err
	}
	return sess.Flush()
}
