package handlers

import (
	"log/slog"
	"net/http"
)

type homePageData struct {
	Messages   []message
	Processing bool
}

// HandleHome renders the conversation page.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	messages := m.session.Messages()
	data := homePageData{
		Messages:   make([]message, len(messages)),
		Processing: m.session.Processing(),
	}
	for i, msg := range messages {
		content, err := msg.RenderText()
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Messages[i] = message{
			ID:        msg.ID,
			Role:      string(msg.Role),
			Status:    string(msg.Status),
			Content:   safeHTML(content),
			CreatedAt: msg.CreatedAt,
		}
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
