package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// AnswerClient opens answer streams on an answer service over HTTP.
type AnswerClient struct {
	url    string
	client *http.Client

	logger *slog.Logger
}

// TransportError reports that the answer stream couldn't be opened. StatusCode is zero when no response
// was received.
type TransportError struct {
	StatusCode int
	Err        error
}

const maxErrorBodySize = 512

var errNoBody = errors.New("response has no body")

// NewAnswerClient creates an AnswerClient posting questions to url. A nil client means http.DefaultClient.
// The client must not have a timeout shorter than the longest expected answer: the exchange deadline is
// carried by the request context.
func NewAnswerClient(url string, client *http.Client, logger *slog.Logger) AnswerClient {
	if client == nil {
		client = http.DefaultClient
	}
	return AnswerClient{
		url:    url,
		client: client,
		logger: logger.With(slog.String("module", "answer")),
	}
}

// Ask posts req to the answer service and returns the response body, which carries the answer as a server
// sent event stream. The caller must close it. Every failure is returned as a *TransportError.
func (a AnswerClient) Ask(ctx context.Context, req models.AskRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("error marshaling request: %w", err)}
	}

	a.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("error creating request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, bytes.TrimSpace(body)),
		}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errNoBody}
	}

	return resp.Body, nil
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
