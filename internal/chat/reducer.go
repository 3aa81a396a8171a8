package chat

import (
	"time"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/MegaGrindStone/askstream/internal/stream"
	"github.com/google/uuid"
)

// ErrorPrefix labels assistant messages that report a failed exchange.
const ErrorPrefix = "오류: "

// Reducer applies the events of one exchange to the conversation. The first delta creates the assistant
// message, later deltas extend it, and an error or the end of the stream finishes the exchange. Once the
// exchange is finished, further events are ignored.
type Reducer struct {
	conv *Conversation

	answerID string
	state    models.ExchangeState

	emptyAnswerText string
	now             func() time.Time
}

// NewReducer creates a Reducer for a freshly dispatched exchange. When emptyAnswerText is not empty, it is
// added as the answer of an exchange that finishes without any delta.
func NewReducer(conv *Conversation, emptyAnswerText string) *Reducer {
	return &Reducer{
		conv:            conv,
		state:           models.ExchangeDispatched,
		emptyAnswerText: emptyAnswerText,
		now:             time.Now,
	}
}

// State returns the exchange state reached so far.
func (r *Reducer) State() models.ExchangeState {
	return r.state
}

// AnswerID returns the ID of the assistant message created by the exchange, or an empty string if no
// delta has arrived.
func (r *Reducer) AnswerID() string {
	return r.answerID
}

// Apply applies ev and returns the resulting exchange state.
func (r *Reducer) Apply(ev stream.Event) models.ExchangeState {
	if r.state.Terminal() {
		return r.state
	}

	switch e := ev.(type) {
	case stream.Delta:
		r.applyDelta(e.Text)
	case stream.ErrorEvent:
		r.fail(e.Message)
	case stream.Done:
		r.complete()
	}
	return r.state
}

// Fail finishes the exchange because of a transport failure. The reason is shown to the user the same way
// as an error reported by the answer service.
func (r *Reducer) Fail(reason string) models.ExchangeState {
	if !r.state.Terminal() {
		r.fail(reason)
	}
	return r.state
}

// Finish finishes the exchange when the stream closed cleanly without the end-of-stream sentinel.
func (r *Reducer) Finish() models.ExchangeState {
	if !r.state.Terminal() {
		r.complete()
	}
	return r.state
}

func (r *Reducer) applyDelta(text string) {
	if text == "" {
		return
	}
	if r.answerID == "" {
		r.answerID = uuid.New().String()
		r.conv.Append(models.Message{
			ID:        r.answerID,
			Role:      models.RoleAssistant,
			Text:      text,
			CreatedAt: r.now(),
			Status:    models.StatusStreaming,
		})
		r.state = models.ExchangeStreaming
		return
	}
	_ = r.conv.AppendText(r.answerID, text)
}

// fail adds a new error message. A partial answer is left as it was received.
func (r *Reducer) fail(reason string) {
	r.conv.Append(models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleAssistant,
		Text:      ErrorPrefix + reason,
		CreatedAt: r.now(),
		Status:    models.StatusErrored,
	})
	r.state = models.ExchangeErrored
}

func (r *Reducer) complete() {
	switch {
	case r.answerID != "":
		_ = r.conv.SetStatus(r.answerID, models.StatusComplete)
	case r.emptyAnswerText != "":
		r.answerID = uuid.New().String()
		r.conv.Append(models.Message{
			ID:        r.answerID,
			Role:      models.RoleAssistant,
			Text:      r.emptyAnswerText,
			CreatedAt: r.now(),
			Status:    models.StatusComplete,
		})
	}
	r.state = models.ExchangeComplete
}
