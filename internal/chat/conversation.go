package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// Observer receives every change of the conversation and of the exchanges driving it. Methods are
// called synchronously by the goroutine making the change, which may be the submitting goroutine or the
// active exchange, so implementations must be safe for concurrent use and should return quickly.
type Observer interface {
	MessageChanged(msg models.Message)
	ExchangeChanged(ex models.Exchange)
}

// Conversation owns the ordered list of messages. Messages are only appended, except for the text of
// the most recent assistant message while it is streaming, and the status of non-terminal messages.
type Conversation struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int

	observer Observer
}

var (
	errMessageNotFound = errors.New("message not found")
	errNotStreaming    = errors.New("message is not the streaming answer")
	errTerminalStatus  = errors.New("message status is terminal")
)

// NewConversation creates an empty conversation reporting its changes to observer.
func NewConversation(observer Observer) *Conversation {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Conversation{
		index:    make(map[string]int),
		observer: observer,
	}
}

// Append adds msg at the end of the conversation.
func (c *Conversation) Append(msg models.Message) {
	c.mu.Lock()
	c.index[msg.ID] = len(c.messages)
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	c.observer.MessageChanged(msg)
}

// AppendText extends the text of the message with the given ID. Only the latest assistant message can be
// extended, and only while it is streaming.
func (c *Conversation) AppendText(id, text string) error {
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", errMessageNotFound, id)
	}
	msg := &c.messages[i]
	if msg.Status != models.StatusStreaming || i != c.lastAssistant() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", errNotStreaming, id)
	}
	msg.Text += text
	updated := *msg
	c.mu.Unlock()

	c.observer.MessageChanged(updated)
	return nil
}

// SetStatus moves the message with the given ID to status. A message in a terminal status can't change
// anymore.
func (c *Conversation) SetStatus(id string, status models.Status) error {
	c.mu.Lock()
	i, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", errMessageNotFound, id)
	}
	msg := &c.messages[i]
	if msg.Status.Terminal() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", errTerminalStatus, id, msg.Status)
	}
	msg.Status = status
	updated := *msg
	c.mu.Unlock()

	c.observer.MessageChanged(updated)
	return nil
}

// Messages returns a snapshot of the conversation.
func (c *Conversation) Messages() []models.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := make([]models.Message, len(c.messages))
	copy(msgs, c.messages)
	return msgs
}

// Message returns the message with the given ID.
func (c *Conversation) Message(id string) (models.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return models.Message{}, false
	}
	return c.messages[i], true
}

func (c *Conversation) lastAssistant() int {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == models.RoleAssistant {
			return i
		}
	}
	return -1
}

type nopObserver struct{}

func (nopObserver) MessageChanged(models.Message)   {}
func (nopObserver) ExchangeChanged(models.Exchange) {}
