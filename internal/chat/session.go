package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/MegaGrindStone/askstream/internal/stream"
	"github.com/google/uuid"
)

// Answerer opens the answer stream for a question. Any returned error is a transport failure: the
// connection couldn't be made, the service answered with a non-success status, or there was no body.
type Answerer interface {
	Ask(ctx context.Context, req models.AskRequest) (io.ReadCloser, error)
}

// Journal records finished exchanges.
type Journal interface {
	Record(ctx context.Context, ex models.Exchange) error
}

// Options configures a Session. The zero value is usable.
type Options struct {
	// HistoryWindow is the number of recent messages sent with each question. Defaults to
	// DefaultHistoryWindow; a negative value disables history.
	HistoryWindow int
	// ExchangeTimeout bounds each exchange, from dispatch to the end of the stream. Zero means no deadline.
	ExchangeTimeout time.Duration
	// MaxPending bounds the number of submitted questions not yet answered. Zero means no bound.
	MaxPending int
	// FlushRemainder decodes a trailing unterminated line when a stream closes, instead of dropping it.
	FlushRemainder bool
	// EmptyAnswerText, if set, is shown as the answer of an exchange that ends without any delta.
	EmptyAnswerText string

	Observer Observer
	Journal  Journal
	Logger   *slog.Logger
}

// Session is a conversation with the answer service. Questions are answered strictly one after another,
// in submission order.
type Session struct {
	answerer Answerer
	conv     *Conversation
	queue    *Queue

	opts     Options
	observer Observer
	logger   *slog.Logger

	submitMu  sync.Mutex
	mu        sync.Mutex
	exchanges map[string]*models.Exchange
	active    string
}

// ErrEmptyQuestion is returned by Submit for a blank question. Nothing is added to the conversation, so
// callers are expected to ignore it silently.
var ErrEmptyQuestion = errors.New("question is empty")

const errLoggerKey = "err"

// NewSession creates a Session that sends its questions to answerer.
func NewSession(answerer Answerer, opts Options) *Session {
	if opts.HistoryWindow == 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	s := &Session{
		answerer:  answerer,
		conv:      NewConversation(observer),
		opts:      opts,
		observer:  observer,
		logger:    logger.With(slog.String("module", "session")),
		exchanges: make(map[string]*models.Exchange),
	}
	s.queue = NewQueue(s.runExchange, opts.MaxPending, logger)
	return s
}

// Submit adds a question to the conversation and queues it for an answer. The returned message is
// visible in the conversation right away, with StatusPending until its exchange is dispatched.
func (s *Session) Submit(text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyQuestion
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if s.queue.Closed() {
		return models.Message{}, ErrQueueClosed
	}
	// Only Submit adds items, so the queue can't grow between this check and Enqueue.
	if s.opts.MaxPending > 0 && s.queue.Len() >= s.opts.MaxPending {
		return models.Message{}, ErrQueueFull
	}

	now := time.Now()
	msg := models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Text:      text,
		CreatedAt: now,
		Status:    models.StatusPending,
	}
	ex := &models.Exchange{
		ID:          uuid.New().String(),
		Question:    text,
		State:       models.ExchangeQueued,
		SubmittedAt: now,
	}

	s.mu.Lock()
	s.exchanges[msg.ID] = ex
	s.mu.Unlock()

	s.conv.Append(msg)
	s.observer.ExchangeChanged(*ex)

	if err := s.queue.Enqueue(QueueItem{Message: msg, SubmittedAt: now}); err != nil {
		s.finish(context.Background(), msg.ID, models.ExchangeErrored, "", err.Error())
		_ = s.conv.SetStatus(msg.ID, models.StatusErrored)
		return msg, fmt.Errorf("failed to queue question: %w", err)
	}

	s.logger.Debug("Question queued", slog.String("messageID", msg.ID), slog.String("exchangeID", ex.ID))
	return msg, nil
}

// Messages returns a snapshot of the conversation.
func (s *Session) Messages() []models.Message {
	return s.conv.Messages()
}

// Processing reports whether an exchange is dispatched or streaming.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != ""
}

// Pending returns the number of questions that have not reached a terminal state yet.
func (s *Session) Pending() int {
	return s.queue.Len()
}

// Close stops the session: waiting questions are dropped and the exchange in flight is canceled. It
// returns once the exchange in flight has finished or ctx is done.
func (s *Session) Close(ctx context.Context) error {
	dropped, err := s.queue.Close(ctx)
	for _, item := range dropped {
		s.finish(ctx, item.Message.ID, models.ExchangeErrored, "", ErrQueueClosed.Error())
		_ = s.conv.SetStatus(item.Message.ID, models.StatusErrored)
	}
	return err
}

func (s *Session) runExchange(ctx context.Context, item QueueItem) {
	msgID := item.Message.ID
	logger := s.logger.With(slog.String("messageID", msgID))

	if s.opts.ExchangeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.opts.ExchangeTimeout,
			fmt.Errorf("no answer within %s", s.opts.ExchangeTimeout))
		defer cancel()
	}

	// The history is taken from the conversation as it is when the exchange starts. Questions still
	// waiting in the queue aren't part of it yet.
	history := Window(s.priorMessages(msgID), s.opts.HistoryWindow)

	_ = s.conv.SetStatus(msgID, models.StatusComplete)
	s.transition(msgID, models.ExchangeDispatched)

	reducer := NewReducer(s.conv, s.opts.EmptyAnswerText)
	var failure string

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Exchange panicked", slog.String("panic", fmt.Sprint(r)))
			failure = fmt.Sprintf("internal error: %v", r)
			reducer.Fail(failure)
		}
		s.finish(context.WithoutCancel(ctx), msgID, reducer.State(), reducer.AnswerID(), failure)
	}()

	body, err := s.answerer.Ask(ctx, models.AskRequest{
		Question: item.Message.Text,
		History:  history,
	})
	if err != nil {
		failure = transportReason(ctx, err)
		logger.Error("Failed to open answer stream", slog.String(errLoggerKey, err.Error()))
		reducer.Fail(failure)
		return
	}
	defer body.Close()

	cfg := &stream.ReadConfig{
		FlushRemainder: s.opts.FlushRemainder,
		Logger:         logger,
	}
	for ev, err := range stream.Read(ctx, body, cfg) {
		if err != nil {
			failure = transportReason(ctx, err)
			logger.Error("Failed to read answer stream", slog.String(errLoggerKey, err.Error()))
			reducer.Fail(failure)
			break
		}

		if e, ok := ev.(stream.ErrorEvent); ok {
			failure = e.Message
		}
		state := reducer.Apply(ev)
		if state == models.ExchangeStreaming {
			s.transition(msgID, state)
		}
		if state.Terminal() {
			break
		}
	}

	reducer.Finish()
}

// priorMessages returns the conversation without the given question and the questions still queued.
func (s *Session) priorMessages(msgID string) []models.Message {
	all := s.conv.Messages()
	prior := make([]models.Message, 0, len(all))
	for _, m := range all {
		if m.ID == msgID || m.Status == models.StatusPending {
			continue
		}
		prior = append(prior, m)
	}
	return prior
}

// transition moves the exchange of the given question to a non-terminal state.
func (s *Session) transition(msgID string, state models.ExchangeState) {
	s.mu.Lock()
	ex, ok := s.exchanges[msgID]
	if !ok || ex.State == state {
		s.mu.Unlock()
		return
	}
	ex.State = state
	if state == models.ExchangeDispatched {
		ex.StartedAt = time.Now()
		s.active = msgID
	}
	snapshot := *ex
	s.mu.Unlock()

	s.observer.ExchangeChanged(snapshot)
}

// finish moves the exchange of the given question to a terminal state and records it.
func (s *Session) finish(ctx context.Context, msgID string, state models.ExchangeState, answerID, failure string) {
	s.mu.Lock()
	ex, ok := s.exchanges[msgID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.exchanges, msgID)
	if s.active == msgID {
		s.active = ""
	}
	ex.State = state
	ex.FinishedAt = time.Now()
	ex.AnswerID = answerID
	if state == models.ExchangeErrored {
		ex.Error = failure
	}
	snapshot := *ex
	s.mu.Unlock()

	s.observer.ExchangeChanged(snapshot)
	s.logger.Info("Exchange finished",
		slog.String("exchangeID", snapshot.ID),
		slog.String("state", string(snapshot.State)),
		slog.Duration("duration", snapshot.FinishedAt.Sub(snapshot.SubmittedAt)))

	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.Record(ctx, snapshot); err != nil {
		s.logger.Error("Failed to record exchange",
			slog.String("exchangeID", snapshot.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

// transportReason describes a transport failure for the user. A deadline is reported with its cause.
func transportReason(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
			return cause.Error()
		}
	}
	return err.Error()
}
