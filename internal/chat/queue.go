package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MegaGrindStone/askstream/internal/models"
)

// QueueItem is a submitted question waiting for, or holding, the single exchange slot.
type QueueItem struct {
	Message     models.Message
	SubmittedAt time.Time
}

// ProcessFunc runs one exchange to its end. The queue moves on to the next item as soon as it returns.
type ProcessFunc func(ctx context.Context, item QueueItem)

// Queue serializes exchanges: items are processed one at a time, in the order they were enqueued. The
// head of the queue is the item being processed.
type Queue struct {
	mu         sync.Mutex
	items      []QueueItem
	inFlight   bool
	closed     bool
	maxPending int

	process ProcessFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

var (
	// ErrQueueFull is returned by Enqueue when the queue already holds its maximum number of items.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("queue is closed")
)

// NewQueue creates a Queue running process for each item. maxPending bounds the number of items held,
// including the one being processed; zero means no bound.
func NewQueue(process ProcessFunc, maxPending int, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		maxPending: maxPending,
		process:    process,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With(slog.String("module", "queue")),
	}
}

// Enqueue adds item at the tail of the queue and starts it right away if nothing is in flight. It never
// waits for processing.
func (q *Queue) Enqueue(item QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxPending > 0 && len(q.items) >= q.maxPending {
		return ErrQueueFull
	}

	q.items = append(q.items, item)
	if !q.inFlight {
		q.startHead()
	}
	return nil
}

// Len returns the number of items held, including the one in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// InFlight reports whether an item is being processed.
func (q *Queue) InFlight() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// Close stops accepting items, drops the waiting ones and cancels the context of the item in flight. It
// waits for the item in flight to finish, or for ctx to be done, whichever comes first. The dropped items
// are returned in queue order.
func (q *Queue) Close(ctx context.Context) ([]QueueItem, error) {
	q.mu.Lock()
	q.closed = true
	var dropped []QueueItem
	if q.inFlight {
		dropped = append(dropped, q.items[1:]...)
		q.items = q.items[:1]
	} else {
		dropped = q.items
		q.items = nil
	}
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return dropped, nil
	case <-ctx.Done():
		return dropped, fmt.Errorf("failed to wait for the exchange in flight: %w", ctx.Err())
	}
}

// startHead must be called with q.mu held.
func (q *Queue) startHead() {
	q.inFlight = true
	item := q.items[0]

	q.wg.Add(1)
	go q.run(item)
}

func (q *Queue) run(item QueueItem) {
	defer q.wg.Done()
	defer q.release()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Exchange panicked",
				slog.String("messageID", item.Message.ID),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()

	q.process(q.ctx, item)
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = q.items[1:]
	q.inFlight = false
	if q.closed {
		q.items = nil
		return
	}
	if len(q.items) > 0 {
		q.startHead()
	}
}
