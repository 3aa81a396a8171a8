package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/askstream/internal/chat"
	"github.com/MegaGrindStone/askstream/internal/models"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func item(id string) chat.QueueItem {
	return chat.QueueItem{Message: models.Message{ID: id}, SubmittedAt: time.Now()}
}

func TestQueueProcessesInOrderOneAtATime(t *testing.T) {
	var (
		mu       sync.Mutex
		order    []string
		active   int
		overlaps int
	)
	done := make(chan struct{}, 5)

	q := chat.NewQueue(func(_ context.Context, it chat.QueueItem) {
		mu.Lock()
		active++
		if active > 1 {
			overlaps++
		}
		order = append(order, it.Message.ID)
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		done <- struct{}{}
	}, 0, discardLogger)

	ids := []string{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		if err := q.Enqueue(item(id)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}
	for range ids {
		waitSignal(t, done)
	}

	if _, err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(ids, order); diff != "" {
		t.Errorf("processing order mismatch (-want +got):\n%s", diff)
	}
	if overlaps != 0 {
		t.Errorf("%d items were processed concurrently", overlaps)
	}
}

func TestQueueEnqueueDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	q := chat.NewQueue(func(context.Context, chat.QueueItem) { <-release }, 0, discardLogger)

	start := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(item(id)); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enqueue() took %s", elapsed)
	}
	if !q.InFlight() || q.Len() != 3 {
		t.Errorf("InFlight() = %v, Len() = %d, want true, 3", q.InFlight(), q.Len())
	}

	close(release)
	if _, err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueuePanicDoesNotStall(t *testing.T) {
	done := make(chan string, 2)
	q := chat.NewQueue(func(_ context.Context, it chat.QueueItem) {
		if it.Message.ID == "bad" {
			panic("boom")
		}
		done <- it.Message.ID
	}, 0, discardLogger)

	if err := q.Enqueue(item("bad")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(item("good")); err != nil {
		t.Fatal(err)
	}

	if got := waitSignal(t, done); got != "good" {
		t.Errorf("processed %q, want good", got)
	}
	if _, err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	q := chat.NewQueue(func(context.Context, chat.QueueItem) { <-release }, 2, discardLogger)

	if err := q.Enqueue(item("1")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(item("2")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(item("3")); !errors.Is(err, chat.ErrQueueFull) {
		t.Errorf("Enqueue() error = %v, want %v", err, chat.ErrQueueFull)
	}

	close(release)
	if _, err := q.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestQueueClose(t *testing.T) {
	started := make(chan struct{})
	q := chat.NewQueue(func(ctx context.Context, _ chat.QueueItem) {
		close(started)
		<-ctx.Done()
	}, 0, discardLogger)

	for _, id := range []string{"1", "2", "3"} {
		if err := q.Enqueue(item(id)); err != nil {
			t.Fatal(err)
		}
	}
	waitSignal(t, started)

	dropped, err := q.Close(context.Background())
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	var ids []string
	for _, it := range dropped {
		ids = append(ids, it.Message.ID)
	}
	if diff := cmp.Diff([]string{"2", "3"}, ids); diff != "" {
		t.Errorf("dropped mismatch (-want +got):\n%s", diff)
	}
	if err := q.Enqueue(item("4")); !errors.Is(err, chat.ErrQueueClosed) {
		t.Errorf("Enqueue() after Close() error = %v, want %v", err, chat.ErrQueueClosed)
	}
	if q.Len() != 0 || q.InFlight() {
		t.Errorf("Len() = %d, InFlight() = %v after Close()", q.Len(), q.InFlight())
	}
}

func waitSignal[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
	var zero T
	return zero
}
