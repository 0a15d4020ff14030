package clicks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"affiliate-redirector/model"
	"affiliate-redirector/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupRecorder(t *testing.T, workers, queueSize int) (*Recorder, *store.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := store.New(client, 1000)
	return NewRecorder(s, workers, queueSize), s
}

func TestRecorder_PersistsEventAndCounter(t *testing.T) {
	recorder, s := setupRecorder(t, 2, 16)

	recorder.Enqueue(model.ClickEvent{
		ID:          "evt-1",
		LinkID:      "link-1",
		AffiliateID: "partner-1",
		IP:          "203.0.113.9",
		UserAgent:   "Mozilla/5.0",
		OccurredAt:  time.Now(),
	})
	recorder.Close()

	ctx := context.Background()
	events, err := s.RecentClicks(ctx, "link-1", 10)
	if err != nil {
		t.Fatalf("RecentClicks() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 persisted event, got %d", len(events))
	}

	count, err := s.ClickCount(ctx, "link-1")
	if err != nil {
		t.Fatalf("ClickCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Expected counter 1, got %d", count)
	}
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	recorder, s := setupRecorder(t, 1, 64)

	for i := 0; i < 50; i++ {
		recorder.Enqueue(model.ClickEvent{
			ID:         fmt.Sprintf("evt-%d", i),
			LinkID:     "link-1",
			IP:         "203.0.113.9",
			OccurredAt: time.Now(),
		})
	}
	recorder.Close()

	count, err := s.ClickCount(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("ClickCount() error = %v", err)
	}
	if count != 50 {
		t.Errorf("Expected all 50 queued events drained, got counter %d", count)
	}
}

func TestRecorder_EnqueueAfterCloseIsDropped(t *testing.T) {
	recorder, s := setupRecorder(t, 1, 4)
	recorder.Close()

	// Must not panic or block.
	recorder.Enqueue(model.ClickEvent{ID: "evt-late", LinkID: "link-1", OccurredAt: time.Now()})

	count, err := s.ClickCount(context.Background(), "link-1")
	if err != nil {
		t.Fatalf("ClickCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Late event persisted, counter %d", count)
	}
}

func TestRecorder_CloseIdempotent(t *testing.T) {
	recorder, _ := setupRecorder(t, 2, 4)
	recorder.Close()
	recorder.Close()
}
