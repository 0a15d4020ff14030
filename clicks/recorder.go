package clicks

import (
	"context"
	"sync"
	"time"

	"affiliate-redirector/model"
	"affiliate-redirector/store"

	"github.com/rs/zerolog/log"
)

// persistTimeout bounds each background write independently of the request
// that spawned it; the request context is recycled as soon as the redirect
// goes out.
const persistTimeout = 5 * time.Second

// Recorder persists click events off the redirect's critical path. Events
// are queued to a fixed worker pool; Enqueue never blocks, and failures are
// logged inside the pool rather than surfacing to the visitor.
type Recorder struct {
	store *store.Store
	queue chan model.ClickEvent
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts workers goroutines draining a queue of queueSize
// pending events.
func NewRecorder(s *store.Store, workers, queueSize int) *Recorder {
	if workers < 1 {
		workers = 1
	}
	r := &Recorder{
		store: s,
		queue: make(chan model.ClickEvent, queueSize),
	}

	log.Info().Int("workers", workers).Int("queue_size", queueSize).Msg("Starting click recorder")
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Enqueue hands a click event to the pool. It never blocks: when the queue
// is saturated the event is dropped with a warning, trading a lost analytics
// row for redirect latency.
func (r *Recorder) Enqueue(event model.ClickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		log.Warn().Str("link_id", event.LinkID).Msg("Recorder closed, dropping click event")
		return
	}

	select {
	case r.queue <- event:
	default:
		log.Warn().
			Str("link_id", event.LinkID).
			Str("ip", event.IP).
			Msg("Click queue full, dropping event")
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for event := range r.queue {
		r.persist(event)
	}
}

func (r *Recorder) persist(event model.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.store.RecordClick(ctx, event); err != nil {
		log.Error().Err(err).
			Str("link_id", event.LinkID).
			Str("affiliate_id", event.AffiliateID).
			Msg("Failed to record click event")
	}

	// The counter increment is independent of the event row: losing one
	// must not lose the other.
	if _, err := r.store.IncrementClicks(ctx, event.LinkID); err != nil {
		log.Error().Err(err).
			Str("link_id", event.LinkID).
			Msg("Failed to increment click counter")
	}
}

// Close stops accepting events and drains the queue, blocking until every
// pending event has been persisted. Called during graceful shutdown.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	log.Info().Msg("Click recorder drained")
}
