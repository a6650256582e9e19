package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/logging"
)

// queueSize is the buffer of pending entries. Entries beyond it are dropped
// rather than applying back-pressure to requests.
const queueSize = 256

// writeTimeout bounds a single repository write.
const writeTimeout = 5 * time.Second

// Publisher fans audit events out to subscribers, e.g. over MQTT.
type Publisher interface {
	PublishEvent(action string, payload []byte) error
}

// Dispatcher queues entries and writes them serially from one goroutine,
// which suits SQLite's single writer.
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger

	queue   chan *Entry
	wg      sync.WaitGroup
	dropped atomic.Uint64

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher returns a Dispatcher writing to repo. publisher may be nil.
func NewDispatcher(repo Repository, publisher Publisher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "audit"),
		queue:     make(chan *Entry, queueSize),
	}
}

// Record enqueues e without blocking. It is safe to call after Stop; the
// entry is then dropped.
func (d *Dispatcher) Record(ctx context.Context, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return
	}

	select {
	case d.queue <- &e:
	default:
		d.dropped.Add(1)
		d.logger.WarnContext(ctx, "audit queue full, dropping entry",
			"action", e.Action,
			"entity_type", e.EntityType,
		)
	}
}

// Stats is a snapshot of the dispatcher queue.
type Stats struct {
	Queued  int    `json:"queued"`
	Dropped uint64 `json:"dropped"`
}

// Stats reports the current queue depth and the number of entries dropped
// because the queue was full.
func (d *Dispatcher) Stats() Stats {
	return Stats{Queued: len(d.queue), Dropped: d.dropped.Load()}
}

// Start launches the writer goroutine. It runs until Stop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range d.queue {
			d.write(e)
		}
	}()
}

// Stop refuses new entries, writes what is queued and waits for the writer.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.repo.Create(ctx, e); err != nil {
		d.logger.Error("audit log write failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"error", err,
		)
	}

	if d.publisher == nil {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		d.logger.Error("encoding audit event", "action", e.Action, "error", err)
		return
	}
	if err := d.publisher.PublishEvent(e.Action, payload); err != nil {
		d.logger.Warn("publishing audit event", "action", e.Action, "error", err)
	}
}
