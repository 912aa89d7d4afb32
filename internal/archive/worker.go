package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"provcore/internal/blob"
	"provcore/internal/core"
)

// Enqueue failure modes surfaced to transport layers.
var (
	// ErrNotConfigured reports an enqueue on a worker missing its
	// registry or blob store.
	ErrNotConfigured = errors.New("archive worker not configured")
	// ErrQueueFull reports that the job queue cannot accept more work.
	ErrQueueFull = errors.New("archive queue full")
)

// Worker archives verification bundles asynchronously through a
// single-consumer job queue.
type Worker struct {
	registry Registry
	blobs    blob.Store
	audit    AuditLogger
	log      core.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id          string
	productID   uint64
	requestedBy string
}

// NewWorker constructs an archive worker. The audit logger may be nil;
// a nil logger falls back to the no-op logger.
func NewWorker(registry Registry, blobs blob.Store, audit AuditLogger, log core.Logger) *Worker {
	if log == nil {
		log = core.NoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		registry: registry,
		blobs:    blobs,
		audit:    audit,
		log:      log,
		queue:    make(chan task, 32),
		jobs:     make(map[string]*Record),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing queued archive jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the in-flight job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an archive job for the product and returns the
// queued record. The product must exist; the lookup error is returned
// unwrapped so callers can map it.
func (w *Worker) Enqueue(ctx context.Context, productID uint64, requestedBy string) (Record, error) {
	if w.registry == nil || w.blobs == nil {
		return Record{}, ErrNotConfigured
	}
	if _, err := w.registry.GetProduct(ctx, productID); err != nil {
		return Record{}, err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		ProductID:   productID,
		Status:      StatusQueued,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.recordAudit(ctx, id, productID, requestedBy, StatusQueued, "")

	select {
	case w.queue <- task{id: id, productID: productID, requestedBy: requestedBy}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}

	return queued, nil
}

// Get returns a snapshot of the archive job record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.RUnlock()
		return Record{}, false
	}
	snapshot := record.copy()
	w.mu.RUnlock()
	return snapshot, true
}

func (w *Worker) process(t task) {
	w.transition(t, StatusRunning, "")

	info, seq, existed, err := capture(w.ctx, w.registry, w.blobs, t.productID, t.requestedBy)
	if err != nil {
		w.log.Error("archive failed", "product_id", t.productID, "error", err)
		w.fail(t, err.Error())
		return
	}
	if existed {
		w.log.Info("bundle already archived", "product_id", t.productID, "key", info.Key)
	}
	w.complete(t, info, seq, existed)
}

func (w *Worker) transition(t task, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[t.id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, t.id, t.productID, t.requestedBy, status, message)
}

func (w *Worker) complete(t task, info blob.Info, seq uint64, existed bool) {
	note := ""
	if existed {
		note = "bundle already archived for this chain state"
	}
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[t.id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Key = info.Key
		record.Sequence = seq
		record.ETag = info.ETag
		record.SizeBytes = info.Size
		record.URL = info.URL
		record.Note = note
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, t.id, t.productID, t.requestedBy, StatusSucceeded, note)
}

func (w *Worker) fail(t task, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[t.id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.recordAudit(w.ctx, t.id, t.productID, t.requestedBy, StatusFailed, reason)
}

func (w *Worker) recordAudit(ctx context.Context, jobID string, productID uint64, actor string, status Status, note string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     "archive_product",
		Actor:      actor,
		ProductID:  productID,
		JobID:      jobID,
		Status:     status,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}
