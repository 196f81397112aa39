package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// ErrClosed is returned by Enqueue once Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Submitter runs the pipeline for one document.
type Submitter interface {
	Submit(ctx context.Context, doc entity.RawDocument) (entity.CanonicalTransactionRecord, error)
	Cancel(referenceID string) bool
}

// Sink stores succeeded records.
type Sink interface {
	Upsert(ctx context.Context, rec entity.CanonicalTransactionRecord) error
}

// Job is one queued document.
type Job struct {
	Document    entity.RawDocument
	SubmittedAt time.Time
	RequestID   string
}

// Completion is emitted once per dequeued job.
type Completion struct {
	ReferenceID string
	Record      entity.CanonicalTransactionRecord
	Err         error
	Elapsed     time.Duration
}

type Queue struct {
	sub     Submitter
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	done chan Completion
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	stop sync.Once

	// mu guards closed against senders; senders hold the read side while
	// blocked so Shutdown can only close ch after they leave.
	mu       sync.RWMutex
	closed   bool
	pmu      sync.Mutex
	pending  map[string]int
	canceled map[string]struct{}
	running  map[string][]*activeJob
}

// activeJob is a dequeued job; cancel stops its run from the moment it leaves
// the channel, before the submitter has registered it.
type activeJob struct {
	cancel context.CancelFunc
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
			q.done = make(chan Completion, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithSink stores every succeeded record. Sink failures are reported on the
// completion but never change the record's status.
func WithSink(s Sink) Option {
	return func(q *Queue) { q.sink = s }
}

func New(sub Submitter, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		sub:      sub,
		logger:   logger,
		workers:  4,
		timeout:  3 * time.Minute,
		ch:       make(chan Job, 256),
		done:     make(chan Completion, 256),
		quit:     make(chan struct{}),
		pending:  make(map[string]int),
		canceled: make(map[string]struct{}),
		running:  make(map[string][]*activeJob),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

// Completions streams one event per processed job. It is closed after
// Shutdown has drained the workers. Events are dropped when nobody reads
// and the buffer is full.
func (q *Queue) Completions() <-chan Completion {
	return q.done
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("async.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Info("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(workerID int, job Job) {
	ref := job.Document.ReferenceID
	start := time.Now()
	log := q.logger.With("worker_id", workerID, "reference_id", ref)

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}

	active := &activeJob{cancel: cancel}
	if q.dequeue(ref, active) {
		log.Info("async.job.skipped_canceled")
		q.emit(Completion{
			ReferenceID: ref,
			Record:      entity.CanonicalTransactionRecord{ReferenceID: ref, DocumentType: job.Document.Type, Tags: []string{}, Status: constants.StatusFailed},
			Err:         common.NewAppError(common.CodeRunCanceled, "canceled before start", common.ErrCanceled),
		})
		return
	}

	rec, err := q.sub.Submit(ctx, job.Document)
	q.finish(ref, active)
	if err == nil && q.sink != nil {
		if serr := q.sink.Upsert(ctx, rec); serr != nil {
			log.Error("async.sink.failed", "error", serr)
			err = common.NewAppError(common.CodeDatabase, "store record", fmt.Errorf("%w: %w", common.ErrDatabase, serr))
		}
	}

	elapsed := time.Since(start)
	if err != nil {
		log.Error("async.job.failed", "code", common.CodeOf(err), "error", err, "elapsed_ms", elapsed.Milliseconds())
	} else {
		log.Info("async.job.done", "source", rec.Source, "queued_ms", start.Sub(job.SubmittedAt).Milliseconds(), "elapsed_ms", elapsed.Milliseconds())
	}
	q.emit(Completion{ReferenceID: ref, Record: rec, Err: err, Elapsed: elapsed})
}

func (q *Queue) emit(c Completion) {
	select {
	case q.done <- c:
	default:
		q.logger.Warn("async.completion.dropped", "reference_id", c.ReferenceID)
	}
}

// Enqueue hands doc to the workers. It blocks while the queue is full until
// ctx is done or Shutdown starts.
func (q *Queue) Enqueue(ctx context.Context, doc entity.RawDocument) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("async.enqueue.closed", "reference_id", doc.ReferenceID)
		return ErrClosed
	}

	job := Job{Document: doc, SubmittedAt: time.Now(), RequestID: common.RequestIDFromContext(ctx)}
	q.track(doc.ReferenceID, 1)

	select {
	case q.ch <- job:
		q.logger.Info("async.enqueued", "reference_id", doc.ReferenceID)
		return nil
	default:
	}

	q.logger.Warn("async.queue.full", "reference_id", doc.ReferenceID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.track(doc.ReferenceID, -1)
		return ctx.Err()
	case <-q.quit:
		q.track(doc.ReferenceID, -1)
		return ErrClosed
	}
}

// Cancel stops the run for referenceID whether it is executing or still
// waiting in the queue.
func (q *Queue) Cancel(referenceID string) bool {
	q.pmu.Lock()
	found := false
	for _, a := range q.running[referenceID] {
		a.cancel()
		found = true
	}
	if q.pending[referenceID] > 0 {
		q.canceled[referenceID] = struct{}{}
		found = true
	}
	q.pmu.Unlock()

	// runs submitted to the coordinator outside this queue
	if q.sub.Cancel(referenceID) {
		found = true
	}
	if found {
		q.logger.Info("async.job.cancel", "reference_id", referenceID)
	}
	return found
}

func (q *Queue) track(ref string, delta int) {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	q.pending[ref] += delta
	if q.pending[ref] <= 0 {
		delete(q.pending, ref)
		delete(q.canceled, ref)
	}
}

// dequeue reports whether the job was canceled while waiting. A job that
// was not is recorded as running in the same critical section.
func (q *Queue) dequeue(ref string, a *activeJob) bool {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	_, canceled := q.canceled[ref]
	q.pending[ref]--
	if q.pending[ref] <= 0 {
		delete(q.pending, ref)
		delete(q.canceled, ref)
	}
	if !canceled {
		q.running[ref] = append(q.running[ref], a)
	}
	return canceled
}

func (q *Queue) finish(ref string, a *activeJob) {
	q.pmu.Lock()
	defer q.pmu.Unlock()
	jobs := q.running[ref]
	for i, j := range jobs {
		if j == a {
			jobs = append(jobs[:i], jobs[i+1:]...)
			break
		}
	}
	if len(jobs) == 0 {
		delete(q.running, ref)
	} else {
		q.running[ref] = jobs
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx
// to end.
func (q *Queue) Shutdown(ctx context.Context) {
	q.stop.Do(func() {
		close(q.quit)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()

		go func() {
			q.wg.Wait()
			close(q.done)
		}()
	})

	finished := make(chan struct{})
	go func() { defer close(finished); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("async.shutdown.interrupted")
	case <-finished:
		q.logger.Info("async.shutdown.complete")
	}
}
