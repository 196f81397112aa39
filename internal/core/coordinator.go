package core

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
	"github.com/joseph-ayodele/doc-ingest/internal/extract"
	"github.com/joseph-ayodele/doc-ingest/internal/reconcile"
	"github.com/patrickmn/go-cache"
)

// Tagger enriches a reconciled record. It must not fail.
type Tagger interface {
	Generate(ctx context.Context, rec entity.CanonicalTransactionRecord) []string
}

// Coordinator runs the extraction pipeline for one document at a time per
// call; calls for different documents may run concurrently.
type Coordinator struct {
	chain      *extract.Chain
	reconciler *reconcile.Reconciler
	tagger     Tagger
	logger     *slog.Logger
	results    *cache.Cache
	tagBudget  time.Duration
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]*inflightRun
}

type inflightRun struct {
	cancel context.CancelFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResultCache keeps succeeded records for ttl so that resubmitting the
// same document returns the same record without new calls. ttl <= 0 disables it.
func WithResultCache(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.results = cache.New(ttl, 2*ttl)
		} else {
			c.results = nil
		}
	}
}

// DefaultTaggingTimeout bounds tagging when no WithTaggingTimeout is given.
const DefaultTaggingTimeout = time.Minute

// WithTaggingTimeout bounds the tagging step. Tagging runs on its own budget
// so that a run deadline spent on extraction cannot fail a reconciled record.
func WithTaggingTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.tagBudget = d
		}
	}
}

// WithClock overrides time.Now for CompletedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(chain *extract.Chain, reconciler *reconcile.Reconciler, tagger Tagger, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if reconciler == nil {
		reconciler = reconcile.New()
	}
	c := &Coordinator{
		chain:      chain,
		reconciler: reconciler,
		tagger:     tagger,
		logger:     logger,
		results:    cache.New(15*time.Minute, 30*time.Minute),
		tagBudget:  DefaultTaggingTimeout,
		now:        time.Now,
		inflight:   make(map[string]*inflightRun),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit runs the pipeline for doc and returns the canonical record. On
// failure the returned record has Status FAILED and the error tells whether
// resubmitting may help (common.IsTransient) or not (common.IsPermanent).
func (c *Coordinator) Submit(ctx context.Context, doc entity.RawDocument) (entity.CanonicalTransactionRecord, error) {
	if err := doc.Validate(); err != nil {
		c.logger.Warn("coordinator.document.invalid", "reference_id", doc.ReferenceID, "error", err)
		return failedRecord(doc, ""), err
	}

	key := cacheKey(doc)
	if rec, ok := c.cached(key); ok {
		c.logger.Info("coordinator.cache.hit", "reference_id", doc.ReferenceID)
		return rec, nil
	}

	runCtx, cancel := context.WithCancel(common.WithReferenceID(ctx, doc.ReferenceID))
	defer cancel()
	token := c.register(doc.ReferenceID, cancel)
	defer c.unregister(doc.ReferenceID, token)

	run := newRun(doc.ReferenceID, c.now())
	log := common.LoggerFromContext(ctx, c.logger).With("reference_id", doc.ReferenceID, "run_id", run.ID.String())
	log.Info("coordinator.run.start",
		"document_type", doc.Type,
		"content_type", doc.MIME(),
		"bytes", len(doc.Content),
	)

	rec, err := c.execute(runCtx, run, doc, log)
	if err != nil {
		if errors.Is(runCtx.Err(), context.Canceled) && !errors.Is(err, common.ErrCanceled) {
			err = common.NewAppError(common.CodeRunCanceled, "run canceled",
				fmt.Errorf("%w: %w", common.ErrCanceled, err))
		}
		_ = run.advanceTo(constants.RunFailed)
		log.Error("coordinator.run.failed",
			"code", common.CodeOf(err),
			"transient", common.IsTransient(err),
			"states", run.History(),
			"error", err,
			"elapsed_ms", time.Since(run.StartedAt).Milliseconds(),
		)
		return failedRecord(doc, rec.Source), err
	}

	if err := run.advanceTo(constants.RunSucceeded); err != nil {
		return failedRecord(doc, rec.Source), err
	}
	completed := c.now().UTC()
	rec.CompletedAt = &completed
	rec.Status = run.State().Status()
	if c.results != nil {
		c.results.Set(key, rec.Clone(), cache.DefaultExpiration)
	}
	log.Info("coordinator.run.succeeded",
		"source", rec.Source,
		"gross", rec.GrossTotal.String(),
		"tags", len(rec.Tags),
		"states", run.History(),
		"elapsed_ms", time.Since(run.StartedAt).Milliseconds(),
	)
	return rec, nil
}

// execute performs extraction, reconciliation and tagging. Partial results
// are discarded by the caller on error.
func (c *Coordinator) execute(ctx context.Context, run *Run, doc entity.RawDocument, log *slog.Logger) (entity.CanonicalTransactionRecord, error) {
	fs, source, err := c.chain.Run(ctx, doc, func(a extract.Attempt) {
		c.observe(run, a, log)
	})
	if err != nil {
		return entity.CanonicalTransactionRecord{Source: source}, err
	}

	rec, err := c.reconciler.Reconcile(fs, source)
	if err != nil {
		return entity.CanonicalTransactionRecord{Source: source}, err
	}
	rec.ReferenceID = doc.ReferenceID
	rec.DocumentType = doc.Type

	rec.Tags = c.tags(ctx, rec)
	// only an explicit cancel ends a reconciled run; an expired deadline does not
	if errors.Is(ctx.Err(), context.Canceled) {
		return entity.CanonicalTransactionRecord{Source: source}, ctx.Err()
	}
	return rec, nil
}

// tags runs the tagger detached from the run deadline, bounded by tagBudget.
// A cancel of the run still stops it.
func (c *Coordinator) tags(ctx context.Context, rec entity.CanonicalTransactionRecord) []string {
	if c.tagger == nil {
		return []string{}
	}
	tagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.tagBudget)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.Canceled) {
			cancel()
		}
	})
	defer stop()

	tags := c.tagger.Generate(tagCtx, rec)
	if tags == nil {
		return []string{}
	}
	return tags
}

// cacheKey identifies a submission: the same bytes under a different type
// hint or content type are a different request.
func cacheKey(doc entity.RawDocument) string {
	return doc.ReferenceID + ":" + string(doc.Type) + ":" + doc.MIME() + ":" + doc.ContentHash()
}

// observe moves the run through its states as extractors conclude.
func (c *Coordinator) observe(run *Run, a extract.Attempt, log *slog.Logger) {
	var to constants.RunState
	switch a.Source {
	case constants.SourceStructured:
		to = constants.RunStructuredAttempted
	case constants.SourceOCR:
		to = constants.RunOCRAttempted
	default:
		return
	}
	if err := run.advanceTo(to); err != nil {
		log.Error("coordinator.run.transition_error", "error", err)
	}

	switch {
	case a.Err == nil:
		log.Info("coordinator.extract.ok", "source", a.Source)
	case a.Final:
		log.Error("coordinator.extract.failed", "source", a.Source, "code", common.CodeOf(a.Err), "error", a.Err)
	case errors.Is(a.Err, common.ErrStructuredParse):
		log.Info("coordinator.structured.no_payload", "error", a.Err)
	case errors.Is(a.Err, common.ErrCanceled), errors.Is(a.Err, context.Canceled):
		log.Warn("coordinator.structured.canceled")
	default:
		// not a parse failure: the structured service itself misbehaved
		log.Error("coordinator.structured.transport_error", "code", common.CodeOf(a.Err), "error", a.Err)
	}
}

// Cancel aborts an in-flight run for referenceID. It reports whether a run
// was found.
func (c *Coordinator) Cancel(referenceID string) bool {
	c.mu.Lock()
	r, ok := c.inflight[referenceID]
	c.mu.Unlock()
	if ok {
		c.logger.Info("coordinator.run.cancel", "reference_id", referenceID)
		r.cancel()
	}
	return ok
}

// InFlight reports whether a run for referenceID is executing.
func (c *Coordinator) InFlight(referenceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[referenceID]
	return ok
}

func (c *Coordinator) register(ref string, cancel context.CancelFunc) *inflightRun {
	r := &inflightRun{cancel: cancel}
	c.mu.Lock()
	c.inflight[ref] = r
	c.mu.Unlock()
	return r
}

func (c *Coordinator) unregister(ref string, r *inflightRun) {
	c.mu.Lock()
	if c.inflight[ref] == r {
		delete(c.inflight, ref)
	}
	c.mu.Unlock()
}

func (c *Coordinator) cached(key string) (entity.CanonicalTransactionRecord, bool) {
	if c.results == nil {
		return entity.CanonicalTransactionRecord{}, false
	}
	v, ok := c.results.Get(key)
	if !ok {
		return entity.CanonicalTransactionRecord{}, false
	}
	rec, ok := v.(entity.CanonicalTransactionRecord)
	if !ok {
		return entity.CanonicalTransactionRecord{}, false
	}
	return rec.Clone(), true
}

func failedRecord(doc entity.RawDocument, source constants.ExtractionSource) entity.CanonicalTransactionRecord {
	return entity.CanonicalTransactionRecord{
		ReferenceID:  doc.ReferenceID,
		DocumentType: doc.Type,
		Tags:         []string{},
		Source:       source,
		Status:       constants.StatusFailed,
	}
}
