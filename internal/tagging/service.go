package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
)

// Service enriches canonical records with tags on a best-effort basis.
type Service struct {
	backend Backend
	retry   *resilience.Client
	logger  *slog.Logger
}

// NewService builds a tagging service. A nil backend disables tagging.
func NewService(backend Backend, retry *resilience.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retry != nil {
		retry = retry.Named(common.CodeTaggingUnavailable)
	}
	return &Service{backend: backend, retry: retry, logger: logger}
}

// Generate returns canonical tags for rec. It never fails: any error, and
// any panic inside the backend, yields an empty list.
func (s *Service) Generate(ctx context.Context, rec entity.CanonicalTransactionRecord) (tags []string) {
	tags = []string{}
	if s == nil || s.backend == nil {
		return tags
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tagging.panic", "reference_id", rec.ReferenceID, "panic", fmt.Sprint(r))
			tags = []string{}
		}
	}()

	raw, err := s.tag(ctx, rec)
	if err != nil {
		s.logger.Warn("tagging.failed",
			"reference_id", rec.ReferenceID,
			"code", common.CodeOf(err),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return tags
	}
	tags = constants.CanonicalizeTags(raw)
	s.logger.Info("tagging.ok",
		"reference_id", rec.ReferenceID,
		"tags", tags,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tags
}

func (s *Service) tag(ctx context.Context, rec entity.CanonicalTransactionRecord) ([]string, error) {
	payload, err := json.Marshal(tagInput(rec))
	if err != nil {
		return nil, common.NewAppError(common.CodeTagging, "serialize record", fmt.Errorf("%w: %w", common.ErrTagging, err))
	}
	ctx = common.WithReferenceID(ctx, rec.ReferenceID)

	var out []string
	call := func(ctx context.Context) error {
		var err error
		out, err = s.backend.Tag(ctx, rec.DocumentType, payload)
		return err
	}
	if s.retry == nil {
		err = call(ctx)
	} else {
		err = s.retry.Do(ctx, "tagging", call)
	}
	return out, err
}

// tagInput is the record as sent to tagging backends: status and previous
// tags are left out so answers do not depend on them.
func tagInput(rec entity.CanonicalTransactionRecord) entity.CanonicalTransactionRecord {
	in := rec
	in.Tags = nil
	in.Status = ""
	in.CompletedAt = nil
	return in
}
