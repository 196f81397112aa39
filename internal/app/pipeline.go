// Package app wires the pipeline components from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/core"
	"github.com/joseph-ayodele/doc-ingest/internal/extract"
	"github.com/joseph-ayodele/doc-ingest/internal/reconcile"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
	"github.com/joseph-ayodele/doc-ingest/internal/tagging"
	"github.com/joseph-ayodele/doc-ingest/internal/tagging/openai"
)

// NewCoordinator builds the extractor chain, the tagger and the coordinator
// described by cfg. All outbound calls share one retry policy and rate limit.
func NewCoordinator(cfg *common.Config, logger *slog.Logger) (*core.Coordinator, error) {
	retry := resilience.New(resilience.PolicyFromConfig(cfg.Retry), logger)

	chain := extract.NewChain()
	switch cfg.Extract.StructuredMode {
	case "embedded":
		chain.Append(extract.NewEmbeddedInvoiceExtractor(logger))
	case "remote":
		chain.Append(extract.NewRemoteInvoiceExtractor(remote.NewClient(cfg.Extract.StructuredURL, logger), retry, logger))
	case "off":
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown STRUCTURED_MODE %q", cfg.Extract.StructuredMode), common.ErrInvalidInput)
	}

	analyzer := extract.NewOCRAnalyzer(
		remote.NewClient(cfg.Extract.OCRURL, logger),
		retry.Named(common.CodeOCRUnavailable),
		reconcile.ReceiptTotalCorrection{Enabled: cfg.Extract.ReceiptTotalCorrection},
		logger,
	)
	chain.Append(extract.NewOCRExtractor(analyzer))

	tagger, err := newTagger(cfg, retry, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("app.pipeline.ready",
		"structured_mode", cfg.Extract.StructuredMode,
		"tagger", cfg.Tagging.Backend,
		"receipt_total_correction", cfg.Extract.ReceiptTotalCorrection,
		"max_attempts", retry.Policy().MaxAttempts,
	)
	return core.NewCoordinator(chain, reconcile.New(), tagger, logger,
		core.WithResultCache(cfg.Queue.ResultCacheTTL),
		core.WithTaggingTimeout(cfg.Tagging.Timeout),
	), nil
}

func newTagger(cfg *common.Config, retry *resilience.Client, logger *slog.Logger) (core.Tagger, error) {
	var backend tagging.Backend
	switch cfg.Tagging.Backend {
	case "remote":
		backend = tagging.NewRemoteBackend(remote.NewClient(cfg.Tagging.URL, logger))
	case "openai":
		backend = openai.NewBackend(openai.Config{
			APIKey:      cfg.Tagging.OpenAIAPIKey,
			BaseURL:     cfg.Tagging.OpenAIBaseURL,
			Model:       cfg.Tagging.OpenAIModel,
			Temperature: cfg.Tagging.OpenAITemperature,
			Timeout:     cfg.Retry.CallTimeout,
		}, logger)
	case "off":
		return nil, nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown TAGGER %q", cfg.Tagging.Backend), common.ErrInvalidInput)
	}
	return tagging.NewService(backend, retry.Named(common.CodeTaggingUnavailable), logger), nil
}
