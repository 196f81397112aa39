package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/tagging"
)

// Backend implements tagging.Backend with chat/completions in JSON mode.
type Backend struct {
	cfg    Config
	client *remote.Client
	log    *slog.Logger
}

var _ tagging.Backend = (*Backend)(nil)

func NewBackend(cfg Config, logger *slog.Logger) *Backend {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	client := remote.NewClient(cfg.BaseURL, logger,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		remote.WithHeader("Authorization", "Bearer "+cfg.APIKey),
	)
	return &Backend{cfg: cfg, client: client, log: logger}
}

func (b *Backend) Tag(ctx context.Context, docType constants.DocumentType, payload []byte) ([]string, error) {
	rid := uuid.New().String()
	start := time.Now()

	b.log.Info("tagging.openai.start",
		"req_id", rid,
		"model", b.cfg.Model,
		"temp", b.cfg.Temperature,
		"document_type", docType,
		"payload_len", len(payload),
	)

	body := map[string]any{
		"model":           b.cfg.Model,
		"temperature":     b.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildSystemPrompt(docType)},
			{"role": "user", "content": buildUserPrompt(payload)},
		},
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := b.client.PostJSON(common.WithRequestID(ctx, rid), "/chat/completions", body, &cc); err != nil {
		b.log.Error("tagging.openai.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}
	if len(cc.Choices) == 0 {
		b.log.Error("tagging.openai.no_choices", "req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("%w: no choices in openai response", common.ErrTagging)
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	tags, err := tagging.ParseTags([]byte(content))
	if err != nil {
		b.log.Error("tagging.openai.schema_validation_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	b.log.Info("tagging.openai.ok",
		"req_id", rid,
		"tags", tags,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return tags, nil
}

func buildSystemPrompt(docType constants.DocumentType) string {
	parts := []string{
		"You label financial documents for bookkeeping. Return ONLY a JSON object of the form {\"tags\": [\"...\"]}.",
		fmt.Sprintf("Return at most %d short lowercase tags, each under %d characters, hyphenated instead of spaces.", constants.MaxTags, constants.MaxTagLength),
		"Prefer these tags when they fit: " + strings.Join(constants.KnownTags, ", ") + ".",
		"Base tags on the counterparties, amounts and identifiers given. Avoid personal names and addresses.",
		"If nothing fits, return {\"tags\": []}.",
	}
	if docType == constants.Invoice {
		parts = append(parts, "The document is a supplier invoice.")
	} else {
		parts = append(parts, "The document is a point-of-sale receipt.")
	}
	return strings.Join(parts, " ")
}

func buildUserPrompt(payload []byte) string {
	var b strings.Builder
	b.WriteString("Canonical record (JSON):\n")
	if len(payload) > 4000 {
		b.Write(payload[:4000])
	} else {
		b.Write(payload)
	}
	return b.String()
}
