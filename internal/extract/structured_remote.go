package extract

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
)

const scanStructuredPath = "/scan"

// RemoteInvoiceExtractor delegates structured parsing to an out-of-process
// service. An unprocessable answer (422) is a clean non-match; anything else that fails is a
// structured transport error.
type RemoteInvoiceExtractor struct {
	client *remote.Client
	retry  *resilience.Client
	logger *slog.Logger
}

func NewRemoteInvoiceExtractor(client *remote.Client, retry *resilience.Client, logger *slog.Logger) *RemoteInvoiceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteInvoiceExtractor{
		client: client,
		retry:  retry.Named(common.CodeStructuredTransport),
		logger: logger,
	}
}

func (e *RemoteInvoiceExtractor) Source() constants.ExtractionSource {
	return constants.SourceStructured
}

func (e *RemoteInvoiceExtractor) Applies(doc entity.RawDocument) bool {
	return doc.Type == constants.Invoice && constants.CarriesEmbeddedInvoice(doc.ContentType)
}

func (e *RemoteInvoiceExtractor) TryExtract(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error) {
	ctx = common.WithReferenceID(ctx, doc.ReferenceID)
	payload := remote.NewDocumentPayload(doc)

	var raw json.RawMessage
	err := e.retry.Do(ctx, "structured"+scanStructuredPath, func(ctx context.Context) error {
		return e.client.PostJSON(ctx, scanStructuredPath, payload, &raw)
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrCanceled):
			return entity.ExtractedFieldSet{}, err
		case errors.Is(err, common.ErrUnprocessable):
			return entity.ExtractedFieldSet{}, parseFailure("structured service found no invoice payload", nil)
		case errors.Is(err, common.ErrServiceUnavailable):
			return entity.ExtractedFieldSet{}, err
		default:
			return entity.ExtractedFieldSet{}, common.NewAppError(common.CodeStructuredTransport,
				"structured service call failed", err)
		}
	}

	resp, dropped, err := decodeScanResponse(raw)
	if err != nil {
		return entity.ExtractedFieldSet{}, parseFailure("structured answer does not match schema", err)
	}
	if len(dropped) > 0 {
		e.logger.Warn("extract.structured.lenient_sanitize_applied",
			"reference_id", doc.ReferenceID, "dropped", dropped)
	}
	return dropDegenerateTax(resp.fieldSet()), nil
}
