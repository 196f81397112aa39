package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/reconcile"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
)

const (
	scanInvoicePath = "/scan/invoice"
	scanReceiptPath = "/scan/receipt"
)

// OCRAnalyzer calls the recognition service. Every call goes through the
// fault tolerant client; only transport failures are retried.
type OCRAnalyzer struct {
	client     *remote.Client
	retry      *resilience.Client
	correction reconcile.ReceiptTotalCorrection
	logger     *slog.Logger
}

func NewOCRAnalyzer(client *remote.Client, retry *resilience.Client, correction reconcile.ReceiptTotalCorrection, logger *slog.Logger) *OCRAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAnalyzer{
		client:     client,
		retry:      retry.Named(common.CodeOCRUnavailable),
		correction: correction,
		logger:     logger,
	}
}

func (a *OCRAnalyzer) ScanInvoice(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error) {
	resp, err := a.scan(ctx, scanInvoicePath, doc)
	if err != nil {
		return entity.ExtractedFieldSet{}, err
	}
	return resp.fieldSet(), nil
}

// ScanReceipt applies the receipt total correction to the service's figures.
func (a *OCRAnalyzer) ScanReceipt(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error) {
	resp, err := a.scan(ctx, scanReceiptPath, doc)
	if err != nil {
		return entity.ExtractedFieldSet{}, err
	}
	fs := resp.fieldSet()
	totals, corrected := a.correction.Apply(fs.GrossTotal, fs.NetTotal, fs.TaxTotal)
	if corrected {
		a.logger.Info("ocr.receipt.total_corrected",
			"reference_id", doc.ReferenceID,
			"nominal_total", fs.GrossTotal.Decimal.String(),
			"subtotal", fs.NetTotal.Decimal.String(),
			"gross", totals.Gross.Decimal.String(),
			"tax", totals.Tax.Decimal.String(),
		)
	}
	fs.GrossTotal, fs.NetTotal, fs.TaxTotal = totals.Gross, totals.Net, totals.Tax
	return fs, nil
}

func (a *OCRAnalyzer) scan(ctx context.Context, path string, doc entity.RawDocument) (scanResponse, error) {
	start := time.Now()
	ctx = common.WithReferenceID(ctx, doc.ReferenceID)
	payload := remote.NewDocumentPayload(doc)

	var raw json.RawMessage
	err := a.retry.Do(ctx, "ocr"+path, func(ctx context.Context) error {
		return a.client.PostJSON(ctx, path, payload, &raw)
	})
	if err != nil {
		return scanResponse{}, a.classify(doc, err)
	}

	resp, dropped, err := decodeScanResponse(raw)
	if err != nil {
		a.logger.Error("ocr.schema_validation_failed",
			"reference_id", doc.ReferenceID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return scanResponse{}, common.NewAppError(common.CodeDocumentUnreadable,
			"recognition answer does not match schema", fmt.Errorf("%w: %w", common.ErrUnprocessable, err))
	}
	if len(dropped) > 0 {
		a.logger.Warn("ocr.lenient_sanitize_applied",
			"reference_id", doc.ReferenceID, "dropped", dropped)
	}
	a.logger.Info("ocr.scan.ok",
		"reference_id", doc.ReferenceID,
		"path", path,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// classify separates "document unreadable" from "service down". A definitive
// non-422 error answer is not retried in-call but remains safe to resubmit.
func (a *OCRAnalyzer) classify(doc entity.RawDocument, err error) error {
	switch {
	case errors.Is(err, common.ErrCanceled), errors.Is(err, common.ErrServiceUnavailable):
		return err
	case errors.Is(err, common.ErrUnprocessable):
		return common.NewAppError(common.CodeDocumentUnreadable,
			fmt.Sprintf("recognition service cannot read %s", doc.ReferenceID), err)
	default:
		var se *remote.StatusError
		if errors.As(err, &se) {
			return common.NewAppError(common.CodeOCRUnavailable,
				fmt.Sprintf("recognition service answered %d", se.Status),
				fmt.Errorf("%w: %w", common.ErrServiceUnavailable, err))
		}
		return err
	}
}

// OCRExtractor adapts a DocumentAnalyzer to the Extractor chain. It accepts
// every document, choosing the scan by document type.
type OCRExtractor struct {
	analyzer DocumentAnalyzer
}

func NewOCRExtractor(analyzer DocumentAnalyzer) *OCRExtractor {
	return &OCRExtractor{analyzer: analyzer}
}

func (e *OCRExtractor) Source() constants.ExtractionSource { return constants.SourceOCR }

func (e *OCRExtractor) Applies(doc entity.RawDocument) bool {
	return constants.IsSupportedMIME(doc.ContentType)
}

func (e *OCRExtractor) TryExtract(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error) {
	if doc.Type == constants.Invoice {
		return e.analyzer.ScanInvoice(ctx, doc)
	}
	return e.analyzer.ScanReceipt(ctx, doc)
}
