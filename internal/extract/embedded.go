package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/reconcile"
	"github.com/shopspring/decimal"
)

// EmbeddedInvoiceExtractor reads a CII e-invoice carried inside a PDF
// (Factur-X, ZUGFeRD) or submitted as bare XML. It performs no I/O.
type EmbeddedInvoiceExtractor struct {
	tolerance decimal.Decimal
	logger    *slog.Logger
}

func NewEmbeddedInvoiceExtractor(logger *slog.Logger) *EmbeddedInvoiceExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddedInvoiceExtractor{tolerance: reconcile.DefaultTolerance, logger: logger}
}

func (e *EmbeddedInvoiceExtractor) Source() constants.ExtractionSource {
	return constants.SourceStructured
}

func (e *EmbeddedInvoiceExtractor) Applies(doc entity.RawDocument) bool {
	return doc.Type == constants.Invoice && constants.CarriesEmbeddedInvoice(doc.ContentType)
}

func (e *EmbeddedInvoiceExtractor) TryExtract(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error) {
	if err := ctx.Err(); err != nil {
		return entity.ExtractedFieldSet{}, err
	}

	var payload []byte
	var ok bool
	if doc.MIME() == constants.MIMEPDF {
		payload, ok = findEmbeddedXML(doc.Content)
	} else {
		payload, ok = xmlPayload(doc.Content)
	}
	if !ok {
		return entity.ExtractedFieldSet{}, parseFailure("no embedded invoice payload", nil)
	}

	fs, err := parseCII(payload, e.tolerance)
	if err != nil {
		return entity.ExtractedFieldSet{}, parseFailure("embedded invoice payload rejected", err)
	}
	fs = dropDegenerateTax(fs)

	e.logger.Debug("extract.embedded.ok",
		"reference_id", doc.ReferenceID,
		"document_id", deref(fs.DocumentID),
		"gross", fs.GrossTotal.Decimal.String(),
		"has_tax", fs.TaxTotal.Valid,
	)
	return fs, nil
}

// dropDegenerateTax turns an embedded calculator's "both zero while gross is
// not" answer into absent figures so that it is never read as a real 0% tax.
func dropDegenerateTax(fs entity.ExtractedFieldSet) entity.ExtractedFieldSet {
	if !fs.GrossTotal.Valid || fs.GrossTotal.Decimal.IsZero() {
		return fs
	}
	zeroOrAbsent := func(d decimal.NullDecimal) bool { return !d.Valid || d.Decimal.IsZero() }
	if zeroOrAbsent(fs.NetTotal) && zeroOrAbsent(fs.TaxTotal) {
		fs.NetTotal = decimal.NullDecimal{}
		fs.TaxTotal = decimal.NullDecimal{}
	}
	return fs
}

func parseFailure(msg string, cause error) error {
	if cause == nil {
		cause = common.ErrStructuredParse
	} else {
		cause = common.WrapError(common.ErrStructuredParse, cause.Error())
	}
	return common.NewAppError(common.CodeStructuredParse, msg, cause)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
