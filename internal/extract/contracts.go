package extract

import (
	"context"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// Extractor is one strategy for turning a raw document into fields.
//
//go:generate mockgen -destination=mocks/mock_extract.go -package=mocks -source=contracts.go Extractor,DocumentAnalyzer
type Extractor interface {
	// Source names the path that produced a successful result.
	Source() constants.ExtractionSource
	// Applies reports whether TryExtract should be attempted for doc. It must
	// not perform I/O.
	Applies(doc entity.RawDocument) bool
	// TryExtract reads fields from doc. A clean non-match is reported as an
	// error wrapping common.ErrStructuredParse.
	TryExtract(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error)
}

// DocumentAnalyzer is the recognition service contract, one call per
// document type.
type DocumentAnalyzer interface {
	ScanInvoice(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error)
	ScanReceipt(ctx context.Context, doc entity.RawDocument) (entity.ExtractedFieldSet, error)
}
