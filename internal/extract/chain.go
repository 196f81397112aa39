package extract

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// Attempt describes one concluded extractor call.
type Attempt struct {
	Source constants.ExtractionSource
	Err    error
	// Final is set for the last applicable extractor; its error is fatal.
	Final bool
}

// Chain tries extractors in order until one succeeds. Results are never
// merged: the first success wins in full.
type Chain struct {
	extractors []Extractor
}

func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Append adds a lower-priority extractor.
func (c *Chain) Append(e Extractor) *Chain {
	c.extractors = append(c.extractors, e)
	return c
}

// Run executes the chain for doc. onAttempt, when non-nil, observes every
// concluded attempt in order. Errors of non-final extractors are reported to
// onAttempt and then swallowed; the final extractor's error is returned.
// Cancellation of ctx stops the chain without trying further extractors.
func (c *Chain) Run(ctx context.Context, doc entity.RawDocument, onAttempt func(Attempt)) (entity.ExtractedFieldSet, constants.ExtractionSource, error) {
	applicable := make([]Extractor, 0, len(c.extractors))
	for _, e := range c.extractors {
		if e.Applies(doc) {
			applicable = append(applicable, e)
		}
	}
	if len(applicable) == 0 {
		return entity.ExtractedFieldSet{}, "", common.NewAppError(common.CodeDocumentUnreadable,
			fmt.Sprintf("no extractor accepts %s %s", doc.Type, doc.MIME()), common.ErrUnprocessable)
	}

	for i, e := range applicable {
		final := i == len(applicable)-1
		fs, err := e.TryExtract(ctx, doc)
		if onAttempt != nil {
			onAttempt(Attempt{Source: e.Source(), Err: err, Final: final})
		}
		if err == nil {
			return fs, e.Source(), nil
		}
		if final {
			return entity.ExtractedFieldSet{}, e.Source(), err
		}
		if ctx.Err() != nil {
			return entity.ExtractedFieldSet{}, e.Source(), err
		}
	}
	// unreachable: the final iteration always returns
	return entity.ExtractedFieldSet{}, "", common.ErrInternal
}
