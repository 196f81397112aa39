package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/extract/extracttest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(ocrURL, tagURL string) *common.Config {
	return &common.Config{
		Extract: common.ExtractConfig{StructuredMode: "embedded", OCRURL: ocrURL, ReceiptTotalCorrection: true},
		Tagging: common.TaggingConfig{Backend: "remote", URL: tagURL},
		Retry: common.RetryConfig{
			CallTimeout: time.Second, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxElapsed: 5 * time.Second,
		},
		Queue: common.QueueConfig{ResultCacheTTL: time.Minute},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewCoordinator_Wiring(t *testing.T) {
	var ocrHits int32
	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ocrHits, 1)
		_, _ = w.Write([]byte(`{"total":"84.03","subtotal":"100.00","currency":"EUR"}`))
	}))
	t.Cleanup(ocr.Close)
	tagger := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tags":["Hotel","software"]}`))
	}))
	t.Cleanup(tagger.Close)

	coord, err := NewCoordinator(testConfig(ocr.URL, tagger.URL), quiet())
	require.NoError(t, err)
	ctx := context.Background()

	inv, err := coord.Submit(ctx, entity.RawDocument{
		ReferenceID: "inv", ContentType: constants.MIMEPDF, Type: constants.Invoice, Content: extracttest.FacturXPDF(),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.SourceStructured, inv.Source)
	assert.Equal(t, []string{"lodging", "software"}, inv.Tags)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ocrHits))

	rcpt, err := coord.Submit(ctx, entity.RawDocument{
		ReferenceID: "rcpt", ContentType: constants.MIMEPNG, Type: constants.Receipt, Content: []byte("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.SourceOCR, rcpt.Source)
	assert.True(t, rcpt.TaxTotal.Decimal.Equal(decimal.RequireFromString("15.97")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&ocrHits))
}

func TestNewCoordinator_TaggerOff(t *testing.T) {
	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":"12.50"}`))
	}))
	t.Cleanup(ocr.Close)

	cfg := testConfig(ocr.URL, "")
	cfg.Tagging.Backend = "off"
	cfg.Extract.StructuredMode = "off"
	coord, err := NewCoordinator(cfg, quiet())
	require.NoError(t, err)

	rec, err := coord.Submit(context.Background(), entity.RawDocument{
		ReferenceID: "inv", ContentType: constants.MIMEPDF, Type: constants.Invoice, Content: extracttest.FacturXPDF(),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.SourceOCR, rec.Source)
	assert.NotNil(t, rec.Tags)
	assert.Empty(t, rec.Tags)
}

func TestNewCoordinator_RejectsUnknownModes(t *testing.T) {
	cfg := testConfig("http://ocr", "http://tag")
	cfg.Extract.StructuredMode = "magic"
	_, err := NewCoordinator(cfg, quiet())
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))

	cfg = testConfig("http://ocr", "http://tag")
	cfg.Tagging.Backend = "crystal-ball"
	_, err = NewCoordinator(cfg, quiet())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
