package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/reconcile"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() resilience.Policy {
	return resilience.Policy{
		Timeout:     time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxElapsed:  5 * time.Second,
		Jitter:      0.1,
	}
}

type ocrServer struct {
	*httptest.Server
	hits     int32
	lastPath atomic.Value
}

func newOCRServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, hit int32)) *ocrServer {
	t.Helper()
	s := &ocrServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lastPath.Store(r.URL.Path)
		handler(w, r, atomic.AddInt32(&s.hits, 1))
	}))
	t.Cleanup(s.Close)
	return s
}

func newAnalyzer(url string, correction bool) *OCRAnalyzer {
	return NewOCRAnalyzer(remote.NewClient(url, nil), resilience.New(testPolicy(), nil),
		reconcile.ReceiptTotalCorrection{Enabled: correction}, nil)
}

func receiptDoc() entity.RawDocument {
	return entity.RawDocument{ReferenceID: "rcpt-1", ContentType: constants.MIMEJPEG, Type: constants.Receipt, Content: []byte{0xff, 0xd8}}
}

func TestOCRAnalyzer_ScanReceipt_Correction(t *testing.T) {
	srv := newOCRServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		_, _ = w.Write([]byte(`{"total":"84.03","subtotal":"100.00","currency":"eur","date":"2024-03-01",
			"merchant":{"name":"Bäckerei Schmidt","city":"Köln","street":""}}`))
	})

	fs, err := newAnalyzer(srv.URL, true).ScanReceipt(context.Background(), receiptDoc())
	require.NoError(t, err)

	assert.Equal(t, "/scan/receipt", srv.lastPath.Load())
	assert.True(t, fs.GrossTotal.Decimal.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, fs.TaxTotal.Decimal.Equal(decimal.RequireFromString("15.97")))
	assert.True(t, fs.NetTotal.Decimal.Equal(decimal.RequireFromString("84.03")))
	assert.Equal(t, "EUR", *fs.Currency)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *fs.IssueDate)

	require.NotNil(t, fs.Sender)
	assert.Equal(t, "Bäckerei Schmidt", *fs.Sender.Name)
	assert.Equal(t, "Köln", *fs.Sender.City)
	assert.Nil(t, fs.Sender.Street)
	assert.Nil(t, fs.Sender.PostalCode)
	assert.Nil(t, fs.Recipient)
}

func TestOCRAnalyzer_ScanReceipt_CorrectionDisabled(t *testing.T) {
	srv := newOCRServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		_, _ = w.Write([]byte(`{"total":"84.03","subtotal":"100.00"}`))
	})

	fs, err := newAnalyzer(srv.URL, false).ScanReceipt(context.Background(), receiptDoc())
	require.NoError(t, err)
	assert.True(t, fs.GrossTotal.Decimal.Equal(decimal.RequireFromString("84.03")))
	assert.False(t, fs.TaxTotal.Valid)
}

func TestOCRAnalyzer_ScanInvoice(t *testing.T) {
	srv := newOCRServer(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["documentType"] != "INVOICE" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"total":119,"subtotal":"100.00","tax":"19.00","date":"2024-03-01","time":"14:30",
			"documentId":"INV-7","customer":{"name":"ACME"}}`))
	})

	doc := entity.RawDocument{ReferenceID: "inv", ContentType: constants.MIMEPDF, Type: constants.Invoice, Content: []byte("%PDF")}
	fs, err := newAnalyzer(srv.URL, true).ScanInvoice(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "/scan/invoice", srv.lastPath.Load())
	assert.True(t, fs.GrossTotal.Decimal.Equal(decimal.NewFromInt(119)), "invoices are not corrected")
	assert.True(t, fs.TaxTotal.Decimal.Equal(decimal.RequireFromString("19.00")))
	assert.Equal(t, time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC), *fs.IssueDate)
	assert.Equal(t, "INV-7", *fs.DocumentID)
	assert.Equal(t, "ACME", *fs.Recipient.Name)
}

func TestOCRAnalyzer_Failures(t *testing.T) {
	tests := []struct {
		name          string
		handler       func(w http.ResponseWriter, hit int32)
		wantHits      int32
		wantErrIs     error
		wantCode      string
		wantTransient bool
		wantOK        bool
	}{
		{
			name:     "retries transport failures up to three times",
			handler:  func(w http.ResponseWriter, _ int32) { w.WriteHeader(http.StatusServiceUnavailable) },
			wantHits: 3, wantErrIs: common.ErrServiceUnavailable, wantCode: common.CodeOCRUnavailable, wantTransient: true,
		},
		{
			name: "recovers on third attempt",
			handler: func(w http.ResponseWriter, hit int32) {
				if hit < 3 {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(`{"total":"5.00"}`))
			},
			wantHits: 3, wantOK: true,
		},
		{
			name:     "unprocessable is never retried",
			handler:  func(w http.ResponseWriter, _ int32) { w.WriteHeader(http.StatusUnprocessableEntity) },
			wantHits: 1, wantErrIs: common.ErrUnprocessable, wantCode: common.CodeDocumentUnreadable,
		},
		{
			name:     "server error is not retried but resubmittable",
			handler:  func(w http.ResponseWriter, _ int32) { w.WriteHeader(http.StatusInternalServerError) },
			wantHits: 1, wantErrIs: common.ErrServiceUnavailable, wantCode: common.CodeOCRUnavailable, wantTransient: true,
		},
		{
			name:     "schema violation is unreadable",
			handler:  func(w http.ResponseWriter, _ int32) { _, _ = w.Write([]byte(`["not", "an", "object"]`)) },
			wantHits: 1, wantErrIs: common.ErrUnprocessable, wantCode: common.CodeDocumentUnreadable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newOCRServer(t, func(w http.ResponseWriter, r *http.Request, hit int32) { tt.handler(w, hit) })

			_, err := newAnalyzer(srv.URL, true).ScanReceipt(context.Background(), receiptDoc())
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&srv.hits))
			if tt.wantOK {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErrIs)
			assert.Equal(t, tt.wantCode, common.CodeOf(err))
			assert.Equal(t, tt.wantTransient, common.IsTransient(err))
		})
	}
}

func TestOCRExtractor_DispatchesByType(t *testing.T) {
	var invoice, receipt int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/scan/invoice":
			atomic.AddInt32(&invoice, 1)
		case "/scan/receipt":
			atomic.AddInt32(&receipt, 1)
		}
		_, _ = w.Write([]byte(`{"total":"1"}`))
	}))
	defer srv.Close()

	e := NewOCRExtractor(newAnalyzer(srv.URL, true))
	assert.Equal(t, constants.SourceOCR, e.Source())

	_, err := e.TryExtract(context.Background(), entity.RawDocument{ReferenceID: "a", ContentType: constants.MIMEPDF, Type: constants.Invoice, Content: []byte("x")})
	require.NoError(t, err)
	_, err = e.TryExtract(context.Background(), receiptDoc())
	require.NoError(t, err)

	assert.Equal(t, int32(1), invoice)
	assert.Equal(t, int32(1), receipt)
}
