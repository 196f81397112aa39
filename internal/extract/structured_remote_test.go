package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteInvoiceExtractor(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantHits  int32
		wantParse bool
		wantCode  string
	}{
		{name: "success", status: http.StatusOK, body: `{"total":"571.04","tax":"0","subtotal":"0","documentId":"RE-1"}`, wantHits: 1},
		{name: "unprocessable is a clean non-match", status: http.StatusUnprocessableEntity, wantHits: 1, wantParse: true, wantCode: common.CodeStructuredParse},
		{name: "exhausted transport", status: http.StatusServiceUnavailable, wantHits: 3, wantCode: common.CodeStructuredTransport},
		{name: "server error", status: http.StatusInternalServerError, wantHits: 1, wantCode: common.CodeStructuredTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				assert.Equal(t, "/scan", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewRemoteInvoiceExtractor(remote.NewClient(srv.URL, nil), resilience.New(testPolicy(), nil), nil)
			doc := entity.RawDocument{ReferenceID: "r", ContentType: constants.MIMEPDF, Type: constants.Invoice, Content: []byte("%PDF")}
			fs, err := e.TryExtract(context.Background(), doc)

			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "RE-1", *fs.DocumentID)
				assert.False(t, fs.TaxTotal.Valid, "degenerate zero tax is dropped")
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, common.CodeOf(err))
			if tt.wantParse {
				assert.ErrorIs(t, err, common.ErrStructuredParse)
			}
		})
	}
}
