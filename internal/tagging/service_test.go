package tagging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/resilience"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFunc func(ctx context.Context, docType constants.DocumentType, payload []byte) ([]string, error)

func (f backendFunc) Tag(ctx context.Context, docType constants.DocumentType, payload []byte) ([]string, error) {
	return f(ctx, docType, payload)
}

func fastRetry() *resilience.Client {
	return resilience.New(resilience.Policy{
		Timeout: time.Second, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxElapsed: time.Second,
	}, nil)
}

func record() entity.CanonicalTransactionRecord {
	return entity.CanonicalTransactionRecord{
		ReferenceID:  "r1",
		DocumentType: constants.Receipt,
		GrossTotal:   decimal.RequireFromString("12.00"),
		Status:       constants.StatusPending,
	}
}

func TestService_Generate(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		want    []string
	}{
		{
			name: "canonicalizes tags",
			backend: backendFunc(func(context.Context, constants.DocumentType, []byte) ([]string, error) {
				return []string{" Restaurant ", "meals", "Taxi", ""}, nil
			}),
			want: []string{"meals", "travel"},
		},
		{
			name: "error yields empty list",
			backend: backendFunc(func(context.Context, constants.DocumentType, []byte) ([]string, error) {
				return nil, errors.New("boom")
			}),
			want: []string{},
		},
		{
			name: "panic yields empty list",
			backend: backendFunc(func(context.Context, constants.DocumentType, []byte) ([]string, error) {
				panic("backend bug")
			}),
			want: []string{},
		},
		{
			name:    "disabled backend",
			backend: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewService(tt.backend, fastRetry(), nil).Generate(context.Background(), record())
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Generate_RemoteBackend(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     []string
		wantHits int32
	}{
		{name: "array answer", status: http.StatusOK, body: `["software","hardware"]`, want: []string{"software", "hardware"}, wantHits: 1},
		{name: "object answer", status: http.StatusOK, body: `{"tags":["fuel"]}`, want: []string{"fuel"}, wantHits: 1},
		{name: "malformed answer", status: http.StatusOK, body: `{"tags":"fuel"}`, want: []string{}, wantHits: 1},
		{name: "service down is retried then empty", status: http.StatusServiceUnavailable, want: []string{}, wantHits: 3},
		{name: "definitive error is not retried", status: http.StatusUnprocessableEntity, want: []string{}, wantHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				assert.Equal(t, "/tag/receipt", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			svc := NewService(NewRemoteBackend(remote.NewClient(srv.URL, nil)), fastRetry(), nil)
			got := svc.Generate(context.Background(), record())
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
		})
	}
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags([]byte(`["a"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tags)

	_, err = ParseTags([]byte(`42`))
	assert.Error(t, err)
}
