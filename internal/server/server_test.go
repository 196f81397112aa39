package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/ingest"
	"github.com/shopspring/decimal"
)

type fakeCoordinator struct {
	mu   sync.Mutex
	docs []entity.RawDocument
	err  error
}

func (f *fakeCoordinator) Submit(_ context.Context, doc entity.RawDocument) (entity.CanonicalTransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return entity.CanonicalTransactionRecord{ReferenceID: doc.ReferenceID, Status: constants.StatusFailed}, f.err
	}
	return entity.CanonicalTransactionRecord{
		ID:           uuid.New(),
		ReferenceID:  doc.ReferenceID,
		DocumentType: doc.Type,
		GrossTotal:   decimal.RequireFromString("100.00"),
		TaxTotal:     decimal.NewNullDecimal(decimal.RequireFromString("15.97")),
		Tags:         []string{"meals"},
		Source:       constants.SourceOCR,
		Status:       constants.StatusSucceeded,
	}, nil
}

func (f *fakeCoordinator) Cancel(ref string) bool { return ref == "running" }

type memStore struct {
	mu   sync.Mutex
	recs map[string]entity.CanonicalTransactionRecord
}

func (m *memStore) Upsert(_ context.Context, rec entity.CanonicalTransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ReferenceID] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, ref string) (entity.CanonicalTransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[ref]
	if !ok {
		return rec, common.ErrNotFound
	}
	return rec, nil
}

type exporterFunc func(ctx context.Context, from, to *time.Time) ([]byte, error)

func (f exporterFunc) ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	return f(ctx, from, to)
}

func startServer(t *testing.T, svc *IngestionService) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	Register(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestIngestionService_SubmitAndGet(t *testing.T) {
	coord := &fakeCoordinator{}
	store := &memStore{recs: map[string]entity.CanonicalTransactionRecord{}}
	client := startServer(t, NewIngestionService(coord, nil, WithStore(store)))
	ctx := context.Background()

	doc := entity.RawDocument{ReferenceID: "rcpt-1", ContentType: constants.MIMEJPEG, Type: constants.Receipt, Content: []byte{0xff, 0xd8, 0x00}}
	rec, err := client.Submit(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "rcpt-1", rec.ReferenceID)
	assert.True(t, rec.GrossTotal.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, rec.TaxTotal.Decimal.Equal(decimal.RequireFromString("15.97")))
	assert.False(t, rec.NetTotal.Valid)
	assert.Equal(t, []string{"meals"}, rec.Tags)
	assert.Equal(t, constants.StatusSucceeded, rec.Status)

	require.Len(t, coord.docs, 1)
	assert.Equal(t, doc.Content, coord.docs[0].Content)
	assert.Equal(t, constants.Receipt, coord.docs[0].Type)

	got, err := client.Get(ctx, "rcpt-1")
	require.NoError(t, err)
	assert.True(t, rec.Equal(got))
	assert.Equal(t, rec.ID, got.ID)

	_, err = client.Get(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestIngestionService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"transient", common.NewAppError(common.CodeOCRUnavailable, "down", common.ErrServiceUnavailable), codes.Unavailable},
		{"unreadable", common.NewAppError(common.CodeDocumentUnreadable, "422", common.ErrUnprocessable), codes.FailedPrecondition},
		{"reconciliation", common.NewAppError(common.CodeReconciliation, "no gross", common.ErrReconciliation), codes.FailedPrecondition},
		{"canceled", common.NewAppError(common.CodeRunCanceled, "stop", common.ErrCanceled), codes.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := startServer(t, NewIngestionService(&fakeCoordinator{err: tt.err}, nil))
			_, err := client.Submit(context.Background(), entity.RawDocument{
				ReferenceID: "r", ContentType: constants.MIMEPNG, Type: constants.Receipt, Content: []byte("png"),
			})
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestIngestionService_SubmitRejectsBadRequest(t *testing.T) {
	client := startServer(t, NewIngestionService(&fakeCoordinator{}, nil))
	_, err := client.Submit(context.Background(), entity.RawDocument{ReferenceID: "r", ContentType: constants.MIMEPNG, Type: "LETTER", Content: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestIngestionService_SubmitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoices", "a.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o644))

	coord := &fakeCoordinator{}
	client := startServer(t, NewIngestionService(coord, nil, WithSource(ingest.NewFSSource(nil))))

	req, err := structpb.NewStruct(map[string]any{"path": path})
	require.NoError(t, err)
	out := new(structpb.Struct)
	require.NoError(t, client.cc.Invoke(context.Background(), "/"+ServiceName+"/"+MethodSubmit, req, out))

	require.Len(t, coord.docs, 1)
	assert.Equal(t, constants.Invoice, coord.docs[0].Type)
	assert.Equal(t, ingest.ReferenceIDForPath(path), coord.docs[0].ReferenceID)

	req, err = structpb.NewStruct(map[string]any{"rootPath": dir})
	require.NoError(t, err)
	require.NoError(t, client.cc.Invoke(context.Background(), "/"+ServiceName+"/"+MethodIngestDirectory, req, out))
	assert.Equal(t, float64(1), out.GetFields()["succeeded"].GetNumberValue())
	assert.Len(t, coord.docs, 2)
}

func TestIngestionService_CancelAndExport(t *testing.T) {
	var gotFrom, gotTo *time.Time
	exp := exporterFunc(func(_ context.Context, from, to *time.Time) ([]byte, error) {
		gotFrom, gotTo = from, to
		return []byte("PK\x03\x04"), nil
	})
	client := startServer(t, NewIngestionService(&fakeCoordinator{}, nil, WithExporter(exp)))
	ctx := context.Background()

	ok, err := client.Cancel(ctx, "running")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.Cancel(ctx, "idle")
	require.NoError(t, err)
	assert.False(t, ok)

	xlsx, err := client.ExportRecords(ctx, "2024-01-01", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), xlsx)
	require.NotNil(t, gotFrom)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *gotFrom)
	assert.Nil(t, gotTo)

	_, err = client.ExportRecords(ctx, "01/02/2024", "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
