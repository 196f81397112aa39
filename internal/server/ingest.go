package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/ingest"
)

// Coordinator runs the pipeline.
type Coordinator interface {
	Submit(ctx context.Context, doc entity.RawDocument) (entity.CanonicalTransactionRecord, error)
	Cancel(referenceID string) bool
}

// RecordStore persists succeeded records.
type RecordStore interface {
	Upsert(ctx context.Context, rec entity.CanonicalTransactionRecord) error
	Get(ctx context.Context, referenceID string) (entity.CanonicalTransactionRecord, error)
}

// Exporter renders stored records as a workbook.
type Exporter interface {
	ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// IngestionService implements IngestionServer on top of the coordinator.
type IngestionService struct {
	coord    Coordinator
	store    RecordStore
	exporter Exporter
	source   *ingest.FSSource
	logger   *slog.Logger
}

type Option func(*IngestionService)

// WithStore keeps succeeded records and enables Get.
func WithStore(s RecordStore) Option { return func(svc *IngestionService) { svc.store = s } }

// WithExporter enables ExportRecords.
func WithExporter(e Exporter) Option { return func(svc *IngestionService) { svc.exporter = e } }

// WithSource enables server-side paths in Submit and IngestDirectory.
func WithSource(s *ingest.FSSource) Option { return func(svc *IngestionService) { svc.source = s } }

func NewIngestionService(coord Coordinator, logger *slog.Logger, opts ...Option) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IngestionService{coord: coord, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit accepts either inline content (base64 in "content") or a
// server-side "path" and returns the canonical record.
func (s *IngestionService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := s.documentFrom(ctx, req.AsMap())
	if err != nil {
		return nil, common.ToStatus(err)
	}

	s.logger.Info("server.submit.start", "reference_id", doc.ReferenceID, "document_type", doc.Type)
	rec, err := s.coord.Submit(ctx, doc)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.persist(ctx, rec)
	return recordStruct(rec)
}

// persist writes rec to the store; failures are logged and never fail the call.
func (s *IngestionService) persist(ctx context.Context, rec entity.CanonicalTransactionRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		s.logger.Error("server.store.failed", "reference_id", rec.ReferenceID, "error", err)
	}
}

func (s *IngestionService) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "no record store configured")
	}
	ref := stringField(req.AsMap(), "referenceId")
	if ref == "" {
		return nil, common.InvalidArgumentError("referenceId is required")
	}
	rec, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return recordStruct(rec)
}

func (s *IngestionService) Cancel(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref := stringField(req.AsMap(), "referenceId")
	if ref == "" {
		return nil, common.InvalidArgumentError("referenceId is required")
	}
	canceled := s.coord.Cancel(ref)
	s.logger.Info("server.cancel", "reference_id", ref, "canceled", canceled)
	return structpb.NewStruct(map[string]any{"referenceId": ref, "canceled": canceled})
}

// IngestDirectory submits every supported file under "rootPath".
// "skipHidden" defaults to true.
func (s *IngestionService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.source == nil {
		return nil, status.Error(codes.Unimplemented, "server-side paths are disabled")
	}
	m := req.AsMap()
	root := stringField(m, "rootPath")
	if root == "" {
		return nil, common.InvalidArgumentError("rootPath is required")
	}
	skipHidden := true
	if v, ok := m["skipHidden"].(bool); ok {
		skipHidden = v
	}

	s.logger.Info("server.ingest_directory.start", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.source.Walk(ctx, root, skipHidden, func(ctx context.Context, doc entity.RawDocument) error {
		rec, err := s.coord.Submit(ctx, doc)
		if err != nil {
			return err
		}
		s.persist(ctx, rec)
		return nil
	})
	if err != nil {
		return nil, common.ToStatus(err)
	}

	items := make([]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"sourcePath":  r.SourcePath,
			"referenceId": r.ReferenceID,
			"contentHash": r.HashHex,
			"error":       r.Err,
		})
	}
	return structpb.NewStruct(map[string]any{
		"scanned":   float64(stats.Scanned),
		"matched":   float64(stats.Matched),
		"succeeded": float64(stats.Succeeded),
		"failed":    float64(stats.Failed),
		"results":   items,
	})
}

// ExportRecords returns the workbook base64-encoded in "xlsx". Optional
// "fromDate" and "toDate" are YYYY-MM-DD.
func (s *IngestionService) ExportRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.exporter == nil {
		return nil, status.Error(codes.Unimplemented, "export is disabled")
	}
	m := req.AsMap()
	from, err := dateField(m, "fromDate")
	if err != nil {
		return nil, err
	}
	to, err := dateField(m, "toDate")
	if err != nil {
		return nil, err
	}

	xlsx, err := s.exporter.ExportRecordsXLSX(ctx, from, to)
	if err != nil {
		s.logger.Error("server.export.failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"xlsx": base64.StdEncoding.EncodeToString(xlsx)})
}

func (s *IngestionService) documentFrom(ctx context.Context, m map[string]any) (entity.RawDocument, error) {
	if path := stringField(m, "path"); path != "" {
		if s.source == nil {
			return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument, "server-side paths are disabled", common.ErrInvalidInput)
		}
		doc, err := s.source.Fetch(ctx, path)
		if err != nil {
			return entity.RawDocument{}, err
		}
		if ref := stringField(m, "referenceId"); ref != "" {
			doc.ReferenceID = ref
		}
		if t := stringField(m, "documentType"); t != "" {
			if doc.Type, err = constants.ParseDocumentType(t); err != nil {
				return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument, err.Error(), common.ErrInvalidInput)
			}
		}
		return doc, nil
	}

	docType, err := constants.ParseDocumentType(stringField(m, "documentType"))
	if err != nil {
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument, err.Error(), common.ErrInvalidInput)
	}
	content, err := base64.StdEncoding.DecodeString(stringField(m, "content"))
	if err != nil {
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument, "content must be base64", common.ErrInvalidInput)
	}
	return entity.RawDocument{
		ReferenceID: stringField(m, "referenceId"),
		ContentType: stringField(m, "contentType"),
		Type:        docType,
		Content:     content,
	}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func dateField(m map[string]any, key string) (*time.Time, error) {
	v := stringField(m, key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("%s must be YYYY-MM-DD", key)
	}
	return &t, nil
}

// recordStruct converts a record through its JSON form.
func recordStruct(rec entity.CanonicalTransactionRecord) (*structpb.Struct, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, common.InternalError(err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

// RecordFromStruct decodes a record returned by Submit or Get.
func RecordFromStruct(s *structpb.Struct) (entity.CanonicalTransactionRecord, error) {
	var rec entity.CanonicalTransactionRecord
	if s == nil {
		return rec, errors.New("nil record")
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return rec, err
	}
	err = json.Unmarshal(raw, &rec)
	return rec, err
}
