package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// DefaultMaxBytes caps the size of a single document read from disk.
const DefaultMaxBytes = 32 << 20

// Result is the per-file outcome of a Walk.
type Result struct {
	SourcePath  string
	ReferenceID string
	HashHex     string
	Err         string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// FSSource reads documents from the local filesystem.
type FSSource struct {
	MaxBytes int64
	// DefaultType applies when no folder in the path hints at the document type.
	DefaultType constants.DocumentType
	logger      *slog.Logger
}

func NewFSSource(logger *slog.Logger) *FSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSSource{MaxBytes: DefaultMaxBytes, DefaultType: constants.Receipt, logger: logger}
}

// Fetch reads one file into a RawDocument. The reference ID is derived from
// the absolute path so the same file always maps to the same reference.
func (s *FSSource) Fetch(ctx context.Context, path string) (entity.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return entity.RawDocument{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("abs path: %w", err)
	}

	mime := constants.MIMEForExt(filepath.Ext(abs))
	if mime == "" {
		s.logger.Warn("ingest.fetch.unsupported_extension", "path", abs)
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument,
			fmt.Sprintf("unsupported or missing extension: %q", filepath.Ext(abs)), common.ErrInvalidInput)
	}

	f, err := os.Open(abs)
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Warn("ingest.fetch.close_failed", "path", abs, "error", cerr)
		}
	}()

	content, err := io.ReadAll(io.LimitReader(f, s.MaxBytes+1))
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("read: %w", err)
	}
	if int64(len(content)) > s.MaxBytes {
		return entity.RawDocument{}, common.NewAppError(common.CodeInvalidDocument,
			fmt.Sprintf("%s exceeds %d bytes", abs, s.MaxBytes), common.ErrInvalidInput)
	}

	doc := entity.RawDocument{
		ReferenceID: ReferenceIDForPath(abs),
		ContentType: mime,
		Type:        s.documentType(abs),
		Content:     content,
		SourcePath:  abs,
	}
	s.logger.Debug("ingest.fetch.ok", "path", abs, "reference_id", doc.ReferenceID, "bytes", len(content), "document_type", doc.Type)
	return doc, nil
}

// Walk visits every supported file under root and hands it to visit.
// Per-file failures are recorded in the results and do not stop the walk;
// cancellation of ctx does.
func (s *FSSource) Walk(ctx context.Context, root string, skipHidden bool, visit func(context.Context, entity.RawDocument) error) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.NewAppError(common.CodeInvalidDocument, "root path is required", common.ErrInvalidInput)
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Supported(path) {
			return nil
		}
		stats.Matched++

		doc, err := s.Fetch(ctx, path)
		if err == nil && visit != nil {
			err = visit(ctx, doc)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return err
			}
			results = append(results, Result{SourcePath: path, ReferenceID: doc.ReferenceID, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, Result{SourcePath: doc.SourcePath, ReferenceID: doc.ReferenceID, HashHex: doc.ContentHash()})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	s.logger.Info("ingest.walk.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return results, stats, nil
}

// documentType reads a hint from the nearest folder named after the type.
func (s *FSSource) documentType(path string) constants.DocumentType {
	dir := filepath.Dir(path)
	for {
		switch strings.ToLower(filepath.Base(dir)) {
		case "invoices", "invoice", "rechnungen":
			return constants.Invoice
		case "receipts", "receipt", "belege":
			return constants.Receipt
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return s.DefaultType
		}
		dir = parent
	}
}

var pathNamespace = uuid.MustParse("6f1c54a4-52f4-4d0e-9a1f-0b3f3c0d6a11")

// ReferenceIDForPath maps an absolute path to a stable reference ID.
func ReferenceIDForPath(abs string) string {
	return uuid.NewSHA1(pathNamespace, []byte(filepath.Clean(abs))).String()
}

// Supported reports whether the file extension maps to an accepted content type.
func Supported(path string) bool {
	return constants.MIMEForExt(filepath.Ext(path)) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
