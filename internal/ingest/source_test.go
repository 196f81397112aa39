package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFSSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	src := NewFSSource(nil)

	inv := writeFile(t, filepath.Join(dir, "Invoices", "2024", "a.PDF"), "%PDF-1.7")
	doc, err := src.Fetch(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, constants.MIMEPDF, doc.ContentType)
	assert.Equal(t, constants.Invoice, doc.Type)
	assert.Equal(t, []byte("%PDF-1.7"), doc.Content)
	assert.Equal(t, ReferenceIDForPath(inv), doc.ReferenceID)
	require.NoError(t, doc.Validate())

	again, err := src.Fetch(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, doc.ReferenceID, again.ReferenceID)

	rcpt := writeFile(t, filepath.Join(dir, "misc", "b.jpg"), "jpeg")
	doc, err = src.Fetch(context.Background(), rcpt)
	require.NoError(t, err)
	assert.Equal(t, constants.Receipt, doc.Type, "default type")
	assert.Equal(t, constants.MIMEJPEG, doc.ContentType)
}

func TestFSSource_Fetch_Rejects(t *testing.T) {
	dir := t.TempDir()
	src := NewFSSource(nil)
	src.MaxBytes = 4

	_, err := src.Fetch(context.Background(), writeFile(t, filepath.Join(dir, "notes.txt"), "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = src.Fetch(context.Background(), writeFile(t, filepath.Join(dir, "big.png"), "0123456789"))
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidDocument, common.CodeOf(err))

	_, err = src.Fetch(context.Background(), filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFSSource_Walk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "receipts", "a.png"), "png")
	writeFile(t, filepath.Join(dir, "invoices", "b.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "invoices", "c.xml"), "<x/>")
	writeFile(t, filepath.Join(dir, "invoices", "skip.docx"), "doc")
	writeFile(t, filepath.Join(dir, ".hidden", "d.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "receipts", "fail.jpg"), "jpg")

	var seen []entity.RawDocument
	results, stats, err := NewFSSource(nil).Walk(context.Background(), dir, true,
		func(_ context.Context, doc entity.RawDocument) error {
			if filepath.Base(doc.SourcePath) == "fail.jpg" {
				return errors.New("rejected")
			}
			seen = append(seen, doc)
			return nil
		})
	require.NoError(t, err)

	assert.Equal(t, uint32(4), stats.Matched)
	assert.Equal(t, uint32(3), stats.Succeeded)
	assert.Equal(t, uint32(1), stats.Failed)
	assert.Len(t, results, 4)
	assert.Len(t, seen, 3)

	types := map[string]constants.DocumentType{}
	for _, d := range seen {
		types[filepath.Base(d.SourcePath)] = d.Type
	}
	assert.Equal(t, map[string]constants.DocumentType{
		"a.png": constants.Receipt,
		"b.pdf": constants.Invoice,
		"c.xml": constants.Invoice,
	}, types)
}

func TestFSSource_Walk_RequiresRoot(t *testing.T) {
	_, _, err := NewFSSource(nil).Walk(context.Background(), " ", false, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestStartWatcher(t *testing.T) {
	dir := t.TempDir()
	existing := writeFile(t, filepath.Join(dir, "old.pdf"), "%PDF")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan emitted nothing")
	}

	created := filepath.Join(dir, "new.png")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "x")
	writeFile(t, created, "png")

	select {
	case p := <-events:
		assert.Equal(t, created, p)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher emitted nothing for new file")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
