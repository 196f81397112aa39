package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(discardLogger()) })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func sampleRecord(ref string, date *time.Time) entity.CanonicalTransactionRecord {
	completed := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	return entity.CanonicalTransactionRecord{
		ID:           uuid.New(),
		ReferenceID:  ref,
		DocumentType: constants.Invoice,
		GrossTotal:   decimal.RequireFromString("571.04"),
		NetTotal:     entity.Money(decimal.RequireFromString("479.86")),
		TaxTotal:     entity.Money(decimal.RequireFromString("91.18")),
		Currency:     entity.StrPtr("EUR"),
		Date:         date,
		DueDate:      day(2017, 5, 30),
		Sender:       &entity.TradeParty{Name: entity.StrPtr("Bei Spiel GmbH"), VATID: entity.StrPtr("DE136695976")},
		Recipient:    &entity.TradeParty{Name: entity.StrPtr("Theodor Est"), City: entity.StrPtr("Spielkreis")},
		DocumentID:   entity.StrPtr("RE-20170509/505"),
		Tags:         []string{"consulting"},
		Source:       constants.SourceStructured,
		Status:       constants.StatusSucceeded,
		CompletedAt:  &completed,
	}
}

func TestRecordRepository_UpsertGet(t *testing.T) {
	repo := NewRecordRepository(openTestDB(t), discardLogger())
	ctx := context.Background()

	rec := sampleRecord("inv-1", day(2017, 5, 9))
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, rec.Equal(got), "round trip should preserve the record")
	assert.Equal(t, rec.ID, got.ID)
	assert.False(t, got.Prepaid.Valid)
	assert.Nil(t, got.OrderReference)
	assert.Equal(t, *rec.CompletedAt, *got.CompletedAt)

	rec.Tags = []string{"consulting", "travel"}
	rec.TaxTotal = entity.Money(decimal.Zero)
	require.NoError(t, repo.Upsert(ctx, rec))
	got, err = repo.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"consulting", "travel"}, got.Tags)
	assert.True(t, got.TaxTotal.Decimal.IsZero())
}

func TestRecordRepository_GetMissing(t *testing.T) {
	repo := NewRecordRepository(openTestDB(t), discardLogger())
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRecordRepository_List(t *testing.T) {
	repo := NewRecordRepository(openTestDB(t), discardLogger())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, sampleRecord("b", day(2024, 2, 1))))
	require.NoError(t, repo.Upsert(ctx, sampleRecord("a", day(2024, 1, 15))))
	require.NoError(t, repo.Upsert(ctx, sampleRecord("c", day(2024, 3, 31))))
	undated := sampleRecord("d", nil)
	undated.Sender = nil
	undated.Tags = nil
	require.NoError(t, repo.Upsert(ctx, undated))

	refs := func(recs []entity.CanonicalTransactionRecord) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.ReferenceID
		}
		return out
	}

	all, err := repo.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	ranged, err := repo.List(ctx, day(2024, 1, 1), day(2024, 2, 29))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, refs(ranged))

	from, err := repo.List(ctx, day(2024, 2, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, refs(from))

	got, err := repo.Get(ctx, "d")
	require.NoError(t, err)
	assert.Nil(t, got.Sender)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql", DSN: "x"}, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, common.CodeDatabase, common.CodeOf(err))
}

func TestDB_MigrateIsRepeatable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))

	var version int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT version FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := db.Migrate(ctx)
	assert.ErrorIs(t, err, common.ErrDatabase)
}
