package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type listerFunc func(ctx context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error)

func (f listerFunc) List(ctx context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error) {
	return f(ctx, from, to)
}

func TestService_ExportRecordsXLSX(t *testing.T) {
	date := time.Date(2017, 5, 9, 0, 0, 0, 0, time.UTC)
	rec := entity.CanonicalTransactionRecord{
		ReferenceID:  "inv-1",
		DocumentType: constants.Invoice,
		GrossTotal:   decimal.RequireFromString("571.04"),
		NetTotal:     entity.Money(decimal.RequireFromString("479.86")),
		Currency:     entity.StrPtr("EUR"),
		Date:         &date,
		Sender:       &entity.TradeParty{Name: entity.StrPtr("Bei Spiel GmbH")},
		DocumentID:   entity.StrPtr("RE-20170509/505"),
		Tags:         []string{"consulting", "software"},
		Source:       constants.SourceStructured,
		Status:       constants.StatusSucceeded,
	}

	var gotFrom, gotTo *time.Time
	svc := NewService(listerFunc(func(_ context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error) {
		gotFrom, gotTo = from, to
		return []entity.CanonicalTransactionRecord{rec}, nil
	}), nil)
	svc.now = func() time.Time { return time.Date(2017, 6, 1, 15, 30, 0, 0, time.UTC) }

	from := time.Date(2017, 5, 1, 13, 0, 0, 0, time.UTC)
	out, err := svc.ExportRecordsXLSX(context.Background(), &from, nil)
	require.NoError(t, err)

	require.NotNil(t, gotFrom)
	require.NotNil(t, gotTo)
	assert.Equal(t, time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC), *gotFrom)
	assert.Equal(t, time.Date(2017, 6, 1, 23, 59, 59, 0, time.UTC), *gotTo)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "2017-05-09", rows[1][0])
	assert.Equal(t, "INVOICE", rows[1][1])
	assert.Equal(t, "RE-20170509/505", rows[1][2])
	assert.Equal(t, "Bei Spiel GmbH", rows[1][3])
	assert.Equal(t, "", rows[1][4])
	assert.Equal(t, "571.04", rows[1][6])
	assert.Equal(t, "479.86", rows[1][7])
	assert.Equal(t, "", rows[1][8])
	assert.Equal(t, "consulting, software", rows[1][11])
	assert.Equal(t, "inv-1", rows[1][12])
}

func TestService_ExportRecordsXLSX_ListError(t *testing.T) {
	svc := NewService(listerFunc(func(context.Context, *time.Time, *time.Time) ([]entity.CanonicalTransactionRecord, error) {
		return nil, errors.New("db down")
	}), nil)
	_, err := svc.ExportRecordsXLSX(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "db down")
}
