package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// RecordLister is the part of the record store the export reads from.
type RecordLister interface {
	List(ctx context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error)
}

// Service produces XLSX bytes for stored canonical records.
type Service struct {
	records RecordLister
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(records RecordLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger, now: time.Now}
}

const sheet = "Records"

var headers = []string{
	"Date",
	"Type",
	"Document ID",
	"Sender",
	"Recipient",
	"Currency",
	"Gross",
	"Net",
	"Tax",
	"Source",
	"Status",
	"Tags",
	"Reference",
}

// ExportRecordsXLSX returns an XLSX workbook (as bytes) for the date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all records, undated ones included.
func (s *Service) ExportRecordsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := truncateDay(*from)
		fromDate = &f
	}
	if to != nil {
		t := truncateDay(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := truncateDay(s.now())
		toDate = &t
	}
	if toDate != nil {
		// inclusive: the whole last day
		end := toDate.Add(24*time.Hour - time.Second)
		toDate = &end
	}

	recs, err := s.records.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		money := func(col int, d decimal.NullDecimal) {
			if !d.Valid {
				return
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellFloat(sheet, cell, d.Decimal.InexactFloat64(), 2, 64)
		}

		if r.Date != nil {
			write(1, r.Date.Format("2006-01-02"))
		}
		write(2, string(r.DocumentType))
		write(3, deref(r.DocumentID))
		write(4, partyName(r.Sender))
		write(5, partyName(r.Recipient))
		write(6, deref(r.Currency))
		money(7, decimal.NewNullDecimal(r.GrossTotal))
		money(8, r.NetTotal)
		money(9, r.TaxTotal)
		write(10, string(r.Source))
		write(11, string(r.Status))
		write(12, strings.Join(r.Tags, ", "))
		write(13, r.ReferenceID)
	}

	_ = f.SetColWidth(sheet, "A", "B", 12)
	_ = f.SetColWidth(sheet, "C", "C", 20)
	_ = f.SetColWidth(sheet, "D", "E", 32)
	_ = f.SetColWidth(sheet, "F", "F", 9)
	_ = f.SetColWidth(sheet, "G", "I", 14)
	_ = f.SetColWidth(sheet, "J", "K", 12)
	_ = f.SetColWidth(sheet, "L", "L", 40)
	_ = f.SetColWidth(sheet, "M", "M", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func partyName(p *entity.TradeParty) string {
	if p == nil {
		return ""
	}
	return deref(p.Name)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
