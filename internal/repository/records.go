package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/shopspring/decimal"
)

// timeLayout is fixed-width in UTC so stored dates compare as strings.
const timeLayout = "2006-01-02T15:04:05Z"

const recordsTable = "canonical_records"

var recordColumns = []string{
	"reference_id", "id", "document_type", "gross_total", "net_total", "tax_total", "prepaid",
	"currency", "tx_date", "due_date", "sender", "recipient", "document_id", "order_reference",
	"tags", "source", "status", "completed_at", "updated_at",
}

// RecordRepository stores canonical records keyed by reference ID.
type RecordRepository interface {
	Upsert(ctx context.Context, rec entity.CanonicalTransactionRecord) error
	Get(ctx context.Context, referenceID string) (entity.CanonicalTransactionRecord, error)
	// List returns records dated within [from, to], ordered by date. Nil
	// bounds are open; undated records only appear when both are nil.
	List(ctx context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error)
}

type recordRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	return &recordRepository{db: db, logger: logger, now: time.Now}
}

func (r *recordRepository) Upsert(ctx context.Context, rec entity.CanonicalTransactionRecord) error {
	sender, err := marshalParty(rec.Sender)
	if err != nil {
		return err
	}
	recipient, err := marshalParty(rec.Recipient)
	if err != nil {
		return err
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}

	q := squirrel.Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			rec.ReferenceID, rec.ID.String(), string(rec.DocumentType),
			rec.GrossTotal.String(), nullMoney(rec.NetTotal), nullMoney(rec.TaxTotal), nullMoney(rec.Prepaid),
			rec.Currency, formatTime(rec.Date), formatTime(rec.DueDate),
			sender, recipient, rec.DocumentID, rec.OrderReference,
			string(tagsJSON), string(rec.Source), string(rec.Status), formatTime(rec.CompletedAt),
			r.now().UTC().Format(timeLayout),
		).
		Suffix(upsertSuffix()).
		PlaceholderFormat(r.db.Placeholder)

	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("repository.records.upsert_failed", "reference_id", rec.ReferenceID, "error", err)
		return fmt.Errorf("%w: upsert %s: %w", common.ErrDatabase, rec.ReferenceID, err)
	}
	r.logger.Debug("repository.records.upserted", "reference_id", rec.ReferenceID, "status", rec.Status)
	return nil
}

func upsertSuffix() string {
	s := "ON CONFLICT (reference_id) DO UPDATE SET "
	for i, c := range recordColumns[1:] {
		if i > 0 {
			s += ", "
		}
		s += c + " = excluded." + c
	}
	return s
}

func (r *recordRepository) Get(ctx context.Context, referenceID string) (entity.CanonicalTransactionRecord, error) {
	query, args, err := squirrel.Select(recordColumns...).
		From(recordsTable).
		Where(squirrel.Eq{"reference_id": referenceID}).
		PlaceholderFormat(r.db.Placeholder).
		ToSql()
	if err != nil {
		return entity.CanonicalTransactionRecord{}, err
	}

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CanonicalTransactionRecord{}, fmt.Errorf("%w: record %s", common.ErrNotFound, referenceID)
	}
	if err != nil {
		r.logger.Error("repository.records.get_failed", "reference_id", referenceID, "error", err)
		return entity.CanonicalTransactionRecord{}, fmt.Errorf("%w: get %s: %w", common.ErrDatabase, referenceID, err)
	}
	return rec, nil
}

func (r *recordRepository) List(ctx context.Context, from, to *time.Time) ([]entity.CanonicalTransactionRecord, error) {
	q := squirrel.Select(recordColumns...).From(recordsTable)
	if from != nil {
		q = q.Where(squirrel.GtOrEq{"tx_date": from.UTC().Format(timeLayout)})
	}
	if to != nil {
		q = q.Where(squirrel.LtOrEq{"tx_date": to.UTC().Format(timeLayout)})
	}
	query, args, err := q.OrderBy("tx_date", "reference_id").PlaceholderFormat(r.db.Placeholder).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.records.list_failed", "error", err)
		return nil, fmt.Errorf("%w: list: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := []entity.CanonicalTransactionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", common.ErrDatabase, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (entity.CanonicalTransactionRecord, error) {
	var (
		rec                       entity.CanonicalTransactionRecord
		id, docType, gross, tags  string
		source, status, updatedAt string
		date, due, completed      sql.NullString
		sender, recipient         sql.NullString
	)
	err := row.Scan(
		&rec.ReferenceID, &id, &docType, &gross, &rec.NetTotal, &rec.TaxTotal, &rec.Prepaid,
		&rec.Currency, &date, &due, &sender, &recipient, &rec.DocumentID, &rec.OrderReference,
		&tags, &source, &status, &completed, &updatedAt,
	)
	if err != nil {
		return rec, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("id: %w", err)
	}
	if rec.GrossTotal, err = decimal.NewFromString(gross); err != nil {
		return rec, fmt.Errorf("gross_total: %w", err)
	}
	rec.DocumentType = constants.DocumentType(docType)
	rec.Source = constants.ExtractionSource(source)
	rec.Status = constants.AnalysisStatus(status)
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return rec, fmt.Errorf("tags: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.Sender, err = unmarshalParty(sender); err != nil {
		return rec, fmt.Errorf("sender: %w", err)
	}
	if rec.Recipient, err = unmarshalParty(recipient); err != nil {
		return rec, fmt.Errorf("recipient: %w", err)
	}
	if rec.Date, err = parseTime(date); err != nil {
		return rec, fmt.Errorf("tx_date: %w", err)
	}
	if rec.DueDate, err = parseTime(due); err != nil {
		return rec, fmt.Errorf("due_date: %w", err)
	}
	if rec.CompletedAt, err = parseTime(completed); err != nil {
		return rec, fmt.Errorf("completed_at: %w", err)
	}
	return rec, nil
}

func nullMoney(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func marshalParty(p *entity.TradeParty) (any, error) {
	if p == nil || p.IsZero() {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalParty(s sql.NullString) (*entity.TradeParty, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var p entity.TradeParty
	if err := json.Unmarshal([]byte(s.String), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
