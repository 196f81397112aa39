package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/shopspring/decimal"
)

// CanonicalTransactionRecord is the normalized outcome of one pipeline run.
type CanonicalTransactionRecord struct {
	ID             uuid.UUID                  `json:"id"`
	ReferenceID    string                     `json:"referenceId"`
	DocumentType   constants.DocumentType     `json:"documentType"`
	GrossTotal     decimal.Decimal            `json:"grossTotal"`
	NetTotal       decimal.NullDecimal        `json:"netTotal"`
	TaxTotal       decimal.NullDecimal        `json:"taxTotal"`
	Prepaid        decimal.NullDecimal        `json:"prepaid"`
	Currency       *string                    `json:"currency,omitempty"`
	Date           *time.Time                 `json:"date,omitempty"`
	DueDate        *time.Time                 `json:"dueDate,omitempty"`
	Sender         *TradeParty                `json:"sender,omitempty"`
	Recipient      *TradeParty                `json:"recipient,omitempty"`
	DocumentID     *string                    `json:"documentId,omitempty"`
	OrderReference *string                    `json:"orderReference,omitempty"`
	Tags           []string                   `json:"tags"`
	Source         constants.ExtractionSource `json:"source,omitempty"`
	Status         constants.AnalysisStatus   `json:"status"`
	CompletedAt    *time.Time                 `json:"completedAt,omitempty"`
}

// Equal compares two records ignoring ID and CompletedAt.
func (r CanonicalTransactionRecord) Equal(o CanonicalTransactionRecord) bool {
	return r.ReferenceID == o.ReferenceID &&
		r.DocumentType == o.DocumentType &&
		r.GrossTotal.Equal(o.GrossTotal) &&
		equalMoney(r.NetTotal, o.NetTotal) &&
		equalMoney(r.TaxTotal, o.TaxTotal) &&
		equalMoney(r.Prepaid, o.Prepaid) &&
		equalStr(r.Currency, o.Currency) &&
		equalTime(r.Date, o.Date) &&
		equalTime(r.DueDate, o.DueDate) &&
		r.Sender.Equal(o.Sender) &&
		r.Recipient.Equal(o.Recipient) &&
		equalStr(r.DocumentID, o.DocumentID) &&
		equalStr(r.OrderReference, o.OrderReference) &&
		slices.Equal(r.Tags, o.Tags) &&
		r.Source == o.Source &&
		r.Status == o.Status
}

// Clone returns a copy whose tag slice is not shared.
func (r CanonicalTransactionRecord) Clone() CanonicalTransactionRecord {
	c := r
	c.Tags = slices.Clone(r.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}
