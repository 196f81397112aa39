package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeParty is a counterparty on a document. Absent sub-fields are nil.
type TradeParty struct {
	Name              *string `json:"name,omitempty"`
	Country           *string `json:"country,omitempty"`
	PostalCode        *string `json:"postalCode,omitempty"`
	State             *string `json:"state,omitempty"`
	City              *string `json:"city,omitempty"`
	Street            *string `json:"street,omitempty"`
	AdditionalAddress *string `json:"additionalAddress,omitempty"`
	TaxID             *string `json:"taxId,omitempty"`
	VATID             *string `json:"vatId,omitempty"`
	Description       *string `json:"description,omitempty"`
}

func (p *TradeParty) fields() []*string {
	return []*string{p.Name, p.Country, p.PostalCode, p.State, p.City, p.Street,
		p.AdditionalAddress, p.TaxID, p.VATID, p.Description}
}

// IsZero reports whether no field is set.
func (p *TradeParty) IsZero() bool {
	if p == nil {
		return true
	}
	for _, f := range p.fields() {
		if f != nil {
			return false
		}
	}
	return true
}

// Equal compares two parties field by field; nil and zero parties are equal.
func (p *TradeParty) Equal(o *TradeParty) bool {
	if p.IsZero() || o.IsZero() {
		return p.IsZero() && o.IsZero()
	}
	a, b := p.fields(), o.fields()
	for i := range a {
		if !equalStr(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ExtractedFieldSet is what one extractor managed to read. Absence is never
// encoded as zero or "".
type ExtractedFieldSet struct {
	GrossTotal     decimal.NullDecimal `json:"grossTotal"`
	NetTotal       decimal.NullDecimal `json:"netTotal"`
	TaxTotal       decimal.NullDecimal `json:"taxTotal"`
	Prepaid        decimal.NullDecimal `json:"prepaid"`
	Currency       *string             `json:"currency,omitempty"`
	DocumentID     *string             `json:"documentId,omitempty"`
	OrderReference *string             `json:"orderReference,omitempty"`
	IssueDate      *time.Time          `json:"issueDate,omitempty"`
	DueDate        *time.Time          `json:"dueDate,omitempty"`
	Sender         *TradeParty         `json:"sender,omitempty"`
	Recipient      *TradeParty         `json:"recipient,omitempty"`
}

// Money wraps a present amount.
func Money(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// StrPtr returns nil for blank strings.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalMoney(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}
