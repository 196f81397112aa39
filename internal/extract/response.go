package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/joseph-ayodele/doc-ingest/internal/schema"
	"github.com/shopspring/decimal"
)

// scanResponse is the answer of the recognition and structured scan
// services. Money values arrive as decimal strings after sanitizing.
type scanResponse struct {
	DocumentID     string     `json:"documentId"`
	OrderReference string     `json:"orderReference"`
	Total          string     `json:"total"`
	Subtotal       string     `json:"subtotal"`
	Tax            string     `json:"tax"`
	Prepaid        string     `json:"prepaid"`
	Currency       string     `json:"currency"`
	Date           string     `json:"date"`
	Time           string     `json:"time"`
	DueDate        string     `json:"dueDate"`
	Merchant       *wireParty `json:"merchant"`
	Customer       *wireParty `json:"customer"`
}

type wireParty struct {
	Name              string `json:"name"`
	Country           string `json:"country"`
	PostalCode        string `json:"postalCode"`
	State             string `json:"state"`
	City              string `json:"city"`
	Street            string `json:"street"`
	AdditionalAddress string `json:"additionalAddress"`
	TaxID             string `json:"taxId"`
	VATID             string `json:"vatId"`
	Description       string `json:"description"`
}

var moneyKeys = []string{"total", "subtotal", "tax", "prepaid"}

var partyKeys = []string{"name", "country", "postalCode", "state", "city", "street",
	"additionalAddress", "taxId", "vatId", "description"}

func partySchema() map[string]any {
	props := make(map[string]any, len(partyKeys))
	for _, k := range partyKeys {
		props[k] = schema.StringProp()
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"name"},
	}
}

// ScanResponseSchema is the JSON Schema every scan answer must satisfy.
func ScanResponseSchema() map[string]any {
	props := map[string]any{
		"documentId":     schema.StringProp(),
		"orderReference": schema.StringProp(),
		"currency":       map[string]any{"type": "string", "pattern": `^[A-Z]{3}$`},
		"date":           map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
		"time":           map[string]any{"type": "string", "pattern": `^\d{2}:\d{2}(:\d{2})?$`},
		"dueDate":        map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
		"merchant":       partySchema(),
		"customer":       partySchema(),
		"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	}
	for _, k := range moneyKeys {
		props[k] = schema.MoneyProp()
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

var scanSchema = schema.MustCompile("scan_response.json", ScanResponseSchema())

// decodeScanResponse validates raw strictly, then retries once after a
// lenient sanitize of optional fields.
func decodeScanResponse(raw []byte) (scanResponse, []string, error) {
	var dropped []string
	if err := schema.Validate(scanSchema, raw); err != nil {
		cleaned, d, sErr := sanitizeScanResponse(raw)
		if sErr != nil {
			return scanResponse{}, nil, sErr
		}
		if vErr := schema.Validate(scanSchema, cleaned); vErr != nil {
			return scanResponse{}, d, vErr
		}
		raw, dropped = cleaned, d
	}
	var out scanResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return scanResponse{}, dropped, err
	}
	return out, dropped, nil
}

func (r scanResponse) fieldSet() entity.ExtractedFieldSet {
	return entity.ExtractedFieldSet{
		GrossTotal:     parseMoney(r.Total),
		NetTotal:       parseMoney(r.Subtotal),
		TaxTotal:       parseMoney(r.Tax),
		Prepaid:        parseMoney(r.Prepaid),
		Currency:       entity.StrPtr(r.Currency),
		DocumentID:     entity.StrPtr(r.DocumentID),
		OrderReference: entity.StrPtr(r.OrderReference),
		IssueDate:      parseDateTime(r.Date, r.Time),
		DueDate:        parseDateTime(r.DueDate, ""),
		Sender:         r.Merchant.toParty(),
		Recipient:      r.Customer.toParty(),
	}
}

func (p *wireParty) toParty() *entity.TradeParty {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil
	}
	return &entity.TradeParty{
		Name:              entity.StrPtr(p.Name),
		Country:           entity.StrPtr(p.Country),
		PostalCode:        entity.StrPtr(p.PostalCode),
		State:             entity.StrPtr(p.State),
		City:              entity.StrPtr(p.City),
		Street:            entity.StrPtr(p.Street),
		AdditionalAddress: entity.StrPtr(p.AdditionalAddress),
		TaxID:             entity.StrPtr(p.TaxID),
		VATID:             entity.StrPtr(p.VATID),
		Description:       entity.StrPtr(p.Description),
	}
}

func parseMoney(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return entity.Money(d)
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseDateTime accepts a full timestamp, or a date plus an optional separate
// clock time. A date with no time is midnight UTC.
func parseDateTime(date, clock string) *time.Time {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, date, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if c, err := time.Parse(layout, strings.TrimSpace(clock)); err == nil {
			t := day.Add(time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute + time.Duration(c.Second())*time.Second)
			return &t
		}
	}
	return &day
}
