package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/shopspring/decimal"
)

// Root element local names. CrossIndustryInvoice is used by Factur-X,
// ZUGFeRD 2 and XRechnung CII; ZUGFeRD 1.0 uses CrossIndustryDocument.
const (
	ciiRootTag      = "CrossIndustryInvoice"
	zugferd1RootTag = "CrossIndustryDocument"
)

// ciiDocument is the version independent view parseCII works on.
type ciiDocument struct {
	ID        string
	Issue     ciiDate
	Seller    ciiParty
	Buyer     ciiParty
	OrderRef  string
	Currency  string
	Taxes     []ciiTax
	Terms     []ciiTerms
	Summation ciiSummation
}

// Tags carry no namespace so elements match by local name whatever prefix
// the producer chose.
type ciiInvoice struct {
	Document struct {
		ID    string  `xml:"ID"`
		Issue ciiDate `xml:"IssueDateTime>DateTimeString"`
	} `xml:"ExchangedDocument"`
	Transaction struct {
		Agreement struct {
			Seller   ciiParty `xml:"SellerTradeParty"`
			Buyer    ciiParty `xml:"BuyerTradeParty"`
			OrderRef string   `xml:"BuyerOrderReferencedDocument>IssuerAssignedID"`
		} `xml:"ApplicableHeaderTradeAgreement"`
		Settlement struct {
			Currency  string       `xml:"InvoiceCurrencyCode"`
			Taxes     []ciiTax     `xml:"ApplicableTradeTax"`
			Terms     []ciiTerms   `xml:"SpecifiedTradePaymentTerms"`
			Summation ciiSummation `xml:"SpecifiedTradeSettlementHeaderMonetarySummation"`
		} `xml:"ApplicableHeaderTradeSettlement"`
	} `xml:"SupplyChainTradeTransaction"`
}

func (inv *ciiInvoice) document() ciiDocument {
	t := inv.Transaction
	return ciiDocument{
		ID:        inv.Document.ID,
		Issue:     inv.Document.Issue,
		Seller:    t.Agreement.Seller,
		Buyer:     t.Agreement.Buyer,
		OrderRef:  t.Agreement.OrderRef,
		Currency:  t.Settlement.Currency,
		Taxes:     t.Settlement.Taxes,
		Terms:     t.Settlement.Terms,
		Summation: t.Settlement.Summation,
	}
}

// zugferd1Document is the ZUGFeRD 1.0 layout of the same data.
type zugferd1Document struct {
	Header struct {
		ID    string  `xml:"ID"`
		Issue ciiDate `xml:"IssueDateTime>DateTimeString"`
	} `xml:"HeaderExchangedDocument"`
	Transaction struct {
		Agreement struct {
			Seller   ciiParty `xml:"SellerTradeParty"`
			Buyer    ciiParty `xml:"BuyerTradeParty"`
			OrderRef string   `xml:"BuyerOrderReferencedDocument>ID"`
		} `xml:"ApplicableSupplyChainTradeAgreement"`
		Settlement struct {
			Currency  string       `xml:"InvoiceCurrencyCode"`
			Taxes     []ciiTax     `xml:"ApplicableTradeTax"`
			Terms     []ciiTerms   `xml:"SpecifiedTradePaymentTerms"`
			Summation ciiSummation `xml:"SpecifiedTradeSettlementMonetarySummation"`
		} `xml:"ApplicableSupplyChainTradeSettlement"`
	} `xml:"SpecifiedSupplyChainTradeTransaction"`
}

func (d *zugferd1Document) document() ciiDocument {
	t := d.Transaction
	return ciiDocument{
		ID:        d.Header.ID,
		Issue:     d.Header.Issue,
		Seller:    t.Agreement.Seller,
		Buyer:     t.Agreement.Buyer,
		OrderRef:  t.Agreement.OrderRef,
		Currency:  t.Settlement.Currency,
		Taxes:     t.Settlement.Taxes,
		Terms:     t.Settlement.Terms,
		Summation: t.Settlement.Summation,
	}
}

type ciiTax struct {
	Calculated string `xml:"CalculatedAmount"`
	Basis      string `xml:"BasisAmount"`
}

type ciiTerms struct {
	Due ciiDate `xml:"DueDateDateTime>DateTimeString"`
}

type ciiSummation struct {
	TaxBasis []string `xml:"TaxBasisTotalAmount"`
	TaxTotal []string `xml:"TaxTotalAmount"`
	Grand    []string `xml:"GrandTotalAmount"`
	Prepaid  []string `xml:"TotalPrepaidAmount"`
}

type ciiDate struct {
	Format string `xml:"format,attr"`
	Value  string `xml:",chardata"`
}

type ciiParty struct {
	Name        string `xml:"Name"`
	Description string `xml:"Description"`
	Address     struct {
		Postcode    string `xml:"PostcodeCode"`
		LineOne     string `xml:"LineOne"`
		LineTwo     string `xml:"LineTwo"`
		LineThree   string `xml:"LineThree"`
		City        string `xml:"CityName"`
		Country     string `xml:"CountryID"`
		SubDivision string `xml:"CountrySubDivisionName"`
	} `xml:"PostalTradeAddress"`
	TaxRegistrations []struct {
		ID struct {
			Scheme string `xml:"schemeID,attr"`
			Value  string `xml:",chardata"`
		} `xml:"ID"`
	} `xml:"SpecifiedTaxRegistration"`
}

// parseCII decodes a CII document into fields. Missing root, document id or
// grand total make the payload unusable.
func parseCII(data []byte, tolerance decimal.Decimal) (entity.ExtractedFieldSet, error) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(label) {
		case "utf-8", "utf8", "us-ascii":
			return input, nil
		}
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	inv, err := decodeCIIRoot(dec)
	if err != nil {
		return entity.ExtractedFieldSet{}, err
	}

	docID := strings.TrimSpace(inv.ID)
	if docID == "" {
		return entity.ExtractedFieldSet{}, fmt.Errorf("cii: missing document id")
	}
	sum := inv.Summation
	gross, ok := firstAmount(sum.Grand)
	if !ok {
		return entity.ExtractedFieldSet{}, fmt.Errorf("cii: missing grand total")
	}

	fs := entity.ExtractedFieldSet{
		GrossTotal:     entity.Money(gross),
		DocumentID:     entity.StrPtr(docID),
		Currency:       entity.StrPtr(strings.ToUpper(strings.TrimSpace(inv.Currency))),
		OrderReference: entity.StrPtr(strings.TrimSpace(inv.OrderRef)),
		IssueDate:      inv.Issue.time(),
		Sender:         inv.Seller.toParty(),
		Recipient:      inv.Buyer.toParty(),
	}
	if p, ok := firstAmount(sum.Prepaid); ok {
		fs.Prepaid = entity.Money(p)
	}
	for _, term := range inv.Terms {
		if d := term.Due.time(); d != nil {
			fs.DueDate = d
			break
		}
	}

	net, tax := inv.netAndTax()
	if net.Valid && tax.Valid && gross.Sub(net.Decimal.Add(tax.Decimal)).Abs().GreaterThan(tolerance) {
		net = entity.Money(decimal.Zero)
		tax = entity.Money(decimal.Zero)
	}
	fs.NetTotal, fs.TaxTotal = net, tax
	return fs, nil
}

// decodeCIIRoot decodes whichever supported root element comes first.
func decodeCIIRoot(dec *xml.Decoder) (ciiDocument, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return ciiDocument{}, fmt.Errorf("decode cii: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case ciiRootTag:
			var inv ciiInvoice
			if err := dec.DecodeElement(&inv, &start); err != nil {
				return ciiDocument{}, fmt.Errorf("decode cii: %w", err)
			}
			return inv.document(), nil
		case zugferd1RootTag:
			var d zugferd1Document
			if err := dec.DecodeElement(&d, &start); err != nil {
				return ciiDocument{}, fmt.Errorf("decode zugferd 1.0: %w", err)
			}
			return d.document(), nil
		default:
			return ciiDocument{}, fmt.Errorf("cii: unsupported root element %q", start.Name.Local)
		}
	}
}

// netAndTax prefers the header summation and falls back to summing the
// per-rate tax breakdown.
func (inv *ciiDocument) netAndTax() (net, tax decimal.NullDecimal) {
	sum := inv.Summation
	if v, ok := firstAmount(sum.TaxBasis); ok {
		net = entity.Money(v)
	}
	if v, ok := firstAmount(sum.TaxTotal); ok {
		tax = entity.Money(v)
	}
	if net.Valid && tax.Valid {
		return net, tax
	}

	var basis, calculated decimal.Decimal
	var haveBasis, haveCalc bool
	for _, t := range inv.Taxes {
		if v, err := decimal.NewFromString(strings.TrimSpace(t.Basis)); err == nil {
			basis, haveBasis = basis.Add(v), true
		}
		if v, err := decimal.NewFromString(strings.TrimSpace(t.Calculated)); err == nil {
			calculated, haveCalc = calculated.Add(v), true
		}
	}
	if !net.Valid && haveBasis {
		net = entity.Money(basis)
	}
	if !tax.Valid && haveCalc {
		tax = entity.Money(calculated)
	}
	return net, tax
}

func (p ciiParty) toParty() *entity.TradeParty {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil
	}
	street := strings.TrimSpace(p.Address.LineOne)
	additional := strings.TrimSpace(strings.Join(nonBlank(p.Address.LineTwo, p.Address.LineThree), ", "))
	party := &entity.TradeParty{
		Name:              entity.StrPtr(name),
		Country:           entity.StrPtr(strings.TrimSpace(p.Address.Country)),
		PostalCode:        entity.StrPtr(strings.TrimSpace(p.Address.Postcode)),
		State:             entity.StrPtr(strings.TrimSpace(p.Address.SubDivision)),
		City:              entity.StrPtr(strings.TrimSpace(p.Address.City)),
		Street:            entity.StrPtr(street),
		AdditionalAddress: entity.StrPtr(additional),
		Description:       entity.StrPtr(strings.TrimSpace(p.Description)),
	}
	for _, reg := range p.TaxRegistrations {
		v := strings.TrimSpace(reg.ID.Value)
		switch strings.ToUpper(strings.TrimSpace(reg.ID.Scheme)) {
		case "FC":
			party.TaxID = entity.StrPtr(v)
		case "VA":
			party.VATID = entity.StrPtr(v)
		}
	}
	return party
}

// time decodes UN/CEFACT date qualifiers 102 (CCYYMMDD), 203 (CCYYMMDDHHMM)
// and plain ISO dates. Dates without a time are midnight UTC.
func (d ciiDate) time() *time.Time {
	v := strings.TrimSpace(d.Value)
	if v == "" {
		return nil
	}
	layouts := []string{"20060102", "2006-01-02"}
	if d.Format == "203" {
		layouts = []string{"200601021504"}
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

func firstAmount(values []string) (decimal.Decimal, bool) {
	for _, v := range values {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
