package reconcile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/entity"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the rounding slack allowed in gross = net + tax.
var DefaultTolerance = decimal.New(1, -2)

// Reconciler turns one extractor's field set into a canonical record. It never
// merges field sets from different sources.
type Reconciler struct {
	Tolerance decimal.Decimal
}

func New() *Reconciler {
	return &Reconciler{Tolerance: DefaultTolerance}
}

// Reconcile requires a gross total and enforces gross = net + tax within the
// tolerance. An implausible tax is dropped; an inconsistent net is re-derived
// from gross and tax. All other fields are copied through.
func (r *Reconciler) Reconcile(fs entity.ExtractedFieldSet, source constants.ExtractionSource) (entity.CanonicalTransactionRecord, error) {
	if !fs.GrossTotal.Valid {
		return entity.CanonicalTransactionRecord{}, common.NewAppError(common.CodeReconciliation,
			fmt.Sprintf("no gross total from %s extraction", strings.ToLower(string(source))),
			common.ErrReconciliation)
	}

	gross := fs.GrossTotal.Decimal
	net, tax := fs.NetTotal, fs.TaxTotal

	if tax.Valid && !gross.IsNegative() && (tax.Decimal.IsNegative() || tax.Decimal.GreaterThan(gross)) {
		tax = decimal.NullDecimal{}
	}
	if net.Valid && tax.Valid && !r.consistent(gross, net.Decimal, tax.Decimal) {
		net = entity.Money(gross.Sub(tax.Decimal))
	}

	rec := entity.CanonicalTransactionRecord{
		ID:             uuid.New(),
		GrossTotal:     gross,
		NetTotal:       net,
		TaxTotal:       tax,
		Prepaid:        fs.Prepaid,
		Currency:       fs.Currency,
		Date:           fs.IssueDate,
		DueDate:        fs.DueDate,
		Sender:         nonZero(fs.Sender),
		Recipient:      nonZero(fs.Recipient),
		DocumentID:     fs.DocumentID,
		OrderReference: fs.OrderReference,
		Tags:           []string{},
		Source:         source,
		Status:         constants.StatusPending,
	}
	return rec, nil
}

func (r *Reconciler) consistent(gross, net, tax decimal.Decimal) bool {
	tol := r.Tolerance
	if tol.IsZero() {
		tol = DefaultTolerance
	}
	return gross.Sub(net.Add(tax)).Abs().LessThanOrEqual(tol)
}

func nonZero(p *entity.TradeParty) *entity.TradeParty {
	if p.IsZero() {
		return nil
	}
	return p
}
