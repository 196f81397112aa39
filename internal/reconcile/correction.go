package reconcile

import (
	"github.com/shopspring/decimal"
)

// ReceiptTotalCorrection compensates for recognition services that label a
// receipt's net figure as its total. When the subtotal is present and at least
// the nominal total, the subtotal becomes gross, the nominal total becomes net
// and tax is their difference. Otherwise the service's figures are kept.
//
// The rule was calibrated on one vendor's output; keep it switchable.
type ReceiptTotalCorrection struct {
	Enabled bool
}

// Totals is the money triple a correction produces.
type Totals struct {
	Gross decimal.NullDecimal
	Net   decimal.NullDecimal
	Tax   decimal.NullDecimal
}

// Apply corrects the nominal total/subtotal/tax reported for a receipt.
func (c ReceiptTotalCorrection) Apply(total, subtotal, tax decimal.NullDecimal) (Totals, bool) {
	asIs := Totals{Gross: total, Net: subtotal, Tax: tax}
	if !c.Enabled || !total.Valid || !subtotal.Valid {
		return asIs, false
	}
	if subtotal.Decimal.LessThan(total.Decimal) {
		return asIs, false
	}
	diff := subtotal.Decimal.Sub(total.Decimal)
	return Totals{
		Gross: subtotal,
		Net:   total,
		Tax:   decimal.NullDecimal{Decimal: diff, Valid: true},
	}, true
}
