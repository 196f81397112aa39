package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScanResponse_Lenient(t *testing.T) {
	raw := []byte(`{
		"grossTotal": 12.5,
		"subtotal": "n/a",
		"tax": "2,10",
		"currency": "euro",
		"date": "yesterday",
		"time": "noon",
		"confidence": 3,
		"vendor": {"name": "  Kiosk  ", "city": "", "fax": "123"},
		"customer": {"city": "Bonn"},
		"lineItems": []
	}`)

	resp, dropped, err := decodeScanResponse(raw)
	require.NoError(t, err)

	assert.Equal(t, "12.5", resp.Total)
	assert.Empty(t, resp.Subtotal)
	assert.Equal(t, "2.10", resp.Tax)
	assert.Empty(t, resp.Currency)
	assert.Empty(t, resp.Date)
	assert.Empty(t, resp.Time)
	require.NotNil(t, resp.Merchant)
	assert.Equal(t, "Kiosk", resp.Merchant.Name)
	assert.Empty(t, resp.Merchant.City)
	assert.Nil(t, resp.Customer)

	assert.Contains(t, dropped, "grossTotal->total")
	assert.Contains(t, dropped, "subtotal(invalid)")
	assert.Contains(t, dropped, "lineItems(unknown)")
	assert.Contains(t, dropped, "customer(no name)")
	assert.Contains(t, dropped, "merchant.fax(unknown)")
}

func TestDecodeScanResponse_StrictPassesUntouched(t *testing.T) {
	resp, dropped, err := decodeScanResponse([]byte(`{"total":"9.99","currency":"USD"}`))
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.Equal(t, "9.99", resp.Total)

	fs := resp.fieldSet()
	assert.True(t, fs.GrossTotal.Valid)
	assert.False(t, fs.NetTotal.Valid)
	assert.Nil(t, fs.IssueDate)
	assert.Nil(t, fs.Sender)
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		date, clock string
		want        string
	}{
		{date: "2024-03-01", want: "2024-03-01T00:00:00Z"},
		{date: "2024-03-01", clock: "09:15", want: "2024-03-01T09:15:00Z"},
		{date: "2024-03-01T09:15:00+02:00", want: "2024-03-01T07:15:00Z"},
		{date: "2024-03-01 18:00", want: "2024-03-01T18:00:00Z"},
		{date: "", want: ""},
		{date: "2024-13-01", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.date+"/"+tt.clock, func(t *testing.T) {
			got := parseDateTime(tt.date, tt.clock)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02T15:04:05Z07:00"))
		})
	}
}
