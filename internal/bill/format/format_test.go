package format

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBillNumber(t *testing.T) {
	assert.Equal(t, "BILL-000042", BillNumber(snowflake.ID(42)))
	assert.Equal(t, "BILL-1234567", BillNumber(snowflake.ID(1234567)))
	assert.Equal(t, "REF-42", Reference(snowflake.ID(42)))
}

func TestRupiah(t *testing.T) {
	cases := map[string]string{
		"0":          "Rp 0",
		"999":        "Rp 999",
		"100000":     "Rp 100,000",
		"1234567":    "Rp 1,234,567",
		"250000.5":   "Rp 250,000.50",
		"-15000":     "Rp -15,000",
		"1000000.25": "Rp 1,000,000.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, Rupiah(decimal.RequireFromString(in)), in)
	}
}

func TestPeriodAndDueDate(t *testing.T) {
	billDate := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Period March 2024", Period(nil, billDate))

	desc := "  Internet Maret  "
	assert.Equal(t, "Internet Maret", Period(&desc, billDate))

	blank := " "
	assert.Equal(t, "Period March 2024", Period(&blank, billDate))

	assert.Equal(t, "05/04/2024", DueDate(time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)))
}
