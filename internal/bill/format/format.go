package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

const (
	dueDateLayout = "02/01/2006"
	periodLayout  = "January 2006"
)

// BillNumber renders the display number for a bill id.
func BillNumber(id snowflake.ID) string {
	return fmt.Sprintf("BILL-%06d", id.Int64())
}

func Reference(id snowflake.ID) string {
	return fmt.Sprintf("REF-%d", id.Int64())
}

// Period prefers the bill description and falls back to the billing month.
func Period(description *string, billDate time.Time) string {
	if description != nil && strings.TrimSpace(*description) != "" {
		return strings.TrimSpace(*description)
	}
	return "Period " + billDate.Format(periodLayout)
}

func DueDate(due time.Time) string {
	return due.Format(dueDateLayout)
}

// Rupiah formats an amount with comma thousand separators, e.g. "Rp 100,000".
// Fractional amounts keep two decimals.
func Rupiah(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	whole := amount.Truncate(0)
	digits := whole.String()

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "Rp " + sign + b.String()
	if frac := amount.Sub(whole); !frac.IsZero() {
		out += strings.TrimPrefix(frac.StringFixed(2), "0")
	}
	return out
}
