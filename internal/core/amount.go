// Package core holds the domain types shared by the cache, the
// reconciliation engine and the storage layer.
//
// Amounts arrive from three sources (server payloads, the local ledger,
// manual capture) and are not guaranteed to be numeric. An Amount keeps the
// original text next to the parsed value: non-numeric amounts remain opaque
// display values and are excluded from sums instead of being coerced to zero.
package core

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a decimal monetary value that tolerates non-numeric input.
type Amount struct {
	raw     string
	value   decimal.Decimal
	numeric bool
}

// ParseAmount keeps the input verbatim and records whether it parsed.
func ParseAmount(s string) Amount {
	trimmed := strings.TrimSpace(s)
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{raw: s}
	}
	return Amount{raw: s, value: d, numeric: true}
}

// AmountFromDecimal wraps an exact decimal value.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{raw: d.String(), value: d, numeric: true}
}

// Numeric reports whether the amount participates in sums.
func (a Amount) Numeric() bool { return a.numeric }

// Decimal returns the parsed value; ok is false for opaque amounts.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	return a.value, a.numeric
}

// Add returns a + b. Non-numeric operands contribute zero; the result keeps
// the sum of whatever was numeric so one bad record cannot corrupt a total.
func (a Amount) Add(b Amount) Amount {
	switch {
	case a.numeric && b.numeric:
		return AmountFromDecimal(a.value.Add(b.value))
	case a.numeric:
		return a
	case b.numeric:
		return b
	default:
		return AmountFromDecimal(decimal.Zero)
	}
}

// String returns the display value: the exact parsed decimal for numeric
// amounts, the original text verbatim otherwise.
func (a Amount) String() string {
	if a.numeric {
		return a.value.String()
	}
	return a.raw
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON number or a string. Anything else is
// kept as an opaque value rather than rejected, matching the tolerance the
// rest of the pipeline has for malformed per-operation amounts.
func (a *Amount) UnmarshalJSON(data []byte) error {
	// json.Unmarshal treats null as a no-op on *string; keep the literal
	// token so the amount stays an opaque "null" instead of "".
	if string(data) == "null" {
		*a = ParseAmount("null")
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ParseAmount(s)
		return nil
	}
	// Raw JSON number (or anything unquoted): parse the token text itself.
	*a = ParseAmount(string(data))
	return nil
}

// SumOperationAmounts adds the numeric amounts of ops, skipping opaque ones.
func SumOperationAmounts(ops []Operation) decimal.Decimal {
	total := decimal.Zero
	for _, op := range ops {
		if d, ok := op.Amount.Decimal(); ok {
			total = total.Add(d)
		}
	}
	return total
}

// SumPendingAmounts adds the numeric amounts of pending payments.
func SumPendingAmounts(pending []PendingPayment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pending {
		if d, ok := p.Amount.Decimal(); ok {
			total = total.Add(d)
		}
	}
	return total
}
