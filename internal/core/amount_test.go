package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		numeric bool
		display string
	}{
		{name: "plain integer", input: "1000", numeric: true, display: "1000"},
		{name: "two decimals", input: "250.50", numeric: true, display: "250.5"},
		{name: "negative", input: "-12.30", numeric: true, display: "-12.3"},
		{name: "surrounding spaces", input: "  42.00 ", numeric: true, display: "42"},
		{name: "non numeric stays verbatim", input: "N/A", numeric: false, display: "N/A"},
		{name: "empty", input: "", numeric: false, display: ""},
		{name: "garbage with digits", input: "12abc", numeric: false, display: "12abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ParseAmount(tt.input)
			if a.Numeric() != tt.numeric {
				t.Errorf("Numeric() = %v, want %v", a.Numeric(), tt.numeric)
			}
			if a.String() != tt.display {
				t.Errorf("String() = %q, want %q", a.String(), tt.display)
			}
		})
	}
}

func TestAmountAddSkipsOpaqueValues(t *testing.T) {
	total := ParseAmount("1000").Add(ParseAmount("sin dato")).Add(ParseAmount("250.50"))

	d, ok := total.Decimal()
	if !ok {
		t.Fatal("sum of amounts should be numeric")
	}
	if want := decimal.RequireFromString("1250.50"); !d.Equal(want) {
		t.Errorf("sum = %s, want %s", d, want)
	}
}

func TestAmountUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		numeric bool
		display string
	}{
		{name: "json number", payload: `{"monto": 1250.5}`, numeric: true, display: "1250.5"},
		{name: "quoted number", payload: `{"monto": "980.00"}`, numeric: true, display: "980"},
		{name: "opaque string", payload: `{"monto": "pendiente"}`, numeric: false, display: "pendiente"},
		{name: "null", payload: `{"monto": null}`, numeric: false, display: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc struct {
				Amount Amount `json:"monto"`
			}
			if err := json.Unmarshal([]byte(tt.payload), &doc); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if doc.Amount.Numeric() != tt.numeric {
				t.Errorf("Numeric() = %v, want %v", doc.Amount.Numeric(), tt.numeric)
			}
			if doc.Amount.String() != tt.display {
				t.Errorf("String() = %q, want %q", doc.Amount.String(), tt.display)
			}
		})
	}
}

func TestSumOperationAmountsExcludesNonNumeric(t *testing.T) {
	ops := []Operation{
		{Amount: ParseAmount("100.25")},
		{Amount: ParseAmount("no disponible")},
		{Amount: ParseAmount("899.75")},
	}

	got := SumOperationAmounts(ops)
	if want := decimal.RequireFromString("1000"); !got.Equal(want) {
		t.Errorf("SumOperationAmounts = %s, want %s", got, want)
	}
}
