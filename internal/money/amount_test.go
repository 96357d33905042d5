package money

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr error
	}{
		{"1499.50", 149950, nil},
		{"10", 1000, nil},
		{"0.01", 1, nil},
		{"0", 0, nil},
		{"10.005", 0, ErrPrecision},
		{"-1", 0, ErrNegative},
	}
	for _, tt := range tests {
		got, err := FromDecimal(decimal.RequireFromString(tt.in))
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("FromDecimal(%s) err = %v, want %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("FromDecimal(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAmountJSON(t *testing.T) {
	var v struct {
		Total Amount `json:"total"`
	}
	if err := json.Unmarshal([]byte(`{"total": 25.5}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Total != 2550 {
		t.Fatalf("expected 2550, got %d", v.Total)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"total":25.50}` {
		t.Fatalf("unexpected json %s", out)
	}

	if err := json.Unmarshal([]byte(`{"total": 1.234}`), &v); err == nil {
		t.Fatalf("expected precision error")
	}
}

func TestMul(t *testing.T) {
	if got := Amount(1999).Mul(3); got != 5997 {
		t.Fatalf("expected 5997, got %d", got)
	}
}
