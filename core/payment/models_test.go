package payment

import (
	"testing"
	"time"
)

func TestDiscountIsValid(t *testing.T) {
	now := time.Now().UTC()
	window := func(d Discount) Discount {
		d.ValidFrom = now.Add(-time.Hour)
		d.ValidUntil = now.Add(time.Hour)
		return d
	}
	tests := []struct {
		name string
		d    Discount
		want bool
	}{
		{name: "active in window", d: window(Discount{IsActive: true}), want: true},
		{name: "inactive", d: window(Discount{})},
		{name: "not started", d: Discount{IsActive: true, ValidFrom: now.Add(time.Hour), ValidUntil: now.Add(2 * time.Hour)}},
		{name: "ended", d: Discount{IsActive: true, ValidFrom: now.Add(-2 * time.Hour), ValidUntil: now.Add(-time.Hour)}},
		{name: "uses left", d: window(Discount{IsActive: true, MaxUses: 10, CurrentUses: 9}), want: true},
		{name: "exhausted", d: window(Discount{IsActive: true, MaxUses: 10, CurrentUses: 10})},
		{name: "zero max is unlimited", d: window(Discount{IsActive: true, CurrentUses: 1000}), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.IsValid(now); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiscountApply(t *testing.T) {
	tests := []struct {
		name   string
		d      Discount
		amount int64
		want   int64
	}{
		{name: "percentage", d: Discount{Type: DiscountPercentage, Value: 25}, amount: 10000, want: 2500},
		{name: "percentage rounds down", d: Discount{Type: DiscountPercentage, Value: 33}, amount: 999, want: 329},
		{name: "fixed amount", d: Discount{Type: DiscountFixedAmount, Value: 1500}, amount: 10000, want: 1500},
		{name: "fixed capped at amount", d: Discount{Type: DiscountFixedAmount, Value: 15000}, amount: 10000, want: 10000},
		{name: "free trial", d: Discount{Type: DiscountFreeTrial}, amount: 10000, want: 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Apply(tt.amount); got != tt.want {
				t.Errorf("Apply(%d) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestPaymentCalculateTotal(t *testing.T) {
	p := Payment{AmountCents: 10000, DiscountCents: 2500, TaxCents: 750}
	if got := p.CalculateTotal(); got != 8250 {
		t.Errorf("CalculateTotal() = %d, want 8250", got)
	}

	// never negative
	p = Payment{AmountCents: 1000, DiscountCents: 1000, TaxCents: 0}
	if got := p.CalculateTotal(); got != 0 {
		t.Errorf("CalculateTotal() = %d, want 0", got)
	}
}
