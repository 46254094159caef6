// README: Calculator tests (fee deduction, rounding, percentage).
package refund

import (
	"testing"

	"github.com/shopspring/decimal"

	"angierens/internal/modules/order"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		name      string
		paid      string
		method    order.PaymentMethod
		wantFee   string
		wantTotal string
	}{
		{"gcash full", "1000", order.MethodGCash, "20", "980"},
		{"gcash half", "730.25", order.MethodGCashHalf, "14.61", "715.64"},
		{"cash refunds in full", "500", order.MethodCash, "0", "500"},
		{"fee rounds half up", "12.34", order.MethodGCash, "0.25", "12.09"},
		{"tiny fee rounds down", "0.10", order.MethodGCash, "0", "0.10"},
		{"zero paid", "0", order.MethodGCash, "0", "0"},
		{"negative paid clamps", "-50", order.MethodGCash, "0", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			paid, _ := decimal.NewFromString(tc.paid)
			bd := Calculate(paid, tc.method)
			if !bd.Fee.Equal(mustDecimal(t, tc.wantFee)) {
				t.Errorf("fee = %s, want %s", bd.Fee, tc.wantFee)
			}
			if !bd.Total.Equal(mustDecimal(t, tc.wantTotal)) {
				t.Errorf("total = %s, want %s", bd.Total, tc.wantTotal)
			}
		})
	}
}

func TestCalculateNeverExceedsPaid(t *testing.T) {
	for _, paid := range []string{"0.01", "1", "49.99", "1460.50", "99999.99"} {
		p := mustDecimal(t, paid)
		bd := Calculate(p, order.MethodGCash)
		if bd.Total.GreaterThan(p) {
			t.Errorf("paid %s: total %s exceeds paid", paid, bd.Total)
		}
		if !bd.Fee.Add(bd.Total).Equal(p.Round(2)) {
			t.Errorf("paid %s: fee %s + total %s != paid", paid, bd.Fee, bd.Total)
		}
	}
}

func TestPercentPaid(t *testing.T) {
	cases := []struct {
		paid, food, fee string
		want            int
	}{
		{"1460.50", "1410.50", "50", 100},
		{"730.25", "1410.50", "50", 50},
		{"0", "1410.50", "50", 0},
		{"500", "0", "0", 0},
		{"333", "950", "50", 33},
		{"335", "950", "50", 34},
	}
	for _, tc := range cases {
		got := PercentPaid(mustDecimal(t, tc.paid), mustDecimal(t, tc.food), mustDecimal(t, tc.fee))
		if got != tc.want {
			t.Errorf("PercentPaid(%s, %s, %s) = %d, want %d", tc.paid, tc.food, tc.fee, got, tc.want)
		}
	}
}

func TestMaskDestination(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+639171234567", "+639XXXXXXX67"},
		{"09171234567", "0917XXXXX67"},
		{"1234", "XXXX"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := MaskDestination(tc.in); got != tc.want {
			t.Errorf("MaskDestination(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
