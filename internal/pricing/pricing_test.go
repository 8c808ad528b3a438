package pricing

import "testing"

func TestComputeAppliesDiscountBeforeTax(t *testing.T) {
	got := Compute(1000, 10, 16, 2000)

	want := Totals{
		Subtotal:       1000,
		DiscountAmount: 100,
		TaxAmount:      144,
		TotalAmount:    1044,
		ChangeAmount:   956,
	}
	if got != want {
		t.Fatalf("Compute = %+v, want %+v", got, want)
	}
}

func TestComputeWithoutDiscount(t *testing.T) {
	got := Compute(1000, 0, 16, 1160)
	if got.TaxAmount != 160 || got.TotalAmount != 1160 || got.ChangeAmount != 0 {
		t.Fatalf("Compute = %+v, want tax 160 total 1160 change 0", got)
	}
}

func TestComputeChangeNeverNegative(t *testing.T) {
	got := Compute(1000, 0, 16, 500)
	if got.ChangeAmount != 0 {
		t.Fatalf("change = %d, want 0 when payment falls short", got.ChangeAmount)
	}
}

func TestPercentRoundsToNearestUnit(t *testing.T) {
	cases := []struct {
		amount  int64
		percent float64
		want    int64
	}{
		{1000, 16, 160},
		{333, 10, 33},
		{335, 10, 34},
		{1, 50, 1},
		{0, 16, 0},
	}
	for _, tc := range cases {
		if got := Percent(tc.amount, tc.percent); got != tc.want {
			t.Fatalf("Percent(%d, %v) = %d, want %d", tc.amount, tc.percent, got, tc.want)
		}
	}
}

func TestLoyaltyPoints(t *testing.T) {
	cases := []struct {
		total int64
		want  int64
	}{
		{1044, 10},
		{99, 0},
		{100, 1},
		{0, 0},
		{-50, 0},
	}
	for _, tc := range cases {
		if got := LoyaltyPoints(tc.total); got != tc.want {
			t.Fatalf("LoyaltyPoints(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}
