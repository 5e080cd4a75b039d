package money

import "testing"

func ptr(v int64) *int64 { return &v }

func TestScaleRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		amount int64
		factor float64
		want   int64
	}{
		{1000, 1.21, 1210},
		{90000, 1.0, 90000},
		{5, 0.5, 3},
		{-5, 0.5, -3},
		{999, 0.9, 899},
	}
	for _, tc := range cases {
		got := Must(tc.amount, "USD").Scale(tc.factor)
		if got.Amount != tc.want {
			t.Errorf("%d x %v = %d, want %d", tc.amount, tc.factor, got.Amount, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	m := Must(1210, "USD")
	if got, clamped := m.Clamp(nil, ptr(1100)); got.Amount != 1100 || !clamped {
		t.Fatalf("max clamp = %d %v", got.Amount, clamped)
	}
	if got, clamped := m.Clamp(ptr(2000), nil); got.Amount != 2000 || !clamped {
		t.Fatalf("min clamp = %d %v", got.Amount, clamped)
	}
	if got, clamped := m.Clamp(ptr(100), ptr(5000)); got.Amount != 1210 || clamped {
		t.Fatalf("in-range clamp = %d %v", got.Amount, clamped)
	}
	if got, _ := m.Clamp(ptr(3000), ptr(2000)); got.Amount != 2000 {
		t.Fatalf("inverted bounds = %d, want max", got.Amount)
	}
}

func TestNewValidatesCurrency(t *testing.T) {
	if _, err := New(100, "US"); err != ErrInvalidCurrency {
		t.Fatalf("expected invalid currency, got %v", err)
	}
	m, err := New(100, "usd")
	if err != nil || m.Currency != "USD" {
		t.Fatalf("got %+v %v", m, err)
	}
}
