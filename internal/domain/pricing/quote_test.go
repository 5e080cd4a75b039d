package pricing

import (
	"testing"

	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/rules"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func cents(v int64) *int64 { return &v }

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return dr
}

func TestComputeBasePriceOnly(t *testing.T) {
	q, err := Compute(Input{
		UnitID:     "u-1",
		Range:      mustRange(t, "2024-01-01", "2024-01-04"),
		Base:       money.Must(30000, "USD"),
		Adjustment: rules.Neutral(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.Total.Amount != 90000 || q.Nights != 3 || q.MinStayReq != 1 {
		t.Fatalf("quote = total %d nights %d minStay %d", q.Total.Amount, q.Nights, q.MinStayReq)
	}
	if q.BelowMinStay() {
		t.Fatal("3 nights satisfies min stay 1")
	}
}

func TestComputeWeekendBand(t *testing.T) {
	band := rates.Band{
		ID:           "winter",
		UnitID:       "u-1",
		Range:        mustRange(t, "2024-01-01", "2024-02-01"),
		WeekdayPrice: cents(10000),
		WeekendPrice: cents(15000),
		MinStay:      2,
	}
	// Fri, Sat, Sun nights.
	q, err := Compute(Input{
		UnitID:     "u-1",
		Range:      mustRange(t, "2024-01-05", "2024-01-08"),
		Base:       money.Must(30000, "USD"),
		Table:      rates.NewTable([]rates.Band{band}),
		Adjustment: rules.Neutral(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if q.Total.Amount != 40000 {
		t.Fatalf("total = %d, want 40000", q.Total.Amount)
	}
	if q.MinStayReq != 2 || q.Nights != 3 {
		t.Fatalf("minStay %d nights %d", q.MinStayReq, q.Nights)
	}
	if q.Lines[0].Weekend || !q.Lines[1].Weekend || q.Lines[1].BandID != "winter" {
		t.Fatalf("lines = %+v", q.Lines)
	}
}

func TestComputeMinStayIsMaxAcrossBands(t *testing.T) {
	a := rates.Band{ID: "a", UnitID: "u-1", Range: mustRange(t, "2024-01-01", "2024-01-03"), MinStay: 2}
	b := rates.Band{ID: "b", UnitID: "u-1", Range: mustRange(t, "2024-01-03", "2024-01-10"), MinStay: 5}
	q, _ := Compute(Input{
		Range:      mustRange(t, "2024-01-02", "2024-01-04"),
		Base:       money.Must(100, "USD"),
		Table:      rates.NewTable([]rates.Band{a, b}),
		Adjustment: rules.Neutral(),
	})
	if q.MinStayReq != 5 || !q.BelowMinStay() || q.MinStayReason() != "minimum stay: 5 nights" {
		t.Fatalf("minStay = %d below=%v", q.MinStayReq, q.BelowMinStay())
	}
}

func TestComputeAppliesMultiplierThenClamp(t *testing.T) {
	in := Input{
		Range:      mustRange(t, "2024-01-01", "2024-01-02"),
		Base:       money.Must(1000, "USD"),
		Adjustment: rules.Adjustment{Multiplier: 1.21, Applied: []string{"a", "b"}},
	}
	q, _ := Compute(in)
	if q.Total.Amount != 1210 || q.Subtotal.Amount != 1000 || q.Clamped {
		t.Fatalf("total = %d subtotal = %d", q.Total.Amount, q.Subtotal.Amount)
	}

	in.Adjustment.MaxPriceCents = cents(1100)
	q, _ = Compute(in)
	if q.Total.Amount != 1100 || !q.Clamped {
		t.Fatalf("clamped total = %d", q.Total.Amount)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	in := Input{
		Range:      mustRange(t, "2024-01-01", "2024-01-15"),
		Base:       money.Must(12345, "EUR"),
		Adjustment: rules.Adjustment{Multiplier: 0.87},
	}
	first, _ := Compute(in)
	for i := 0; i < 5; i++ {
		again, _ := Compute(in)
		if again.Total != first.Total {
			t.Fatalf("run %d total %v != %v", i, again.Total, first.Total)
		}
	}
}
