package rates

import (
	"errors"
	"testing"

	"rentdesk/internal/domain/shared/daterange"
)

func cents(v int64) *int64 { return &v }

func band(t *testing.T, id, in, out string) Band {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return Band{ID: BandID(id), UnitID: "u-1", Range: dr}
}

func TestResolveNightlyPrice(t *testing.T) {
	full := band(t, "a", "2024-01-01", "2024-02-01")
	full.WeekdayPrice, full.WeekendPrice = cents(10000), cents(15000)

	weekdayOnly := full
	weekdayOnly.WeekendPrice = nil

	cases := []struct {
		name string
		band *Band
		date string
		want int64
	}{
		{"no band uses base", nil, "2024-01-05", 30000},
		{"weekday", &full, "2024-01-05", 10000},
		{"weekend", &full, "2024-01-06", 15000},
		{"weekend falls back to weekday", &weekdayOnly, "2024-01-06", 10000},
		{"no prices falls back to base", &Band{}, "2024-01-06", 30000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, _ := daterange.ParseDay(tc.date)
			if got := ResolveNightlyPrice(tc.band, d, 30000); got != tc.want {
				t.Fatalf("price = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestResolveMinStay(t *testing.T) {
	if ResolveMinStay(nil) != 1 {
		t.Fatal("nil band must require 1 night")
	}
	b := Band{MinStay: 0}
	if ResolveMinStay(&b) != 1 {
		t.Fatal("unset min stay must be 1")
	}
	b.MinStay = 3
	if ResolveMinStay(&b) != 3 {
		t.Fatal("min stay not honoured")
	}
}

func TestFindBandPrefersNarrowest(t *testing.T) {
	wide := band(t, "wide", "2024-01-01", "2024-03-01")
	narrow := band(t, "narrow", "2024-01-10", "2024-01-15")
	table := NewTable([]Band{wide, narrow})

	d, _ := daterange.ParseDay("2024-01-12")
	got, ok := table.FindBand(d)
	if !ok || got.ID != "narrow" {
		t.Fatalf("band = %v %v, want narrow", got.ID, ok)
	}
	d, _ = daterange.ParseDay("2024-01-20")
	if got, _ := table.FindBand(d); got.ID != "wide" {
		t.Fatalf("band = %v, want wide", got.ID)
	}
	d, _ = daterange.ParseDay("2024-03-01")
	if _, ok := table.FindBand(d); ok {
		t.Fatal("end date is exclusive")
	}
}

func TestFindBandTieBreak(t *testing.T) {
	early := band(t, "b", "2024-01-01", "2024-01-08")
	late := band(t, "c", "2024-01-03", "2024-01-10")
	sameAsLate := band(t, "a", "2024-01-03", "2024-01-10")
	d, _ := daterange.ParseDay("2024-01-05")

	if got, _ := NewTable([]Band{early, late}).FindBand(d); got.ID != "c" {
		t.Fatalf("latest start should win, got %s", got.ID)
	}
	if got, _ := NewTable([]Band{late, sameAsLate}).FindBand(d); got.ID != "a" {
		t.Fatalf("smallest id should win, got %s", got.ID)
	}
}

func TestCheckNoOverlap(t *testing.T) {
	existing := []Band{band(t, "a", "2024-01-01", "2024-01-10")}
	if err := CheckNoOverlap(existing, band(t, "b", "2024-01-10", "2024-01-20")); err != nil {
		t.Fatalf("adjacent band rejected: %v", err)
	}
	if err := CheckNoOverlap(existing, band(t, "b", "2024-01-09", "2024-01-20")); !errors.Is(err, ErrBandOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
	if err := CheckNoOverlap(existing, band(t, "a", "2024-01-05", "2024-01-20")); err != nil {
		t.Fatalf("updating a band must skip itself: %v", err)
	}
}

func TestBandValidate(t *testing.T) {
	b := band(t, "a", "2024-01-01", "2024-01-10")
	b.WeekdayPrice = cents(-1)
	if err := b.Validate(); !errors.Is(err, ErrInvalidBand) {
		t.Fatalf("expected invalid band, got %v", err)
	}
}
