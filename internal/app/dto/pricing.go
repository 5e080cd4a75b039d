package dto

import (
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
)

type QuoteNight struct {
	Date    string `json:"date"`
	BandID  string `json:"band_id,omitempty"`
	Amount  int64  `json:"amount_cents"`
	Weekend bool   `json:"weekend"`
}

type Quote struct {
	UnitID          string       `json:"unit_id"`
	CheckIn         string       `json:"checkin"`
	CheckOut        string       `json:"checkout"`
	Nights          int          `json:"nights"`
	MinStayRequired int          `json:"min_stay_required"`
	MeetsMinStay    bool         `json:"meets_min_stay"`
	SubtotalCents   int64        `json:"subtotal_cents"`
	TotalCents      int64        `json:"total_cents"`
	Currency        string       `json:"currency"`
	Multiplier      float64      `json:"multiplier"`
	MinPriceCents   *int64       `json:"min_price_cents,omitempty"`
	MaxPriceCents   *int64       `json:"max_price_cents,omitempty"`
	Clamped         bool         `json:"clamped"`
	AppliedRules    []string     `json:"applied_rules"`
	Breakdown       []QuoteNight `json:"breakdown"`
}

func MapQuote(q pricing.Quote) Quote {
	nights := make([]QuoteNight, 0, len(q.Lines))
	for _, l := range q.Lines {
		nights = append(nights, QuoteNight{
			Date:    daterange.FormatDay(l.Date),
			BandID:  string(l.BandID),
			Amount:  l.Amount,
			Weekend: l.Weekend,
		})
	}
	applied := q.AppliedRules
	if applied == nil {
		applied = []string{}
	}
	return Quote{
		UnitID:          string(q.UnitID),
		CheckIn:         daterange.FormatDay(q.Range.CheckIn),
		CheckOut:        daterange.FormatDay(q.Range.CheckOut),
		Nights:          q.Nights,
		MinStayRequired: q.MinStayReq,
		MeetsMinStay:    !q.BelowMinStay(),
		SubtotalCents:   q.Subtotal.Amount,
		TotalCents:      q.Total.Amount,
		Currency:        q.Total.Currency,
		Multiplier:      q.Multiplier,
		MinPriceCents:   q.MinPriceCents,
		MaxPriceCents:   q.MaxPriceCents,
		Clamped:         q.Clamped,
		AppliedRules:    applied,
		Breakdown:       nights,
	}
}
