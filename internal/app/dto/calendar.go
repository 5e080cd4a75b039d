package dto

import (
	"time"

	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/shared/daterange"
)

type Block struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func MapBlock(b *availability.Block) Block {
	if b == nil {
		return Block{}
	}
	return Block{
		ID:        string(b.ID),
		UnitID:    string(b.UnitID),
		From:      daterange.FormatDay(b.Range.CheckIn),
		To:        daterange.FormatDay(b.Range.CheckOut),
		Reason:    b.Reason,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// CalendarEntry never carries guest data.
type CalendarEntry struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type Calendar struct {
	UnitID    string          `json:"unit_id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Occupancy float64         `json:"occupancy"`
	Entries   []CalendarEntry `json:"entries"`
}

func MapCalendar(cal *availability.Calendar, window daterange.DateRange) Calendar {
	if cal == nil {
		return Calendar{}
	}
	entries := make([]CalendarEntry, 0, len(cal.Entries))
	for _, e := range cal.Entries {
		entries = append(entries, CalendarEntry{
			Kind:   string(e.Kind),
			ID:     e.Ref,
			From:   daterange.FormatDay(e.Range.CheckIn),
			To:     daterange.FormatDay(e.Range.CheckOut),
			Status: string(e.Status),
			Reason: e.Reason,
		})
	}
	return Calendar{
		UnitID:    string(cal.UnitID),
		From:      daterange.FormatDay(window.CheckIn),
		To:        daterange.FormatDay(window.CheckOut),
		Occupancy: cal.Occupancy(window, ""),
		Entries:   entries,
	}
}
