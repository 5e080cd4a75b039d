package availability

import (
	"sort"
	"time"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/units"
)

type EntryKind string

const (
	KindBooking EntryKind = "booking"
	KindBlock   EntryKind = "block"
)

// Entry is one occupied range on a unit calendar.
type Entry struct {
	Kind   EntryKind
	Ref    string
	Range  daterange.DateRange
	Status booking.Status
	Reason string
}

// Calendar is the occupied view of one unit: active bookings and blocks.
type Calendar struct {
	UnitID  units.UnitID
	Entries []Entry
	events.EventRecorder
}

func NewCalendar(unitID units.UnitID, bookings []*booking.Booking, blocks []*Block) *Calendar {
	c := &Calendar{UnitID: unitID}
	for _, b := range bookings {
		if b == nil || !b.Active() {
			continue
		}
		c.Entries = append(c.Entries, Entry{Kind: KindBooking, Ref: string(b.ID), Range: b.Range, Status: b.Status})
	}
	for _, b := range blocks {
		if b == nil {
			continue
		}
		c.Entries = append(c.Entries, Entry{Kind: KindBlock, Ref: string(b.ID), Range: b.Range, Reason: b.Reason})
	}
	sort.SliceStable(c.Entries, func(i, j int) bool {
		if c.Entries[i].Range.CheckIn.Equal(c.Entries[j].Range.CheckIn) {
			return c.Entries[i].Ref < c.Entries[j].Ref
		}
		return c.Entries[i].Range.CheckIn.Before(c.Entries[j].Range.CheckIn)
	})
	return c
}

// Exclusion names the booking or block being moved, which must not conflict with itself.
type Exclusion struct {
	BookingID booking.BookingID
	BlockID   BlockID
}

func (x Exclusion) skips(e Entry) bool {
	switch e.Kind {
	case KindBooking:
		return x.BookingID != "" && e.Ref == string(x.BookingID)
	case KindBlock:
		return x.BlockID != "" && e.Ref == string(x.BlockID)
	}
	return false
}

// Conflict returns the first entry overlapping r.
func (c *Calendar) Conflict(r daterange.DateRange, exclude Exclusion) (Entry, bool) {
	for _, e := range c.Entries {
		if exclude.skips(e) {
			continue
		}
		if e.Range.Overlaps(r) {
			return e, true
		}
	}
	return Entry{}, false
}

// CanReserve checks r against the calendar. A rejected claim is recorded as
// an overbooking-prevented event.
func (c *Calendar) CanReserve(r daterange.DateRange, exclude Exclusion, now time.Time) error {
	entry, found := c.Conflict(r, exclude)
	if !found {
		return nil
	}
	c.Record(CalendarOverbookingPrevented{UnitID: c.UnitID, Range: r, Kind: entry.Kind, At: now.UTC()})
	return &ConflictError{UnitID: c.UnitID, Range: r, Kind: entry.Kind}
}

// Occupancy is confirmed nights over available nights in window, as a
// percentage. Blocked nights are not available. With nothing available the
// unit counts as full.
func (c *Calendar) Occupancy(window daterange.DateRange, exclude booking.BookingID) float64 {
	total := window.Nights()
	if total <= 0 {
		return 100
	}
	confirmed, blocked := 0, 0
	for _, e := range c.Entries {
		part, ok := e.Range.Intersect(window)
		if !ok {
			continue
		}
		switch e.Kind {
		case KindBlock:
			blocked += part.Nights()
		case KindBooking:
			if e.Status != booking.StatusConfirmed {
				continue
			}
			if exclude != "" && e.Ref == string(exclude) {
				continue
			}
			confirmed += part.Nights()
		}
	}
	available := total - blocked
	if available <= 0 {
		return 100
	}
	pct := float64(confirmed) / float64(available) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Bookings lists the booking entries only.
func (c *Calendar) Bookings() []Entry {
	return c.filter(KindBooking)
}

func (c *Calendar) Blocks() []Entry {
	return c.filter(KindBlock)
}

func (c *Calendar) filter(kind EntryKind) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
