package availability

import (
	"time"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

type CalendarBlocked struct {
	UnitID  units.UnitID
	BlockID BlockID
	Range   daterange.DateRange
	Reason  string
	At      time.Time
}

func (e CalendarBlocked) EventName() string     { return "calendar.blocked" }
func (e CalendarBlocked) AggregateID() string   { return string(e.UnitID) }
func (e CalendarBlocked) OccurredAt() time.Time { return e.At }

type CalendarBlockMoved struct {
	UnitID  units.UnitID
	BlockID BlockID
	From    daterange.DateRange
	To      daterange.DateRange
	At      time.Time
}

func (e CalendarBlockMoved) EventName() string     { return "calendar.block_moved" }
func (e CalendarBlockMoved) AggregateID() string   { return string(e.UnitID) }
func (e CalendarBlockMoved) OccurredAt() time.Time { return e.At }

type CalendarReleased struct {
	UnitID  units.UnitID
	BlockID BlockID
	Range   daterange.DateRange
	At      time.Time
}

func (e CalendarReleased) EventName() string     { return "calendar.released" }
func (e CalendarReleased) AggregateID() string   { return string(e.UnitID) }
func (e CalendarReleased) OccurredAt() time.Time { return e.At }

type CalendarOverbookingPrevented struct {
	UnitID units.UnitID
	Range  daterange.DateRange
	Kind   EntryKind
	At     time.Time
}

func (e CalendarOverbookingPrevented) EventName() string     { return "calendar.overbooking_prevented" }
func (e CalendarOverbookingPrevented) AggregateID() string   { return string(e.UnitID) }
func (e CalendarOverbookingPrevented) OccurredAt() time.Time { return e.At }
