package mongo

import (
	"time"

	"rentdesk/internal/domain/shared/daterange"
)

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

func newRangeDocument(r daterange.DateRange) rangeDocument {
	return rangeDocument{CheckIn: r.CheckIn.UnixMilli(), CheckOut: r.CheckOut.UnixMilli()}
}

func (d rangeDocument) toRange() daterange.DateRange {
	return daterange.DateRange{CheckIn: timestampToTime(d.CheckIn), CheckOut: timestampToTime(d.CheckOut)}
}

// overlapFilter matches half-open ranges intersecting window.
func overlapFilter(window daterange.DateRange) map[string]any {
	return map[string]any{
		"range.check_in":  map[string]any{"$lt": window.CheckOut.UnixMilli()},
		"range.check_out": map[string]any{"$gt": window.CheckIn.UnixMilli()},
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToTimestamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func optionalTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return timestampToTime(ms)
}
