package policies

import (
	"context"
	"time"
)

// Update types pushed to the channel manager.
const (
	UpdateBookingCreate     = "booking.create"
	UpdateBookingReschedule = "booking.reschedule"
	UpdateBookingConfirm    = "booking.confirm"
	UpdateBookingCancel     = "booking.cancel"
	UpdateBlockCreate       = "block.create"
	UpdateBlockReschedule   = "block.reschedule"
	UpdateBlockDelete       = "block.delete"
)

// Update is an availability change of one unit.
type Update struct {
	UnitID  string
	Type    string
	Payload any
	At      time.Time
}

// Dispatcher delivers updates to the external channel manager. Delivery is
// best effort; callers log failures and carry on.
type Dispatcher interface {
	PushUpdate(ctx context.Context, update Update) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, update Update) error

func (f DispatcherFunc) PushUpdate(ctx context.Context, update Update) error {
	return f(ctx, update)
}
