package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/guard"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/services/quoting"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/rates"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/domain/units"
	memlocks "rentdesk/internal/infra/locks/memory"
	"rentdesk/internal/infra/storage/memory"
)

type auditCall struct {
	actor, entityType, entityID, action string
	before, after                       any
}

type fakeAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (f *fakeAudit) LogChange(_ context.Context, actorID, entityType, entityID, action string, before, after any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, auditCall{actorID, entityType, entityID, action, before, after})
}

func (f *fakeAudit) last(t *testing.T) auditCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no audit entries")
	}
	return f.calls[len(f.calls)-1]
}

type fakeDispatcher struct {
	mu      sync.Mutex
	updates []policies.Update
	err     error
}

func (f *fakeDispatcher) PushUpdate(_ context.Context, u policies.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	return f.err
}

type fixture struct {
	store    memory.Factory
	outbox   *memory.Outbox
	audit    *fakeAudit
	dispatch *fakeDispatcher
	svc      *Service
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := daterange.ParseDay(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewFactory()
	ctx := context.Background()
	u, err := units.NewUnit(units.Params{ID: "u-1", PropertyID: "p-1", Name: "Loft", Capacity: 3, BaseNightly: money.Must(10000, "USD"), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.UnitsRepo.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	clock := func() time.Time { return day(t, "2024-01-01") }
	seq := 0
	fx := &fixture{store: store, outbox: memory.NewOutbox(), audit: &fakeAudit{}, dispatch: &fakeDispatcher{}}
	fx.svc = &Service{
		Factory:    store,
		Guard:      &guard.Guard{Locker: memlocks.NewLocker(), Factory: store, Timeout: time.Second, Now: clock},
		Quotes:     &quoting.Service{Factory: store, Clock: clock},
		Outbox:     fx.outbox,
		Dispatcher: fx.dispatch,
		Audit:      fx.audit,
		Clock:      clock,
		IDs: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	}
	return fx
}

func (fx *fixture) book(t *testing.T, from, to string) *booking.Booking {
	t.Helper()
	b, err := fx.svc.CreateBooking(context.Background(), CreateBookingParams{
		UnitID: "u-1", CheckIn: day(t, from), CheckOut: day(t, to), Adults: 2, ActorID: "staff-1",
	})
	if err != nil {
		t.Fatalf("create booking %s..%s: %v", from, to, err)
	}
	return b
}

func TestCreateBooking(t *testing.T) {
	fx := newFixture(t)
	b := fx.book(t, "2024-02-01", "2024-02-04")

	if b.Status != booking.StatusConfirmed || b.Total.Amount != 30000 {
		t.Fatalf("unexpected booking %+v", b)
	}
	stored, err := fx.store.BookingsRepo.ByID(context.Background(), b.ID)
	if err != nil || stored.Range != b.Range {
		t.Fatalf("booking not stored: %v", err)
	}
	if len(fx.outbox.Pending()) != 1 || fx.outbox.Pending()[0].Name != "booking.created" {
		t.Fatalf("outbox = %+v", fx.outbox.Pending())
	}
	if len(fx.dispatch.updates) != 1 || fx.dispatch.updates[0].Type != policies.UpdateBookingCreate {
		t.Fatalf("dispatch = %+v", fx.dispatch.updates)
	}
	call := fx.audit.last(t)
	if call.action != "create" || call.before != nil || call.actor != "staff-1" {
		t.Fatalf("audit = %+v", call)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_ = fx.store.BandsRepo.Save(ctx, &rates.Band{ID: "b-min", UnitID: "u-1", Range: daterange.DateRange{CheckIn: day(t, "2024-03-01"), CheckOut: day(t, "2024-03-31")}, MinStay: 3})

	cases := []struct {
		name   string
		params CreateBookingParams
		want   error
	}{
		{"no adults", CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-01"), CheckOut: day(t, "2024-02-03")}, availability.ErrValidation},
		{"over capacity", CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-01"), CheckOut: day(t, "2024-02-03"), Adults: 2, Children: 2}, availability.ErrValidation},
		{"inverted dates", CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-03"), CheckOut: day(t, "2024-02-01"), Adults: 1}, availability.ErrValidation},
		{"in the past", CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2023-12-30"), CheckOut: day(t, "2024-01-02"), Adults: 1}, availability.ErrValidation},
		{"below minimum stay", CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-03-05"), CheckOut: day(t, "2024-03-07"), Adults: 1}, availability.ErrValidation},
		{"unknown unit", CreateBookingParams{UnitID: "nope", CheckIn: day(t, "2024-02-01"), CheckOut: day(t, "2024-02-03"), Adults: 1}, availability.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.CreateBooking(ctx, tc.params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if len(fx.dispatch.updates) != 0 || len(fx.audit.calls) != 0 {
		t.Fatal("rejected requests produced side effects")
	}
}

func TestMinimumStayReason(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_ = fx.store.BandsRepo.Save(ctx, &rates.Band{ID: "b-min", UnitID: "u-1", Range: daterange.DateRange{CheckIn: day(t, "2024-03-01"), CheckOut: day(t, "2024-03-31")}, MinStay: 3})

	_, err := fx.svc.CreateBooking(ctx, CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-03-05"), CheckOut: day(t, "2024-03-07"), Adults: 1})
	var verr *availability.ValidationError
	if !errors.As(err, &verr) || verr.Reason != "minimum stay: 3 nights" {
		t.Fatalf("got %v", err)
	}
}

func TestCreateBookingConflicts(t *testing.T) {
	fx := newFixture(t)
	fx.book(t, "2024-02-01", "2024-02-05")

	_, err := fx.svc.CreateBooking(context.Background(), CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-04"), CheckOut: day(t, "2024-02-06"), Adults: 1})
	if !errors.Is(err, availability.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// touching ranges do not overlap
	fx.book(t, "2024-02-05", "2024-02-07")
}

func TestRescheduleBooking(t *testing.T) {
	fx := newFixture(t)
	b := fx.book(t, "2024-02-01", "2024-02-04")
	fx.book(t, "2024-02-10", "2024-02-12")
	ctx := context.Background()

	moved, err := fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: b.ID, CheckIn: day(t, "2024-02-02"), CheckOut: day(t, "2024-02-07"), ActorID: "staff-2"})
	if err != nil {
		t.Fatalf("overlapping its own old dates should pass: %v", err)
	}
	if moved.Total.Amount != 50000 || moved.Range.Nights() != 5 {
		t.Fatalf("unexpected reschedule %+v", moved)
	}
	call := fx.audit.last(t)
	before, ok := call.before.(dto.Booking)
	if call.action != "reschedule" || !ok || before.CheckIn != "2024-02-01" {
		t.Fatalf("audit = %+v", call)
	}
	if last := fx.dispatch.updates[len(fx.dispatch.updates)-1]; last.Type != policies.UpdateBookingReschedule {
		t.Fatalf("dispatch = %+v", last)
	}

	_, err = fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: b.ID, CheckIn: day(t, "2024-02-09"), CheckOut: day(t, "2024-02-11")})
	if !errors.Is(err, availability.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	stored, _ := fx.store.BookingsRepo.ByID(ctx, b.ID)
	if stored.Range != moved.Range {
		t.Fatal("failed reschedule changed the booking")
	}

	_, err = fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: "missing", CheckIn: day(t, "2024-02-09"), CheckOut: day(t, "2024-02-11")})
	if !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRescheduleBookingIntoPast(t *testing.T) {
	fx := newFixture(t)
	b := fx.book(t, "2024-01-01", "2024-01-03")
	ctx := context.Background()
	fx.svc.Clock = func() time.Time { return day(t, "2024-01-02") }

	_, err := fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: b.ID, CheckIn: day(t, "2023-12-31"), CheckOut: day(t, "2024-01-03")})
	if !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	stored, _ := fx.store.BookingsRepo.ByID(ctx, b.ID)
	if stored.Range != b.Range {
		t.Fatal("rejected reschedule changed the booking")
	}

	extended, err := fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: b.ID, CheckIn: day(t, "2024-01-01"), CheckOut: day(t, "2024-01-05")})
	if err != nil {
		t.Fatalf("extending a stay under way: %v", err)
	}
	if extended.Range.Nights() != 4 {
		t.Fatalf("unexpected range %+v", extended.Range)
	}
}

func TestConfirmPendingBooking(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	b, err := fx.svc.CreateBooking(ctx, CreateBookingParams{
		UnitID: "u-1", CheckIn: day(t, "2024-02-01"), CheckOut: day(t, "2024-02-04"), Adults: 1, Pending: true, ActorID: "staff-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != booking.StatusPending {
		t.Fatalf("status = %s", b.Status)
	}

	confirmed, err := fx.svc.ConfirmBooking(ctx, b.ID, "staff-2")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != booking.StatusConfirmed {
		t.Fatalf("status = %s", confirmed.Status)
	}
	stored, _ := fx.store.BookingsRepo.ByID(ctx, b.ID)
	if stored.Status != booking.StatusConfirmed {
		t.Fatalf("stored status = %s", stored.Status)
	}
	pending := fx.outbox.Pending()
	if last := pending[len(pending)-1]; last.Name != "booking.confirmed" {
		t.Fatalf("outbox = %+v", pending)
	}
	if last := fx.dispatch.updates[len(fx.dispatch.updates)-1]; last.Type != policies.UpdateBookingConfirm {
		t.Fatalf("dispatch = %+v", last)
	}
	call := fx.audit.last(t)
	before, _ := call.before.(dto.Booking)
	if call.action != "confirm" || call.actor != "staff-2" || before.Status != string(booking.StatusPending) {
		t.Fatalf("audit = %+v", call)
	}

	if _, err := fx.svc.ConfirmBooking(ctx, b.ID, "staff-2"); !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("second confirm: %v", err)
	}
	if _, err := fx.svc.ConfirmBooking(ctx, "missing", "staff-2"); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("confirm missing: %v", err)
	}
	if _, err := fx.svc.CancelBooking(ctx, b.ID, "staff-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.ConfirmBooking(ctx, b.ID, "staff-2"); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("confirm cancelled: %v", err)
	}
}

func TestCancelBookingFreesDates(t *testing.T) {
	fx := newFixture(t)
	b := fx.book(t, "2024-02-01", "2024-02-04")
	ctx := context.Background()

	cancelled, err := fx.svc.CancelBooking(ctx, b.ID, "staff-1")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != booking.StatusCancelled || cancelled.CancelledAt.IsZero() {
		t.Fatalf("unexpected status %s", cancelled.Status)
	}
	call := fx.audit.last(t)
	after, _ := call.after.(dto.Booking)
	if call.action != "cancel" || after.Status != string(booking.StatusCancelled) {
		t.Fatalf("audit = %+v", call)
	}

	fx.book(t, "2024-02-01", "2024-02-04")

	if _, err := fx.svc.CancelBooking(ctx, b.ID, "staff-1"); !errors.Is(err, availability.ErrValidation) {
		t.Fatalf("second cancel: %v", err)
	}
	if _, err := fx.svc.RescheduleBooking(ctx, RescheduleBookingParams{BookingID: b.ID, CheckIn: day(t, "2024-03-01"), CheckOut: day(t, "2024-03-02")}); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("reschedule cancelled: %v", err)
	}
	if _, err := fx.svc.CancelBooking(ctx, "missing", "staff-1"); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("cancel missing: %v", err)
	}
}

func TestBlocks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.book(t, "2024-02-01", "2024-02-04")

	if _, err := fx.svc.CreateBlock(ctx, CreateBlockParams{UnitID: "u-1", Start: day(t, "2024-02-03"), End: day(t, "2024-02-05")}); !errors.Is(err, availability.ErrConflict) {
		t.Fatalf("block over booking: %v", err)
	}
	blk, err := fx.svc.CreateBlock(ctx, CreateBlockParams{UnitID: "u-1", Start: day(t, "2024-02-04"), End: day(t, "2024-02-06"), Reason: "maintenance", ActorID: "staff-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.svc.CreateBlock(ctx, CreateBlockParams{UnitID: "u-1", Start: day(t, "2024-02-05"), End: day(t, "2024-02-08")}); !errors.Is(err, availability.ErrConflict) {
		t.Fatalf("block over block: %v", err)
	}
	if _, err := fx.svc.CreateBooking(ctx, CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-05"), CheckOut: day(t, "2024-02-07"), Adults: 1}); !errors.Is(err, availability.ErrConflict) {
		t.Fatalf("booking over block: %v", err)
	}

	moved, err := fx.svc.RescheduleBlock(ctx, RescheduleBlockParams{BlockID: blk.ID, Start: day(t, "2024-02-05"), End: day(t, "2024-02-09")})
	if err != nil {
		t.Fatalf("move over own range: %v", err)
	}
	if got := daterange.FormatDay(moved.Range.CheckOut); got != "2024-02-09" {
		t.Fatalf("moved to %s", got)
	}

	if err := fx.svc.DeleteBlock(ctx, blk.ID, "staff-1"); err != nil {
		t.Fatal(err)
	}
	call := fx.audit.last(t)
	if call.action != "delete" || call.after != nil {
		t.Fatalf("audit = %+v", call)
	}
	if err := fx.svc.DeleteBlock(ctx, blk.ID, "staff-1"); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
	if _, err := fx.svc.CreateBlock(ctx, CreateBlockParams{UnitID: "nope", Start: day(t, "2024-02-05"), End: day(t, "2024-02-08")}); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("block unknown unit: %v", err)
	}
}

func TestSideEffectFailuresAreSuppressed(t *testing.T) {
	fx := newFixture(t)
	fx.dispatch.err = errors.New("channel manager down")
	b := fx.book(t, "2024-02-01", "2024-02-04")
	if _, err := fx.store.BookingsRepo.ByID(context.Background(), b.ID); err != nil {
		t.Fatal("booking must persist when dispatch fails")
	}
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	fx := newFixture(t)
	fx.svc.IDs = nil
	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.svc.CreateBooking(context.Background(), CreateBookingParams{UnitID: "u-1", CheckIn: day(t, "2024-02-01"), CheckOut: day(t, "2024-02-03"), Adults: 1})
			results <- err
		}()
	}
	wg.Wait()
	close(results)
	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else if !errors.Is(err, availability.ErrConflict) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d bookings succeeded", ok)
	}
}

func TestCalendarView(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.book(t, "2024-02-01", "2024-02-03")
	if _, err := fx.svc.CreateBlock(ctx, CreateBlockParams{UnitID: "u-1", Start: day(t, "2024-02-05"), End: day(t, "2024-02-06")}); err != nil {
		t.Fatal(err)
	}
	cal, window, err := fx.svc.Calendar(ctx, "u-1", day(t, "2024-02-01"), day(t, "2024-02-11"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cal.Bookings()) != 1 || len(cal.Blocks()) != 1 {
		t.Fatalf("entries = %+v", cal.Entries)
	}
	// 2 confirmed nights over 10 - 1 blocked
	if occ := cal.Occupancy(window, ""); occ < 22.2 || occ > 22.3 {
		t.Fatalf("occupancy = %v", occ)
	}
	if _, _, err := fx.svc.Calendar(ctx, "nope", day(t, "2024-02-01"), day(t, "2024-02-11")); !errors.Is(err, availability.ErrNotFound) {
		t.Fatalf("unknown unit: %v", err)
	}
}
