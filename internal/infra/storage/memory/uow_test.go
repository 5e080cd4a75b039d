package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func mustRange(t *testing.T, in, out string) daterange.DateRange {
	t.Helper()
	dr, err := daterange.Parse(in, out)
	if err != nil {
		t.Fatal(err)
	}
	return dr
}

func newBooking(t *testing.T, id, in, out string) *domainbooking.Booking {
	t.Helper()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: domainbooking.BookingID(id), UnitID: "u-1", Range: mustRange(t, in, out),
		Adults: 1, Total: money.Must(100, "USD"), CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestRollbackUndoesWrites(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()

	unit, err := f.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatal(err)
	}
	txCtx := uow.Bind(ctx, unit)
	if err := unit.Bookings().Save(txCtx, newBooking(t, "b-1", "2024-01-01", "2024-01-03")); err != nil {
		t.Fatal(err)
	}
	blk, _ := domainavailability.NewBlock(domainavailability.BlockParams{ID: "k-1", UnitID: "u-1", Range: mustRange(t, "2024-02-01", "2024-02-03"), Now: time.Now()})
	if err := unit.Blocks().Save(txCtx, blk); err != nil {
		t.Fatal(err)
	}
	if err := unit.Rollback(txCtx); err != nil {
		t.Fatal(err)
	}

	if _, err := f.BookingsRepo.ByID(ctx, "b-1"); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Fatalf("booking survived rollback: %v", err)
	}
	if _, err := f.BlocksRepo.ByID(ctx, "k-1"); !errors.Is(err, domainavailability.ErrBlockNotFound) {
		t.Fatalf("block survived rollback: %v", err)
	}
}

func TestRollbackRestoresPreviousVersion(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	b := newBooking(t, "b-1", "2024-01-01", "2024-01-03")
	if err := f.BookingsRepo.Save(ctx, b); err != nil {
		t.Fatal(err)
	}

	unit, _ := f.Begin(ctx, uow.TxOptions{})
	txCtx := uow.Bind(ctx, unit)
	loaded, _ := unit.Bookings().ByID(txCtx, "b-1")
	_ = loaded.Cancel(time.Now())
	if err := unit.Bookings().Save(txCtx, loaded); err != nil {
		t.Fatal(err)
	}
	_ = unit.Rollback(txCtx)

	after, _ := f.BookingsRepo.ByID(ctx, "b-1")
	if after.Status != domainbooking.StatusConfirmed || after.Version != 1 {
		t.Fatalf("status %s version %d after rollback", after.Status, after.Version)
	}
}

func TestCommitKeepsWrites(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	unit, _ := f.Begin(ctx, uow.TxOptions{})
	txCtx := uow.Bind(ctx, unit)
	_ = unit.Bookings().Save(txCtx, newBooking(t, "b-1", "2024-01-01", "2024-01-03"))
	_ = unit.Commit(txCtx)
	_ = unit.Rollback(txCtx)
	if _, err := f.BookingsRepo.ByID(ctx, "b-1"); err != nil {
		t.Fatalf("committed booking lost: %v", err)
	}
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	b := newBooking(t, "b-1", "2024-01-01", "2024-01-03")
	_ = repo.Save(ctx, b)

	first, _ := repo.ByID(ctx, "b-1")
	second, _ := repo.ByID(ctx, "b-1")
	if err := repo.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, second); !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
}

func TestListByUnitSkipsCancelled(t *testing.T) {
	repo := NewBookingRepository()
	ctx := context.Background()
	active := newBooking(t, "b-1", "2024-01-01", "2024-01-03")
	cancelled := newBooking(t, "b-2", "2024-01-05", "2024-01-07")
	_ = cancelled.Cancel(time.Now())
	_ = repo.Save(ctx, active)
	_ = repo.Save(ctx, cancelled)

	got, _ := repo.ListByUnit(ctx, "u-1", mustRange(t, "2024-01-01", "2024-02-01"))
	if len(got) != 1 || got[0].ID != "b-1" {
		t.Fatalf("bookings = %v", got)
	}
}

func TestUncommittedWritesStayPrivate(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	window := mustRange(t, "2024-01-01", "2024-02-01")

	writer, _ := f.Begin(ctx, uow.TxOptions{})
	writerCtx := uow.Bind(ctx, writer)
	if err := writer.Bookings().Save(writerCtx, newBooking(t, "b-1", "2024-01-01", "2024-01-03")); err != nil {
		t.Fatal(err)
	}

	reader, _ := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	readerCtx := uow.Bind(ctx, reader)
	if got, _ := reader.Bookings().ListByUnit(readerCtx, "u-1", window); len(got) != 0 {
		t.Fatalf("another unit saw an uncommitted booking: %v", got)
	}
	if _, err := f.BookingsRepo.ByID(ctx, "b-1"); !errors.Is(err, domainbooking.ErrBookingNotFound) {
		t.Fatalf("plain read saw an uncommitted booking: %v", err)
	}
	if got, _ := writer.Bookings().ListByUnit(writerCtx, "u-1", window); len(got) != 1 {
		t.Fatalf("writer should read its own booking, got %v", got)
	}

	if err := writer.Commit(writerCtx); err != nil {
		t.Fatal(err)
	}
	if got, _ := reader.Bookings().ListByUnit(readerCtx, "u-1", window); len(got) != 1 {
		t.Fatalf("committed booking not visible: %v", got)
	}
}

func TestStagedDeleteHidesBlockOnlyForItsUnit(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	blk, _ := domainavailability.NewBlock(domainavailability.BlockParams{ID: "k-1", UnitID: "u-1", Range: mustRange(t, "2024-02-01", "2024-02-03"), Now: time.Now()})
	if err := f.BlocksRepo.Save(ctx, blk); err != nil {
		t.Fatal(err)
	}

	unit, _ := f.Begin(ctx, uow.TxOptions{})
	txCtx := uow.Bind(ctx, unit)
	if err := unit.Blocks().Delete(txCtx, "k-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := unit.Blocks().ByID(txCtx, "k-1"); !errors.Is(err, domainavailability.ErrBlockNotFound) {
		t.Fatalf("deleting unit still sees the block: %v", err)
	}
	if _, err := f.BlocksRepo.ByID(ctx, "k-1"); err != nil {
		t.Fatalf("block gone before commit: %v", err)
	}
	_ = unit.Commit(txCtx)
	if _, err := f.BlocksRepo.ByID(ctx, "k-1"); !errors.Is(err, domainavailability.ErrBlockNotFound) {
		t.Fatalf("block survived committed delete: %v", err)
	}
}

func TestCommitRejectsConcurrentUpdate(t *testing.T) {
	f := NewFactory()
	ctx := context.Background()
	if err := f.BookingsRepo.Save(ctx, newBooking(t, "b-1", "2024-01-01", "2024-01-03")); err != nil {
		t.Fatal(err)
	}

	first, _ := f.Begin(ctx, uow.TxOptions{})
	firstCtx := uow.Bind(ctx, first)
	second, _ := f.Begin(ctx, uow.TxOptions{})
	secondCtx := uow.Bind(ctx, second)

	a, _ := first.Bookings().ByID(firstCtx, "b-1")
	b, _ := second.Bookings().ByID(secondCtx, "b-1")
	_ = a.Cancel(time.Now())
	if err := first.Bookings().Save(firstCtx, a); err != nil {
		t.Fatal(err)
	}
	if err := second.Bookings().Save(secondCtx, b); err != nil {
		t.Fatal(err)
	}
	if err := first.Commit(firstCtx); err != nil {
		t.Fatal(err)
	}
	if err := second.Commit(secondCtx); !errors.Is(err, uow.ErrConcurrentUpdate) {
		t.Fatalf("expected concurrent update, got %v", err)
	}
	stored, _ := f.BookingsRepo.ByID(ctx, "b-1")
	if stored.Status != domainbooking.StatusCancelled {
		t.Fatalf("losing commit overwrote the winner: %s", stored.Status)
	}
}

func TestOutboxRecordsAppearOnCommit(t *testing.T) {
	f := NewFactory()
	box := NewOutbox()
	ctx := context.Background()

	unit, _ := f.Begin(ctx, uow.TxOptions{})
	txCtx := uow.Bind(ctx, unit)
	_ = box.Add(txCtx, appoutbox.EventRecord{ID: "e-1"})
	if n := len(box.Pending()); n != 0 {
		t.Fatalf("pending before commit = %d", n)
	}
	_ = unit.Commit(txCtx)
	if n := len(box.Pending()); n != 1 {
		t.Fatalf("pending after commit = %d", n)
	}

	rolled, _ := f.Begin(ctx, uow.TxOptions{})
	rolledCtx := uow.Bind(ctx, rolled)
	_ = box.Add(rolledCtx, appoutbox.EventRecord{ID: "e-2"})
	_ = rolled.Rollback(rolledCtx)
	if n := len(box.Pending()); n != 1 {
		t.Fatalf("rolled back record leaked, pending = %d", n)
	}
}
