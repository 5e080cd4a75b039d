package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentdesk/internal/app/uow"
	domainavailability "rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	domainunits "rentdesk/internal/domain/units"
)

var ErrConcurrentUpdate = fmt.Errorf("postgres: %w", uow.ErrConcurrentUpdate)

// overlapError turns an exclusion violation into the calendar conflict.
func overlapError(err error, unitID domainunits.UnitID, r daterange.DateRange, kind domainavailability.EntryKind) error {
	if isCode(err, codeExclusionViolation) {
		return &domainavailability.ConflictError{UnitID: unitID, Range: r, Kind: kind}
	}
	return err
}

type BookingRepository struct {
	pool *pgxpool.Pool
}

const bookingColumns = `id, unit_id, check_in, check_out, status, guest_name, guest_email, guest_phone,
	adults, children, total_cents, currency, created_by, created_at, updated_at, cancelled_at, version`

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b, err
}

// Save inserts a new booking (Version 0) or updates one whose stored version
// still matches.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	q := conn(ctx, r.pool)
	var cancelledAt *time.Time
	if !b.CancelledAt.IsZero() {
		t := b.CancelledAt.UTC()
		cancelledAt = &t
	}
	if b.Version == 0 {
		_, err := q.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,1)`,
			string(b.ID), string(b.UnitID), b.Range.CheckIn, b.Range.CheckOut, string(b.Status),
			b.Guest.Name, b.Guest.Email, b.Guest.Phone, b.Adults, b.Children,
			b.Total.Amount, b.Total.Currency, b.CreatedBy, b.CreatedAt.UTC(), b.UpdatedAt.UTC(), cancelledAt)
		if isCode(err, codeUniqueViolation) {
			return ErrConcurrentUpdate
		}
		if err != nil {
			return overlapError(err, b.UnitID, b.Range, domainavailability.KindBooking)
		}
		b.Version = 1
		return nil
	}
	tag, err := q.Exec(ctx, `UPDATE bookings SET
			check_in = $3, check_out = $4, status = $5, guest_name = $6, guest_email = $7, guest_phone = $8,
			adults = $9, children = $10, total_cents = $11, currency = $12, updated_at = $13, cancelled_at = $14,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		string(b.ID), b.Version, b.Range.CheckIn, b.Range.CheckOut, string(b.Status),
		b.Guest.Name, b.Guest.Email, b.Guest.Phone, b.Adults, b.Children,
		b.Total.Amount, b.Total.Currency, b.UpdatedAt.UTC(), cancelledAt)
	if err != nil {
		return overlapError(err, b.UnitID, b.Range, domainavailability.KindBooking)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID, window daterange.DateRange) ([]*domainbooking.Booking, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE unit_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND check_in < $3 AND check_out > $2
		ORDER BY check_in, id`,
		string(unitID), window.CheckIn, window.CheckOut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domainbooking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*domainbooking.Booking, error) {
	var (
		b                  domainbooking.Booking
		id, unitID, status string
		cancelledAt        *time.Time
	)
	err := row.Scan(&id, &unitID, &b.Range.CheckIn, &b.Range.CheckOut, &status,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone, &b.Adults, &b.Children,
		&b.Total.Amount, &b.Total.Currency, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt, &cancelledAt, &b.Version)
	if err != nil {
		return nil, err
	}
	b.ID = domainbooking.BookingID(id)
	b.UnitID = domainunits.UnitID(unitID)
	b.Status = domainbooking.Status(status)
	b.Range = daterange.DateRange{CheckIn: daterange.Day(b.Range.CheckIn), CheckOut: daterange.Day(b.Range.CheckOut)}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if cancelledAt != nil {
		b.CancelledAt = cancelledAt.UTC()
	}
	return &b, nil
}

type BlockRepository struct {
	pool *pgxpool.Pool
}

const blockColumns = `id, unit_id, check_in, check_out, reason, created_by, created_at, updated_at, version`

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.Block, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+blockColumns+` FROM blocks WHERE id = $1`, string(id))
	b, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainavailability.ErrBlockNotFound
	}
	return b, err
}

func (r *BlockRepository) Save(ctx context.Context, b *domainavailability.Block) error {
	q := conn(ctx, r.pool)
	if b.Version == 0 {
		_, err := q.Exec(ctx, `INSERT INTO blocks (`+blockColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)`,
			string(b.ID), string(b.UnitID), b.Range.CheckIn, b.Range.CheckOut, b.Reason, b.CreatedBy,
			b.CreatedAt.UTC(), b.UpdatedAt.UTC())
		if isCode(err, codeUniqueViolation) {
			return ErrConcurrentUpdate
		}
		if err != nil {
			return overlapError(err, b.UnitID, b.Range, domainavailability.KindBlock)
		}
		b.Version = 1
		return nil
	}
	tag, err := q.Exec(ctx, `UPDATE blocks SET check_in = $3, check_out = $4, reason = $5, updated_at = $6,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		string(b.ID), b.Version, b.Range.CheckIn, b.Range.CheckOut, b.Reason, b.UpdatedAt.UTC())
	if err != nil {
		return overlapError(err, b.UnitID, b.Range, domainavailability.KindBlock)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	b.Version++
	return nil
}

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM blocks WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainavailability.ErrBlockNotFound
	}
	return nil
}

func (r *BlockRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID, window daterange.DateRange) ([]*domainavailability.Block, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+blockColumns+` FROM blocks
		WHERE unit_id = $1 AND check_in < $3 AND check_out > $2
		ORDER BY check_in, id`,
		string(unitID), window.CheckIn, window.CheckOut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domainavailability.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBlock(row pgx.Row) (*domainavailability.Block, error) {
	var (
		b          domainavailability.Block
		id, unitID string
	)
	if err := row.Scan(&id, &unitID, &b.Range.CheckIn, &b.Range.CheckOut, &b.Reason, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt, &b.Version); err != nil {
		return nil, err
	}
	b.ID = domainavailability.BlockID(id)
	b.UnitID = domainunits.UnitID(unitID)
	b.Range = daterange.DateRange{CheckIn: daterange.Day(b.Range.CheckIn), CheckOut: daterange.Day(b.Range.CheckOut)}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

type UnitRepository struct {
	pool *pgxpool.Pool
}

const unitColumns = `id, property_id, name, capacity, base_nightly_cents, currency, created_at, updated_at, version`

func (r *UnitRepository) ByID(ctx context.Context, id domainunits.UnitID) (*domainunits.Unit, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, string(id))
	u, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainunits.ErrUnitNotFound
	}
	return u, err
}

func (r *UnitRepository) Save(ctx context.Context, u *domainunits.Unit) error {
	q := conn(ctx, r.pool)
	if u.Version == 0 {
		_, err := q.Exec(ctx, `INSERT INTO units (`+unitColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)`,
			string(u.ID), string(u.PropertyID), u.Name, u.Capacity, u.BaseNightly.Amount, u.BaseNightly.Currency,
			u.CreatedAt.UTC(), u.UpdatedAt.UTC())
		if isCode(err, codeUniqueViolation) {
			return ErrConcurrentUpdate
		}
		if err != nil {
			return err
		}
		u.Version = 1
		return nil
	}
	tag, err := q.Exec(ctx, `UPDATE units SET property_id = $3, name = $4, capacity = $5,
			base_nightly_cents = $6, currency = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND version = $2`,
		string(u.ID), u.Version, string(u.PropertyID), u.Name, u.Capacity, u.BaseNightly.Amount,
		u.BaseNightly.Currency, u.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	u.Version++
	return nil
}

func (r *UnitRepository) List(ctx context.Context) ([]*domainunits.Unit, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+unitColumns+` FROM units ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domainunits.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUnit(row pgx.Row) (*domainunits.Unit, error) {
	var (
		u                    domainunits.Unit
		id, propertyID, curr string
		cents                int64
	)
	if err := row.Scan(&id, &propertyID, &u.Name, &u.Capacity, &cents, &curr, &u.CreatedAt, &u.UpdatedAt, &u.Version); err != nil {
		return nil, err
	}
	u.ID = domainunits.UnitID(id)
	u.PropertyID = domainunits.PropertyID(propertyID)
	u.BaseNightly = money.Money{Amount: cents, Currency: curr}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

var (
	_ domainbooking.Repository           = (*BookingRepository)(nil)
	_ domainavailability.BlockRepository = (*BlockRepository)(nil)
	_ domainunits.Repository             = (*UnitRepository)(nil)
)
