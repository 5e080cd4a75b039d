package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentdesk/internal/app/uow"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	"rentdesk/internal/domain/units"
)

var ErrConcurrentUpdate = fmt.Errorf("mongo: %w", uow.ErrConcurrentUpdate)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(collBookings)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByUnit(ctx context.Context, unitID units.UnitID, window daterange.DateRange) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"unit_id": string(unitID),
		"status":  bson.M{"$in": []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}},
	}
	for k, v := range overlapFilter(window) {
		filter[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type guestDocument struct {
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
	Phone string `bson:"phone,omitempty"`
}

type bookingDocument struct {
	ID          string        `bson:"_id"`
	UnitID      string        `bson:"unit_id"`
	Range       rangeDocument `bson:"range"`
	Status      string        `bson:"status"`
	Guest       guestDocument `bson:"guest"`
	Adults      int           `bson:"adults"`
	Children    int           `bson:"children"`
	TotalCents  int64         `bson:"total_cents"`
	Currency    string        `bson:"currency"`
	CreatedBy   string        `bson:"created_by,omitempty"`
	CreatedAt   int64         `bson:"created_at"`
	UpdatedAt   int64         `bson:"updated_at"`
	CancelledAt int64         `bson:"cancelled_at,omitempty"`
	Version     int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:          string(b.ID),
		UnitID:      string(b.UnitID),
		Range:       newRangeDocument(b.Range),
		Status:      string(b.Status),
		Guest:       guestDocument{Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone},
		Adults:      b.Adults,
		Children:    b.Children,
		TotalCents:  b.Total.Amount,
		Currency:    b.Total.Currency,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   timeToTimestamp(b.CreatedAt),
		UpdatedAt:   timeToTimestamp(b.UpdatedAt),
		CancelledAt: timeToTimestamp(b.CancelledAt),
		Version:     b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:          domainbooking.BookingID(d.ID),
		UnitID:      units.UnitID(d.UnitID),
		Range:       d.Range.toRange(),
		Status:      domainbooking.Status(d.Status),
		Guest:       domainbooking.GuestInfo{Name: d.Guest.Name, Email: d.Guest.Email, Phone: d.Guest.Phone},
		Adults:      d.Adults,
		Children:    d.Children,
		Total:       money.Money{Amount: d.TotalCents, Currency: d.Currency},
		CreatedBy:   d.CreatedBy,
		CreatedAt:   optionalTime(d.CreatedAt),
		UpdatedAt:   optionalTime(d.UpdatedAt),
		CancelledAt: optionalTime(d.CancelledAt),
		Version:     d.Version,
	}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
