package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainrates "rentdesk/internal/domain/rates"
	domainunits "rentdesk/internal/domain/units"
)

type BandRepository struct {
	col *mongo.Collection
}

func NewBandRepository(db *mongo.Database) *BandRepository {
	return &BandRepository{col: db.Collection(collBands)}
}

func (r *BandRepository) ByID(ctx context.Context, id domainrates.BandID) (*domainrates.Band, error) {
	var doc bandDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainrates.ErrBandNotFound
		}
		return nil, err
	}
	band := doc.toBand()
	return &band, nil
}

func (r *BandRepository) Save(ctx context.Context, band *domainrates.Band) error {
	doc := newBandDocument(band)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *BandRepository) Delete(ctx context.Context, id domainrates.BandID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainrates.ErrBandNotFound
	}
	return nil
}

func (r *BandRepository) ListByUnit(ctx context.Context, unitID domainunits.UnitID) ([]domainrates.Band, error) {
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"unit_id": string(unitID)}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []domainrates.Band
	for cur.Next(ctx) {
		var doc bandDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toBand())
	}
	return out, cur.Err()
}

type bandDocument struct {
	ID           string        `bson:"_id"`
	UnitID       string        `bson:"unit_id"`
	Range        rangeDocument `bson:"range"`
	WeekdayPrice *int64        `bson:"weekday_price,omitempty"`
	WeekendPrice *int64        `bson:"weekend_price,omitempty"`
	MinStay      int           `bson:"min_stay"`
	CreatedAt    int64         `bson:"created_at"`
	UpdatedAt    int64         `bson:"updated_at"`
}

func newBandDocument(b *domainrates.Band) bandDocument {
	return bandDocument{
		ID:           string(b.ID),
		UnitID:       string(b.UnitID),
		Range:        newRangeDocument(b.Range),
		WeekdayPrice: b.WeekdayPrice,
		WeekendPrice: b.WeekendPrice,
		MinStay:      b.MinStay,
		CreatedAt:    timeToTimestamp(b.CreatedAt),
		UpdatedAt:    timeToTimestamp(b.UpdatedAt),
	}
}

func (d bandDocument) toBand() domainrates.Band {
	return domainrates.Band{
		ID:           domainrates.BandID(d.ID),
		UnitID:       domainunits.UnitID(d.UnitID),
		Range:        d.Range.toRange(),
		WeekdayPrice: d.WeekdayPrice,
		WeekendPrice: d.WeekendPrice,
		MinStay:      d.MinStay,
		CreatedAt:    optionalTime(d.CreatedAt),
		UpdatedAt:    optionalTime(d.UpdatedAt),
	}
}

var _ domainrates.Repository = (*BandRepository)(nil)
