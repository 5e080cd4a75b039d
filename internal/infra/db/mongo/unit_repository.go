package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentdesk/internal/domain/shared/money"
	domainunits "rentdesk/internal/domain/units"
)

type UnitRepository struct {
	col *mongo.Collection
}

func NewUnitRepository(db *mongo.Database) *UnitRepository {
	return &UnitRepository{col: db.Collection(collUnits)}
}

func (r *UnitRepository) ByID(ctx context.Context, id domainunits.UnitID) (*domainunits.Unit, error) {
	var doc unitDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainunits.ErrUnitNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UnitRepository) Save(ctx context.Context, unit *domainunits.Unit) error {
	doc := newUnitDocument(unit)
	filter := bson.M{"_id": doc.ID, "version": unit.Version}
	doc.Version = unit.Version + 1
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
	unit.Version = doc.Version
	return nil
}

func (r *UnitRepository) List(ctx context.Context) ([]*domainunits.Unit, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainunits.Unit
	for cur.Next(ctx) {
		var doc unitDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type unitDocument struct {
	ID         string `bson:"_id"`
	PropertyID string `bson:"property_id,omitempty"`
	Name       string `bson:"name"`
	Capacity   int    `bson:"capacity"`
	BaseCents  int64  `bson:"base_nightly_cents"`
	Currency   string `bson:"currency"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
	Version    int64  `bson:"version"`
}

func newUnitDocument(u *domainunits.Unit) unitDocument {
	return unitDocument{
		ID:         string(u.ID),
		PropertyID: string(u.PropertyID),
		Name:       u.Name,
		Capacity:   u.Capacity,
		BaseCents:  u.BaseNightly.Amount,
		Currency:   u.BaseNightly.Currency,
		CreatedAt:  timeToTimestamp(u.CreatedAt),
		UpdatedAt:  timeToTimestamp(u.UpdatedAt),
		Version:    u.Version,
	}
}

func (d unitDocument) toAggregate() *domainunits.Unit {
	return &domainunits.Unit{
		ID:          domainunits.UnitID(d.ID),
		PropertyID:  domainunits.PropertyID(d.PropertyID),
		Name:        d.Name,
		Capacity:    d.Capacity,
		BaseNightly: money.Money{Amount: d.BaseCents, Currency: d.Currency},
		CreatedAt:   optionalTime(d.CreatedAt),
		UpdatedAt:   optionalTime(d.UpdatedAt),
		Version:     d.Version,
	}
}

var _ domainunits.Repository = (*UnitRepository)(nil)
