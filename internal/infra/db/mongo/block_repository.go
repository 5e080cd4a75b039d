package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainavailability "rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	return &BlockRepository{col: db.Collection(collBlocks)}
}

func (r *BlockRepository) ByID(ctx context.Context, id domainavailability.BlockID) (*domainavailability.Block, error) {
	var doc blockDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainavailability.ErrBlockNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BlockRepository) Save(ctx context.Context, b *domainavailability.Block) error {
	doc := newBlockDocument(b)
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

func (r *BlockRepository) Delete(ctx context.Context, id domainavailability.BlockID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainavailability.ErrBlockNotFound
	}
	return nil
}

func (r *BlockRepository) ListByUnit(ctx context.Context, unitID units.UnitID, window daterange.DateRange) ([]*domainavailability.Block, error) {
	filter := bson.M{"unit_id": string(unitID)}
	for k, v := range overlapFilter(window) {
		filter[k] = v
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*domainavailability.Block
	for cur.Next(ctx) {
		var doc blockDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type blockDocument struct {
	ID        string        `bson:"_id"`
	UnitID    string        `bson:"unit_id"`
	Range     rangeDocument `bson:"range"`
	Reason    string        `bson:"reason,omitempty"`
	CreatedBy string        `bson:"created_by,omitempty"`
	CreatedAt int64         `bson:"created_at"`
	UpdatedAt int64         `bson:"updated_at"`
	Version   int64         `bson:"version"`
}

func newBlockDocument(b *domainavailability.Block) blockDocument {
	return blockDocument{
		ID:        string(b.ID),
		UnitID:    string(b.UnitID),
		Range:     newRangeDocument(b.Range),
		Reason:    b.Reason,
		CreatedBy: b.CreatedBy,
		CreatedAt: timeToTimestamp(b.CreatedAt),
		UpdatedAt: timeToTimestamp(b.UpdatedAt),
		Version:   b.Version,
	}
}

func (d blockDocument) toAggregate() *domainavailability.Block {
	return &domainavailability.Block{
		ID:        domainavailability.BlockID(d.ID),
		UnitID:    units.UnitID(d.UnitID),
		Range:     d.Range.toRange(),
		Reason:    d.Reason,
		CreatedBy: d.CreatedBy,
		CreatedAt: optionalTime(d.CreatedAt),
		UpdatedAt: optionalTime(d.UpdatedAt),
		Version:   d.Version,
	}
}

var _ domainavailability.BlockRepository = (*BlockRepository)(nil)
