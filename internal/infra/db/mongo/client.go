package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collUnits    = "units"
	collBookings = "bookings"
	collBlocks   = "blocks"
	collBands    = "rate_bands"
	collRules    = "rate_rules"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the calendar lookup indexes. Safe to call on every start.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	byUnitAndStart := bson.D{{Key: "unit_id", Value: 1}, {Key: "range.check_in", Value: 1}}
	models := map[string][]mongo.IndexModel{
		collBookings: {
			{Keys: byUnitAndStart},
			{Keys: bson.D{{Key: "unit_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		collBlocks: {{Keys: byUnitAndStart}},
		collBands:  {{Keys: byUnitAndStart}},
		collRules:  {{Keys: bson.D{{Key: "active", Value: 1}, {Key: "priority", Value: 1}}}},
	}
	for name, idx := range models {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("mongo: create %s indexes: %w", name, err)
		}
	}
	return nil
}
