package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"priskombo/internal/basket"
)

// BasketCollection is the mongo collection baskets live in.
const BasketCollection = "baskets"

type MongoBasketRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoBasketRepository(collection *mongo.Collection, ttl time.Duration) *MongoBasketRepository {
	return &MongoBasketRepository{
		collection: collection,
		ttl:        ttl,
	}
}

// EnsureIndexes creates the session lookup index and the TTL index that
// expires abandoned baskets.
func (r *MongoBasketRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.ttl.Seconds())),
		},
	})
	return err
}

// Load returns the stored basket, or an empty one.
func (r *MongoBasketRepository) Load(ctx context.Context, sessionID string) (*basket.Basket, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var b basket.Basket
	err := r.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return basket.New(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Save upserts the basket keyed by its session id.
func (r *MongoBasketRepository) Save(ctx context.Context, b *basket.Basket) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"session_id": b.SessionID},
		bson.M{"$set": bson.M{
			"items":      b.Items,
			"updated_at": b.UpdatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MongoBasketRepository) Delete(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"session_id": sessionID})
	return err
}

func (r *MongoBasketRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}
