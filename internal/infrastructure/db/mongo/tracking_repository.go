package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

const collectionTracking = "tracking_events"

// TrackingRepository is the append-only mongo store for tracking events.
type TrackingRepository struct {
	col *mongo.Collection
}

func NewTrackingRepository(db *mongo.Database) *TrackingRepository {
	return &TrackingRepository{col: db.Collection(collectionTracking)}
}

func (r *TrackingRepository) Append(ctx context.Context, event *domain.TrackingEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.col.InsertOne(ctx, event)
	return err
}

func (r *TrackingRepository) ListByDelivery(ctx context.Context, deliveryID string) ([]*domain.TrackingEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"delivery_id": deliveryID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []*domain.TrackingEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *TrackingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "delivery_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	return err
}
