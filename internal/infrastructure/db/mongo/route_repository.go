package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
)

const collectionRoutes = "routes"

type RouteRepository struct {
	col *mongo.Collection
}

func NewRouteRepository(db *mongo.Database) *RouteRepository {
	return &RouteRepository{col: db.Collection(collectionRoutes)}
}

func (r *RouteRepository) Create(ctx context.Context, route *domain.Route) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if route.ID == "" {
		route.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.col.InsertOne(ctx, route)
	return err
}

func (r *RouteRepository) FindByID(ctx context.Context, id string) (*domain.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var route domain.Route
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&route)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRouteNotFound
		}
		return nil, err
	}
	return &route, nil
}

func (r *RouteRepository) ListByCarrier(ctx context.Context, carrierID string) ([]*domain.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "departure_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"carrier_id": carrierID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []*domain.Route
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ListDeparting returns routes departing at or after the given instant,
// earliest departure first.
func (r *RouteRepository) ListDeparting(ctx context.Context, after time.Time, limit int) ([]*domain.Route, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "departure_at", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"departure_at": bson.M{"$gte": after.UTC()}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []*domain.Route
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ReserveCapacity atomically decrements remaining capacity. The filter is
// the guard: the update only matches while both remainders stay at or above
// zero after the delta.
func (r *RouteRepository) ReserveCapacity(ctx context.Context, id string, weightKg, volumeM3 float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":                 id,
			"remaining_weight_kg": bson.M{"$gte": weightKg},
			"remaining_volume_m3": bson.M{"$gte": volumeM3},
		},
		bson.M{"$inc": bson.M{
			"remaining_weight_kg": -weightKg,
			"remaining_volume_m3": -volumeM3,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return ferr
		}
		return domain.ErrCapacityExceeded
	}
	return nil
}

// ReleaseCapacity atomically increments remaining capacity, guarded so the
// remainder can never exceed the declared capacity.
func (r *RouteRepository) ReleaseCapacity(ctx context.Context, id string, weightKg, volumeM3 float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id": id,
			"$expr": bson.M{"$and": bson.A{
				bson.M{"$lte": bson.A{
					bson.M{"$add": bson.A{"$remaining_weight_kg", weightKg}},
					"$declared_weight_kg",
				}},
				bson.M{"$lte": bson.A{
					bson.M{"$add": bson.A{"$remaining_volume_m3", volumeM3}},
					"$declared_volume_m3",
				}},
			}},
		},
		bson.M{"$inc": bson.M{
			"remaining_weight_kg": weightKg,
			"remaining_volume_m3": volumeM3,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return ferr
		}
		return domain.ErrCapacityExceeded
	}
	return nil
}

// EnsureIndexes creates the indexes the route queries rely on.
func (r *RouteRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "carrier_id", Value: 1}}},
		{Keys: bson.D{{Key: "departure_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
