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
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

const collectionDeliveries = "deliveries"

// DeliveryRepository implements ports.DeliveryRepository. All invariants
// ride on conditional updates: the filter carries the expected status,
// version, and code-consumption state, so exactly one concurrent writer
// matches the document.
type DeliveryRepository struct {
	col *mongo.Collection
}

func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{col: db.Collection(collectionDeliveries)}
}

func (r *DeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if d.ID == "" {
		d.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.col.InsertOne(ctx, d)
	return err
}

func (r *DeliveryRepository) FindByID(ctx context.Context, id string) (*domain.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d domain.Delivery
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDeliveryNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepository) List(ctx context.Context, filter ports.ListDeliveriesFilter) ([]*domain.Delivery, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if filter.CarrierID != "" {
		query["carrier_id"] = filter.CarrierID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var items []*domain.Delivery
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TransitionStatus moves the delivery between states under the optimistic
// version check, applying denormalized fields in the same write.
func (r *DeliveryRepository) TransitionStatus(ctx context.Context, id string, from, to domain.DeliveryStatus, version int64, upd ports.TransitionUpdate) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"status": string(to)}
	if upd.AcceptedAt != nil {
		set["accepted_at"] = upd.AcceptedAt.UTC()
	}
	if upd.PickedUpAt != nil {
		set["picked_up_at"] = upd.PickedUpAt.UTC()
	}
	if upd.InTransitAt != nil {
		set["in_transit_at"] = upd.InTransitAt.UTC()
	}
	if upd.ConfirmedAt != nil {
		set["confirmed_at"] = upd.ConfirmedAt.UTC()
	}
	if upd.CancelledAt != nil {
		set["cancelled_at"] = upd.CancelledAt.UTC()
	}
	if upd.DisputedAt != nil {
		set["disputed_at"] = upd.DisputedAt.UTC()
	}
	if upd.CapacityReleased != nil {
		set["capacity_released"] = *upd.CapacityReleased
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from), "version": version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// ConsumeCodeAndDeliver couples the code consumption with the delivered
// transition: both land in one document update or neither does.
func (r *DeliveryRepository) ConsumeCodeAndDeliver(ctx context.Context, id string, version int64, proof domain.ProofOfDelivery) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":           id,
			"status":        string(domain.DeliveryInTransit),
			"code_consumed": false,
			"version":       version,
		},
		bson.M{
			"$set": bson.M{
				"status":        string(domain.DeliveryDelivered),
				"code_consumed": true,
				"proof":         proof,
				"delivered_at":  proof.ValidatedAt.UTC(),
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// SetValidationCode overwrites or clears the stored code without touching
// the delivery status.
func (r *DeliveryRepository) SetValidationCode(ctx context.Context, id string, code string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"code_consumed": false}}
	if code == "" {
		update["$unset"] = bson.M{"validation_code": ""}
	} else {
		update["$set"].(bson.M)["validation_code"] = code
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrDeliveryNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes the delivery queries rely on. The
// match_id index is unique: one delivery per accepted match.
func (r *DeliveryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := true
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "match_id", Value: 1}},
			Options: &options.IndexOptions{Unique: &unique},
		},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "carrier_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
