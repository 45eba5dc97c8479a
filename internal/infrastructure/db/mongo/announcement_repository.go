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

const collectionAnnouncements = "announcements"

type AnnouncementRepository struct {
	col *mongo.Collection
}

func NewAnnouncementRepository(db *mongo.Database) *AnnouncementRepository {
	return &AnnouncementRepository{col: db.Collection(collectionAnnouncements)}
}

// Create inserts a new announcement document, assigning its id.
func (r *AnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if a.ID == "" {
		a.ID = primitive.NewObjectID().Hex()
	}
	_, err := r.col.InsertOne(ctx, a)
	return err
}

func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*domain.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Announcement
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAnnouncementNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Update replaces the mutable fields. The status filter keeps a concurrent
// matcher from resurrecting an announcement that just left open.
func (r *AnnouncementRepository) Update(ctx context.Context, a *domain.Announcement) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": a.ID, "status": string(domain.AnnouncementOpen)},
		bson.M{"$set": bson.M{
			"title":      a.Title,
			"window":     a.Window,
			"price":      a.Price,
			"updated_at": a.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrAnnouncementNotOpen
	}
	return nil
}

func (r *AnnouncementRepository) List(ctx context.Context, filter ports.ListAnnouncementsFilter) ([]*domain.Announcement, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["package.category"] = filter.Category
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

	var items []*domain.Announcement
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOpen returns open announcements whose window is still live, oldest
// first so candidate enumeration order is deterministic.
func (r *AnnouncementRepository) ListOpen(ctx context.Context, now time.Time, limit int) ([]*domain.Announcement, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{
		"status":     string(domain.AnnouncementOpen),
		"window.end": bson.M{"$gt": now.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []*domain.Announcement
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateStatusIf atomically flips the status. The matched count tells the
// caller whether it won the race.
func (r *AnnouncementRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.AnnouncementStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// EnsureIndexes creates the indexes the announcement queries rely on.
func (r *AnnouncementRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "window.end", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
