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

const collectionMatches = "matches"

type MatchRepository struct {
	col *mongo.Collection
}

func NewMatchRepository(db *mongo.Database) *MatchRepository {
	return &MatchRepository{col: db.Collection(collectionMatches)}
}

// CreateBatch inserts a set of proposals, assigning their ids.
func (r *MatchRepository) CreateBatch(ctx context.Context, matches []*domain.Match) error {
	if len(matches) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	docs := make([]any, 0, len(matches))
	for _, m := range matches {
		if m.ID == "" {
			m.ID = primitive.NewObjectID().Hex()
		}
		docs = append(docs, m)
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *MatchRepository) FindByID(ctx context.Context, id string) (*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var m domain.Match
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) ListByAnnouncement(ctx context.Context, announcementID string) ([]*domain.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "proposed_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"announcement_id": announcementID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []*domain.Match
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkAccepted atomically flips a proposed match to accepted.
func (r *MatchRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.MatchProposed)},
		bson.M{"$set": bson.M{
			"status":      string(domain.MatchAccepted),
			"accepted_at": at.UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// MarkReleased flags an accepted match whose delivery was cancelled.
func (r *MatchRepository) MarkReleased(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(domain.MatchReleased)}},
	)
	return err
}

// EnsureIndexes creates the indexes the match queries rely on.
func (r *MatchRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "announcement_id", Value: 1}, {Key: "score", Value: -1}}},
		{Keys: bson.D{{Key: "carrier_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
