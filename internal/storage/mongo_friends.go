package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huddle/backend/internal/models"
)

type mongoFriendDoc struct {
	ID          string    `bson:"_id"`
	RequesterID string    `bson:"requester_id"`
	AddresseeID string    `bson:"addressee_id"`
	Status      string    `bson:"status"`
	PairKey     string    `bson:"pair_key"`
	CreatedAt   time.Time `bson:"created_at"`
}

func friendDocToModel(d mongoFriendDoc) *models.FriendRequest {
	return &models.FriendRequest{
		ID:          d.ID,
		RequesterID: d.RequesterID,
		AddresseeID: d.AddresseeID,
		Status:      models.FriendshipStatus(d.Status),
		CreatedAt:   d.CreatedAt,
	}
}

// MongoFriendStore relies on a unique pair_key index to keep one row per unordered pair.
type MongoFriendStore struct {
	col *mongo.Collection
}

func NewMongoFriendStore(ctx context.Context, db *mongo.Database) (*MongoFriendStore, error) {
	col := db.Collection("friends")

	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pair_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, err
	}
	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requester_id", Value: 1}}},
		{Keys: bson.D{{Key: "addressee_id", Value: 1}}},
	})

	return &MongoFriendStore{col: col}, nil
}

func (s *MongoFriendStore) Insert(ctx context.Context, req *models.FriendRequest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := mongoFriendDoc{
		ID:          req.ID,
		RequesterID: req.RequesterID,
		AddresseeID: req.AddresseeID,
		Status:      string(req.Status),
		PairKey:     req.PairKey(),
		CreatedAt:   req.CreatedAt,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoFriendStore) findOne(ctx context.Context, filter bson.M) (*models.FriendRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoFriendDoc
	if err := s.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return friendDocToModel(doc), nil
}

func (s *MongoFriendStore) Get(ctx context.Context, id string) (*models.FriendRequest, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindPair matches either direction. Rows written before pair_key existed are still found.
func (s *MongoFriendStore) FindPair(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"pair_key": models.PairKey(a, b)},
		bson.M{"$and": bson.A{bson.M{"requester_id": a}, bson.M{"addressee_id": b}}},
		bson.M{"$and": bson.A{bson.M{"requester_id": b}, bson.M{"addressee_id": a}}},
	}})
}

func (s *MongoFriendStore) ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := s.col.Find(
		ctx,
		bson.M{"$or": bson.A{
			bson.M{"requester_id": userID},
			bson.M{"addressee_id": userID},
		}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.FriendRequest, 0)
	for cur.Next(ctx) {
		var doc mongoFriendDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *friendDocToModel(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoFriendStore) Accept(ctx context.Context, id string) (*models.FriendRequest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var doc mongoFriendDoc
	err := s.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(models.FriendshipAccepted)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return friendDocToModel(doc), nil
}

func (s *MongoFriendStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
