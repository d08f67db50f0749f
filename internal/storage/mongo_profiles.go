package storage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huddle/backend/internal/models"
)

type MongoProfileStore struct {
	col *mongo.Collection
}

func NewMongoProfileStore(ctx context.Context, db *mongo.Database) *MongoProfileStore {
	col := db.Collection("profiles")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})

	return &MongoProfileStore{col: col}
}

func (s *MongoProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.col.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoProfileStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var prof models.Profile
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&prof); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prof, nil
}

func (s *MongoProfileStore) GetMany(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cur, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var p models.Profile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoProfileStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	want := models.NormalizeEmail(email)
	if want == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var prof models.Profile
	if err := s.col.FindOne(ctx, bson.M{"email": want}).Decode(&prof); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prof, nil
}

func (s *MongoProfileStore) Update(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if req.Name != nil {
		set["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		set["email"] = models.NormalizeEmail(*req.Email)
	}
	if req.Avatar != nil {
		if v := strings.TrimSpace(*req.Avatar); v != "" {
			set["avatar"] = v
		} else {
			unset["avatar"] = ""
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var prof models.Profile
	err := s.col.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&prof)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prof, nil
}

func (s *MongoProfileStore) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	filter := bson.M{}
	if q := strings.TrimSpace(query); q != "" {
		pattern := caseInsensitive(regexp.QuoteMeta(q))
		filter["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"email": pattern},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]models.Profile, 0)
	for cur.Next(ctx) {
		var p models.Profile
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func caseInsensitive(pattern string) bson.M {
	return bson.M{"$regex": pattern, "$options": "i"}
}
