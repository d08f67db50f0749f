package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/huddle/backend/internal/models"
)

type MongoAccountStore struct {
	col *mongo.Collection
}

func NewMongoAccountStore(ctx context.Context, db *mongo.Database) *MongoAccountStore {
	col := db.Collection("accounts")

	// Best-effort indexes.
	_, _ = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoAccountStore{col: col}
}

func (s *MongoAccountStore) Create(ctx context.Context, account *models.Account) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	doc := *account
	doc.Email = models.NormalizeEmail(doc.Email)
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *MongoAccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var account models.Account
	err := s.col.FindOne(ctx, bson.M{"email": models.NormalizeEmail(email)}).Decode(&account)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}
