package account

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agentsend/internal/model"
)

type (
	AccountRepo struct {
		collection *mongo.Collection
	}
)

func NewAccountRepo(db *mongo.Database) *AccountRepo {
	return &AccountRepo{
		collection: db.Collection("accounts"),
	}
}

func (r *AccountRepo) GetByIdentity(ctx context.Context, identity string) (*model.Account, error) {
	filter := bson.M{
		"identity": strings.ToLower(identity),
	}

	var acc model.Account
	err := r.collection.FindOne(ctx, filter).Decode(&acc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &acc, nil
}

// Upsert registers or replaces the account's published public key.
// Last write wins.
func (r *AccountRepo) Upsert(ctx context.Context, identity, publicKey string) error {
	filter := bson.M{
		"identity": strings.ToLower(identity),
	}
	update := bson.M{
		"$set": bson.M{
			"public_key": publicKey,
		},
		"$setOnInsert": bson.M{
			"identity":   strings.ToLower(identity),
			"created_at": time.Now(),
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
