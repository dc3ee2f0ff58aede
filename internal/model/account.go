package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// Account is the relay-side record of a registered participant and the
	// encryption public key it published.
	Account struct {
		ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
		Identity  string             `bson:"identity" json:"identity"`
		PublicKey string             `bson:"public_key" json:"public_key"`
		CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	}
)
