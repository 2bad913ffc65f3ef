// Package mongo implements the ledger store contracts on MongoDB.
//
// MongoDB offers no cross-document transactions here; the only atomicity
// primitive is the single-document conditional update. The debit predicate
// rides in the update filter, so overdrafts are impossible, but a transfer
// can be left partially applied when the credit step fails after the debit
// succeeded. That state is surfaced, never hidden.
package mongo

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "card_users"
	cardsCollection = "cards"
)

// UserRepository is the MongoDB-backed UserStore.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// CardRepository is the MongoDB-backed CardStore.
type CardRepository struct {
	coll *mongo.Collection
}

func NewCardRepository(db *mongo.Database) *CardRepository {
	return &CardRepository{coll: db.Collection(cardsCollection)}
}

// EnsureIndexes creates the unique indexes on iin and pan that conflict
// detection relies on. Called once at startup, not per operation.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "iin", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating iin index: %w", err)
	}
	_, err = db.Collection(cardsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "pan", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating pan index: %w", err)
	}
	return nil
}

// toDec128 converts a decimal amount to Decimal128 so balances keep exact
// decimal arithmetic server-side ($inc and $gte operate on Decimal128).
func toDec128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("converting amount: %w", err)
	}
	return v, nil
}

func fromDec128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("reading balance: %w", err)
	}
	return d, nil
}

// surrogateID derives a stable integer id from the document's ObjectID. The
// document backend does not key cards numerically; this exists so created
// cards satisfy the contract's surrogate-key field.
func surrogateID(id primitive.ObjectID) int64 {
	h := fnv.New64a()
	h.Write(id[:])
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
