package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/alovak/cardledger/ledger/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type userDoc struct {
	Name    string `bson:"name"`
	Surname string `bson:"surname"`
	IIN     string `bson:"iin"`
}

func (d *userDoc) toModel() *models.CardUser {
	return &models.CardUser{Name: d.Name, Surname: d.Surname, IIN: d.IIN}
}

func (r *UserRepository) Create(ctx context.Context, user *models.CardUser) (*models.CardUser, error) {
	_, err := r.coll.InsertOne(ctx, userDoc{Name: user.Name, Surname: user.Surname, IIN: user.IIN})
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("iin %s: %w", user.IIN, models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating card user: %w", err)
	}
	u := *user
	return &u, nil
}

func (r *UserRepository) FindByIIN(ctx context.Context, iin string) (*models.CardUser, error) {
	return r.findOne(ctx, bson.D{{Key: "iin", Value: iin}})
}

func (r *UserRepository) FindByName(ctx context.Context, name, surname string) (*models.CardUser, error) {
	return r.findOne(ctx, bson.D{{Key: "name", Value: name}, {Key: "surname", Value: surname}})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (*models.CardUser, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding card user: %w", err)
	}
	return doc.toModel(), nil
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*models.CardUser, error) {
	cur, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("listing card users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*models.CardUser
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		users = append(users, doc.toModel())
	}
	return users, cur.Err()
}

func (r *UserRepository) Update(ctx context.Context, user *models.CardUser) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "iin", Value: user.IIN}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "name", Value: user.Name},
			{Key: "surname", Value: user.Surname},
		}}},
	)
	if err != nil {
		return false, fmt.Errorf("updating card user: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *UserRepository) DeleteByIIN(ctx context.Context, iin string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "iin", Value: iin}})
	if err != nil {
		return false, fmt.Errorf("deleting card user: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *UserRepository) ExistsByIIN(ctx context.Context, iin string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "iin", Value: iin}})
	if err != nil {
		return false, fmt.Errorf("checking card user existence: %w", err)
	}
	return n > 0, nil
}
