package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/alovak/cardledger/ledger/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type cardDoc struct {
	OID          primitive.ObjectID   `bson:"_id,omitempty"`
	PAN          string               `bson:"pan"`
	CVV          string               `bson:"cvv"`
	DateOfExpire string               `bson:"dateOfExpire"`
	Name         string               `bson:"name"`
	Surname      string               `bson:"surname"`
	Currency     string               `bson:"currency"`
	Balance      primitive.Decimal128 `bson:"balance"`
}

func (d *cardDoc) toModel() (*models.Card, error) {
	balance, err := fromDec128(d.Balance)
	if err != nil {
		return nil, err
	}
	return &models.Card{
		ID:           surrogateID(d.OID),
		PAN:          d.PAN,
		CVV:          d.CVV,
		DateOfExpire: d.DateOfExpire,
		Name:         d.Name,
		Surname:      d.Surname,
		Currency:     d.Currency,
		Balance:      balance,
	}, nil
}

func (r *CardRepository) Create(ctx context.Context, card *models.Card) (*models.Card, error) {
	balance, err := toDec128(card.Balance)
	if err != nil {
		return nil, err
	}
	res, err := r.coll.InsertOne(ctx, cardDoc{
		PAN:          card.PAN,
		CVV:          card.CVV,
		DateOfExpire: card.DateOfExpire,
		Name:         card.Name,
		Surname:      card.Surname,
		Currency:     card.Currency,
		Balance:      balance,
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("pan exists: %w", models.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}
	c := *card
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = surrogateID(oid)
	}
	return &c, nil
}

// FindByID is not supported by this backend: cards are keyed by _id, and
// the numeric surrogate is derived, not indexed. Callers use the PAN.
func (r *CardRepository) FindByID(ctx context.Context, id int64) (*models.Card, error) {
	return nil, models.ErrNotFound
}

func (r *CardRepository) FindByPAN(ctx context.Context, pan string) (*models.Card, error) {
	var doc cardDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "pan", Value: pan}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	return doc.toModel()
}

func (r *CardRepository) FindByName(ctx context.Context, name, surname string) ([]*models.Card, error) {
	return r.find(ctx, bson.D{{Key: "name", Value: name}, {Key: "surname", Value: surname}})
}

func (r *CardRepository) FindAll(ctx context.Context) ([]*models.Card, error) {
	return r.find(ctx, bson.D{})
}

func (r *CardRepository) find(ctx context.Context, filter bson.D) ([]*models.Card, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "pan", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("finding cards: %w", err)
	}
	defer cur.Close(ctx)

	var cards []*models.Card
	for cur.Next(ctx) {
		var doc cardDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		card, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, cur.Err()
}

// Update overwrites everything but the PAN, keyed by PAN.
func (r *CardRepository) Update(ctx context.Context, card *models.Card) (bool, error) {
	balance, err := toDec128(card.Balance)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "pan", Value: card.PAN}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "cvv", Value: card.CVV},
			{Key: "dateOfExpire", Value: card.DateOfExpire},
			{Key: "name", Value: card.Name},
			{Key: "surname", Value: card.Surname},
			{Key: "currency", Value: card.Currency},
			{Key: "balance", Value: balance},
		}}},
	)
	if err != nil {
		return false, fmt.Errorf("updating card: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// DeleteByID is not supported by this backend; see FindByID.
func (r *CardRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	return false, nil
}

func (r *CardRepository) DeleteByPAN(ctx context.Context, pan string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "pan", Value: pan}})
	if err != nil {
		return false, fmt.Errorf("deleting card: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *CardRepository) ExistsByPAN(ctx context.Context, pan string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "pan", Value: pan}})
	if err != nil {
		return false, fmt.Errorf("checking card existence: %w", err)
	}
	return n > 0, nil
}

// Withdraw rides the CVV match and the balance predicate in the update
// filter, so the check and the decrement are one atomic document update.
func (r *CardRepository) Withdraw(ctx context.Context, pan, cvv string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	modified, err := r.debit(ctx, bson.D{
		{Key: "pan", Value: pan},
		{Key: "cvv", Value: cvv},
	}, amount)
	if err != nil {
		return fmt.Errorf("withdrawing money: %w", err)
	}
	if !modified {
		exists, err := r.ExistsByPAN(ctx, pan)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrNotFound
		}
		return models.ErrInsufficientFunds
	}
	return nil
}

func (r *CardRepository) Deposit(ctx context.Context, pan string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	modified, err := r.credit(ctx, pan, amount)
	if err != nil {
		return fmt.Errorf("depositing money: %w", err)
	}
	if !modified {
		return models.ErrNotFound
	}
	return nil
}

func (r *CardRepository) DepositByName(ctx context.Context, name, surname string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	pan, err := r.resolveOnePAN(ctx, name, surname)
	if err != nil {
		return err
	}
	return r.Deposit(ctx, pan, amount)
}

// Transfer implements the protocol with two independent single-document
// updates. The conditional debit is the safety mechanism; the advisory
// reads before it only classify failures. If the debit lands and the
// credit then matches no document (destination deleted in the window, or
// the write lost), the ledger is genuinely partially applied: that outcome
// is reported as TransferPartiallyApplied with the details a reconciler
// needs, rather than faked into success or failure.
func (r *CardRepository) Transfer(ctx context.Context, fromPAN, toPAN string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}

	from, err := r.FindByPAN(ctx, fromPAN)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.TransferFailed, fmt.Errorf("source card: %w", models.ErrNotFound)
		}
		return models.TransferFailed, err
	}
	if _, err := r.FindByPAN(ctx, toPAN); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.TransferFailed, fmt.Errorf("destination card: %w", models.ErrNotFound)
		}
		return models.TransferFailed, err
	}
	if from.Balance.LessThan(amount) {
		return models.TransferFailed, models.ErrInsufficientFunds
	}

	debited, err := r.debit(ctx, bson.D{{Key: "pan", Value: fromPAN}}, amount)
	if err != nil {
		return models.TransferFailed, fmt.Errorf("debiting source: %w", err)
	}
	if !debited {
		// A concurrent operation dropped the balance after the read above.
		return models.TransferFailed, models.ErrInsufficientFunds
	}

	credited, err := r.credit(ctx, toPAN, amount)
	if err != nil {
		return models.TransferPartiallyApplied, &models.PartialTransferError{FromPAN: fromPAN, ToPAN: toPAN, Amount: amount}
	}
	if !credited {
		return models.TransferPartiallyApplied, &models.PartialTransferError{FromPAN: fromPAN, ToPAN: toPAN, Amount: amount}
	}
	return models.TransferCompleted, nil
}

func (r *CardRepository) TransferByName(ctx context.Context, fromName, fromSurname, toName, toSurname string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}
	fromPAN, err := r.resolveOnePAN(ctx, fromName, fromSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	toPAN, err := r.resolveOnePAN(ctx, toName, toSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	return r.Transfer(ctx, fromPAN, toPAN, amount)
}

// debit applies -amount guarded by balance >= amount in the same filter.
func (r *CardRepository) debit(ctx context.Context, match bson.D, amount decimal.Decimal) (bool, error) {
	dec, err := toDec128(amount)
	if err != nil {
		return false, err
	}
	neg, err := toDec128(amount.Neg())
	if err != nil {
		return false, err
	}
	filter := append(match, bson.E{Key: "balance", Value: bson.D{{Key: "$gte", Value: dec}}})
	res, err := r.coll.UpdateOne(ctx, filter, bson.D{{Key: "$inc", Value: bson.D{{Key: "balance", Value: neg}}}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *CardRepository) credit(ctx context.Context, pan string, amount decimal.Decimal) (bool, error) {
	dec, err := toDec128(amount)
	if err != nil {
		return false, err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "pan", Value: pan}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "balance", Value: dec}}}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *CardRepository) resolveOnePAN(ctx context.Context, name, surname string) (string, error) {
	cards, err := r.FindByName(ctx, name, surname)
	if err != nil {
		return "", err
	}
	switch len(cards) {
	case 0:
		return "", models.ErrNotFound
	case 1:
		return cards[0].PAN, nil
	}
	return "", models.ErrAmbiguousName
}
