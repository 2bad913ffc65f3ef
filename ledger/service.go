package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alovak/cardledger/internal/cardgen"
	"github.com/alovak/cardledger/internal/expiry"
	"github.com/alovak/cardledger/ledger/models"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// Service orchestrates the two stores: holder registration, card issuance
// and money movement. It owns no storage semantics of its own; atomicity
// lives in the adapters.
type Service struct {
	users  UserStore
	cards  CardStore
	cfg    *Config
	logger *slog.Logger
}

func NewService(users UserStore, cards CardStore, cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		users:  users,
		cards:  cards,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

func (s *Service) RegisterUser(ctx context.Context, user *models.CardUser) (*models.CardUser, error) {
	if user.IIN == "" {
		return nil, fmt.Errorf("iin is required")
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}
	s.logger.Info("user registered", slog.String("iin", created.IIN))
	return created, nil
}

func (s *Service) GetUser(ctx context.Context, iin string) (*models.CardUser, error) {
	return s.users.FindByIIN(ctx, iin)
}

func (s *Service) ListUsers(ctx context.Context) ([]*models.CardUser, error) {
	return s.users.FindAll(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, user *models.CardUser) (bool, error) {
	return s.users.Update(ctx, user)
}

func (s *Service) RemoveUser(ctx context.Context, iin string) (bool, error) {
	return s.users.DeleteByIIN(ctx, iin)
}

// IssueCard creates a card for the holder identified by req.IIN, copying
// the holder's name onto the card. That copy is the card's only link to the
// holder; after issuance the card stands on its own.
func (s *Service) IssueCard(ctx context.Context, req models.IssueCard) (*models.Card, error) {
	if req.Balance.IsNegative() {
		return nil, fmt.Errorf("opening balance: %w", models.ErrInvalidAmount)
	}
	holder, err := s.users.FindByIIN(ctx, req.IIN)
	if err != nil {
		return nil, fmt.Errorf("finding holder: %w", err)
	}

	cvv, err := cardgen.GenerateCVV()
	if err != nil {
		return nil, fmt.Errorf("generating cvv: %w", err)
	}
	exp := expiry.FromIssue(time.Now(), s.cfg.CardValidityYears)

	bin := s.cfg.BINPrefix
	if err := cardgen.ValidateBIN(bin); err != nil {
		bin = DefaultConfig().BINPrefix
	}
	exists := func(pan string) (bool, error) { return s.cards.ExistsByPAN(ctx, pan) }

	// Retry on conflict: another issuer may land the same PAN between the
	// uniqueness probe and the insert.
	for attempt := 0; attempt < 5; attempt++ {
		pan, err := cardgen.GenerateUniquePAN(bin, 10, exists)
		if err != nil {
			return nil, fmt.Errorf("generate unique pan: %w", err)
		}
		card, err := s.cards.Create(ctx, &models.Card{
			PAN:          pan,
			CVV:          cvv,
			DateOfExpire: exp,
			Name:         holder.Name,
			Surname:      holder.Surname,
			Currency:     req.Currency,
			Balance:      req.Balance,
		})
		if err == nil {
			s.logger.Info("card issued",
				slog.String("iin", holder.IIN),
				slog.String("pan_last4", cardgen.LastN(pan, 4)))
			return card, nil
		}
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		return nil, fmt.Errorf("creating card: %w", err)
	}
	return nil, fmt.Errorf("could not create unique card after retries")
}

func (s *Service) GetCard(ctx context.Context, pan string) (*models.Card, error) {
	return s.cards.FindByPAN(ctx, pan)
}

func (s *Service) ListCards(ctx context.Context) ([]*models.Card, error) {
	return s.cards.FindAll(ctx)
}

func (s *Service) UpdateCard(ctx context.Context, card *models.Card) (bool, error) {
	if card.Balance.IsNegative() {
		return false, fmt.Errorf("balance: %w", models.ErrInvalidAmount)
	}
	return s.cards.Update(ctx, card)
}

func (s *Service) RemoveCard(ctx context.Context, pan string) (bool, error) {
	return s.cards.DeleteByPAN(ctx, pan)
}

func (s *Service) Deposit(ctx context.Context, pan string, amount decimal.Decimal) error {
	if err := s.cards.Deposit(ctx, pan, amount); err != nil {
		return err
	}
	s.logger.Info("deposit", slog.String("pan_last4", cardgen.LastN(pan, 4)), slog.String("amount", amount.String()))
	return nil
}

func (s *Service) Withdraw(ctx context.Context, pan, cvv string, amount decimal.Decimal) error {
	if err := s.cards.Withdraw(ctx, pan, cvv, amount); err != nil {
		return err
	}
	s.logger.Info("withdrawal", slog.String("pan_last4", cardgen.LastN(pan, 4)), slog.String("amount", amount.String()))
	return nil
}

func (s *Service) Transfer(ctx context.Context, fromPAN, toPAN string, amount decimal.Decimal) (models.TransferStatus, error) {
	status, err := s.cards.Transfer(ctx, fromPAN, toPAN, amount)
	if status == models.TransferPartiallyApplied {
		// This is the reconciliation signal for the conditional-update
		// backend; it must reach the operator, not just the caller.
		s.logger.Error("transfer partially applied",
			slog.String("from_last4", cardgen.LastN(fromPAN, 4)),
			slog.String("to_last4", cardgen.LastN(toPAN, 4)),
			slog.String("amount", amount.String()))
		return status, err
	}
	if err != nil {
		return status, err
	}
	s.logger.Info("transfer completed",
		slog.String("from_last4", cardgen.LastN(fromPAN, 4)),
		slog.String("to_last4", cardgen.LastN(toPAN, 4)),
		slog.String("amount", amount.String()))
	return status, nil
}

func (s *Service) DepositByName(ctx context.Context, name, surname string, amount decimal.Decimal) error {
	return s.cards.DepositByName(ctx, name, surname, amount)
}

func (s *Service) TransferByName(ctx context.Context, fromName, fromSurname, toName, toSurname string, amount decimal.Decimal) (models.TransferStatus, error) {
	return s.cards.TransferByName(ctx, fromName, fromSurname, toName, toSurname, amount)
}
