package ledger

import (
	"context"
	"sync"

	"github.com/alovak/cardledger/ledger/models"
	"github.com/shopspring/decimal"
)

// MemoryUserStore is an in-memory UserStore. It exists for tests and for
// the explicitly-enabled "memory" backend; it keeps the same observable
// semantics as the storage-backed adapters.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users []*models.CardUser
	byIIN map[string]int
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{byIIN: make(map[string]int)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.CardUser) (*models.CardUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byIIN[user.IIN]; ok {
		return nil, models.ErrConflict
	}
	u := *user
	s.byIIN[u.IIN] = len(s.users)
	s.users = append(s.users, &u)
	return &u, nil
}

func (s *MemoryUserStore) FindByIIN(_ context.Context, iin string) (*models.CardUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byIIN[iin]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := *s.users[i]
	return &u, nil
}

func (s *MemoryUserStore) FindByName(_ context.Context, name, surname string) (*models.CardUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name && u.Surname == surname {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryUserStore) FindAll(_ context.Context) ([]*models.CardUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.CardUser, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *models.CardUser) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byIIN[user.IIN]
	if !ok {
		return false, nil
	}
	cp := *user
	s.users[i] = &cp
	return true, nil
}

func (s *MemoryUserStore) DeleteByIIN(_ context.Context, iin string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byIIN[iin]
	if !ok {
		return false, nil
	}
	s.users = append(s.users[:i], s.users[i+1:]...)
	delete(s.byIIN, iin)
	for j := i; j < len(s.users); j++ {
		s.byIIN[s.users[j].IIN] = j
	}
	return true, nil
}

func (s *MemoryUserStore) ExistsByIIN(_ context.Context, iin string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byIIN[iin]
	return ok, nil
}

// MemoryCardStore is an in-memory CardStore. Money movement holds the write
// lock for the whole operation, which gives it the transactional adapter's
// semantics: transfers cannot be observed partially applied.
type MemoryCardStore struct {
	mu       sync.RWMutex
	cards    []*models.Card
	panIndex map[string]int
	nextID   int64
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{panIndex: make(map[string]int), nextID: 1}
}

func (s *MemoryCardStore) Create(_ context.Context, card *models.Card) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.panIndex[card.PAN]; ok {
		return nil, models.ErrConflict
	}
	c := *card
	c.ID = s.nextID
	s.nextID++
	s.panIndex[c.PAN] = len(s.cards)
	s.cards = append(s.cards, &c)
	cp := c
	return &cp, nil
}

func (s *MemoryCardStore) FindByID(_ context.Context, id int64) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cards {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryCardStore) FindByPAN(_ context.Context, pan string) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.panIndex[pan]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s.cards[i]
	return &cp, nil
}

func (s *MemoryCardStore) FindByName(_ context.Context, name, surname string) ([]*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Card
	for _, c := range s.cards {
		if c.Name == name && c.Surname == surname {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryCardStore) FindAll(_ context.Context) ([]*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Card, 0, len(s.cards))
	for _, c := range s.cards {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryCardStore) Update(_ context.Context, card *models.Card) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.panIndex[card.PAN]
	if !ok {
		return false, nil
	}
	cp := *card
	cp.ID = s.cards[i].ID
	s.cards[i] = &cp
	return true, nil
}

func (s *MemoryCardStore) DeleteByID(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cards {
		if c.ID == id {
			s.removeAt(i)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryCardStore) DeleteByPAN(_ context.Context, pan string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.panIndex[pan]
	if !ok {
		return false, nil
	}
	s.removeAt(i)
	return true, nil
}

// removeAt must be called with the write lock held.
func (s *MemoryCardStore) removeAt(i int) {
	delete(s.panIndex, s.cards[i].PAN)
	s.cards = append(s.cards[:i], s.cards[i+1:]...)
	for j := i; j < len(s.cards); j++ {
		s.panIndex[s.cards[j].PAN] = j
	}
}

func (s *MemoryCardStore) ExistsByPAN(_ context.Context, pan string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.panIndex[pan]
	return ok, nil
}

func (s *MemoryCardStore) Withdraw(_ context.Context, pan, cvv string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.panIndex[pan]
	if !ok {
		return models.ErrNotFound
	}
	c := s.cards[i]
	if c.CVV != cvv || c.Balance.LessThan(amount) {
		return models.ErrInsufficientFunds
	}
	c.Balance = c.Balance.Sub(amount)
	return nil
}

func (s *MemoryCardStore) Deposit(_ context.Context, pan string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.panIndex[pan]
	if !ok {
		return models.ErrNotFound
	}
	s.cards[i].Balance = s.cards[i].Balance.Add(amount)
	return nil
}

func (s *MemoryCardStore) DepositByName(ctx context.Context, name, surname string, amount decimal.Decimal) error {
	if err := models.CheckAmount(amount); err != nil {
		return err
	}
	pan, err := s.resolveOnePAN(name, surname)
	if err != nil {
		return err
	}
	return s.Deposit(ctx, pan, amount)
}

func (s *MemoryCardStore) Transfer(_ context.Context, fromPAN, toPAN string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fi, ok := s.panIndex[fromPAN]
	if !ok {
		return models.TransferFailed, models.ErrNotFound
	}
	ti, ok := s.panIndex[toPAN]
	if !ok {
		return models.TransferFailed, models.ErrNotFound
	}
	from, to := s.cards[fi], s.cards[ti]
	if from.Balance.LessThan(amount) {
		return models.TransferFailed, models.ErrInsufficientFunds
	}
	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)
	return models.TransferCompleted, nil
}

func (s *MemoryCardStore) TransferByName(ctx context.Context, fromName, fromSurname, toName, toSurname string, amount decimal.Decimal) (models.TransferStatus, error) {
	if err := models.CheckAmount(amount); err != nil {
		return models.TransferFailed, err
	}
	fromPAN, err := s.resolveOnePAN(fromName, fromSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	toPAN, err := s.resolveOnePAN(toName, toSurname)
	if err != nil {
		return models.TransferFailed, err
	}
	return s.Transfer(ctx, fromPAN, toPAN, amount)
}

func (s *MemoryCardStore) resolveOnePAN(name, surname string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pan string
	for _, c := range s.cards {
		if c.Name == name && c.Surname == surname {
			if pan != "" {
				return "", models.ErrAmbiguousName
			}
			pan = c.PAN
		}
	}
	if pan == "" {
		return "", models.ErrNotFound
	}
	return pan, nil
}
